package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/summary-chat/internal/chat"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 20 * time.Second
	wsMaxMessage = 1 << 20
)

// wsMessage is a server to client websocket frame
type wsMessage struct {
	Type    string      `json:"type"` // state or error
	State   *chat.State `json:"state,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// wsTracker keeps open websocket connections so shutdown can close them
type wsTracker struct {
	conns map[*websocket.Conn]struct{}
	mu    sync.Mutex
}

func newWSTracker() *wsTracker {
	return &wsTracker{conns: make(map[*websocket.Conn]struct{})}
}

func (t *wsTracker) add(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[conn] = struct{}{}
}

func (t *wsTracker) remove(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, conn)
}

func (t *wsTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

func (t *wsTracker) closeAll() {
	t.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(wsWriteWait))
		_ = c.Close()
	}
}

// checkOrigin allows configured origins, or the request host when none
// are configured
func (h *HTTPServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	allowed := h.config.HTTP.AllowedOrigins
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}

	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// wsConn serializes writes to one websocket connection
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) close(code int, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(wsWriteWait))
	_ = c.conn.Close()
}

func (c *wsConn) sendError(code, message string) error {
	return c.writeJSON(wsMessage{Type: "error", Error: code, Message: message})
}

// handleWebSocket streams session state to the client and applies the
// events it sends. A "submit" event runs in the background; its progress
// arrives as state frames.
func (h *HTTPServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin:      h.checkOrigin,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	h.websockets.add(conn)
	defer h.websockets.remove(conn)

	logger := h.logger.With(slog.String("session_id", session.ID))
	logger.Info("Websocket connected", slog.String("remote_addr", r.RemoteAddr))

	c := &wsConn{conn: conn}
	updates, unsubscribe := session.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	var submissions sync.WaitGroup

	done := make(chan struct{})
	go h.wsWriteLoop(ctx, c, updates, done)

	defer func() {
		cancel()
		submissions.Wait()
		unsubscribe()
		<-done
		c.close(websocket.CloseNormalClosure, "")
		logger.Info("Websocket disconnected")
	}()

	initial := session.State()
	if err := c.writeJSON(wsMessage{Type: "state", State: &initial}); err != nil {
		return
	}

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		session.Touch()
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Websocket read failed", slog.String("error", err.Error()))
			}
			return
		}

		if err := validateJSON(eventSchema, data); err != nil {
			_ = c.sendError("invalid_request", err.Error())
			continue
		}

		var req eventRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = c.sendError("invalid_request", err.Error())
			continue
		}

		if req.Type == submitEventType {
			submissions.Add(1)
			go func() {
				defer submissions.Done()
				if _, err := session.Submit(ctx); err != nil && !errors.Is(err, context.Canceled) {
					_ = c.sendError(wsErrorCode(err), chat.DisplayMessage(err))
				}
			}()
			continue
		}

		ev, err := req.event()
		if err != nil {
			_ = c.sendError("invalid_event", err.Error())
			continue
		}
		if _, err := session.Apply(ev); err != nil {
			if errors.Is(err, chat.ErrSessionClosed) {
				_ = c.sendError("session_closed", err.Error())
				return
			}
			_ = c.sendError(wsErrorCode(err), chat.DisplayMessage(err))
		}
	}
}

// wsWriteLoop forwards state updates and keeps the connection alive until
// updates closes. When the session closes while the client is still
// connected the connection is closed too.
func (h *HTTPServer) wsWriteLoop(ctx context.Context, c *wsConn, updates <-chan chat.State, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				if ctx.Err() == nil {
					c.close(websocket.CloseNormalClosure, "session closed")
				}
				return
			}
			if err := c.writeJSON(wsMessage{Type: "state", State: &state}); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrBusy):
		return "busy"
	case errors.Is(err, chat.ErrSessionClosed):
		return "session_closed"
	case errors.Is(err, chat.ErrNothingToSend), errors.Is(err, chat.ErrNoFileSelected), errors.Is(err, chat.ErrNoURL):
		return "invalid_submission"
	default:
		return "invalid_event"
	}
}
