package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/summary-chat/internal/config"
)

func dialSession(t *testing.T, ts *testServer, id string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil reads frames until one satisfies match
func readUntil(t *testing.T, conn *websocket.Conn, match func(wsMessage) bool) wsMessage {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readFrame(t, conn)
		if match(msg) {
			return msg
		}
	}
	t.Fatal("expected frame not received")
	return wsMessage{}
}

func TestWebSocketSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t).ID
	conn := dialSession(t, ts, id)

	initial := readFrame(t, conn)
	require.Equal(t, "state", initial.Type)
	require.NotNil(t, initial.State)
	assert.Empty(t, initial.State.Messages)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "input_changed", "text": "summarize me"}))
	msg := readUntil(t, conn, func(m wsMessage) bool { return m.State != nil && m.State.Input == "summarize me" })
	assert.Equal(t, "state", msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "submit"}))
	msg = readUntil(t, conn, func(m wsMessage) bool {
		return m.State != nil && !m.State.Loading && len(m.State.Messages) == 2
	})

	bot := msg.State.Messages[1]
	assert.NotEmpty(t, bot.HTML)
	assert.Equal(t, "summarize me", ts.sum.last().Text)
	assert.Equal(t, 1, ts.api.websockets.count())
}

func TestWebSocketErrors(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t).ID
	conn := dialSession(t, ts, id)
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	msg := readFrame(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "invalid_request", msg.Error)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "submit"}))
	msg = readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
	assert.Equal(t, "invalid_submission", msg.Error)
	assert.Equal(t, "Please provide text, a URL or a file.", msg.Message)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "language_changed", "language": "xx"}))
	msg = readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
	assert.Equal(t, "invalid_event", msg.Error)
}

func TestWebSocketClosedWithSession(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createSession(t).ID
	conn := dialSession(t, ts, id)
	readFrame(t, conn)

	resp := ts.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return ts.api.websockets.count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocketUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"same host", nil, "http://chat.local:8080", true},
		{"other host", nil, "http://evil.example", false},
		{"listed origin", []string{"https://app.example"}, "https://app.example", true},
		{"unlisted origin", []string{"https://app.example"}, "http://chat.local:8080", false},
		{"wildcard", []string{"*"}, "http://anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.HTTP.AllowedOrigins = tt.allowed
			h := &HTTPServer{config: cfg}

			req := httptest.NewRequest(http.MethodGet, "http://chat.local:8080/api/sessions/x/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, h.checkOrigin(req))
		})
	}
}
