package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/skypro1111/summary-chat/internal/chat"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

type sessionResponse struct {
	ID    string     `json:"id"`
	State chat.State `json:"state"`
}

// session resolves the {id} route parameter, writing 404 when unknown
func (h *HTTPServer) session(w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	id := chi.URLParam(r, "id")
	session, ok := h.sessions.GetSession(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", chat.ErrSessionNotFound.Error())
		return nil, false
	}
	return session, true
}

// writeChatError maps chat and summarizer errors to status codes
func writeChatError(w http.ResponseWriter, err error, state chat.State) {
	switch {
	case errors.Is(err, chat.ErrSessionClosed):
		writeError(w, http.StatusGone, "session_closed", err.Error())
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, "busy", err.Error())
	case errors.Is(err, chat.ErrNothingToSend), errors.Is(err, chat.ErrNoFileSelected), errors.Is(err, chat.ErrNoURL):
		writeJSON(w, http.StatusBadRequest, struct {
			errorResponse
			State chat.State `json:"state"`
		}{errorResponse{Error: "invalid_submission", Message: chat.DisplayMessage(err)}, state})
	case errors.Is(err, summarizer.ErrUnsupportedLanguage), errors.Is(err, summarizer.ErrUnsupportedInput):
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// handleCreateSession creates a chat session
func (h *HTTPServer) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.CreateSession()
	if err != nil {
		if errors.Is(err, chat.ErrTooManySessions) {
			writeError(w, http.StatusServiceUnavailable, "too_many_sessions", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	w.Header().Set("Location", "/api/sessions/"+session.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: session.ID, State: session.State()})
}

// handleListSessions lists sessions for monitoring
func (h *HTTPServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.GetAllSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_sessions": len(sessions),
		"sessions":       sessions,
	})
}

// handleGetSession returns the session state
func (h *HTTPServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	session.Touch()
	writeJSON(w, http.StatusOK, sessionResponse{ID: session.ID, State: session.State()})
}

// handleDeleteSession closes a session and releases its audio
func (h *HTTPServer) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.RemoveSession(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session_not_found", chat.ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionEvent applies one input event
func (h *HTTPServer) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if !decodeBody(w, r, eventSchema, &req) {
		return
	}
	if req.Type == submitEventType {
		writeError(w, http.StatusBadRequest, "invalid_event", "use the submit endpoint to submit")
		return
	}

	ev, err := req.event()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}

	state, err := session.Apply(ev)
	if err != nil {
		writeChatError(w, err, state)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: session.ID, State: state})
}

// handleSubmit submits the session input. A JSON body may set the input
// first; a multipart body may additionally carry the file to summarize.
func (h *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var events []chat.Event
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		evs, ok := h.applyUpload(w, r, session)
		if !ok {
			return
		}
		events = evs
	} else {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			var req submitRequest
			if !decodeBytes(w, body, submitSchema, &req) {
				return
			}
			events = req.events()
		}
	}

	for _, ev := range events {
		if state, err := session.Apply(ev); err != nil {
			writeChatError(w, err, state)
			return
		}
	}

	state, err := session.Submit(r.Context())
	if err != nil {
		writeChatError(w, err, state)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{ID: session.ID, State: state})
}

// applyUpload reads a multipart submission, attaches its file to the
// session and returns the events its other fields imply
func (h *HTTPServer) applyUpload(w http.ResponseWriter, r *http.Request, session *chat.Session) ([]chat.Event, bool) {
	limit := h.config.Chat.GetMaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("File exceeds the %d MB upload limit", h.config.Chat.MaxUploadMB))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart form: "+err.Error())
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	var req submitRequest
	for field, target := range map[string]**string{
		"text":      &req.Text,
		"url":       &req.URL,
		"file_type": &req.FileType,
		"language":  &req.Language,
	} {
		if values, ok := r.MultipartForm.Value[field]; ok && len(values) > 0 {
			value := values[0]
			*target = &value
		}
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return req.events(), true
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid_request", "Could not read file: "+err.Error())
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Could not read file: "+err.Error())
		return nil, false
	}

	// The file type chosen by the user applies before the upload so that
	// detection from the file name does not override it
	events := req.events()
	for _, ev := range events {
		if _, ok := ev.(chat.FileTypeChanged); ok {
			if state, err := session.Apply(ev); err != nil {
				writeChatError(w, err, state)
				return nil, false
			}
		}
	}

	upload := &summarizer.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, err := session.SelectFile(upload); err != nil {
		writeChatError(w, err, chat.State{})
		return nil, false
	}

	h.logger.Debug("Received upload",
		slog.String("session_id", session.ID),
		slog.String("filename", upload.Filename),
		slog.Int("size_bytes", len(data)),
	)

	return events, true
}
