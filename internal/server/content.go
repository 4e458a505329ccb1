package server

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/markup"
)

type formatRequest struct {
	Text   string `json:"text"`
	Render *bool  `json:"render"`
}

type formatResponse struct {
	HTML string `json:"html"`
}

// handleFormat renders summary markup. render defaults to true.
func (h *HTTPServer) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if !decodeBody(w, r, formatSchema, &req) {
		return
	}

	render := req.Render == nil || *req.Render

	start := time.Now()
	html := markup.Format(req.Text, render)
	if render {
		h.metrics.RecordMarkupRender(time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, formatResponse{HTML: html})
}

type audioRequest struct {
	Audio audio.Payload `json:"audio"`
}

type audioResponse struct {
	audio.Handle
	ContentType string   `json:"content_type"`
	Chunks      int      `json:"chunks"`
	Decoded     int      `json:"decoded"`
	Defects     []string `json:"defects,omitempty"`

	// WAV describes the first chunk's header, when it has one
	WAV *audio.WAVInfo `json:"wav,omitempty"`
}

// handleAssembleAudio assembles base64 chunks into a playable handle
func (h *HTTPServer) handleAssembleAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if !decodeBody(w, r, audioSchema, &req) {
		return
	}

	assembled, err := h.assembler.AssemblePayload(req.Audio)
	if err != nil {
		h.logger.Warn("Audio assembly failed", slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, "audio_unavailable", "audio unavailable")
		return
	}

	handle, err := h.store.Put(assembled)
	if err != nil {
		if errors.Is(err, audio.ErrStoreFull) {
			writeError(w, http.StatusServiceUnavailable, "store_full", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	resp := audioResponse{
		Handle:      handle,
		ContentType: assembled.ContentType,
		Chunks:      assembled.Chunks,
		Decoded:     assembled.Decoded,
	}
	for _, d := range assembled.Defects {
		resp.Defects = append(resp.Defects, d.Error())
	}
	if info, err := assembled.Info(); err == nil {
		resp.WAV = info
	}

	w.Header().Set("Location", handle.URL)
	writeJSON(w, http.StatusCreated, resp)
}

// handleGetAudio serves assembled audio bytes, with range support for
// media players
func (h *HTTPServer) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	assembled, ok := h.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Audio not found or expired")
		return
	}

	w.Header().Set("Content-Type", assembled.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Audio-Chunks", strconv.Itoa(assembled.Decoded))
	http.ServeContent(w, r, id+".wav", time.Time{}, bytes.NewReader(assembled.Data))
}

// handleReleaseAudio releases an audio handle
func (h *HTTPServer) handleReleaseAudio(w http.ResponseWriter, r *http.Request) {
	if !h.store.Release(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "not_found", "Audio not found or expired")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
