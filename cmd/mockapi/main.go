// Command mockapi is a local stand-in for the remote summarization API. It
// answers /summarize and /summarize-file with a markdown summary and a
// spoken version as base64 WAV chunks.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skypro1111/summary-chat/internal/audio"
	"github.com/skypro1111/summary-chat/internal/summarizer"
)

const (
	sampleRate    = 16000
	toneFrequency = 440.0
)

type summarizeRequest struct {
	Text               string `json:"text"`
	URL                string `json:"url"`
	FileType           string `json:"file_type"`
	Language           string `json:"language"`
	TargetLanguageCode string `json:"target_language_code"`
	RequestID          string `json:"request_id"`
}

type summarizeResponse struct {
	Summary string   `json:"summary"`
	Audio   []string `json:"audio"`
}

type mockAPI struct {
	logger   *slog.Logger
	delay    time.Duration
	chunks   int
	chunkDur time.Duration
}

func (m *mockAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/summarize", m.handleSummarize)
	r.Post("/summarize-file", m.handleSummarizeFile)
	return r
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func (m *mockAPI) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	var source string
	switch {
	case strings.TrimSpace(req.Text) != "":
		source = fmt.Sprintf("direct text (%d characters)", len([]rune(req.Text)))
	case strings.TrimSpace(req.URL) != "":
		fileType := req.FileType
		if fileType == "" {
			fileType = summarizer.FileTypeArticle
		}
		source = fmt.Sprintf("%s at %s", fileType, req.URL)
	default:
		writeDetail(w, http.StatusBadRequest, "Please provide either direct text or a URL.")
		return
	}

	m.logger.Info("Summarize request",
		slog.String("request_id", req.RequestID),
		slog.String("language", req.Language),
		slog.String("target_language_code", req.TargetLanguageCode),
		slog.String("source", source),
	)

	m.respond(w, source, req.Language)
}

func (m *mockAPI) handleSummarizeFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "Error parsing form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Error reading file")
		return
	}

	m.logger.Info("Summarize file request",
		slog.String("request_id", r.FormValue("request_id")),
		slog.String("language", r.FormValue("language")),
		slog.String("file_type", r.FormValue("file_type")),
		slog.String("filename", header.Filename),
		slog.Int("size_bytes", len(data)),
	)

	source := fmt.Sprintf("%s file %s (%d bytes)", r.FormValue("file_type"), header.Filename, len(data))
	m.respond(w, source, r.FormValue("language"))
}

func (m *mockAPI) respond(w http.ResponseWriter, source, lang string) {
	time.Sleep(m.delay)

	summary := fmt.Sprintf("## Summary\n\nThis is a **mock** summary of %s.\n\n"+
		"### Key points\n- Generated by the *mock* API\n- Language: %s\n- [Project](https://github.com/skypro1111/summary-chat)",
		source, lang)

	chunks, err := toneChunks(m.chunks, m.chunkDur)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summarizeResponse{Summary: summary, Audio: chunks})
}

// toneChunks returns n base64 WAV chunks of a sine tone
func toneChunks(n int, each time.Duration) ([]string, error) {
	samples := make([]int16, int(each.Seconds()*sampleRate))
	for i := range samples {
		samples[i] = int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*toneFrequency*float64(i)/sampleRate))
	}

	wav, err := audio.EncodeWAV(samples, sampleRate, 1)
	if err != nil {
		return nil, err
	}

	chunk := base64.StdEncoding.EncodeToString(wav)
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = chunk
	}
	return chunks, nil
}

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	chunks := flag.Int("chunks", 3, "Audio chunks per summary")
	chunkDur := flag.Duration("chunk-duration", 500*time.Millisecond, "Duration of each audio chunk")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	api := &mockAPI{logger: logger, delay: *delay, chunks: *chunks, chunkDur: *chunkDur}

	logger.Info("Mock summarization API starting",
		slog.String("address", *addr),
		slog.String("endpoint", "http://localhost"+*addr),
	)

	if err := http.ListenAndServe(*addr, api.routes()); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
