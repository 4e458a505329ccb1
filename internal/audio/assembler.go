package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ContentTypeWAV is the media type of every assembled resource
const ContentTypeWAV = "audio/wav"

var (
	// ErrEmptyInput is returned when no chunks were supplied
	ErrEmptyInput = errors.New("no audio data supplied")

	// ErrNoValidAudio is returned when every chunk failed to decode
	ErrNoValidAudio = errors.New("no audio chunk could be decoded")

	errEmptyChunk = errors.New("chunk decodes to no data")
)

// DecodeDefect records a chunk that failed to decode. It is recoverable:
// the chunk is dropped and assembly continues.
type DecodeDefect struct {
	Index int
	Err   error
}

func (d DecodeDefect) Error() string {
	return fmt.Sprintf("audio chunk %d: %v", d.Index, d.Err)
}

func (d DecodeDefect) Unwrap() error {
	return d.Err
}

// Assembled is one playable WAV resource built from decoded chunks
type Assembled struct {
	Data        []byte
	ContentType string

	// Chunks is the number of chunks supplied, Decoded the number used
	Chunks  int
	Decoded int
	Defects []DecodeDefect
}

// Size returns the resource size in bytes
func (a *Assembled) Size() int {
	return len(a.Data)
}

// Info reads the WAV header at the start of the resource
func (a *Assembled) Info() (*WAVInfo, error) {
	return ParseWAVInfo(a.Data)
}

// Observer receives assembly outcomes and live handle counts
type Observer interface {
	ObserveAssembly(result string, chunks, defects, bytes int)
	SetLiveHandles(count int)
}

// Assembly results reported to the Observer
const (
	ResultOK          = "ok"
	ResultEmptyInput  = "empty_input"
	ResultNoValidData = "no_valid_audio"
)

// Assembler logs per-chunk defects and reports outcomes around Assemble
type Assembler struct {
	logger   *slog.Logger
	observer Observer
}

// NewAssembler creates an assembler. observer may be nil.
func NewAssembler(logger *slog.Logger, observer Observer) *Assembler {
	return &Assembler{logger: logger, observer: observer}
}

// Assemble decodes and joins chunks, logging every dropped chunk
func (a *Assembler) Assemble(chunks []string) (*Assembled, error) {
	out, err := assemble(chunks, func(d DecodeDefect) {
		a.logger.Warn("Dropping undecodable audio chunk",
			slog.Int("chunk_index", d.Index),
			slog.Int("chunk_count", len(chunks)),
			slog.String("error", d.Err.Error()),
		)
	})

	switch {
	case errors.Is(err, ErrEmptyInput):
		a.observe(ResultEmptyInput, 0, 0, 0)
	case errors.Is(err, ErrNoValidAudio):
		a.observe(ResultNoValidData, len(chunks), len(chunks), 0)
	case err == nil:
		a.observe(ResultOK, out.Chunks, len(out.Defects), out.Size())
		a.logger.Debug("Assembled audio",
			slog.Int("chunks", out.Chunks),
			slog.Int("decoded", out.Decoded),
			slog.Int("size_bytes", out.Size()),
		)
	}
	return out, err
}

// AssemblePayload normalizes a payload to its chunk list and assembles it
func (a *Assembler) AssemblePayload(p Payload) (*Assembled, error) {
	if p.Kind() == PayloadSingle {
		a.logger.Info("Received legacy single-string audio payload, treating it as one chunk")
	}
	return a.Assemble(p.Chunks())
}

func (a *Assembler) observe(result string, chunks, defects, bytes int) {
	if a.observer != nil {
		a.observer.ObserveAssembly(result, chunks, defects, bytes)
	}
}

// Assemble decodes each base64 chunk and concatenates the decoded bytes in
// input order. Chunks that fail to decode are dropped and listed in
// Defects. It fails with ErrEmptyInput for an empty sequence and with
// ErrNoValidAudio when nothing decodes.
func Assemble(chunks []string) (*Assembled, error) {
	return assemble(chunks, nil)
}

func assemble(chunks []string, onDefect func(DecodeDefect)) (*Assembled, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	out := &Assembled{ContentType: ContentTypeWAV, Chunks: len(chunks)}
	decoded := make([][]byte, 0, len(chunks))
	total := 0

	for i, chunk := range chunks {
		data, err := DecodeChunk(chunk)
		if err != nil {
			defect := DecodeDefect{Index: i, Err: err}
			out.Defects = append(out.Defects, defect)
			if onDefect != nil {
				onDefect(defect)
			}
			continue
		}
		decoded = append(decoded, data)
		total += len(data)
	}

	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed", ErrNoValidAudio, len(chunks))
	}
	out.Decoded = len(decoded)

	// A lone chunk is addressed directly
	if len(chunks) == 1 {
		out.Data = decoded[0]
		return out, nil
	}

	out.Data = make([]byte, 0, total)
	for _, data := range decoded {
		out.Data = append(out.Data, data...)
	}
	return out, nil
}

// DecodeChunk decodes one base64 chunk. A "data:...;base64," prefix and
// missing padding are tolerated.
func DecodeChunk(chunk string) ([]byte, error) {
	chunk = strings.TrimSpace(chunk)
	if strings.HasPrefix(chunk, "data:") {
		if comma := strings.IndexByte(chunk, ','); comma >= 0 {
			chunk = chunk[comma+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(chunk, "="))
		if rawErr != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		data = raw
	}

	if len(data) == 0 {
		return nil, errEmptyChunk
	}
	return data, nil
}
