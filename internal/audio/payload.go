package audio

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PayloadKind tells which form an audio payload arrived in
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadSingle
	PayloadMulti
)

// String returns the payload kind name
func (k PayloadKind) String() string {
	switch k {
	case PayloadSingle:
		return "single"
	case PayloadMulti:
		return "multi"
	default:
		return "none"
	}
}

// Payload is the audio field of a summary response. Older backends send a
// single base64 string, newer ones an ordered list of base64 chunks.
type Payload struct {
	kind   PayloadKind
	single string
	chunks []string
}

// SingleChunk wraps a legacy single base64 string
func SingleChunk(chunk string) Payload {
	return Payload{kind: PayloadSingle, single: chunk}
}

// MultiChunk wraps an ordered list of base64 chunks
func MultiChunk(chunks []string) Payload {
	return Payload{kind: PayloadMulti, chunks: append([]string(nil), chunks...)}
}

// Kind returns the form the payload arrived in
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// IsEmpty reports whether the payload carries no audio at all
func (p Payload) IsEmpty() bool {
	switch p.kind {
	case PayloadSingle:
		return false
	case PayloadMulti:
		return len(p.chunks) == 0
	default:
		return true
	}
}

// Chunks normalizes the payload to an ordered chunk list
func (p Payload) Chunks() []string {
	switch p.kind {
	case PayloadSingle:
		return []string{p.single}
	case PayloadMulti:
		return append([]string(nil), p.chunks...)
	default:
		return nil
	}
}

// UnmarshalJSON accepts null, a string or an array of strings.
// An empty string means no audio.
func (p *Payload) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Payload{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid audio string: %w", err)
		}
		if s == "" {
			*p = Payload{}
			return nil
		}
		*p = SingleChunk(s)
		return nil

	case '[':
		var chunks []string
		if err := json.Unmarshal(data, &chunks); err != nil {
			return fmt.Errorf("invalid audio chunk list: %w", err)
		}
		*p = MultiChunk(chunks)
		return nil
	}

	return fmt.Errorf("audio must be a string or an array of strings")
}

// MarshalJSON writes the payload back in the form it arrived in
func (p Payload) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case PayloadSingle:
		return json.Marshal(p.single)
	case PayloadMulti:
		if p.chunks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(p.chunks)
	default:
		return []byte("null"), nil
	}
}
