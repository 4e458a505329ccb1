package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/skypro1111/summary-chat/internal/chat"
)

const formatRequestSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {"type": "string"},
    "render": {"type": "boolean"}
  },
  "additionalProperties": false
}`

const audioRequestSchema = `{
  "type": "object",
  "required": ["audio"],
  "properties": {
    "audio": {
      "type": ["string", "array", "null"],
      "items": {"type": "string"}
    }
  },
  "additionalProperties": false
}`

const eventRequestSchema = `{
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": [
        "input_changed", "file_path_changed", "file_source_changed",
        "file_type_changed", "language_changed", "file_selector_toggled",
        "file_cleared", "cleared", "submit"
      ]
    },
    "text": {"type": "string"},
    "path": {"type": "string"},
    "source": {"enum": ["", "upload", "url"]},
    "file_type": {"type": "string"},
    "language": {"type": "string"}
  },
  "additionalProperties": false
}`

const submitRequestSchema = `{
  "type": "object",
  "properties": {
    "text": {"type": "string"},
    "url": {"type": "string"},
    "file_type": {"type": "string"},
    "language": {"type": "string"}
  },
  "additionalProperties": false
}`

var (
	formatSchema = mustSchema(formatRequestSchema)
	audioSchema  = mustSchema(audioRequestSchema)
	eventSchema  = mustSchema(eventRequestSchema)
	submitSchema = mustSchema(submitRequestSchema)
)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// SchemaError lists the ways a request body failed its schema
type SchemaError struct {
	Details []string
}

func (e *SchemaError) Error() string {
	return "request body does not match schema: " + strings.Join(e.Details, "; ")
}

// validateJSON checks body against schema
func validateJSON(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Not parseable as JSON at all
		return &SchemaError{Details: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return &SchemaError{Details: details}
	}
	return nil
}

// decodeBody reads a JSON body, validates it against schema and decodes it
// into v. Failures are written to w and reported as false.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
		return false
	}
	return decodeBytes(w, body, schema, v)
}

func decodeBytes(w http.ResponseWriter, body []byte, schema *gojsonschema.Schema, v interface{}) bool {
	if err := validateJSON(schema, body); err != nil {
		schemaErr := err.(*SchemaError)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "Request body does not match schema",
			Details: schemaErr.Details,
		})
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// eventRequest is a chat input event as sent by clients
type eventRequest struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Path     string `json:"path,omitempty"`
	Source   string `json:"source,omitempty"`
	FileType string `json:"file_type,omitempty"`
	Language string `json:"language,omitempty"`
}

const submitEventType = "submit"

// event converts the request to a chat event. Only input events are
// accepted; outcomes of a submission are produced by the session itself.
func (e eventRequest) event() (chat.Event, error) {
	switch e.Type {
	case "input_changed":
		return chat.InputChanged{Text: e.Text}, nil
	case "file_path_changed":
		return chat.FilePathChanged{Path: e.Path}, nil
	case "file_source_changed":
		return chat.FileSourceChanged{Source: chat.FileSource(e.Source)}, nil
	case "file_type_changed":
		return chat.FileTypeChanged{FileType: e.FileType}, nil
	case "language_changed":
		return chat.LanguageChanged{Language: e.Language}, nil
	case "file_selector_toggled":
		return chat.FileSelectorToggled{}, nil
	case "file_cleared":
		return chat.FileSelected{File: nil}, nil
	case "cleared":
		return chat.Cleared{}, nil
	default:
		return nil, fmt.Errorf("event %q cannot be applied directly", e.Type)
	}
}

// submitRequest optionally sets the input before a submission
type submitRequest struct {
	Text     *string `json:"text"`
	URL      *string `json:"url"`
	FileType *string `json:"file_type"`
	Language *string `json:"language"`
}

// events returns the input events the request implies
func (s submitRequest) events() []chat.Event {
	var events []chat.Event
	if s.Language != nil {
		events = append(events, chat.LanguageChanged{Language: *s.Language})
	}
	if s.FileType != nil {
		events = append(events, chat.FileTypeChanged{FileType: *s.FileType})
	}
	if s.URL != nil {
		events = append(events,
			chat.FileSourceChanged{Source: chat.FileSourceURL},
			chat.FilePathChanged{Path: *s.URL},
		)
	}
	if s.Text != nil {
		events = append(events, chat.InputChanged{Text: *s.Text})
	}
	return events
}
