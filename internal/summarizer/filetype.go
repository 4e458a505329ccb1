package summarizer

import (
	"path/filepath"
	"strings"
)

// File types understood by the summarization backend
const (
	FileTypePDF     = "pdf"
	FileTypeImage   = "image"
	FileTypeArticle = "article"
	FileTypeText    = "text"
)

// DetectFileType maps a file name to its file type by extension.
// Unknown extensions yield "".
func DetectFileType(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pdf":
		return FileTypePDF
	case "jpg", "jpeg", "png", "gif":
		return FileTypeImage
	case "txt":
		return FileTypeText
	default:
		return ""
	}
}

// NormalizeFileType lowercases a declared file type and folds image
// extensions into "image". ok is false for unknown types.
func NormalizeFileType(fileType string) (normalized string, ok bool) {
	switch t := strings.ToLower(strings.TrimSpace(fileType)); t {
	case "":
		return "", true
	case FileTypePDF, FileTypeImage, FileTypeArticle, FileTypeText:
		return t, true
	case "jpg", "jpeg", "png", "gif":
		return FileTypeImage, true
	case "txt":
		return FileTypeText, true
	default:
		return t, false
	}
}
