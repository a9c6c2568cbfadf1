package extractor

import (
	"mime"
	"path/filepath"
	"strings"
)

// Kind classifies an uploaded document by how it can be handed to the model.
type Kind int

const (
	KindBinary Kind = iota
	KindText
	KindPDF
)

var textExtensions = map[string]bool{
	".csv":  true,
	".json": true,
	".txt":  true,
}

// Classify decides from the declared content type and the file name whether
// a document is plain text, a PDF or some other binary (an image, usually).
func Classify(filename, contentType string) Kind {
	ext := strings.ToLower(filepath.Ext(filename))
	if strings.Contains(strings.ToLower(contentType), "text") || textExtensions[ext] {
		return KindText
	}
	if ext == ".pdf" || strings.EqualFold(contentType, "application/pdf") {
		return KindPDF
	}
	return KindBinary
}

// MimeType returns the declared content type, guessing from the extension
// when none was sent.
func MimeType(filename, contentType string) string {
	if ct := strings.TrimSpace(contentType); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	if guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); guessed != "" {
		return guessed
	}
	return "application/octet-stream"
}
