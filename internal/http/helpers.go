package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weddingsync/internal/gemini"
	"weddingsync/internal/log"
)

const (
	maxJSONBody = 1 << 20
	uploadField = "file"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", log.FieldComponent, log.ComponentHTTP, log.FieldError, err)
	}
}

// writeError logs err and answers with the mapped status and message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithRequestID(w.Header().Get("X-Request-ID")).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), "")
		s.structured.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, r.Method+" "+r.URL.Path, fields)
	} else {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Request rejected",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeBody reads a JSON body into dst and runs the struct validators.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// readUpload reads the multipart file field into a gemini document.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (gemini.Document, error) {
	if r.ContentLength > s.maxUpload {
		return gemini.Document{}, errFileTooLarge
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return gemini.Document{}, errFileTooLarge
		}
		return gemini.Document{}, fmt.Errorf("%w: %v", errMissingFile, err)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return gemini.Document{}, fmt.Errorf("%w: %v", errMissingFile, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return gemini.Document{}, fmt.Errorf("read upload: %w", err)
	}
	return gemini.Document{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
