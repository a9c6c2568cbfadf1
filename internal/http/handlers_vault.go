package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"weddingsync/internal/log"
	"weddingsync/internal/vault"
)

type restoreResponse struct {
	Restored bool          `json:"restored"`
	Preview  vault.Preview `json:"preview"`
}

// handleExportVault downloads every stored key as one vault document.
func (s *Server) handleExportVault(w http.ResponseWriter, r *http.Request) {
	doc, err := s.vault.Export(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := vault.WriteTo(&buf, doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	name := "WeddingSync_Vault_" + time.Now().UTC().Format("2006-01-02") + ".json"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handlePreviewVault(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readVault(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	preview, err := s.vault.Preview(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleRestoreVault replaces all stored data with the uploaded document.
func (s *Server) handleRestoreVault(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readVault(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	preview, err := s.vault.Preview(doc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.vault.Restore(r.Context(), doc); err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentVault).InfoContext(r.Context(), "Vault restored",
		"profiles", preview.ProfileCount,
		"expenses", preview.ExpenseCount,
		"bank_accounts", preview.BankAccountCount)
	writeJSON(w, http.StatusOK, restoreResponse{Restored: true, Preview: preview})
}

// readVault accepts the document either as the raw body or as the "file"
// field of a multipart form.
func (s *Server) readVault(w http.ResponseWriter, r *http.Request) (vault.Document, error) {
	var body io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		upload, err := s.readUpload(w, r)
		if err != nil {
			return vault.Document{}, err
		}
		body = bytes.NewReader(upload.Data)
	} else {
		body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	return s.vault.Decode(body)
}
