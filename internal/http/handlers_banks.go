package http

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"weddingsync/internal/core"
	"weddingsync/internal/gemini"
	"weddingsync/internal/log"
	"weddingsync/internal/services"
)

type bankAccountRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Institution string `json:"institution" validate:"max=200"`
}

type stagedStatement struct {
	AccountID string             `json:"accountId"`
	FileName  string             `json:"fileName,omitempty"`
	Analysis  *core.BankAnalysis `json:"analysis"`
}

func (s *Server) handleListBankAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Snapshot().BankAccounts)
}

func (s *Server) handleAddBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankAccountRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	acc, err := s.ws.AddBankAccount(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Institution))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

// handleAnalyzeStatement sends an uploaded statement to the model and stages
// the summary. The account keeps its previous analysis until confirmed.
func (s *Server) handleAnalyzeStatement(w http.ResponseWriter, r *http.Request) {
	ai, err := s.aiClient()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := r.PathValue("id")
	if !hasBankAccount(s.ws.Snapshot().BankAccounts, id) {
		s.writeError(w, r, services.ErrBankAccountNotFound)
		return
	}
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	analysis, err := ai.AnalyzeStatement(r.Context(), doc)
	s.observeAI("analyze_statement", err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ws.StageBankAnalysis(id, analysis); err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Statement analysed",
		log.FieldFileName, doc.Name,
		"bank_account_id", id,
		"transactions", len(analysis.TopTransactions))
	writeJSON(w, http.StatusOK, stagedStatement{AccountID: id, FileName: doc.Name, Analysis: &analysis})
}

func (s *Server) handleStagedStatement(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	analysis, ok := s.ws.StagedAnalysis(id)
	if !ok {
		s.writeError(w, r, services.ErrNothingStaged)
		return
	}
	writeJSON(w, http.StatusOK, stagedStatement{AccountID: id, Analysis: analysis})
}

func (s *Server) handleConfirmStatement(w http.ResponseWriter, r *http.Request) {
	acc, err := s.ws.ConfirmBankAnalysis(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleDiscardStatement(w http.ResponseWriter, r *http.Request) {
	s.ws.DiscardBankAnalysis(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// handleExtractText returns the plain text of an uploaded document as a
// downloadable file.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	ai, err := s.aiClient()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	text, err := ai.ExtractText(r.Context(), doc)
	s.observeAI("extract_text", err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+extractedName(doc.Name)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (s *Server) aiClient() (AI, error) {
	if s.ai == nil {
		return nil, gemini.ErrNotConfigured
	}
	return s.ai, nil
}

func (s *Server) observeAI(operation string, err error, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveAI(operation, err, time.Since(start))
	}
}

func hasBankAccount(accounts []core.BankAccount, id string) bool {
	for _, a := range accounts {
		if a.ID == id {
			return true
		}
	}
	return false
}

// extractedName derives the download name of extracted text: "a.pdf"
// becomes "a_extracted.txt".
func extractedName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 32 {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "document"
	}
	return base + "_extracted.txt"
}
