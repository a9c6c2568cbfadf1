package http

import (
	"net/http"
	"strconv"
	"time"

	"weddingsync/internal/calc"
	"weddingsync/internal/core"
	"weddingsync/internal/gemini"
	"weddingsync/internal/log"
)

type scanResponse struct {
	Receipt gemini.Receipt `json:"receipt"`
	Draft   core.Expense   `json:"draft"`
	Saved   bool           `json:"saved"`
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

type calcRequest struct {
	Expression string `json:"expression" validate:"max=256"`
}

type calcResponse struct {
	Expression string     `json:"expression"`
	Result     core.Money `json:"result"`
}

// handleScanReceipt turns a receipt photo into a draft expense. With
// ?save=true the draft goes straight into the ledger; the form field
// "account" picks the funding source.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
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
	receipt, err := ai.ScanReceipt(r.Context(), doc)
	s.observeAI("scan_receipt", err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := scanResponse{Receipt: receipt, Draft: receipt.Draft(sanitizeInput(r.FormValue("account")))}
	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		saved, err := s.ws.SaveExpense(r.Context(), "", resp.Draft)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.Draft, resp.Saved = saved, true
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Receipt scanned",
		log.FieldFileName, doc.Name,
		log.FieldAmountCents, receipt.Amount.Cents,
		log.FieldCategory, receipt.Category,
		"saved", resp.Saved)
	writeJSON(w, http.StatusOK, resp)
}

// handleChat runs one assistant turn against the active profile.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ai, err := s.aiClient()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chatRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	reply, err := ai.Chat(r.Context(), sanitizeInput(req.Message), s.chatContext(), s.ws)
	s.observeAI("chat", err, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) chatContext() gemini.ChatContext {
	snap := s.ws.Snapshot()
	totals := s.totals()
	banks := make([]string, 0, len(snap.BankAccounts))
	for _, a := range snap.BankAccounts {
		banks = append(banks, a.Name)
	}
	return gemini.ChatContext{
		BudgetSources: snap.Settings.Accounts,
		BankAccounts:  banks,
		TotalBudget:   totals.TotalMasterBudget,
		TotalSpent:    totals.TotalPaid,
		Available:     totals.BalanceAvailable,
	}
}

func (s *Server) handleCalc(w http.ResponseWriter, r *http.Request) {
	var req calcRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := calc.Eval(req.Expression)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := core.FromDecimal(v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, calcResponse{Expression: req.Expression, Result: result})
}
