package http

import (
	"net/http"
	"time"

	"weddingsync/internal/core"
	"weddingsync/internal/log"
	"weddingsync/internal/report"
)

type expenseRequest struct {
	Name        string     `json:"name" validate:"max=200"`
	Category    string     `json:"category"`
	Date        core.Date  `json:"date"`
	TotalAmount core.Money `json:"totalAmount"`
	AdvancePaid core.Money `json:"advancePaid"`
	Account     string     `json:"account"`
	Notes       string     `json:"notes" validate:"max=2000"`
}

func (req expenseRequest) draft(now time.Time) core.Expense {
	date := req.Date
	if date == "" {
		date = core.Today(now)
	}
	return core.Expense{
		Name:        sanitizeInput(req.Name),
		Category:    req.Category,
		Date:        date,
		TotalAmount: req.TotalAmount,
		AdvancePaid: req.AdvancePaid,
		Account:     req.Account,
		Notes:       sanitizeInput(req.Notes),
	}
}

type sourceRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type budgetRequest struct {
	Limit core.Money `json:"limit"`
}

type transferRequest struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Amount core.Money `json:"amount"`
}

type expenseList struct {
	Category string             `json:"category"`
	Stats    report.LedgerStats `json:"stats"`
	Expenses []core.Expense     `json:"expenses"`
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Snapshot())
}

// handleListExpenses lists the ledger, optionally filtered by ?category=.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = report.AllCategories
	}
	if category != report.AllCategories && !core.IsCategory(category) {
		s.writeError(w, r, core.ErrInvalidCategory)
		return
	}

	snap := s.ws.Snapshot()
	items := make([]core.Expense, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		if category == report.AllCategories || e.Category == category {
			items = append(items, e)
		}
	}
	writeJSON(w, http.StatusOK, expenseList{
		Category: category,
		Stats:    report.Ledger(snap.Expenses, category),
		Expenses: items,
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	s.saveExpense(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	s.saveExpense(w, r, r.PathValue("id"), http.StatusOK)
}

func (s *Server) saveExpense(w http.ResponseWriter, r *http.Request, id string, status int) {
	var req expenseRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.ws.SaveExpense(r.Context(), id, req.draft(time.Now()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense saved",
		log.NewFields().WithExpense(saved.ID, saved.Name, saved.TotalAmount.Cents, saved.Category, saved.Account).ToSlice()...)
	writeJSON(w, status, saved)
}

func (s *Server) handleSettleExpense(w http.ResponseWriter, r *http.Request) {
	settled, err := s.ws.Settle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settled)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ws.Snapshot().Settings)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ws.AddSource(r.Context(), sanitizeInput(req.Name)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.ws.Snapshot().Settings)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ws.SetBudget(r.Context(), r.PathValue("name"), req.Limit); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ws.Snapshot().Settings)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.ws.Transfer(r.Context(), req.From, req.To, req.Amount); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ws.Snapshot().Settings)
}
