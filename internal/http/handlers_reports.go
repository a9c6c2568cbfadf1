package http

import (
	"net/http"

	"weddingsync/internal/cache"
	"weddingsync/internal/core"
	"weddingsync/internal/report"
	"weddingsync/internal/services"
)

type summaryResponse struct {
	ProfileID         string              `json:"profileId"`
	Revision          int64               `json:"revision"`
	TotalMasterBudget core.Money          `json:"totalMasterBudget"`
	TotalAgreed       core.Money          `json:"totalAgreed"`
	TotalPaid         core.Money          `json:"totalPaid"`
	TotalPending      core.Money          `json:"totalPending"`
	BalanceAvailable  core.Money          `json:"balanceAvailable"`
	PercentPaid       float64             `json:"percentPaid"`
	Orphaned          report.OrphanReport `json:"orphaned"`
}

// totals returns the reports of the current revision, from the cache when
// one is configured.
func (s *Server) totals() report.Totals {
	snap := s.ws.Snapshot()
	compute := func() report.Totals {
		t := report.Compute(snap.Expenses, snap.Settings, core.Categories)
		if s.metrics != nil {
			s.metrics.SetTotals(t.TotalMasterBudget, t.TotalPaid)
		}
		return t
	}
	if s.reports == nil {
		return compute()
	}
	return cache.GetOrCompute[report.Totals](s.reports, cache.Key("totals", snap.Active.ID, snap.Revision), compute)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	profileID, revision := s.ws.Revision()
	t := s.totals()
	writeJSON(w, http.StatusOK, summaryResponse{
		ProfileID:         profileID,
		Revision:          revision,
		TotalMasterBudget: t.TotalMasterBudget,
		TotalAgreed:       t.TotalAgreed,
		TotalPaid:         t.TotalPaid,
		TotalPending:      t.TotalPending,
		BalanceAvailable:  t.BalanceAvailable,
		PercentPaid:       t.PercentPaid,
		Orphaned:          t.Orphaned,
	})
}

// handleSourcesReport lists every funding source, or one with ?name=.
func (s *Server) handleSourcesReport(w http.ResponseWriter, r *http.Request) {
	t := s.totals()
	if name := r.URL.Query().Get("name"); name != "" {
		src, ok := t.Source(name)
		if !ok {
			s.writeError(w, r, services.ErrSourceNotFound)
			return
		}
		writeJSON(w, http.StatusOK, src)
		return
	}
	writeJSON(w, http.StatusOK, t.Sources)
}

func (s *Server) handleCategoriesReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.totals().Categories)
}

func (s *Server) handleMonthsReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.totals().Months)
}

func (s *Server) handleLedgerReport(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category != "" && category != report.AllCategories && !core.IsCategory(category) {
		s.writeError(w, r, core.ErrInvalidCategory)
		return
	}
	writeJSON(w, http.StatusOK, report.Ledger(s.ws.Snapshot().Expenses, category))
}

func (s *Server) handleBanksReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, report.Banks(s.ws.Snapshot().BankAccounts))
}
