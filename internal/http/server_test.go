package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingsync/internal/core"
	"weddingsync/internal/gemini"
	"weddingsync/internal/log"
	"weddingsync/internal/metrics"
	"weddingsync/internal/services"
	"weddingsync/internal/storage"
	"weddingsync/internal/storage/memory"
	"weddingsync/internal/vault"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type fakeAI struct {
	mu       sync.Mutex
	receipt  gemini.Receipt
	analysis core.BankAnalysis
	text     string
	err      error
	chat     func(ctx context.Context, message string, cc gemini.ChatContext, actions gemini.Actions) (gemini.Reply, error)
	docs     []gemini.Document
}

func (f *fakeAI) record(doc gemini.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, doc)
}

func (f *fakeAI) ScanReceipt(_ context.Context, doc gemini.Document) (gemini.Receipt, error) {
	f.record(doc)
	return f.receipt, f.err
}

func (f *fakeAI) AnalyzeStatement(_ context.Context, doc gemini.Document) (core.BankAnalysis, error) {
	f.record(doc)
	return f.analysis, f.err
}

func (f *fakeAI) ExtractText(_ context.Context, doc gemini.Document) (string, error) {
	f.record(doc)
	return f.text, f.err
}

func (f *fakeAI) Chat(ctx context.Context, message string, cc gemini.ChatContext, actions gemini.Actions) (gemini.Reply, error) {
	if f.err != nil {
		return gemini.Reply{}, f.err
	}
	return f.chat(ctx, message, cc, actions)
}

type testEnv struct {
	srv     *Server
	ws      *services.WorkspaceService
	kv      storage.KV
	metrics *metrics.Metrics
}

type envOption func(*Config, *Deps)

func withAI(ai AI) envOption {
	return func(_ *Config, d *Deps) { d.AI = ai }
}

func newTestEnv(t *testing.T, opts ...envOption) testEnv {
	t.Helper()
	kv := memory.New()
	ws, err := services.Open(context.Background(), storage.NewStore(kv),
		services.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	m := metrics.New()
	cfg := Config{Addr: ":0", RateLimitPerMinute: 1000, ReportCacheTTL: time.Minute}
	deps := Deps{
		Workspace: ws,
		Vault:     vault.New(kv, ws),
		Metrics:   m,
		Logger:    log.New(log.Config{Output: io.Discard}),
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	srv := NewServer(cfg, deps)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, ws: ws, kv: kv, metrics: m}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			rd = strings.NewReader(s)
		} else {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			rd = bytes.NewReader(b)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) upload(t *testing.T, path, name string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(uploadField, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func eur(euros int64) core.Money { return core.Money{Cents: euros * 100} }

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
		assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))
	}

	failing := newTestEnv(t, func(_ *Config, d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	assert.Equal(t, http.StatusServiceUnavailable, failing.do(t, http.MethodGet, "/readyz", nil).Code)
}

func TestLedgerFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/expenses", expenseRequest{Name: "Villa", Category: "Venue", TotalAmount: eur(500)})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, services.ErrNoFundingSources.Error(), decode[errorResponse](t, rr).Error)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/sources", sourceRequest{Name: "Savings"}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/sources/Savings/budget", budgetRequest{Limit: eur(1000)}).Code)

	rr = env.do(t, http.MethodPost, "/api/expenses", expenseRequest{
		Name: "  Villa  ", Category: "Venue", Date: "2024-05-01",
		TotalAmount: eur(500), AdvancePaid: eur(200),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[core.Expense](t, rr)
	assert.Equal(t, "Villa", created.Name)
	assert.Equal(t, "Savings", created.Account)

	rr = env.do(t, http.MethodPost, "/api/expenses", expenseRequest{Name: "Band", Category: "Music", TotalAmount: eur(100)})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, core.Today(time.Now()), decode[core.Expense](t, rr).Date)

	rr = env.do(t, http.MethodGet, "/api/expenses?category=Venue", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[expenseList](t, rr)
	require.Len(t, list.Expenses, 1)
	assert.Equal(t, eur(300), list.Stats.Pending)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodGet, "/api/expenses?category=Cake", nil).Code)

	rr = env.do(t, http.MethodPost, "/api/expenses/"+created.ID+"/settle", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[core.Expense](t, rr).Settled())

	rr = env.do(t, http.MethodGet, "/api/reports/summary", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[summaryResponse](t, rr)
	assert.Equal(t, eur(1000), summary.TotalMasterBudget)
	assert.Equal(t, eur(600), summary.TotalAgreed)
	assert.Equal(t, eur(500), summary.TotalPaid)
	assert.Equal(t, eur(500), summary.BalanceAvailable)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/sources", sourceRequest{Name: "Savings"}).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/sources", `{"name":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/sources", `{"title":"x"}`, http.StatusBadRequest},
		{"duplicate source", http.MethodPost, "/api/sources", sourceRequest{Name: "Savings"}, http.StatusConflict},
		{"empty source", http.MethodPost, "/api/sources", sourceRequest{Name: "  "}, http.StatusUnprocessableEntity},
		{"unknown expense", http.MethodPut, "/api/expenses/nope", expenseRequest{Name: "x", Category: "Venue"}, http.StatusNotFound},
		{"invalid category", http.MethodPost, "/api/expenses", expenseRequest{Name: "x", Category: "Cake"}, http.StatusUnprocessableEntity},
		{"budget of unknown source", http.MethodPut, "/api/sources/Nope/budget", budgetRequest{Limit: eur(1)}, http.StatusNotFound},
		{"self transfer", http.MethodPost, "/api/transfers", transferRequest{From: "Savings", To: "Savings", Amount: eur(1)}, http.StatusUnprocessableEntity},
		{"unknown route", http.MethodGet, "/api/nothing", nil, http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/api/sources", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ws.AddSource(ctx, "Savings"))
	require.NoError(t, env.ws.AddSource(ctx, "Gift Fund"))
	require.NoError(t, env.ws.SetBudget(ctx, "Savings", eur(1000)))

	rr := env.do(t, http.MethodPost, "/api/transfers", transferRequest{From: "Savings", To: "Gift Fund", Amount: eur(250)})
	require.Equal(t, http.StatusOK, rr.Code)
	settings := decode[core.Settings](t, rr)
	assert.Equal(t, eur(750), settings.AccountBudgets["Savings"])
	assert.Equal(t, eur(250), settings.AccountBudgets["Gift Fund"])
}

func TestTwoPhaseDeletion(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ws.AddSource(context.Background(), "Savings"))

	rr := env.do(t, http.MethodPost, "/api/deletions", deletionRequest{Kind: services.DeleteSource, ID: "Savings"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	pending := decode[services.PendingDeletion](t, rr)
	assert.Equal(t, "Savings", pending.Name)
	assert.True(t, env.ws.Snapshot().Settings.HasSource("Savings"), "nothing removed before confirmation")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/deletions/"+pending.Token+"/confirm", nil).Code)
	assert.False(t, env.ws.Snapshot().Settings.HasSource("Savings"))

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/deletions/"+pending.Token+"/confirm", nil).Code)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/deletions", `{"kind":"expense"}`).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		env.do(t, http.MethodPost, "/api/deletions", deletionRequest{Kind: "wedding", ID: "x"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity,
		env.do(t, http.MethodPost, "/api/deletions", deletionRequest{Kind: services.DeleteProfile, ID: core.DefaultProfileID}).Code)
}

func TestCancelDeletion(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ws.AddSource(context.Background(), "Savings"))
	pending, err := env.ws.RequestDeletion(services.DeleteSource, "Savings")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/deletions/"+pending.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/deletions/"+pending.Token+"/confirm", nil).Code)
	assert.True(t, env.ws.Snapshot().Settings.HasSource("Savings"))
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/profiles", profileRequest{Name: "Partner"})
	require.Equal(t, http.StatusCreated, rr.Code)
	partner := decode[core.Profile](t, rr)

	list := decode[profileList](t, env.do(t, http.MethodGet, "/api/profiles", nil))
	assert.Len(t, list.Profiles, 2)
	assert.Equal(t, partner, list.Active)

	rr = env.do(t, http.MethodPost, "/api/profiles/"+core.DefaultProfileID+"/activate", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, core.DefaultProfileID, env.ws.Snapshot().Active.ID)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/profiles/ghost/activate", nil).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/profiles", profileRequest{}).Code)
}

func TestAIEndpointsWithoutClient(t *testing.T) {
	env := newTestEnv(t)

	rr := env.upload(t, "/api/receipts/scan", "r.jpg", []byte{1}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, gemini.MsgNotConfigured, decode[errorResponse](t, rr).Error)

	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "hi"}).Code)
}

func TestScanReceipt(t *testing.T) {
	ai := &fakeAI{receipt: gemini.Receipt{Vendor: "Florist", Category: "Flowers", Date: "2024-05-20", Amount: eur(80)}}
	env := newTestEnv(t, withAI(ai))
	require.NoError(t, env.ws.AddSource(context.Background(), "Savings"))

	rr := env.upload(t, "/api/receipts/scan", "receipt.jpg", []byte("jpeg"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[scanResponse](t, rr)
	assert.False(t, resp.Saved)
	assert.Equal(t, eur(80), resp.Draft.AdvancePaid)
	assert.Equal(t, gemini.ScanNote, resp.Draft.Notes)
	assert.Empty(t, env.ws.Snapshot().Expenses)
	require.Len(t, ai.docs, 1)
	assert.Equal(t, "receipt.jpg", ai.docs[0].Name)
	assert.Equal(t, []byte("jpeg"), ai.docs[0].Data)

	rr = env.upload(t, "/api/receipts/scan?save=true", "receipt.jpg", []byte("jpeg"), map[string]string{"account": "Savings"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode[scanResponse](t, rr)
	assert.True(t, resp.Saved)
	assert.NotEmpty(t, resp.Draft.ID)
	assert.Len(t, env.ws.Snapshot().Expenses, 1)
}

func TestScanReceiptErrors(t *testing.T) {
	ai := &fakeAI{err: &gemini.Error{Message: gemini.MsgScanFailed, Err: errors.New("quota")}}
	env := newTestEnv(t, withAI(ai))

	rr := env.upload(t, "/api/receipts/scan", "receipt.jpg", []byte("jpeg"), nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, gemini.MsgScanFailed, decode[errorResponse](t, rr).Error)

	req := httptest.NewRequest(http.MethodPost, "/api/receipts/scan", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, withAI(&fakeAI{}), func(c *Config, _ *Deps) { c.MaxUploadBytes = 1024 })

	rr := env.upload(t, "/api/receipts/scan", "big.jpg", bytes.Repeat([]byte{'x'}, 4096), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestStatementStaging(t *testing.T) {
	analysis := core.BankAnalysis{
		TotalDebits:     eur(300),
		TotalCredits:    eur(1000),
		ClosingBalance:  eur(2700),
		StatementPeriod: "May 2024",
		TopTransactions: []core.BankTransaction{{Date: "2024-05-02", Description: "Rent", Amount: eur(300), Type: core.Debit}},
	}
	env := newTestEnv(t, withAI(&fakeAI{analysis: analysis}))
	acc, err := env.ws.AddBankAccount(context.Background(), "Checking", "Bank")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, env.upload(t, "/api/bank-accounts/ghost/statement", "s.csv", []byte("a,b"), nil).Code)

	rr := env.upload(t, "/api/bank-accounts/"+acc.ID+"/statement", "may.csv", []byte("date,amount"), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Nil(t, env.ws.Snapshot().BankAccounts[0].LastAnalysis, "staged analysis must not be applied yet")

	rr = env.do(t, http.MethodGet, "/api/bank-accounts/"+acc.ID+"/statement", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "May 2024", decode[stagedStatement](t, rr).Analysis.StatementPeriod)

	rr = env.do(t, http.MethodPost, "/api/bank-accounts/"+acc.ID+"/statement/confirm", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	confirmed := decode[core.BankAccount](t, rr)
	require.NotNil(t, confirmed.LastAnalysis)
	assert.Equal(t, eur(2700), confirmed.LastAnalysis.ClosingBalance)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/bank-accounts/"+acc.ID+"/statement/confirm", nil).Code)

	overview := decode[struct {
		TotalBalance core.Money `json:"totalBalance"`
		AccountCount int        `json:"accountCount"`
	}](t, env.do(t, http.MethodGet, "/api/reports/banks", nil))
	assert.Equal(t, eur(2700), overview.TotalBalance)
	assert.Equal(t, 1, overview.AccountCount)
}

func TestDiscardStatement(t *testing.T) {
	env := newTestEnv(t, withAI(&fakeAI{analysis: core.BankAnalysis{StatementPeriod: "June"}}))
	acc, err := env.ws.AddBankAccount(context.Background(), "Checking", "")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, env.upload(t, "/api/bank-accounts/"+acc.ID+"/statement", "june.txt", []byte("x"), nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/bank-accounts/"+acc.ID+"/statement", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/bank-accounts/"+acc.ID+"/statement", nil).Code)
}

func TestExtractText(t *testing.T) {
	env := newTestEnv(t, withAI(&fakeAI{text: "Opening balance 100"}))

	rr := env.upload(t, "/api/documents/extract", "statement.pdf", []byte("%PDF"), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Opening balance 100", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `filename="statement_extracted.txt"`)
}

func TestChat(t *testing.T) {
	var seen gemini.ChatContext
	ai := &fakeAI{chat: func(ctx context.Context, message string, cc gemini.ChatContext, actions gemini.Actions) (gemini.Reply, error) {
		seen = cc
		result, err := actions.ModifyBudget(ctx, "Savings", eur(50), core.TargetBudget)
		if err != nil {
			return gemini.Reply{}, err
		}
		return gemini.Reply{Text: "Done.", Actions: []gemini.ActionResult{{Function: "modifyAccountBudget", Result: result}}}, nil
	}}
	env := newTestEnv(t, withAI(ai))
	ctx := context.Background()
	require.NoError(t, env.ws.AddSource(ctx, "Savings"))
	require.NoError(t, env.ws.SetBudget(ctx, "Savings", eur(100)))
	_, err := env.ws.AddBankAccount(ctx, "Checking", "")
	require.NoError(t, err)

	rr := env.do(t, http.MethodPost, "/api/chat", chatRequest{Message: "add 50 to savings"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	reply := decode[gemini.Reply](t, rr)
	assert.Equal(t, "Done.", reply.Text)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, services.MsgBudgetUpdated, reply.Actions[0].Result)

	assert.Equal(t, []string{"Savings"}, seen.BudgetSources)
	assert.Equal(t, []string{"Checking"}, seen.BankAccounts)
	assert.Equal(t, eur(100), seen.TotalBudget)
	assert.Equal(t, eur(150), env.ws.Snapshot().Settings.AccountBudgets["Savings"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/chat", chatRequest{}).Code)
}

func TestCalc(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/api/calc", calcRequest{Expression: "2 + 3 * 4"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, eur(14), decode[calcResponse](t, rr).Result)

	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/calc", calcRequest{Expression: "1/0"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/calc", calcRequest{Expression: "2 +"}).Code)
	assert.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodPost, "/api/calc", calcRequest{Expression: "100000000000000000 * 1000"}).Code)
}

func TestReportsAreCachedPerRevision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ws.AddSource(ctx, "Savings"))
	require.NoError(t, env.ws.SetBudget(ctx, "Savings", eur(100)))

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/reports/sources", nil).Code)
	}
	hits, misses := env.srv.reports.Stats()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)

	require.NoError(t, env.ws.SetBudget(ctx, "Savings", eur(200)))
	rr := env.do(t, http.MethodGet, "/api/reports/sources?name=Savings", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, eur(200), decode[struct {
		Limit core.Money `json:"limit"`
	}](t, rr).Limit)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/reports/sources?name=Nope", nil).Code)
	for _, path := range []string{"/api/reports/categories", "/api/reports/months", "/api/reports/ledger?category=Venue"} {
		assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, nil).Code, path)
	}
}

func TestVaultRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ws.AddSource(ctx, "Savings"))

	rr := env.do(t, http.MethodGet, "/api/vault/export", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "WeddingSync_Vault_")
	exported := rr.Body.Bytes()

	require.NoError(t, env.ws.AddSource(ctx, "Gift Fund"))

	rr = env.upload(t, "/api/vault/preview", "vault.json", exported, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decode[vault.Preview](t, rr).ProfileCount)

	rr = env.do(t, http.MethodPost, "/api/vault/restore", string(exported))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[restoreResponse](t, rr).Restored)
	assert.Equal(t, []string{"Savings"}, env.ws.Snapshot().Settings.Accounts)

	rr = env.do(t, http.MethodPost, "/api/vault/restore", `{"version":"1.1","profiles":[]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, []string{"Savings"}, env.ws.Snapshot().Settings.Accounts, "invalid restore writes nothing")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *Deps) { c.RateLimitPerMinute = 2 })

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
	}
	rr := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", nil)

	rr := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `weddingsync_http_requests_total{method="GET",route="GET /healthz",status="OK"} 1`)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"direct", "203.0.113.7:5000", nil, "203.0.113.7"},
		{"untrusted proxy ignored", "203.0.113.7:5000", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.7"},
		{"trusted proxy forwarded", "10.0.0.2:5000", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.2"}, "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:5000", map[string]string{"X-Real-IP": "198.51.100.9"}, "198.51.100.9"},
		{"garbage forwarded", "127.0.0.1:5000", map[string]string{"X-Forwarded-For": "nonsense"}, "127.0.0.1"},
		{"no port", "192.0.2.1", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsSuspicious(t *testing.T) {
	tests := []struct {
		target string
		method string
		want   bool
	}{
		{"/api/expenses", http.MethodGet, false},
		{"/api/../etc/passwd", http.MethodGet, true},
		{"/api/expenses?q=<script>", http.MethodGet, true},
		{"/.env", http.MethodGet, true},
		{"/healthz", "TRACE", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/", nil)
		r.URL.Path, r.URL.RawQuery, _ = strings.Cut(tt.target, "?")
		if got := isSuspicious(r); got != tt.want {
			t.Errorf("isSuspicious(%s %s) = %v, want %v", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestExtractedName(t *testing.T) {
	tests := map[string]string{
		"statement.pdf": "statement_extracted.txt",
		"dir/may.PDF":   "may_extracted.txt",
		`we"ird.pdf`:    "we_ird_extracted.txt",
		"":              "document_extracted.txt",
		"no-extension":  "no-extension_extracted.txt",
	}
	for in, want := range tests {
		if got := extractedName(in); got != want {
			t.Errorf("extractedName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrExpenseNotFound, http.StatusNotFound},
		{core.ErrInvalidDate, http.StatusUnprocessableEntity},
		{services.ErrDuplicateSource, http.StatusConflict},
		{vault.ErrInvalidVault, http.StatusBadRequest},
		{gemini.ErrNotConfigured, http.StatusServiceUnavailable},
		{&gemini.Error{Message: gemini.MsgChatFailed}, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if _, msg := statusFor(errors.New("secret path /var/db")); msg != "internal error" {
		t.Errorf("internal errors must not leak, got %q", msg)
	}
}
