// Package http exposes the workspace, the reports and the AI features as a
// JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"weddingsync/internal/cache"
	"weddingsync/internal/core"
	"weddingsync/internal/gemini"
	"weddingsync/internal/log"
	"weddingsync/internal/metrics"
	"weddingsync/internal/report"
	"weddingsync/internal/services"
	"weddingsync/internal/vault"
)

const (
	defaultMaxUpload   = 10 << 20
	reportCacheSize    = 64
	cacheCleanupPeriod = time.Minute
)

// AI is the subset of the Gemini client the handlers call.
type AI interface {
	ScanReceipt(ctx context.Context, doc gemini.Document) (gemini.Receipt, error)
	AnalyzeStatement(ctx context.Context, doc gemini.Document) (core.BankAnalysis, error)
	ExtractText(ctx context.Context, doc gemini.Document) (string, error)
	Chat(ctx context.Context, message string, cc gemini.ChatContext, actions gemini.Actions) (gemini.Reply, error)
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	ReportCacheTTL     time.Duration
	MaxUploadBytes     int64
}

// Deps are the collaborators of the server. AI, Metrics and Ready are
// optional.
type Deps struct {
	Workspace *services.WorkspaceService
	Vault     *vault.Vault
	AI        AI
	Metrics   *metrics.Metrics
	Logger    *log.Logger
	Ready     func(ctx context.Context) error
}

type Server struct {
	http.Server

	ws         *services.WorkspaceService
	vault      *vault.Vault
	ai         AI
	metrics    *metrics.Metrics
	logger     *log.Logger
	structured *log.StructuredLogger
	ready      func(ctx context.Context) error

	validate    *validator.Validate
	rateLimiter *rateLimiter
	reports     *cache.LRUCache[report.Totals]
	caches      *cache.Manager
	maxUpload   int64

	shutdownOnce sync.Once
}

func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	s := &Server{
		ws:          deps.Workspace,
		vault:       deps.Vault,
		ai:          deps.AI,
		metrics:     deps.Metrics,
		logger:      logger.WithComponent(log.ComponentHTTP),
		structured:  log.NewStructuredLogger(logger),
		ready:       deps.Ready,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		rateLimiter: newRateLimiter(cfg.RateLimitPerMinute),
		caches:      cache.NewManager(),
		maxUpload:   maxUpload,
	}
	if cfg.ReportCacheTTL > 0 {
		s.reports = cache.NewLRUCache[report.Totals](reportCacheSize, cfg.ReportCacheTTL)
		s.caches.Register(s.reports)
		s.caches.StartCleanup(cacheCleanupPeriod)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/workspace", s.handleWorkspace)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("POST /api/expenses/{id}/settle", s.handleSettleExpense)

	mux.HandleFunc("GET /api/sources", s.handleListSources)
	mux.HandleFunc("POST /api/sources", s.handleAddSource)
	mux.HandleFunc("PUT /api/sources/{name}/budget", s.handleSetBudget)
	mux.HandleFunc("POST /api/transfers", s.handleTransfer)

	mux.HandleFunc("GET /api/bank-accounts", s.handleListBankAccounts)
	mux.HandleFunc("POST /api/bank-accounts", s.handleAddBankAccount)
	mux.HandleFunc("POST /api/bank-accounts/{id}/statement", s.handleAnalyzeStatement)
	mux.HandleFunc("GET /api/bank-accounts/{id}/statement", s.handleStagedStatement)
	mux.HandleFunc("POST /api/bank-accounts/{id}/statement/confirm", s.handleConfirmStatement)
	mux.HandleFunc("DELETE /api/bank-accounts/{id}/statement", s.handleDiscardStatement)

	mux.HandleFunc("GET /api/profiles", s.handleListProfiles)
	mux.HandleFunc("POST /api/profiles", s.handleAddProfile)
	mux.HandleFunc("POST /api/profiles/{id}/activate", s.handleSwitchProfile)

	mux.HandleFunc("POST /api/deletions", s.handleRequestDeletion)
	mux.HandleFunc("POST /api/deletions/{token}/confirm", s.handleConfirmDeletion)
	mux.HandleFunc("DELETE /api/deletions/{token}", s.handleCancelDeletion)

	mux.HandleFunc("POST /api/receipts/scan", s.handleScanReceipt)
	mux.HandleFunc("POST /api/documents/extract", s.handleExtractText)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/calc", s.handleCalc)

	mux.HandleFunc("GET /api/reports/summary", s.handleSummary)
	mux.HandleFunc("GET /api/reports/sources", s.handleSourcesReport)
	mux.HandleFunc("GET /api/reports/categories", s.handleCategoriesReport)
	mux.HandleFunc("GET /api/reports/months", s.handleMonthsReport)
	mux.HandleFunc("GET /api/reports/ledger", s.handleLedgerReport)
	mux.HandleFunc("GET /api/reports/banks", s.handleBanksReport)

	mux.HandleFunc("GET /api/vault/export", s.handleExportVault)
	mux.HandleFunc("POST /api/vault/preview", s.handlePreviewVault)
	mux.HandleFunc("POST /api/vault/restore", s.handleRestoreVault)
}

// withMiddleware adds request IDs, the request logger, rate limiting,
// security headers, metrics and the completion log line.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		clientIP := extractClientIP(r)

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		setSecurityHeaders(w)
		w.Header().Set("X-Request-ID", requestID)

		if isSuspicious(r) {
			logger.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.Header.Get("User-Agent"))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if !s.rateLimiter.allow(clientIP) {
			if s.metrics != nil {
				s.metrics.RateLimited()
			}
			logger.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			writeJSON(rw, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
		} else {
			next.ServeHTTP(rw, r)
		}

		duration := time.Since(start)
		if s.metrics != nil {
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			s.metrics.ObserveHTTP(r.Method, route, rw.statusCode, duration)
		}
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the background goroutines and then the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
