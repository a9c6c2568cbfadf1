package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"weddingsync/internal/amqp"
	"weddingsync/internal/gemini"
	apphttp "weddingsync/internal/http"
	"weddingsync/internal/log"
	"weddingsync/internal/metrics"
	"weddingsync/internal/services"
	"weddingsync/internal/vault"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	store, closeKV, err := a.openKV()
	if err != nil {
		return err
	}
	defer closeKV()
	kv := store.KV

	m := metrics.New()
	opts := []services.Option{
		services.WithSubscriber(log.NewStructuredLogger(logger)),
		services.WithSubscriber(m),
	}
	if a.cfg.AMQPEnabled() {
		publisher, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("AMQP unavailable, change feed disabled", log.FieldError, err)
		} else {
			defer publisher.Close()
			opts = append(opts, services.WithSubscriber(publisher))
			logger.WithComponent(log.ComponentAMQP).Info("Publishing profile changes", "exchange", a.cfg.AMQPExchange)
		}
	}

	ws, err := openWorkspace(ctx, kv, opts...)
	if err != nil {
		return err
	}

	var ai apphttp.AI
	if a.cfg.AIEnabled() {
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:  a.cfg.GeminiAPIKey,
			Model:   a.cfg.GeminiModel,
			Timeout: a.cfg.AITimeout.Duration,
		})
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		ai = client
		logger.WithComponent(log.ComponentGemini).Info("AI features enabled", log.FieldModel, client.Model())
	} else {
		logger.WithComponent(log.ComponentGemini).Warn("GEMINI_API_KEY not set, AI features disabled")
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + a.cfg.Port,
		RateLimitPerMinute: a.cfg.RateLimitPerMinute,
		ReportCacheTTL:     a.cfg.ReportCacheTTL.Duration,
	}, apphttp.Deps{
		Workspace: ws,
		Vault:     vault.New(kv, ws),
		AI:        ai,
		Metrics:   m,
		Logger:    logger,
		Ready:     store.Ping,
	})

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("HTTP server starting", "addr", srv.Addr, "backend", a.cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
