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
	"weddingsync/internal/config"
	"weddingsync/internal/log"
	"weddingsync/internal/metrics"
	"weddingsync/internal/vault"
	"weddingsync/internal/worker"
)

type workerOptions struct {
	once        bool
	metricsAddr string
}

func newWorkerCmd(g *globals) *cobra.Command {
	var o workerOptions
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Back up the vault on every profile change and on a fixed interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.setup(cmd)
			if err != nil {
				return err
			}
			if a.cfg.DataBackend != config.BackendSQLite {
				return fmt.Errorf("the backup worker needs the %s backend, got %s", config.BackendSQLite, a.cfg.DataBackend)
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.runWorker(ctx, cmd, o)
		},
	}
	cmd.Flags().BoolVar(&o.once, "once", false, "write one backup and exit")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func (a *app) runWorker(ctx context.Context, cmd *cobra.Command, o workerOptions) error {
	logger := a.logger.WithComponent(log.ComponentWorker)
	store, closeKV, err := a.openKV()
	if err != nil {
		return err
	}
	defer closeKV()
	kv := store.KV

	m := metrics.New()
	bw := worker.NewBackupWorker(vault.New(kv, nil), a.cfg.BackupDir, a.cfg.BackupKeep, m)

	if o.once {
		path, err := bw.Backup(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	interval := a.cfg.BackupInterval.Duration
	eg.Go(func() error {
		logger.Info("Periodic backups started", "interval", interval, "dir", a.cfg.BackupDir)
		return ignoreCanceled(bw.RunPeriodic(egCtx, interval))
	})

	if a.cfg.AMQPEnabled() {
		consumer, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer consumer.Close()
		eg.Go(func() error {
			return ignoreCanceled(consumer.ConsumeProfileChanged(egCtx, bw.HandleProfileChanged))
		})
	} else {
		logger.Warn("AMQP_URL not set, only periodic backups will run")
	}

	if o.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		srv := &http.Server{Addr: o.metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		eg.Go(func() error {
			logger.Info("Metrics server starting", "addr", o.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		eg.Go(func() error {
			<-egCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = eg.Wait()
	logger.Info("Backup worker stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
