package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"weddingsync/internal/amqp"
	"weddingsync/internal/vault"
)

const (
	filePrefix = "WeddingSync_Vault_"
	fileSuffix = ".json"
	// fileStamp sorts lexically in time order.
	fileStamp = "2006-01-02T150405.000Z"
)

// Exporter produces the vault document to back up.
type Exporter interface {
	Export(ctx context.Context) (vault.Document, error)
}

// Recorder observes backup outcomes; *metrics.Metrics satisfies it.
type Recorder interface {
	BackupWritten(err error)
}

// BackupWorker writes a vault export to disk whenever a profile changes and
// keeps only the newest files.
type BackupWorker struct {
	exporter Exporter
	dir      string
	keep     int
	recorder Recorder
	now      func() time.Time

	mu         sync.Mutex
	lastBackup time.Time
}

func NewBackupWorker(exporter Exporter, dir string, keep int, recorder Recorder) *BackupWorker {
	if keep < 1 {
		keep = 1
	}
	return &BackupWorker{
		exporter: exporter,
		dir:      dir,
		keep:     keep,
		recorder: recorder,
		now:      time.Now,
	}
}

// HandleProfileChanged backs up after a change notification. A change
// that happened before the last successful backup is already covered and
// skipped.
func (w *BackupWorker) HandleProfileChanged(ctx context.Context, msg *amqp.ProfileChangedMessage) error {
	w.mu.Lock()
	covered := !w.lastBackup.IsZero() && !msg.Timestamp.After(w.lastBackup)
	w.mu.Unlock()
	if covered {
		slog.DebugContext(ctx, "Skipping change already covered by a backup",
			"component", "backup_worker",
			"profile_id", msg.ProfileID,
			"revision", msg.Revision)
		return nil
	}

	_, err := w.Backup(ctx)
	return err
}

// Backup writes one export and prunes old files. It returns the path of
// the new file.
func (w *BackupWorker) Backup(ctx context.Context) (string, error) {
	path, err := w.write(ctx)
	if w.recorder != nil {
		w.recorder.BackupWritten(err)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Backup failed", "component", "backup_worker", "error", err)
		return "", err
	}

	removed, err := w.prune()
	if err != nil {
		slog.WarnContext(ctx, "Failed to prune old backups", "component", "backup_worker", "error", err)
	}
	slog.InfoContext(ctx, "Backup written",
		"component", "backup_worker",
		"path", path,
		"pruned", removed)
	return path, nil
}

func (w *BackupWorker) write(ctx context.Context) (string, error) {
	started := w.now()
	doc, err := w.exporter.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("export vault: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := filePrefix + started.UTC().Format(fileStamp) + fileSuffix
	path := filepath.Join(w.dir, name)

	tmp, err := os.CreateTemp(w.dir, name+".tmp*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := vault.WriteTo(tmp, doc); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move backup into place: %w", err)
	}

	w.mu.Lock()
	if started.After(w.lastBackup) {
		w.lastBackup = started
	}
	w.mu.Unlock()
	return path, nil
}

// Backups lists backup files, newest first.
func (w *BackupWorker) Backups() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, filePrefix) && strings.HasSuffix(n, fileSuffix) {
			names = append(names, n)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	for i, n := range names {
		names[i] = filepath.Join(w.dir, n)
	}
	return names, nil
}

func (w *BackupWorker) prune() (int, error) {
	files, err := w.Backups()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files[min(w.keep, len(files)):] {
		if err := os.Remove(f); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// RunPeriodic backs up on a fixed interval until ctx is done. It covers
// changes whose notification was lost.
func (w *BackupWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Backup(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "component", "backup_worker", "error", err)
			}
		}
	}
}
