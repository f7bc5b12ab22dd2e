package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mrz1836/cadence/internal/config"
	"github.com/mrz1836/cadence/internal/journal"
	"github.com/mrz1836/cadence/internal/metrics"
	"github.com/mrz1836/cadence/internal/orchestrator"
	"github.com/mrz1836/cadence/internal/store"
)

// services holds the persistent backends shared by the flow commands.
type services struct {
	store    *store.FileStore
	journal  *journal.Journal
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	logger   zerolog.Logger
}

// openServices opens the flow store and the journal under the configured
// cadence directory. Metrics are created when enabled in the configuration.
func openServices(cfg *config.Config, logger zerolog.Logger) (*services, error) {
	dir, err := cfg.CadenceDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create cadence directory: %w", err)
	}

	fs, err := store.NewFileStore(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow store: %w", err)
	}

	journalPath, err := cfg.JournalPath()
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(journalPath, journal.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	s := &services{store: fs, journal: j, logger: logger}
	if cfg.Metrics.Enabled {
		s.registry = prometheus.NewRegistry()
		s.metrics = metrics.New(s.registry)
	}
	return s, nil
}

// Close releases the journal.
func (s *services) Close() error {
	return s.journal.Close()
}

// options wires the store, journal and metrics into an orchestrator. The
// journal and metrics dedupe escalations, so they serve as observer and
// notifier at once.
func (s *services) options(settings orchestrator.Settings) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithStore(s.store),
		orchestrator.WithSettings(settings),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithObserver(s.journal),
		orchestrator.WithNotifier(s.journal),
	}
	if s.metrics != nil {
		opts = append(opts,
			orchestrator.WithObserver(s.metrics),
			orchestrator.WithNotifier(s.metrics),
		)
	}
	return opts
}

// writeMetrics prints the registry in the Prometheus text format.
func (s *services) writeMetrics(w io.Writer) error {
	if s.registry == nil {
		return nil
	}
	return metrics.WriteText(w, s.registry)
}

// openFlowStore opens the flow store without the journal, for read-only commands.
func openFlowStore(cfg *config.Config) (*store.FileStore, error) {
	dir, err := cfg.CadenceDir()
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(dir)
}

// openJournal opens the journal, creating it when no flow has run yet.
func openJournal(cfg *config.Config, logger zerolog.Logger) (*journal.Journal, error) {
	path, err := cfg.JournalPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create cadence directory: %w", err)
		}
	}
	return journal.Open(path, journal.WithLogger(logger))
}

// checkContext returns the context error, if any, at command entry.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
