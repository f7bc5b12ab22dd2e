// Package store persists flow snapshots for cadence.
// Each flow lives in its own directory under ~/.cadence/flows with a
// flow.json snapshot, an optional report.json and a lock file. Writes are
// atomic and serialized with an exclusive file lock.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/mrz1836/cadence/internal/constants"
	"github.com/mrz1836/cadence/internal/domain"
	cadenceerrors "github.com/mrz1836/cadence/internal/errors"
	"github.com/mrz1836/cadence/internal/flock"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// reportFileName holds the latest completion report of a flow.
const reportFileName = "report.json"

// validFlowIDRegex matches flow IDs produced by flow.GenerateFlowID.
var validFlowIDRegex = regexp.MustCompile(`^flow-\d{8}-\d{6}-[0-9a-f]{6}$`)

// Store defines the interface for flow persistence operations.
type Store interface {
	// Create stores a new flow. Returns ErrFlowExists if the ID is taken.
	Create(ctx context.Context, f domain.FlowInstance) error

	// Get retrieves a flow by ID. Returns ErrFlowNotFound if missing.
	Get(ctx context.Context, id string) (domain.FlowInstance, error)

	// Update replaces the stored snapshot of an existing flow.
	Update(ctx context.Context, f domain.FlowInstance) error

	// List returns every stored flow, newest first.
	List(ctx context.Context) ([]domain.FlowInstance, error)

	// Delete removes a flow and its report.
	Delete(ctx context.Context, id string) error

	// SaveReport stores the completion report of a flow.
	SaveReport(ctx context.Context, r *domain.CompletionReport) error

	// GetReport retrieves the stored completion report of a flow.
	GetReport(ctx context.Context, id string) (*domain.CompletionReport, error)
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	root string // Usually ~/.cadence/flows
}

// NewFileStore creates a FileStore under cadenceHome/flows.
// If cadenceHome is empty, uses the default ~/.cadence directory.
func NewFileStore(cadenceHome string) (*FileStore, error) {
	if cadenceHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cadenceHome = filepath.Join(home, constants.CadenceHome)
	}
	return &FileStore{root: filepath.Join(cadenceHome, constants.FlowsDir)}, nil
}

// ValidID reports whether id has the flow ID format.
func ValidID(id string) bool {
	return validFlowIDRegex.MatchString(id)
}

// Create stores a new flow.
func (s *FileStore) Create(ctx context.Context, f domain.FlowInstance) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := validateID(f.ID); err != nil {
		return fmt.Errorf("failed to create flow: %w", err)
	}

	dir := s.flowDir(f.ID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("failed to create flow '%s': %w", f.ID, cadenceerrors.ErrFlowExists)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create flow directory: %w", err)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(f.ID), LockTimeout)
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create flow '%s': %w", f.ID, err)
	}
	defer func() { _ = lock.Release() }()

	f.SchemaVersion = constants.FlowSchemaVersion
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	f.UpdatedAt = f.CreatedAt
	if err := writeJSON(s.flowPath(f.ID), f); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("failed to create flow '%s': %w", f.ID, err)
	}
	return nil
}

// Get retrieves a flow by ID.
func (s *FileStore) Get(ctx context.Context, id string) (domain.FlowInstance, error) {
	if err := checkCtx(ctx); err != nil {
		return domain.FlowInstance{}, err
	}
	if err := validateID(id); err != nil {
		return domain.FlowInstance{}, fmt.Errorf("failed to get flow: %w", err)
	}
	if _, err := os.Stat(s.flowDir(id)); os.IsNotExist(err) {
		return domain.FlowInstance{}, fmt.Errorf("failed to get flow '%s': %w", id, cadenceerrors.ErrFlowNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(id), LockTimeout)
	if err != nil {
		return domain.FlowInstance{}, fmt.Errorf("failed to get flow '%s': %w", id, err)
	}
	defer func() { _ = lock.Release() }()

	var f domain.FlowInstance
	if err := readJSON(s.flowPath(id), &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.FlowInstance{}, fmt.Errorf("failed to get flow '%s': %w", id, cadenceerrors.ErrFlowNotFound)
		}
		return domain.FlowInstance{}, fmt.Errorf("failed to read flow '%s': %w", id, err)
	}
	return f, nil
}

// Update replaces the stored snapshot of an existing flow.
func (s *FileStore) Update(ctx context.Context, f domain.FlowInstance) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := validateID(f.ID); err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}
	if _, err := os.Stat(s.flowDir(f.ID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to update flow '%s': %w", f.ID, cadenceerrors.ErrFlowNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(f.ID), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to update flow '%s': %w", f.ID, err)
	}
	defer func() { _ = lock.Release() }()

	f.SchemaVersion = constants.FlowSchemaVersion
	f.UpdatedAt = time.Now().UTC()
	if err := writeJSON(s.flowPath(f.ID), f); err != nil {
		return fmt.Errorf("failed to update flow '%s': %w", f.ID, err)
	}
	return nil
}

// List returns every stored flow, newest first. Directories that do not
// hold a readable snapshot are skipped.
func (s *FileStore) List(ctx context.Context) ([]domain.FlowInstance, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return []domain.FlowInstance{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	flows := make([]domain.FlowInstance, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !ValidID(entry.Name()) {
			continue
		}
		if err := checkCtx(ctx); err != nil {
			return nil, err
		}
		f, err := s.Get(ctx, entry.Name())
		if err != nil {
			continue
		}
		flows = append(flows, f)
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})
	return flows, nil
}

// Delete removes a flow and its report.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if err := validateID(id); err != nil {
		return fmt.Errorf("failed to delete flow: %w", err)
	}
	dir := s.flowDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete flow '%s': %w", id, cadenceerrors.ErrFlowNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(id), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to delete flow '%s': %w", id, err)
	}
	_ = lock.Release()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete flow '%s': %w", id, err)
	}
	return nil
}

// SaveReport stores the completion report of a flow.
func (s *FileStore) SaveReport(ctx context.Context, r *domain.CompletionReport) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("failed to save report: report %w", cadenceerrors.ErrEmptyValue)
	}
	if err := validateID(r.FlowID); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if _, err := os.Stat(s.flowDir(r.FlowID)); os.IsNotExist(err) {
		return fmt.Errorf("failed to save report '%s': %w", r.FlowID, cadenceerrors.ErrFlowNotFound)
	}

	lock, err := flock.Acquire(ctx, s.lockPath(r.FlowID), LockTimeout)
	if err != nil {
		return fmt.Errorf("failed to save report '%s': %w", r.FlowID, err)
	}
	defer func() { _ = lock.Release() }()

	return writeJSON(filepath.Join(s.flowDir(r.FlowID), reportFileName), r)
}

// GetReport retrieves the stored completion report of a flow.
func (s *FileStore) GetReport(ctx context.Context, id string) (*domain.CompletionReport, error) {
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var r domain.CompletionReport
	if err := readJSON(filepath.Join(s.flowDir(id), reportFileName), &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to get report '%s': %w", id, cadenceerrors.ErrFlowNotFound)
		}
		return nil, fmt.Errorf("failed to read report '%s': %w", id, err)
	}
	return &r, nil
}

func (s *FileStore) flowDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FileStore) flowPath(id string) string {
	return filepath.Join(s.flowDir(id), constants.FlowFileName)
}

func (s *FileStore) lockPath(id string) string {
	return filepath.Join(s.flowDir(id), constants.FlowFileName+".lock")
}

func checkCtx(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("flow ID %w", cadenceerrors.ErrEmptyValue)
	}
	if !ValidID(id) {
		return fmt.Errorf("%w: flow ID %q", cadenceerrors.ErrInvalidArgument, id)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return atomicWrite(path, data)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path) //#nosec G304 -- path is validated and constructed from trusted base
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupted state file %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	// Sync to disk (ensure data is persisted before rename)
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
