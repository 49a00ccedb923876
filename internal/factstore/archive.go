package factstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

// ErrNotFound is returned when an archived record does not exist.
var ErrNotFound = stderrors.New("optimized record not found")

// Archive persists accepted optimized records. Nothing else is ever written.
// Save assigns the record the next version for its source and writes it back
// into record.Version.
type Archive interface {
	Save(ctx context.Context, record *types.OptimizedCandidateRecord) error
	Get(ctx context.Context, id string) (*types.OptimizedCandidateRecord, error)
	ListBySource(ctx context.Context, sourceID string) ([]*types.OptimizedCandidateRecord, error)
	NextVersion(ctx context.Context, sourceID string) (int, error)
	Close() error
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// OpenArchive opens the archive for the configured driver.
func OpenArchive(driver, path string, logger *errors.Logger) (Archive, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryArchive(), nil
	case DriverSQLite:
		return OpenSQLiteArchive(path, logger)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported storage driver: %s", driver), nil)
	}
}

// MemoryArchive keeps records in process memory.
type MemoryArchive struct {
	mu      sync.RWMutex
	records map[string]*types.OptimizedCandidateRecord
	order   []string
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{records: make(map[string]*types.OptimizedCandidateRecord)}
}

func (a *MemoryArchive) Save(ctx context.Context, record *types.OptimizedCandidateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.records[record.ID]; exists {
		return errors.NewIOError(errors.ErrCodeStorageFailed, "optimized record already archived", nil).
			WithContext("optimized_id", record.ID)
	}
	record.Version = a.latestVersion(record.SourceID) + 1

	a.records[record.ID] = copyOptimized(record)
	a.order = append(a.order, record.ID)
	return nil
}

func (a *MemoryArchive) Get(ctx context.Context, id string) (*types.OptimizedCandidateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	record, ok := a.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOptimized(record), nil
}

func (a *MemoryArchive) ListBySource(ctx context.Context, sourceID string) ([]*types.OptimizedCandidateRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []*types.OptimizedCandidateRecord
	for _, id := range a.order {
		if r := a.records[id]; r.SourceID == sourceID {
			out = append(out, copyOptimized(r))
		}
	}
	slices.SortFunc(out, func(x, y *types.OptimizedCandidateRecord) int { return x.Version - y.Version })
	return out, nil
}

func (a *MemoryArchive) NextVersion(ctx context.Context, sourceID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestVersion(sourceID) + 1, nil
}

// latestVersion must be called with the lock held.
func (a *MemoryArchive) latestVersion(sourceID string) int {
	latest := 0
	for _, r := range a.records {
		if r.SourceID == sourceID {
			latest = max(latest, r.Version)
		}
	}
	return latest
}

func (a *MemoryArchive) Close() error {
	return nil
}

func copyOptimized(r *types.OptimizedCandidateRecord) *types.OptimizedCandidateRecord {
	out := *r
	out.Record = *r.Record.Clone()
	if r.TokenUsage != nil {
		usage := *r.TokenUsage
		out.TokenUsage = &usage
	}
	return &out
}
