package state

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nick199910/CLMM-Liquidity-Provider/internal/types"
)

// MemoryStore keeps everything in process memory. Used when no database is configured
// and in tests. Safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	runs          map[string]*RunRecord
	order         []string // Insertion order of runs
	optimizations map[string]*OptimizationRecord
	cycle         int
	now           func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:          map[string]*RunRecord{},
		optimizations: map[string]*OptimizationRecord{},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) SaveSimulationReport(_ context.Context, report *types.SimulationReport, source string, tags []string) error {
	if report == nil {
		return ErrNilReport
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[report.RunID]; exists {
		return fmt.Errorf("run %s already stored", report.RunID)
	}
	m.runs[report.RunID] = &RunRecord{
		RunID:     report.RunID,
		CreatedAt: m.now(),
		Source:    source,
		Tags:      slices.Clone(tags),
		Report:    report,
	}
	m.order = append(m.order, report.RunID)
	return nil
}

func (m *MemoryStore) GetSimulationRun(_ context.Context, runID string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	out := *rec
	return &out, nil
}

// ListSimulationRuns returns the most recently saved runs first.
func (m *MemoryStore) ListSimulationRuns(_ context.Context, limit int) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit = clampLimit(limit)
	out := make([]RunSummary, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, summarize(m.runs[m.order[i]]))
	}
	return out, nil
}

func (m *MemoryStore) SaveOptimizationRun(_ context.Context, rec *OptimizationRecord) (string, error) {
	if rec == nil || rec.Result == nil {
		return "", fmt.Errorf("optimization result is nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	stored := *rec
	m.optimizations[rec.ID] = &stored
	return rec.ID, nil
}

func (m *MemoryStore) GetOptimizationRun(_ context.Context, id string) (*OptimizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.optimizations[id]
	if !ok {
		return nil, fmt.Errorf("%w: optimization %s", ErrNotFound, id)
	}
	out := *rec
	return &out, nil
}

func (m *MemoryStore) GetAnalytics(_ context.Context) (*Analytics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]RunSummary, 0, len(m.order))
	for _, id := range m.order {
		runs = append(runs, summarize(m.runs[id]))
	}
	return analyze(runs, len(m.optimizations), m.cycle), nil
}

func (m *MemoryStore) GetCurrentCycleNumber(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cycle, nil
}

func (m *MemoryStore) IncrementCycleNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle++
	return m.cycle, nil
}

func (m *MemoryStore) ResetCycleNumber(_ context.Context, cycleNumber int) error {
	if cycleNumber < 0 {
		return fmt.Errorf("cycle number cannot be negative: %d", cycleNumber)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle = cycleNumber
	return nil
}

// Compile-time interface checks
var (
	_ Store        = (*MemoryStore)(nil)
	_ CycleCounter = (*MemoryStore)(nil)
	_ Store        = (*PostgresStore)(nil)
	_ CycleCounter = (*PostgresStore)(nil)
)

// HasTag reports whether rec carries tag, ignoring case.
func (rec *RunRecord) HasTag(tag string) bool {
	return slices.ContainsFunc(rec.Tags, func(t string) bool { return strings.EqualFold(t, tag) })
}
