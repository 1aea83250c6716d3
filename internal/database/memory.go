package database

import (
	"context"
	"sort"
	"sync"

	"github.com/Alias1177/PickGate/models"
)

// MemoryRecorder keeps decisions in process. Used by the CLI and tests.
type MemoryRecorder struct {
	mu        sync.RWMutex
	decisions map[string]models.DecisionRecord
	audit     map[string][]string
	order     []string
}

// NewMemoryRecorder creates an empty recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		decisions: make(map[string]models.DecisionRecord),
		audit:     make(map[string][]string),
	}
}

// RecordDecision stores rec. A duplicate id is rejected like the primary key in Postgres.
func (m *MemoryRecorder) RecordDecision(ctx context.Context, rec models.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.decisions[rec.DecisionID]; ok {
		return &DuplicateError{DecisionID: rec.DecisionID}
	}
	m.decisions[rec.DecisionID] = rec
	m.audit[rec.DecisionID] = AuditEvents(rec)
	m.order = append(m.order, rec.DecisionID)
	return nil
}

// GetDecision retrieves a decision by id
func (m *MemoryRecorder) GetDecision(_ context.Context, decisionID string) (*models.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.decisions[decisionID]
	if !ok {
		return nil, ErrDecisionNotFound
	}
	return &rec, nil
}

// ListByRun returns the decisions of one run in execution order
func (m *MemoryRecorder) ListByRun(_ context.Context, runID string) ([]models.DecisionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DecisionRecord
	for _, id := range m.order {
		if rec := m.decisions[id]; rec.RunID == runID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

// AuditLog returns the audit events recorded for a decision
func (m *MemoryRecorder) AuditLog(decisionID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.audit[decisionID]...)
}

// Len returns the number of stored decisions
func (m *MemoryRecorder) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.decisions)
}

// DuplicateError is returned when a decision id is recorded twice
type DuplicateError struct {
	DecisionID string
}

func (e *DuplicateError) Error() string {
	return "decision already recorded: " + e.DecisionID
}
