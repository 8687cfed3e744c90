package persistence

import (
	"context"
	"sync"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

// MemoryAuditStore keeps audit rows in process. Rows are insert-only and
// copied on the way in and out, so callers never share maps with a stored row.
type MemoryAuditStore struct {
	mu    sync.RWMutex
	rows  map[string]types.ExecutionAudit
	order []string
}

var _ ports.AuditStore = (*MemoryAuditStore)(nil)

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{rows: map[string]types.ExecutionAudit{}}
}

func (s *MemoryAuditStore) SaveAudit(_ context.Context, audit types.ExecutionAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[audit.AuditID]; ok {
		return ports.ErrAuditExists
	}
	s.rows[audit.AuditID] = audit.Clone()
	s.order = append(s.order, audit.AuditID)
	return nil
}

func (s *MemoryAuditStore) LoadAudit(_ context.Context, auditID string) (types.ExecutionAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[auditID]
	if !ok {
		return types.ExecutionAudit{}, ports.ErrAuditNotFound
	}
	return row.Clone(), nil
}

// ListAuditHistory returns summaries newest first, by insertion order.
func (s *MemoryAuditStore) ListAuditHistory(_ context.Context, limit int, userID string) ([]types.AuditSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.AuditSummary{}
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		row := s.rows[s.order[i]]
		if userID != "" && row.Context.UserID != userID {
			continue
		}
		out = append(out, row.Summary())
	}
	return out, nil
}
