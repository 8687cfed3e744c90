package services

import (
	"context"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

// Facade is the surface the presentation layer consumes.
type Facade interface {
	Query(ctx context.Context, question string, params map[string]any, ec types.ExecutionContext, previewOnly bool) QueryResult
	Replay(ctx context.Context, sourceAuditID string) (ReplayResult, error)
	ListObjects(ctx context.Context) ([]types.ObjectSummary, error)
	GetAuditHistory(ctx context.Context, limit int, userID string) ([]types.AuditSummary, error)
	GetAudit(ctx context.Context, id string) (types.ExecutionAudit, error)
	ListPolicies(ctx context.Context, role string) ([]types.PolicySummary, error)
}

var _ Facade = (*Orchestrator)(nil)
