package ports

import (
	"context"
	"errors"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

var (
	ErrAuditNotFound = errors.New("audit_not_found")
	ErrAuditExists   = errors.New("audit_already_exists")
)

// MetadataStore is the read side of governed metric metadata. Getters return
// ok=false when the row does not exist.
type MetadataStore interface {
	ListActiveObjects(ctx context.Context) ([]types.MetricObject, error)
	GetObjectByID(ctx context.Context, id int64) (types.MetricObject, bool, error)
	GetObjectByName(ctx context.Context, name string) (types.MetricObject, bool, error)
	ListVersionsForObject(ctx context.Context, objectID int64) ([]types.MetricVersion, error)
	GetLogicalDefinition(ctx context.Context, versionID int64) (types.LogicalDefinition, bool, error)
	// ListPhysicalMappings returns mappings ordered by priority descending. An
	// empty engineType disables the engine filter.
	ListPhysicalMappings(ctx context.Context, logicalDefinitionID int64, engineType string) ([]types.PhysicalMapping, error)
	ListMetricEntityMaps(ctx context.Context, metricID int64) ([]types.MetricEntityMap, error)
	FindTermsInText(ctx context.Context, text string) ([]types.TermEntry, error)
}

type PolicyStore interface {
	// ListApplicablePolicies returns policies for the object whose role and
	// action equal the arguments or the wildcard, ordered by priority descending.
	ListApplicablePolicies(ctx context.Context, objectID int64, role string, action string) ([]types.AccessPolicy, error)
	ListPoliciesForRole(ctx context.Context, role string) ([]types.PolicySummary, error)
}

// AuditStore is insert-only. SaveAudit must reject a duplicate audit id with
// ErrAuditExists and LoadAudit returns ErrAuditNotFound for unknown ids.
type AuditStore interface {
	SaveAudit(ctx context.Context, audit types.ExecutionAudit) error
	LoadAudit(ctx context.Context, auditID string) (types.ExecutionAudit, error)
	ListAuditHistory(ctx context.Context, limit int, userID string) ([]types.AuditSummary, error)
}

type QueryExecutor interface {
	Execute(ctx context.Context, query string, connectionRef string, params map[string]any) ([]types.Row, error)
}

type GrainValidator interface {
	Validate(ctx context.Context, metricID int64, params map[string]any, grain []string) (types.GrainValidation, error)
}
