package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

type PGPolicyStore struct {
	pool pgBeginner
}

var _ ports.PolicyStore = (*PGPolicyStore)(nil)

func NewPGPolicyStore(pool pgBeginner) *PGPolicyStore {
	return &PGPolicyStore{pool: pool}
}

func (s *PGPolicyStore) ListApplicablePolicies(ctx context.Context, objectID int64, role string, action string) ([]types.AccessPolicy, error) {
	var out []types.AccessPolicy
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT id, object_id, role, action, condition, condition_expr, effect, priority
	FROM semantic.access_policies
	WHERE object_id = $1
	  AND (role = $2 OR role = '*')
	  AND (action = $3 OR action = '*')
	ORDER BY priority DESC, id ASC
	`, objectID, role, action)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p types.AccessPolicy
			var cond []byte
			var effect string
			if err := rows.Scan(&p.ID, &p.ObjectID, &p.Role, &p.Action, &cond, &p.ConditionExpr, &effect, &p.Priority); err != nil {
				return err
			}
			if err := decodeJSONColumn(cond, &p.Condition, "condition"); err != nil {
				return err
			}
			p.Effect = types.PolicyEffect(effect)
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPoliciesForRole lists policies for role plus wildcard-role policies; an
// empty role lists everything.
func (s *PGPolicyStore) ListPoliciesForRole(ctx context.Context, role string) ([]types.PolicySummary, error) {
	out := []types.PolicySummary{}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT p.id, p.object_id, COALESCE(o.name, ''), p.role, p.action, p.effect, p.priority, p.condition
	FROM semantic.access_policies p
	LEFT JOIN semantic.metric_objects o ON o.id = p.object_id
	WHERE $1::text = '' OR p.role = $1::text OR p.role = '*'
	ORDER BY p.priority DESC, p.id ASC
	`, role)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p types.PolicySummary
			var effect string
			var cond []byte
			if err := rows.Scan(&p.ID, &p.ObjectID, &p.ObjectName, &p.Role, &p.Action, &effect, &p.Priority, &cond); err != nil {
				return err
			}
			if err := decodeJSONColumn(cond, &p.Condition, "condition"); err != nil {
				return err
			}
			p.Effect = types.PolicyEffect(effect)
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
