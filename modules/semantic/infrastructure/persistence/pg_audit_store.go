package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const pgUniqueViolation = "23505"

type PGAuditStore struct {
	pool pgBeginner
}

var _ ports.AuditStore = (*PGAuditStore)(nil)

func NewPGAuditStore(pool pgBeginner) *PGAuditStore {
	return &PGAuditStore{pool: pool}
}

// nullableID maps the "never resolved" zero id to SQL NULL.
func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *PGAuditStore) SaveAudit(ctx context.Context, a types.ExecutionAudit) error {
	trace, err := json.Marshal(a.DecisionTrace)
	if err != nil {
		return err
	}
	params := a.RequestParams
	if params == nil {
		params = map[string]any{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}
	ecJSON, err := json.Marshal(a.Context)
	if err != nil {
		return err
	}
	var decisionJSON []byte
	if a.PolicyDecision != nil {
		if decisionJSON, err = json.Marshal(a.PolicyDecision); err != nil {
			return err
		}
	}

	err = inTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
	INSERT INTO semantic.execution_audits (
	  audit_id, question,
	  object_id, object_name, version_id, version_name,
	  logical_definition_id, logical_expression, physical_mapping_id,
	  engine_type, connection_ref, final_query,
	  decision_trace, request_params, execution_context, policy_decision,
	  user_id, user_role, executed_at, status, row_count, latency_ms,
	  error_kind, error_message, replay_of
	) VALUES (
	  $1, $2,
	  $3, $4, $5, $6,
	  $7, $8, $9,
	  $10, $11, $12,
	  $13::jsonb, $14::jsonb, $15::jsonb, $16::jsonb,
	  $17, $18, $19, $20, $21, $22,
	  $23, $24, $25
	)
	`,
			a.AuditID, a.Question,
			nullableID(a.ObjectID), a.ObjectName, nullableID(a.VersionID), a.VersionName,
			nullableID(a.LogicalDefinitionID), a.LogicalExpression, nullableID(a.PhysicalMappingID),
			a.EngineType, a.ConnectionRef, a.FinalQuery,
			trace, paramsJSON, ecJSON, decisionJSON,
			a.Context.UserID, a.Context.Role, a.ExecutedAt.UTC(), string(a.Status), a.RowCount, a.LatencyMS,
			string(a.ErrorKind), a.ErrorMessage, nullableText(a.ReplayOf),
		)
		return err
	})
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr.Code == pgUniqueViolation {
		return ports.ErrAuditExists
	}
	return err
}

func (s *PGAuditStore) LoadAudit(ctx context.Context, auditID string) (types.ExecutionAudit, error) {
	var a types.ExecutionAudit
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			objectID, versionID, logicID, mappingID *int64
			trace, params, ec, decision             []byte
			status, kind                            string
			replayOf                                *string
		)
		err := tx.QueryRow(ctx, `
	SELECT
	  audit_id, question,
	  object_id, object_name, version_id, version_name,
	  logical_definition_id, logical_expression, physical_mapping_id,
	  engine_type, connection_ref, final_query,
	  decision_trace, request_params, execution_context, policy_decision,
	  executed_at, status, row_count, latency_ms, error_kind, error_message, replay_of
	FROM semantic.execution_audits
	WHERE audit_id = $1
	`, auditID).Scan(
			&a.AuditID, &a.Question,
			&objectID, &a.ObjectName, &versionID, &a.VersionName,
			&logicID, &a.LogicalExpression, &mappingID,
			&a.EngineType, &a.ConnectionRef, &a.FinalQuery,
			&trace, &params, &ec, &decision,
			&a.ExecutedAt, &status, &a.RowCount, &a.LatencyMS, &kind, &a.ErrorMessage, &replayOf,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.ErrAuditNotFound
		}
		if err != nil {
			return err
		}
		a.ObjectID = derefID(objectID)
		a.VersionID = derefID(versionID)
		a.LogicalDefinitionID = derefID(logicID)
		a.PhysicalMappingID = derefID(mappingID)
		a.Status = types.QueryStatus(status)
		a.ErrorKind = types.ErrorKind(kind)
		if replayOf != nil {
			a.ReplayOf = *replayOf
		}
		if err := decodeJSONColumn(trace, &a.DecisionTrace, "decision_trace"); err != nil {
			return err
		}
		if err := decodeJSONColumn(params, &a.RequestParams, "request_params"); err != nil {
			return err
		}
		if err := decodeJSONColumn(ec, &a.Context, "execution_context"); err != nil {
			return err
		}
		if len(decision) > 0 && string(decision) != "null" {
			a.PolicyDecision = &types.PolicyDecision{}
			if err := decodeJSONColumn(decision, a.PolicyDecision, "policy_decision"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return types.ExecutionAudit{}, err
	}
	return a, nil
}

func (s *PGAuditStore) ListAuditHistory(ctx context.Context, limit int, userID string) ([]types.AuditSummary, error) {
	out := []types.AuditSummary{}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT audit_id, question, object_name, version_name, user_id, user_role,
	       status, row_count, latency_ms, executed_at, error_message, COALESCE(replay_of, '')
	FROM semantic.execution_audits
	WHERE $1::text = '' OR user_id = $1::text
	ORDER BY executed_at DESC, audit_id DESC
	LIMIT $2
	`, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sm types.AuditSummary
			var status string
			var executedAt time.Time
			if err := rows.Scan(&sm.AuditID, &sm.Question, &sm.ObjectName, &sm.VersionName, &sm.UserID, &sm.UserRole,
				&status, &sm.RowCount, &sm.LatencyMS, &executedAt, &sm.ErrorMessage, &sm.ReplayOf); err != nil {
				return err
			}
			sm.Status = types.QueryStatus(status)
			sm.ExecutedAt = executedAt.UTC()
			out = append(out, sm)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func derefID(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
