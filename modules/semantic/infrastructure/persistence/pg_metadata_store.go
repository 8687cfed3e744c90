package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTx runs fn in a transaction that is committed only when fn succeeds.
func inTx(ctx context.Context, pool pgBeginner, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func decodeJSONColumn(raw []byte, dst any, column string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", column, err)
	}
	return nil
}

type PGMetadataStore struct {
	pool pgBeginner
}

var _ ports.MetadataStore = (*PGMetadataStore)(nil)

func NewPGMetadataStore(pool pgBeginner) *PGMetadataStore {
	return &PGMetadataStore{pool: pool}
}

const objectColumns = `id, name, description, aliases, domain, status`

func scanObject(row pgx.Row) (types.MetricObject, error) {
	var o types.MetricObject
	var aliases []byte
	if err := row.Scan(&o.ID, &o.Name, &o.Description, &aliases, &o.Domain, &o.Status); err != nil {
		return types.MetricObject{}, err
	}
	if err := decodeJSONColumn(aliases, &o.Aliases, "aliases"); err != nil {
		return types.MetricObject{}, err
	}
	return o, nil
}

func (s *PGMetadataStore) ListActiveObjects(ctx context.Context) ([]types.MetricObject, error) {
	var out []types.MetricObject
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT `+objectColumns+`
	FROM semantic.metric_objects
	WHERE status = 'active'
	ORDER BY id ASC
	`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanObject(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGMetadataStore) getObject(ctx context.Context, where string, arg any) (types.MetricObject, bool, error) {
	var (
		out   types.MetricObject
		found bool
	)
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		o, err := scanObject(tx.QueryRow(ctx, `SELECT `+objectColumns+` FROM semantic.metric_objects WHERE `+where, arg))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out, found = o, true
		return nil
	})
	return out, found, err
}

func (s *PGMetadataStore) GetObjectByID(ctx context.Context, id int64) (types.MetricObject, bool, error) {
	return s.getObject(ctx, `id = $1`, id)
}

func (s *PGMetadataStore) GetObjectByName(ctx context.Context, name string) (types.MetricObject, bool, error) {
	return s.getObject(ctx, `lower(name) = lower($1)`, name)
}

func (s *PGMetadataStore) ListVersionsForObject(ctx context.Context, objectID int64) ([]types.MetricVersion, error) {
	var out []types.MetricVersion
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT id, object_id, version_name, effective_from, effective_to, scenario_condition, active, priority, description
	FROM semantic.metric_versions
	WHERE object_id = $1
	ORDER BY id ASC
	`, objectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var v types.MetricVersion
			var cond []byte
			if err := rows.Scan(&v.ID, &v.ObjectID, &v.VersionName, &v.EffectiveFrom, &v.EffectiveTo, &cond, &v.Active, &v.Priority, &v.Description); err != nil {
				return err
			}
			if err := decodeJSONColumn(cond, &v.ScenarioCondition, "scenario_condition"); err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGMetadataStore) GetLogicalDefinition(ctx context.Context, versionID int64) (types.LogicalDefinition, bool, error) {
	var (
		out   types.LogicalDefinition
		found bool
	)
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var grain, vars []byte
		err := tx.QueryRow(ctx, `
	SELECT id, version_id, expression, grain, description, variables
	FROM semantic.logical_definitions
	WHERE version_id = $1
	`, versionID).Scan(&out.ID, &out.VersionID, &out.Expression, &grain, &out.Description, &vars)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := decodeJSONColumn(grain, &out.Grain, "grain"); err != nil {
			return err
		}
		if err := decodeJSONColumn(vars, &out.Variables, "variables"); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return types.LogicalDefinition{}, false, err
	}
	return out, true, nil
}

func (s *PGMetadataStore) ListPhysicalMappings(ctx context.Context, logicalDefinitionID int64, engineType string) ([]types.PhysicalMapping, error) {
	var out []types.PhysicalMapping
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT id, logical_definition_id, engine_type, connection_ref, query_template, params_schema, priority, description
	FROM semantic.physical_mappings
	WHERE logical_definition_id = $1
	  AND ($2::text = '' OR lower(engine_type) = lower($2::text))
	ORDER BY priority DESC, id ASC
	`, logicalDefinitionID, engineType)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m types.PhysicalMapping
			var schema []byte
			if err := rows.Scan(&m.ID, &m.LogicalDefinitionID, &m.EngineType, &m.ConnectionRef, &m.QueryTemplate, &schema, &m.Priority, &m.Description); err != nil {
				return err
			}
			if err := decodeJSONColumn(schema, &m.ParamsSchema, "params_schema"); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGMetadataStore) ListMetricEntityMaps(ctx context.Context, metricID int64) ([]types.MetricEntityMap, error) {
	var out []types.MetricEntityMap
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT metric_id, entity_id, grain_level, allowed_dimensions, forbidden_dimensions
	FROM semantic.metric_entity_maps
	WHERE metric_id = $1
	ORDER BY entity_id ASC
	`, metricID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m types.MetricEntityMap
			var allowed, forbidden []byte
			if err := rows.Scan(&m.MetricID, &m.EntityID, &m.GrainLevel, &allowed, &forbidden); err != nil {
				return err
			}
			if err := decodeJSONColumn(allowed, &m.AllowedDimensions, "allowed_dimensions"); err != nil {
				return err
			}
			if err := decodeJSONColumn(forbidden, &m.ForbiddenDimensions, "forbidden_dimensions"); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGMetadataStore) FindTermsInText(ctx context.Context, text string) ([]types.TermEntry, error) {
	var out []types.TermEntry
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
	SELECT id, term, normalized_term, object_type, object_id, language, status
	FROM semantic.term_dictionary
	WHERE status = 'active' AND term <> '' AND strpos($1::text, term) > 0
	ORDER BY length(term) DESC, id ASC
	`, text)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t types.TermEntry
			if err := rows.Scan(&t.ID, &t.Term, &t.NormalizedTerm, &t.ObjectType, &t.ObjectID, &t.Language, &t.Status); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
