package persistence

import (
	"context"
	_ "embed"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

func SchemaSQL() string { return schemaSQL }

func ApplySchema(ctx context.Context, pool pgBeginner) error {
	return inTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, schemaSQL)
		return err
	})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func jsonOrNull(v any, empty bool) []byte {
	if empty {
		return nil
	}
	return mustJSON(v)
}

func jsonList(v []string) []byte {
	if v == nil {
		v = []string{}
	}
	return mustJSON(v)
}

// LoadCatalog upserts a validated catalog into Postgres in one transaction.
// Rows absent from the catalog are left untouched.
func LoadCatalog(ctx context.Context, pool pgBeginner, c *Catalog) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return inTx(ctx, pool, func(tx pgx.Tx) error {
		for _, o := range c.Objects {
			status := o.Status
			if status == "" {
				status = "active"
			}
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.metric_objects (id, name, description, aliases, domain, status)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
	  name = EXCLUDED.name, description = EXCLUDED.description, aliases = EXCLUDED.aliases,
	  domain = EXCLUDED.domain, status = EXCLUDED.status
	`, o.ID, o.Name, o.Description, jsonList(o.Aliases), o.Domain, status); err != nil {
				return err
			}
		}
		for _, v := range c.Versions {
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.metric_versions (id, object_id, version_name, effective_from, effective_to, scenario_condition, active, priority, description)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
	  object_id = EXCLUDED.object_id, version_name = EXCLUDED.version_name,
	  effective_from = EXCLUDED.effective_from, effective_to = EXCLUDED.effective_to,
	  scenario_condition = EXCLUDED.scenario_condition, active = EXCLUDED.active,
	  priority = EXCLUDED.priority, description = EXCLUDED.description
	`, v.ID, v.ObjectID, v.VersionName, v.EffectiveFrom, v.EffectiveTo,
				jsonOrNull(v.ScenarioCondition, len(v.ScenarioCondition) == 0), v.Active, v.Priority, v.Description); err != nil {
				return err
			}
		}
		for _, d := range c.LogicalDefinitions {
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.logical_definitions (id, version_id, expression, grain, description, variables)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb)
	ON CONFLICT (id) DO UPDATE SET
	  version_id = EXCLUDED.version_id, expression = EXCLUDED.expression, grain = EXCLUDED.grain,
	  description = EXCLUDED.description, variables = EXCLUDED.variables
	`, d.ID, d.VersionID, d.Expression, jsonList(d.Grain), d.Description, jsonList(d.Variables)); err != nil {
				return err
			}
		}
		for _, m := range c.PhysicalMappings {
			schema := m.ParamsSchema
			if schema == nil {
				schema = map[string]string{}
			}
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.physical_mappings (id, logical_definition_id, engine_type, connection_ref, query_template, params_schema, priority, description)
	VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
	  logical_definition_id = EXCLUDED.logical_definition_id, engine_type = EXCLUDED.engine_type,
	  connection_ref = EXCLUDED.connection_ref, query_template = EXCLUDED.query_template,
	  params_schema = EXCLUDED.params_schema, priority = EXCLUDED.priority, description = EXCLUDED.description
	`, m.ID, m.LogicalDefinitionID, m.EngineType, m.ConnectionRef, m.QueryTemplate, mustJSON(schema), m.Priority, m.Description); err != nil {
				return err
			}
		}
		for _, p := range c.Policies {
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.access_policies (id, object_id, role, action, condition, condition_expr, effect, priority)
	VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
	  object_id = EXCLUDED.object_id, role = EXCLUDED.role, action = EXCLUDED.action,
	  condition = EXCLUDED.condition, condition_expr = EXCLUDED.condition_expr,
	  effect = EXCLUDED.effect, priority = EXCLUDED.priority
	`, p.ID, p.ObjectID, p.Role, p.Action, jsonOrNull(p.Condition, len(p.Condition) == 0), p.ConditionExpr, string(p.Effect), p.Priority); err != nil {
				return err
			}
		}
		for _, m := range c.EntityMaps {
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.metric_entity_maps (metric_id, entity_id, grain_level, allowed_dimensions, forbidden_dimensions)
	VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
	ON CONFLICT (metric_id, entity_id) DO UPDATE SET
	  grain_level = EXCLUDED.grain_level, allowed_dimensions = EXCLUDED.allowed_dimensions,
	  forbidden_dimensions = EXCLUDED.forbidden_dimensions
	`, m.MetricID, m.EntityID, m.GrainLevel, jsonList(m.AllowedDimensions), jsonList(m.ForbiddenDimensions)); err != nil {
				return err
			}
		}
		for _, t := range c.Terms {
			status := t.Status
			if status == "" {
				status = "active"
			}
			if _, err := tx.Exec(ctx, `
	INSERT INTO semantic.term_dictionary (id, term, normalized_term, object_type, object_id, language, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
	  term = EXCLUDED.term, normalized_term = EXCLUDED.normalized_term, object_type = EXCLUDED.object_type,
	  object_id = EXCLUDED.object_id, language = EXCLUDED.language, status = EXCLUDED.status
	`, t.ID, t.Term, t.NormalizedTerm, t.ObjectType, t.ObjectID, t.Language, status); err != nil {
				return err
			}
		}
		return nil
	})
}
