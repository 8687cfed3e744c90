package persistence

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

const catalogVersion = 1

// Catalog is the authored governance metadata: the file form of everything
// the pipeline reads. Rows are read-only once loaded.
type Catalog struct {
	Version            int                       `yaml:"version"`
	Objects            []types.MetricObject      `yaml:"objects"`
	Versions           []types.MetricVersion     `yaml:"versions"`
	LogicalDefinitions []types.LogicalDefinition `yaml:"logical_definitions"`
	PhysicalMappings   []types.PhysicalMapping   `yaml:"physical_mappings"`
	Policies           []types.AccessPolicy      `yaml:"policies"`
	EntityMaps         []types.MetricEntityMap   `yaml:"entity_maps"`
	Terms              []types.TermEntry         `yaml:"terms"`
}

func LoadCatalogFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseCatalog(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks structure and referential integrity. All problems are
// reported together.
func (c *Catalog) Validate() error {
	var errs []error
	addf := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Version != catalogVersion {
		addf("unsupported catalog version: %d", c.Version)
	}

	objects := map[int64]bool{}
	names := map[string]bool{}
	for _, o := range c.Objects {
		switch {
		case o.ID <= 0:
			addf("object %q: id must be positive", o.Name)
		case objects[o.ID]:
			addf("object %d: duplicate id", o.ID)
		}
		objects[o.ID] = true
		name := strings.TrimSpace(o.Name)
		if name == "" {
			addf("object %d: name is required", o.ID)
		} else if names[strings.ToLower(name)] {
			addf("object %d: duplicate name %q", o.ID, name)
		}
		names[strings.ToLower(name)] = true
	}

	versions := map[int64]bool{}
	for _, v := range c.Versions {
		if v.ID <= 0 || versions[v.ID] {
			addf("version %d: id must be positive and unique", v.ID)
		}
		versions[v.ID] = true
		if !objects[v.ObjectID] {
			addf("version %d: unknown object_id %d", v.ID, v.ObjectID)
		}
		if strings.TrimSpace(v.VersionName) == "" {
			addf("version %d: version_name is required", v.ID)
		}
		if v.EffectiveFrom.IsZero() {
			addf("version %d: effective_from is required", v.ID)
		}
		if v.EffectiveTo != nil && v.EffectiveTo.Before(v.EffectiveFrom) {
			addf("version %d: effective_to before effective_from", v.ID)
		}
	}

	logic := map[int64]bool{}
	logicByVersion := map[int64]int64{}
	for _, d := range c.LogicalDefinitions {
		if d.ID <= 0 || logic[d.ID] {
			addf("logical_definition %d: id must be positive and unique", d.ID)
		}
		logic[d.ID] = true
		if !versions[d.VersionID] {
			addf("logical_definition %d: unknown version_id %d", d.ID, d.VersionID)
		}
		if other, ok := logicByVersion[d.VersionID]; ok {
			addf("logical_definition %d: version %d already defined by %d", d.ID, d.VersionID, other)
		}
		logicByVersion[d.VersionID] = d.ID
		if strings.TrimSpace(d.Expression) == "" {
			addf("logical_definition %d: expression is required", d.ID)
		}
	}

	mappings := map[int64]bool{}
	for _, m := range c.PhysicalMappings {
		if m.ID <= 0 || mappings[m.ID] {
			addf("physical_mapping %d: id must be positive and unique", m.ID)
		}
		mappings[m.ID] = true
		if !logic[m.LogicalDefinitionID] {
			addf("physical_mapping %d: unknown logical_definition_id %d", m.ID, m.LogicalDefinitionID)
		}
		if strings.TrimSpace(m.EngineType) == "" || strings.TrimSpace(m.ConnectionRef) == "" {
			addf("physical_mapping %d: engine_type and connection_ref are required", m.ID)
		}
		if strings.TrimSpace(m.QueryTemplate) == "" {
			addf("physical_mapping %d: query_template is required", m.ID)
		}
	}

	policies := map[int64]bool{}
	for _, p := range c.Policies {
		if p.ID <= 0 || policies[p.ID] {
			addf("policy %d: id must be positive and unique", p.ID)
		}
		policies[p.ID] = true
		if !objects[p.ObjectID] {
			addf("policy %d: unknown object_id %d", p.ID, p.ObjectID)
		}
		if strings.TrimSpace(p.Role) == "" || strings.TrimSpace(p.Action) == "" {
			addf("policy %d: role and action are required", p.ID)
		}
		if p.Effect != types.EffectAllow && p.Effect != types.EffectDeny {
			addf("policy %d: effect must be allow or deny, got %q", p.ID, p.Effect)
		}
	}

	for i, m := range c.EntityMaps {
		if !objects[m.MetricID] {
			addf("entity_map %d: unknown metric_id %d", i, m.MetricID)
		}
	}
	for _, t := range c.Terms {
		if strings.TrimSpace(t.Term) == "" {
			addf("term %d: term is required", t.ID)
		}
	}

	return errors.Join(errs...)
}

// ObjectNames reports every declared object name, for expression reference checks.
func (c *Catalog) ObjectNames() map[string]bool {
	out := make(map[string]bool, len(c.Objects))
	for _, o := range c.Objects {
		out[o.Name] = true
	}
	return out
}
