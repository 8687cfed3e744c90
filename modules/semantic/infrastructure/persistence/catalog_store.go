package persistence

import (
	"context"
	"sort"
	"strings"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

// CatalogStore serves a validated Catalog from memory. It is immutable after
// construction and safe for concurrent use.
type CatalogStore struct {
	objects    []types.MetricObject
	objectByID map[int64]types.MetricObject
	versions   map[int64][]types.MetricVersion
	logic      map[int64]types.LogicalDefinition
	mappings   map[int64][]types.PhysicalMapping
	policies   []types.AccessPolicy
	entityMaps map[int64][]types.MetricEntityMap
	terms      []types.TermEntry
}

var (
	_ ports.MetadataStore = (*CatalogStore)(nil)
	_ ports.PolicyStore   = (*CatalogStore)(nil)
)

func NewCatalogStore(c *Catalog) (*CatalogStore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := &CatalogStore{
		objectByID: map[int64]types.MetricObject{},
		versions:   map[int64][]types.MetricVersion{},
		logic:      map[int64]types.LogicalDefinition{},
		mappings:   map[int64][]types.PhysicalMapping{},
		entityMaps: map[int64][]types.MetricEntityMap{},
	}
	s.objects = append(s.objects, c.Objects...)
	sort.SliceStable(s.objects, func(i, j int) bool { return s.objects[i].ID < s.objects[j].ID })
	for _, o := range s.objects {
		s.objectByID[o.ID] = o
	}
	for _, v := range c.Versions {
		s.versions[v.ObjectID] = append(s.versions[v.ObjectID], v)
	}
	for _, d := range c.LogicalDefinitions {
		s.logic[d.VersionID] = d
	}
	for _, m := range c.PhysicalMappings {
		s.mappings[m.LogicalDefinitionID] = append(s.mappings[m.LogicalDefinitionID], m)
	}
	for id := range s.mappings {
		ms := s.mappings[id]
		sort.SliceStable(ms, func(i, j int) bool {
			if ms[i].Priority != ms[j].Priority {
				return ms[i].Priority > ms[j].Priority
			}
			return ms[i].ID < ms[j].ID
		})
	}
	s.policies = append(s.policies, c.Policies...)
	sort.SliceStable(s.policies, func(i, j int) bool {
		if s.policies[i].Priority != s.policies[j].Priority {
			return s.policies[i].Priority > s.policies[j].Priority
		}
		return s.policies[i].ID < s.policies[j].ID
	})
	for _, m := range c.EntityMaps {
		s.entityMaps[m.MetricID] = append(s.entityMaps[m.MetricID], m)
	}
	for _, t := range c.Terms {
		if t.Status == "" || t.Status == types.ObjectStatusActive {
			s.terms = append(s.terms, t)
		}
	}
	return s, nil
}

func (s *CatalogStore) ListActiveObjects(context.Context) ([]types.MetricObject, error) {
	var out []types.MetricObject
	for _, o := range s.objects {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *CatalogStore) GetObjectByID(_ context.Context, id int64) (types.MetricObject, bool, error) {
	o, ok := s.objectByID[id]
	return o, ok, nil
}

func (s *CatalogStore) GetObjectByName(_ context.Context, name string) (types.MetricObject, bool, error) {
	for _, o := range s.objects {
		if strings.EqualFold(o.Name, name) {
			return o, true, nil
		}
	}
	return types.MetricObject{}, false, nil
}

func (s *CatalogStore) ListVersionsForObject(_ context.Context, objectID int64) ([]types.MetricVersion, error) {
	return append([]types.MetricVersion(nil), s.versions[objectID]...), nil
}

func (s *CatalogStore) GetLogicalDefinition(_ context.Context, versionID int64) (types.LogicalDefinition, bool, error) {
	d, ok := s.logic[versionID]
	return d, ok, nil
}

func (s *CatalogStore) ListPhysicalMappings(_ context.Context, logicalDefinitionID int64, engineType string) ([]types.PhysicalMapping, error) {
	var out []types.PhysicalMapping
	for _, m := range s.mappings[logicalDefinitionID] {
		if engineType == "" || strings.EqualFold(m.EngineType, engineType) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *CatalogStore) ListMetricEntityMaps(_ context.Context, metricID int64) ([]types.MetricEntityMap, error) {
	return append([]types.MetricEntityMap(nil), s.entityMaps[metricID]...), nil
}

func (s *CatalogStore) FindTermsInText(_ context.Context, text string) ([]types.TermEntry, error) {
	var out []types.TermEntry
	for _, t := range s.terms {
		if t.Term != "" && strings.Contains(text, t.Term) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *CatalogStore) ListApplicablePolicies(_ context.Context, objectID int64, role string, action string) ([]types.AccessPolicy, error) {
	var out []types.AccessPolicy
	for _, p := range s.policies {
		if p.AppliesTo(objectID, role, action) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CatalogStore) ListPoliciesForRole(_ context.Context, role string) ([]types.PolicySummary, error) {
	out := []types.PolicySummary{}
	for _, p := range s.policies {
		if role != "" && p.Role != role && p.Role != types.PolicyWildcard {
			continue
		}
		out = append(out, types.PolicySummary{
			ID:         p.ID,
			ObjectID:   p.ObjectID,
			ObjectName: s.objectByID[p.ObjectID].Name,
			Role:       p.Role,
			Action:     p.Action,
			Effect:     p.Effect,
			Priority:   p.Priority,
			Condition:  p.Condition,
		})
	}
	return out, nil
}
