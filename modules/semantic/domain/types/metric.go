package types

import (
	"strings"
	"time"
)

const ObjectStatusActive = "active"

type MetricObject struct {
	ID          int64    `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Aliases     []string `json:"aliases" yaml:"aliases"`
	Domain      string   `json:"domain" yaml:"domain"`
	Status      string   `json:"status" yaml:"status"`
}

func (o MetricObject) IsActive() bool {
	return o.Status == "" || o.Status == ObjectStatusActive
}

// MetricVersion is one competing definition of a metric object. A nil
// ScenarioCondition marks the default version.
type MetricVersion struct {
	ID                int64      `json:"id" yaml:"id"`
	ObjectID          int64      `json:"object_id" yaml:"object_id"`
	VersionName       string     `json:"version_name" yaml:"version_name"`
	EffectiveFrom     time.Time  `json:"effective_from" yaml:"effective_from"`
	EffectiveTo       *time.Time `json:"effective_to,omitempty" yaml:"effective_to"`
	ScenarioCondition Conditions `json:"scenario_condition,omitempty" yaml:"scenario_condition"`
	Active            bool       `json:"active" yaml:"active"`
	Priority          int        `json:"priority" yaml:"priority"`
	Description       string     `json:"description" yaml:"description"`
}

// IsEffective reports active && effective_from <= at <= effective_to (open ended when unset).
func (v MetricVersion) IsEffective(at time.Time) bool {
	if !v.Active {
		return false
	}
	if at.Before(v.EffectiveFrom) {
		return false
	}
	if v.EffectiveTo != nil && at.After(*v.EffectiveTo) {
		return false
	}
	return true
}

// MatchesScenario is true for the default version, otherwise every condition
// key must be present in the scenario with an equal value.
func (v MetricVersion) MatchesScenario(scenario Conditions) bool {
	if len(v.ScenarioCondition) == 0 {
		return true
	}
	if scenario == nil {
		return false
	}
	return v.ScenarioCondition.SatisfiedBy(scenario)
}

type LogicalDefinition struct {
	ID          int64    `json:"id" yaml:"id"`
	VersionID   int64    `json:"version_id" yaml:"version_id"`
	Expression  string   `json:"expression" yaml:"expression"`
	Grain       []string `json:"grain" yaml:"grain"`
	Description string   `json:"description" yaml:"description"`
	Variables   []string `json:"variables" yaml:"variables"`
}

func (d LogicalDefinition) GrainString() string {
	return strings.Join(d.Grain, ",")
}

type PhysicalMapping struct {
	ID                  int64             `json:"id" yaml:"id"`
	LogicalDefinitionID int64             `json:"logical_definition_id" yaml:"logical_definition_id"`
	EngineType          string            `json:"engine_type" yaml:"engine_type"`
	ConnectionRef       string            `json:"connection_ref" yaml:"connection_ref"`
	QueryTemplate       string            `json:"query_template" yaml:"query_template"`
	ParamsSchema        map[string]string `json:"params_schema,omitempty" yaml:"params_schema"`
	Priority            int               `json:"priority" yaml:"priority"`
	Description         string            `json:"description" yaml:"description"`
}

type TermEntry struct {
	ID             int64  `json:"id" yaml:"id"`
	Term           string `json:"term" yaml:"term"`
	NormalizedTerm string `json:"normalized_term" yaml:"normalized_term"`
	ObjectType     string `json:"object_type" yaml:"object_type"`
	ObjectID       int64  `json:"object_id" yaml:"object_id"`
	Language       string `json:"language" yaml:"language"`
	Status         string `json:"status" yaml:"status"`
}

// MetricEntityMap declares which dimensions a metric may be sliced by.
type MetricEntityMap struct {
	MetricID            int64    `json:"metric_id" yaml:"metric_id"`
	EntityID            int64    `json:"entity_id" yaml:"entity_id"`
	GrainLevel          string   `json:"grain_level" yaml:"grain_level"`
	AllowedDimensions   []string `json:"allowed_dimensions" yaml:"allowed_dimensions"`
	ForbiddenDimensions []string `json:"forbidden_dimensions" yaml:"forbidden_dimensions"`
}

type GrainStatus string

const (
	GrainPass GrainStatus = "PASS"
	GrainWarn GrainStatus = "WARN"
	GrainFail GrainStatus = "FAIL"
)

type GrainValidation struct {
	Status      GrainStatus    `json:"status"`
	Reason      string         `json:"reason"`
	Action      string         `json:"action"`
	Suggestions map[string]any `json:"suggestions,omitempty"`
}

func (g GrainValidation) TraceData() TraceData {
	d := TraceData{
		"status": string(g.Status),
		"reason": g.Reason,
		"action": g.Action,
	}
	if len(g.Suggestions) > 0 {
		d["suggestions"] = g.Suggestions
	}
	return d
}
