package types

import (
	"reflect"
	"time"
)

type QueryStatus string

const (
	StatusSuccess QueryStatus = "success"
	StatusPreview QueryStatus = "preview"
	StatusDenied  QueryStatus = "denied"
	StatusError   QueryStatus = "error"
)

type Row = map[string]any

type ExecutionContext struct {
	UserID     string         `json:"user_id"`
	Role       string         `json:"role"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type TraceData map[string]any

type TraceStep struct {
	Step      string    `json:"step"`
	Timestamp time.Time `json:"timestamp"`
	Data      TraceData `json:"data"`
}

// ExecutionAudit is written once per pipeline invocation. Zero ids mean the
// stage that would have produced them never completed.
type ExecutionAudit struct {
	AuditID             string           `json:"audit_id"`
	Question            string           `json:"question"`
	ObjectID            int64            `json:"object_id,omitempty"`
	ObjectName          string           `json:"object_name,omitempty"`
	VersionID           int64            `json:"version_id,omitempty"`
	VersionName         string           `json:"version_name,omitempty"`
	LogicalDefinitionID int64            `json:"logical_definition_id,omitempty"`
	LogicalExpression   string           `json:"logical_expression,omitempty"`
	PhysicalMappingID   int64            `json:"physical_mapping_id,omitempty"`
	EngineType          string           `json:"engine_type,omitempty"`
	ConnectionRef       string           `json:"connection_ref,omitempty"`
	FinalQuery          string           `json:"final_query,omitempty"`
	DecisionTrace       []TraceStep      `json:"decision_trace"`
	RequestParams       map[string]any   `json:"request_params,omitempty"`
	Context             ExecutionContext `json:"execution_context"`
	PolicyDecision      *PolicyDecision  `json:"policy_decision,omitempty"`
	ExecutedAt          time.Time        `json:"executed_at"`
	Status              QueryStatus      `json:"status"`
	RowCount            int              `json:"row_count"`
	LatencyMS           int64            `json:"latency_ms"`
	ErrorKind           ErrorKind        `json:"error_kind,omitempty"`
	ErrorMessage        string           `json:"error_message,omitempty"`
	ReplayOf            string           `json:"replay_of,omitempty"`
}

func (a ExecutionAudit) Summary() AuditSummary {
	return AuditSummary{
		AuditID:      a.AuditID,
		Question:     a.Question,
		ObjectName:   a.ObjectName,
		VersionName:  a.VersionName,
		UserID:       a.Context.UserID,
		UserRole:     a.Context.Role,
		Status:       a.Status,
		RowCount:     a.RowCount,
		LatencyMS:    a.LatencyMS,
		ExecutedAt:   a.ExecutedAt,
		ErrorMessage: a.ErrorMessage,
		ReplayOf:     a.ReplayOf,
	}
}

type AuditSummary struct {
	AuditID      string      `json:"audit_id"`
	Question     string      `json:"question"`
	ObjectName   string      `json:"object_name,omitempty"`
	VersionName  string      `json:"version_name,omitempty"`
	UserID       string      `json:"user_id"`
	UserRole     string      `json:"user_role"`
	Status       QueryStatus `json:"status"`
	RowCount     int         `json:"row_count"`
	LatencyMS    int64       `json:"latency_ms"`
	ExecutedAt   time.Time   `json:"executed_at"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ReplayOf     string      `json:"replay_of,omitempty"`
}

type ObjectSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Domain      string   `json:"domain"`
	Aliases     []string `json:"aliases"`
}

// Clone returns a copy of the audit that shares no maps or slices with a.
func (a ExecutionAudit) Clone() ExecutionAudit {
	out := a
	out.RequestParams = CloneParams(a.RequestParams)
	out.Context.Parameters = CloneParams(a.Context.Parameters)
	if a.DecisionTrace != nil {
		out.DecisionTrace = make([]TraceStep, len(a.DecisionTrace))
		for i, step := range a.DecisionTrace {
			step.Data = TraceData(CloneParams(step.Data))
			out.DecisionTrace[i] = step
		}
	}
	if a.PolicyDecision != nil {
		d := *a.PolicyDecision
		d.Matched = append([]int64(nil), a.PolicyDecision.Matched...)
		out.PolicyDecision = &d
	}
	return out
}

// CloneParams deep-copies nested maps and slices; scalars are shared.
func CloneParams(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneParams(t)
	case TraceData:
		return TraceData(CloneParams(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i := range t {
			out[i] = CloneParams(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice || rv.IsNil() {
			return v
		}
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	}
}
