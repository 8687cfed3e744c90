package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

type ExecutionResult struct {
	Success   bool        `json:"success"`
	Data      []types.Row `json:"data"`
	RowCount  int         `json:"row_count"`
	LatencyMS int64       `json:"latency_ms"`
	Error     string      `json:"error,omitempty"`
}

// ExecutionAdapter turns a logical definition into a concrete query through
// its physical mappings and runs it through the injected executor.
type ExecutionAdapter struct {
	store    ports.MetadataStore
	executor ports.QueryExecutor
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewExecutionAdapter(store ports.MetadataStore, executor ports.QueryExecutor, metrics *Metrics, logger *slog.Logger) *ExecutionAdapter {
	return &ExecutionAdapter{store: store, executor: executor, metrics: metrics, logger: orDiscard(logger), now: time.Now}
}

// ResolveMapping returns the highest-priority mapping for the definition; an
// empty engineType matches every engine. Equal priorities fall back to the
// lowest mapping id.
func (a *ExecutionAdapter) ResolveMapping(ctx context.Context, logicalDefinitionID int64, engineType string) (types.PhysicalMapping, error) {
	mappings, err := a.store.ListPhysicalMappings(ctx, logicalDefinitionID, engineType)
	if err != nil {
		return types.PhysicalMapping{}, err
	}
	var candidates []types.PhysicalMapping
	for _, m := range mappings {
		if engineType == "" || strings.EqualFold(m.EngineType, engineType) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		if engineType == "" {
			return types.PhysicalMapping{}, types.NewNotFound("no physical mapping found for logical_definition_id=%d", logicalDefinitionID)
		}
		return types.PhysicalMapping{}, types.NewNotFound("no physical mapping found for logical_definition_id=%d engine=%s", logicalDefinitionID, engineType)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0], nil
}

// MissingParameters lists, sorted, every parameter-schema key absent from params.
func MissingParameters(mapping types.PhysicalMapping, params map[string]any) []string {
	var missing []string
	for key := range mapping.ParamsSchema {
		if _, ok := params[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Render validates the parameter schema before touching the template, then
// executes the template with missing keys treated as errors.
func (a *ExecutionAdapter) Render(mapping types.PhysicalMapping, params map[string]any) (string, error) {
	if missing := MissingParameters(mapping, params); len(missing) > 0 {
		return "", types.NewMissingParameters(missing)
	}

	tmpl, err := parseQueryTemplate(mapping)
	if err != nil {
		return "", types.NewValidation("query template for mapping %d is invalid: %v", mapping.ID, err)
	}
	data := params
	if data == nil {
		data = map[string]any{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", types.NewValidation("query template for mapping %d failed to render: %v", mapping.ID, err)
	}
	query := buf.String()
	a.logger.Debug("rendered query", "mapping_id", mapping.ID, "query", collapseWhitespace(query))
	return query, nil
}

func parseQueryTemplate(mapping types.PhysicalMapping) (*template.Template, error) {
	return template.New(fmt.Sprintf("mapping_%d", mapping.ID)).
		Option("missingkey=error").
		Funcs(templateFuncs).
		Parse(mapping.QueryTemplate)
}

// ValidateQueryTemplate parses the mapping template without rendering it.
func ValidateQueryTemplate(mapping types.PhysicalMapping) error {
	if _, err := parseQueryTemplate(mapping); err != nil {
		return types.NewValidation("query template for mapping %d is invalid: %v", mapping.ID, err)
	}
	return nil
}

// Execute wraps exactly one executor call. Downstream failures, including
// panics, are captured in the result and never returned as errors.
func (a *ExecutionAdapter) Execute(ctx context.Context, query string, connectionRef string, params map[string]any) ExecutionResult {
	return a.execute(ctx, query, connectionRef, params, "")
}

func (a *ExecutionAdapter) execute(ctx context.Context, query string, connectionRef string, params map[string]any, engine string) (res ExecutionResult) {
	start := a.now()
	defer func() {
		if rec := recover(); rec != nil {
			res = ExecutionResult{Success: false, Error: fmt.Sprintf("executor panic: %v", rec)}
		}
		elapsed := a.now().Sub(start)
		res.LatencyMS = elapsed.Milliseconds()
		a.metrics.observeExecution(engine, res.Success, elapsed)
		if res.Success {
			a.logger.Info("query executed", "connection_ref", connectionRef, "row_count", res.RowCount, "latency_ms", res.LatencyMS)
		} else {
			a.logger.Warn("query execution failed", "connection_ref", connectionRef, "error", res.Error)
		}
	}()

	rows, err := a.executor.Execute(ctx, query, connectionRef, params)
	if err != nil {
		return ExecutionResult{Success: false, Error: err.Error()}
	}
	if rows == nil {
		rows = []types.Row{}
	}
	return ExecutionResult{Success: true, Data: rows, RowCount: len(rows)}
}

var templateFuncs = template.FuncMap{
	"quote": sqlQuote,
	"join":  joinList,
}

// sqlQuote renders v as a single-quoted SQL literal; numbers and booleans
// are left bare.
func sqlQuote(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(t)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprint(t), "'", "''") + "'"
	}
}

func joinList(v any) string {
	switch t := v.(type) {
	case []string:
		parts := make([]string, 0, len(t))
		for _, s := range t {
			parts = append(parts, sqlQuote(s))
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, s := range t {
			parts = append(parts, sqlQuote(s))
		}
		return strings.Join(parts, ", ")
	default:
		return sqlQuote(v)
	}
}
