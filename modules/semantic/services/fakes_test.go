package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

var testNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeStore struct {
	objects  []types.MetricObject
	versions []types.MetricVersion
	logic    []types.LogicalDefinition
	mappings []types.PhysicalMapping
	maps     []types.MetricEntityMap
	terms    []types.TermEntry
	policies []types.AccessPolicy

	listObjectsErr error
	versionsErr    error
	policiesErr    error
	termsErr       error
	mappingsErr    error
}

func (s *fakeStore) ListActiveObjects(context.Context) ([]types.MetricObject, error) {
	if s.listObjectsErr != nil {
		return nil, s.listObjectsErr
	}
	var out []types.MetricObject
	for _, o := range s.objects {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) GetObjectByID(_ context.Context, id int64) (types.MetricObject, bool, error) {
	for _, o := range s.objects {
		if o.ID == id {
			return o, true, nil
		}
	}
	return types.MetricObject{}, false, nil
}

func (s *fakeStore) GetObjectByName(_ context.Context, name string) (types.MetricObject, bool, error) {
	for _, o := range s.objects {
		if o.Name == name {
			return o, true, nil
		}
	}
	return types.MetricObject{}, false, nil
}

func (s *fakeStore) ListVersionsForObject(_ context.Context, objectID int64) ([]types.MetricVersion, error) {
	if s.versionsErr != nil {
		return nil, s.versionsErr
	}
	var out []types.MetricVersion
	for _, v := range s.versions {
		if v.ObjectID == objectID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) GetLogicalDefinition(_ context.Context, versionID int64) (types.LogicalDefinition, bool, error) {
	for _, d := range s.logic {
		if d.VersionID == versionID {
			return d, true, nil
		}
	}
	return types.LogicalDefinition{}, false, nil
}

func (s *fakeStore) ListPhysicalMappings(_ context.Context, ldID int64, engineType string) ([]types.PhysicalMapping, error) {
	if s.mappingsErr != nil {
		return nil, s.mappingsErr
	}
	var out []types.PhysicalMapping
	for _, m := range s.mappings {
		if m.LogicalDefinitionID != ldID {
			continue
		}
		if engineType != "" && !strings.EqualFold(m.EngineType, engineType) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *fakeStore) ListMetricEntityMaps(_ context.Context, metricID int64) ([]types.MetricEntityMap, error) {
	var out []types.MetricEntityMap
	for _, m := range s.maps {
		if m.MetricID == metricID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) FindTermsInText(_ context.Context, text string) ([]types.TermEntry, error) {
	if s.termsErr != nil {
		return nil, s.termsErr
	}
	var out []types.TermEntry
	for _, t := range s.terms {
		if strings.Contains(text, t.Term) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) ListApplicablePolicies(_ context.Context, objectID int64, role string, action string) ([]types.AccessPolicy, error) {
	if s.policiesErr != nil {
		return nil, s.policiesErr
	}
	var out []types.AccessPolicy
	for _, p := range s.policies {
		if p.AppliesTo(objectID, role, action) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *fakeStore) ListPoliciesForRole(_ context.Context, role string) ([]types.PolicySummary, error) {
	var out []types.PolicySummary
	for _, p := range s.policies {
		if p.Role != role && p.Role != types.PolicyWildcard {
			continue
		}
		name := ""
		for _, o := range s.objects {
			if o.ID == p.ObjectID {
				name = o.Name
			}
		}
		out = append(out, types.PolicySummary{ID: p.ID, ObjectID: p.ObjectID, ObjectName: name, Role: p.Role, Action: p.Action, Effect: p.Effect, Priority: p.Priority, Condition: p.Condition})
	}
	return out, nil
}

type fakeAudits struct {
	mu      sync.Mutex
	rows    map[string]types.ExecutionAudit
	order   []string
	saveErr error
	loadErr error
}

func newFakeAudits() *fakeAudits {
	return &fakeAudits{rows: map[string]types.ExecutionAudit{}}
}

func (a *fakeAudits) SaveAudit(_ context.Context, audit types.ExecutionAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saveErr != nil {
		return a.saveErr
	}
	if _, ok := a.rows[audit.AuditID]; ok {
		return ports.ErrAuditExists
	}
	a.rows[audit.AuditID] = audit
	a.order = append(a.order, audit.AuditID)
	return nil
}

func (a *fakeAudits) LoadAudit(_ context.Context, id string) (types.ExecutionAudit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return types.ExecutionAudit{}, a.loadErr
	}
	row, ok := a.rows[id]
	if !ok {
		return types.ExecutionAudit{}, ports.ErrAuditNotFound
	}
	return row, nil
}

func (a *fakeAudits) ListAuditHistory(_ context.Context, limit int, userID string) ([]types.AuditSummary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []types.AuditSummary
	for i := len(a.order) - 1; i >= 0 && len(out) < limit; i-- {
		row := a.rows[a.order[i]]
		if userID != "" && row.Context.UserID != userID {
			continue
		}
		out = append(out, row.Summary())
	}
	return out, nil
}

func (a *fakeAudits) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

type executorCall struct {
	query  string
	conn   string
	params map[string]any
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []executorCall
	fn    func(query string) ([]types.Row, error)
}

func (e *fakeExecutor) Execute(_ context.Context, query string, connectionRef string, params map[string]any) ([]types.Row, error) {
	e.mu.Lock()
	e.calls = append(e.calls, executorCall{query: query, conn: connectionRef, params: params})
	e.mu.Unlock()
	if e.fn != nil {
		return e.fn(query)
	}
	return []types.Row{{"line": "A", "fpy": 0.97}}, nil
}

type grainValidatorFunc func(ctx context.Context, metricID int64, params map[string]any, grain []string) (types.GrainValidation, error)

func (f grainValidatorFunc) Validate(ctx context.Context, metricID int64, params map[string]any, grain []string) (types.GrainValidation, error) {
	return f(ctx, metricID, params, grain)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func timePtr(t time.Time) *time.Time { return &t }

const fpyTemplate = "SELECT line, fpy FROM fpy_daily WHERE line = {{quote .line}} AND day BETWEEN {{quote .start_date}} AND {{quote .end_date}}"

// newManufacturingStore returns a small catalog: FPY with a default and a
// rework version, Output with no policies, and GrossMargin with regional
// versions.
func newManufacturingStore() *fakeStore {
	from := mustTime("2024-01-01T00:00:00Z")
	fpySchema := map[string]string{"line": "string", "start_date": "date", "end_date": "date"}
	return &fakeStore{
		objects: []types.MetricObject{
			{ID: 1, Name: "FPY", Description: "First pass yield of a production line", Aliases: []string{"一次合格率", "first pass yield"}, Domain: "manufacturing", Status: "active"},
			{ID: 2, Name: "Output", Description: "Units produced per shift", Aliases: []string{"产量"}, Domain: "manufacturing", Status: "active"},
			{ID: 3, Name: "GrossMargin", Description: "Revenue minus cost of goods sold", Aliases: []string{"毛利率"}, Domain: "finance", Status: "active"},
			{ID: 4, Name: "Scrap", Description: "Retired scrap metric", Status: "deprecated"},
		},
		versions: []types.MetricVersion{
			{ID: 10, ObjectID: 1, VersionName: "Std", EffectiveFrom: from, Active: true, Priority: 0},
			{ID: 11, ObjectID: 1, VersionName: "Rework", EffectiveFrom: from, Active: true, Priority: 0, ScenarioCondition: types.Conditions{"rework": true}},
			{ID: 20, ObjectID: 2, VersionName: "Output-Std", EffectiveFrom: from, Active: true},
			{ID: 30, ObjectID: 3, VersionName: "US-Corp", EffectiveFrom: from, Active: true, Priority: 5, ScenarioCondition: types.Conditions{"region": "US"}},
			{ID: 31, ObjectID: 3, VersionName: "US-Tax", EffectiveFrom: from, Active: true, Priority: 10, ScenarioCondition: types.Conditions{"region": "US"}},
			{ID: 32, ObjectID: 3, VersionName: "EU-A", EffectiveFrom: from, Active: true, Priority: 5, ScenarioCondition: types.Conditions{"region": "EU"}},
			{ID: 33, ObjectID: 3, VersionName: "EU-B", EffectiveFrom: from, Active: true, Priority: 5, ScenarioCondition: types.Conditions{"region": "EU"}},
		},
		logic: []types.LogicalDefinition{
			{ID: 100, VersionID: 10, Expression: "passed_first_time / total_units", Grain: []string{"line", "day"}, Variables: []string{"passed_first_time", "total_units"}},
			{ID: 101, VersionID: 11, Expression: "(passed_first_time + reworked_pass) / total_units", Grain: []string{"line", "day"}},
			{ID: 200, VersionID: 20, Expression: "sum(units)", Grain: []string{"line", "day"}},
			{ID: 301, VersionID: 31, Expression: "{{ metric:Revenue }} - {{ metric:COGS }}", Grain: []string{"month"}},
		},
		mappings: []types.PhysicalMapping{
			{ID: 1000, LogicalDefinitionID: 100, EngineType: "sqlite", ConnectionRef: "mfg", QueryTemplate: fpyTemplate, ParamsSchema: fpySchema, Priority: 1},
			{ID: 1001, LogicalDefinitionID: 100, EngineType: "postgres", ConnectionRef: "warehouse", QueryTemplate: "SELECT 1", Priority: 9},
			{ID: 1010, LogicalDefinitionID: 101, EngineType: "sqlite", ConnectionRef: "mfg", QueryTemplate: "SELECT line, fpy_rework FROM fpy_daily WHERE line = {{quote .line}}", ParamsSchema: map[string]string{"line": "string"}},
			{ID: 2000, LogicalDefinitionID: 200, EngineType: "sqlite", ConnectionRef: "mfg", QueryTemplate: "SELECT sum(units) AS units FROM output"},
			{ID: 3010, LogicalDefinitionID: 301, EngineType: "sqlite", ConnectionRef: "fin", QueryTemplate: "SELECT region, margin FROM margin WHERE region = {{quote .scenario.region}}"},
		},
		policies: []types.AccessPolicy{
			{ID: 1, ObjectID: 1, Role: "operator", Action: types.ActionQuery, Effect: types.EffectAllow, Priority: 10},
			{ID: 2, ObjectID: 1, Role: "anonymous", Action: types.ActionQuery, Effect: types.EffectDeny, Priority: 20},
			{ID: 3, ObjectID: 3, Role: "*", Action: types.ActionQuery, Effect: types.EffectAllow, Priority: 1},
		},
	}
}

type testHarness struct {
	store    *fakeStore
	audits   *fakeAudits
	executor *fakeExecutor
	orch     *Orchestrator
}

func newHarness(opts ...func(*OrchestratorOptions)) testHarness {
	h := testHarness{store: newManufacturingStore(), audits: newFakeAudits(), executor: &fakeExecutor{}}
	var seq int
	o := OrchestratorOptions{
		Metadata: h.store,
		Policies: h.store,
		Audits:   h.audits,
		Executor: h.executor,
		Now:      func() time.Time { return testNow },
		NewAuditID: func(now time.Time) (string, error) {
			seq++
			return fmt.Sprintf("%s_%08d", now.UTC().Format("20060102_150405"), seq), nil
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	orch, err := NewOrchestrator(o)
	if err != nil {
		panic(err)
	}
	h.orch = orch
	return h
}

func operator() types.ExecutionContext {
	return types.ExecutionContext{UserID: "u-ops", Role: "operator", Timestamp: testNow}
}

var errBoom = errors.New("boom")
