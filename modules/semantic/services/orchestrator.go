package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
	"github.com/jacksonlee411/semantic-layer/pkg/auditid"
	"github.com/jacksonlee411/semantic-layer/pkg/metricref"
)

const (
	modeQuery   = "query"
	modePreview = "preview"
	modeReplay  = "replay"

	scenarioParam  = "scenario"
	maxHistorySize = 500
)

type OrchestratorOptions struct {
	Metadata ports.MetadataStore
	Policies ports.PolicyStore
	Audits   ports.AuditStore
	Executor ports.QueryExecutor
	// Grain defaults to DimensionGrainValidator over Metadata.
	Grain   ports.GrainValidator
	Config  Config
	Phrases []Phrase
	Metrics *Metrics
	Logger  *slog.Logger

	Now        func() time.Time
	NewAuditID func(now time.Time) (string, error)
}

// Orchestrator sequences resolution, policy, rendering, execution and audit.
// Collaborators are wired once at construction and never mutated after.
type Orchestrator struct {
	metadata ports.MetadataStore
	policies ports.PolicyStore
	audits   ports.AuditStore
	grain    ports.GrainValidator

	resolver  *SemanticResolver
	matcher   ScenarioMatcher
	policy    *PolicyEngine
	execution *ExecutionAdapter

	config     Config
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	newAuditID func(now time.Time) (string, error)
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	switch {
	case opts.Metadata == nil:
		return nil, errors.New("orchestrator: missing metadata store")
	case opts.Policies == nil:
		return nil, errors.New("orchestrator: missing policy store")
	case opts.Audits == nil:
		return nil, errors.New("orchestrator: missing audit store")
	case opts.Executor == nil:
		return nil, errors.New("orchestrator: missing query executor")
	}
	logger := orDiscard(opts.Logger)
	grain := opts.Grain
	if grain == nil {
		grain = NewDimensionGrainValidator(opts.Metadata)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewAuditID
	if newID == nil {
		newID = auditid.New
	}
	execution := NewExecutionAdapter(opts.Metadata, opts.Executor, opts.Metrics, logger)
	execution.now = now
	return &Orchestrator{
		metadata:   opts.Metadata,
		policies:   opts.Policies,
		audits:     opts.Audits,
		grain:      grain,
		resolver:   NewSemanticResolver(opts.Metadata, opts.Phrases, logger),
		policy:     NewPolicyEngine(opts.Policies, logger),
		execution:  execution,
		config:     opts.Config,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        now,
		newAuditID: newID,
	}, nil
}

type QueryResult struct {
	AuditID       string            `json:"audit_id"`
	Status        types.QueryStatus `json:"status"`
	ObjectName    string            `json:"semantic_object,omitempty"`
	VersionName   string            `json:"version,omitempty"`
	Logic         string            `json:"logic,omitempty"`
	Query         string            `json:"query,omitempty"`
	Data          []types.Row       `json:"data,omitempty"`
	RowCount      int               `json:"row_count"`
	LatencyMS     int64             `json:"latency_ms"`
	DecisionTrace []types.TraceStep `json:"decision_trace"`
	ErrorKind     types.ErrorKind   `json:"error_kind,omitempty"`
	Error         string            `json:"error,omitempty"`
	Candidates    []types.Candidate `json:"candidates,omitempty"`
	MissingParams []string          `json:"missing_params,omitempty"`
	AuditError    string            `json:"audit_error,omitempty"`
}

// pipelineRun is the per-call state; nothing in it outlives one call.
type pipelineRun struct {
	audit types.ExecutionAudit
	trace *traceRecorder
	stage string
}

// Query runs the full pipeline. Every outcome, except a successful preview,
// writes exactly one audit row; failures come back as a structured result,
// never as an error.
func (o *Orchestrator) Query(ctx context.Context, question string, params map[string]any, ec types.ExecutionContext, previewOnly bool) (res QueryResult) {
	started := o.now()
	if ec.Timestamp.IsZero() {
		ec.Timestamp = started
	}
	params = types.CloneParams(params)
	if params == nil {
		params = map[string]any{}
	}
	if ec.Parameters == nil {
		ec.Parameters = params
	} else {
		ec.Parameters = types.CloneParams(ec.Parameters)
	}

	run := &pipelineRun{
		trace: &traceRecorder{now: o.now},
		audit: types.ExecutionAudit{
			Question:      question,
			RequestParams: params,
			Context:       ec,
		},
	}
	mode := modeQuery
	if previewOnly {
		mode = modePreview
	}

	id, err := o.newAuditID(started)
	if err != nil {
		o.logger.Error("audit id generation failed", "error", err)
		id = fmt.Sprintf("%s_fallback", started.UTC().Format("20060102_150405.000000000"))
	}
	run.audit.AuditID = id
	logger := o.logger.With("audit_id", id)
	logger.Info("semantic query", "question", question, "role", ec.Role, "preview", previewOnly)

	defer func() {
		if rec := recover(); rec != nil {
			run.stage = firstNonEmpty(run.stage, "unknown")
			res = o.fail(ctx, run, fmt.Errorf("unexpected failure: %v", rec))
		}
		o.metrics.observeCall(mode, res.Status)
	}()

	if err := o.runPipeline(ctx, run, question, params, ec); err != nil {
		return o.fail(ctx, run, err)
	}

	if previewOnly {
		run.trace.add(StagePreview+"_complete", types.TraceData{"preview": true, "query": run.audit.FinalQuery})
		logger.Info("preview complete", "query", collapseWhitespace(run.audit.FinalQuery))
		return QueryResult{
			AuditID:       id,
			Status:        types.StatusPreview,
			ObjectName:    run.audit.ObjectName,
			VersionName:   run.audit.VersionName,
			Logic:         run.audit.LogicalExpression,
			Query:         run.audit.FinalQuery,
			DecisionTrace: run.trace.snapshot(),
		}
	}

	run.stage = StageExecute
	run.trace.add(StageExecute+"_start", types.TraceData{
		"query":          run.audit.FinalQuery,
		"connection_ref": run.audit.ConnectionRef,
		"engine_type":    run.audit.EngineType,
	})
	exec := o.execution.execute(ctx, run.audit.FinalQuery, run.audit.ConnectionRef, params, run.audit.EngineType)
	run.trace.add(StageExecute+"_complete", executionTraceData(exec))

	run.audit.RowCount = exec.RowCount
	run.audit.LatencyMS = exec.LatencyMS
	run.audit.Status = types.StatusSuccess
	if !exec.Success {
		run.audit.Status = types.StatusError
		run.audit.ErrorKind = types.KindExecutionFailure
		run.audit.ErrorMessage = exec.Error
		o.metrics.observeStageFailure(StageExecute, types.KindExecutionFailure)
	}

	res = QueryResult{
		AuditID:     id,
		Status:      run.audit.Status,
		ObjectName:  run.audit.ObjectName,
		VersionName: run.audit.VersionName,
		Logic:       run.audit.LogicalExpression,
		Query:       run.audit.FinalQuery,
		Data:        exec.Data,
		RowCount:    exec.RowCount,
		LatencyMS:   exec.LatencyMS,
		ErrorKind:   run.audit.ErrorKind,
		Error:       run.audit.ErrorMessage,
	}
	res.AuditError = o.persist(ctx, run)
	res.AuditID = run.audit.AuditID
	res.DecisionTrace = run.audit.DecisionTrace
	logger.Info("semantic query complete", "status", res.Status, "row_count", res.RowCount, "latency_ms", res.LatencyMS)
	return res
}

// Preview runs every stage through render and returns the rendered query
// without executing or persisting it.
func (o *Orchestrator) Preview(ctx context.Context, question string, params map[string]any, ec types.ExecutionContext) QueryResult {
	return o.Query(ctx, question, params, ec, true)
}

func (o *Orchestrator) runPipeline(ctx context.Context, run *pipelineRun, question string, params map[string]any, ec types.ExecutionContext) error {
	var (
		object  types.MetricObject
		version types.MetricVersion
		logic   types.LogicalDefinition
		mapping types.PhysicalMapping
	)

	err := o.stage(run, StageResolveObject, types.TraceData{"question": question}, func() (types.TraceData, error) {
		resolution, err := o.resolver.ResolveObject(ctx, question)
		if err != nil {
			return types.TraceData{"keywords": resolution.Keywords}, err
		}
		object = resolution.Object
		run.audit.ObjectID = object.ID
		run.audit.ObjectName = object.Name
		return types.TraceData{
			"object_id":   object.ID,
			"object_name": object.Name,
			"domain":      object.Domain,
			"aliases":     object.Aliases,
			"keywords":    resolution.Keywords,
			"candidates":  resolution.Candidates,
			"reason":      fmt.Sprintf("matched metric object %q (domain: %s)", object.Name, object.Domain),
		}, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(run, StageResolveVersion, types.TraceData{
		"object_id": object.ID,
		"scenario":  params[scenarioParam],
		"timestamp": ec.Timestamp.UTC(),
	}, func() (types.TraceData, error) {
		scenario, err := scenarioFromParams(params)
		if err != nil {
			return nil, err
		}
		versions, err := o.metadata.ListVersionsForObject(ctx, object.ID)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, types.NewNotFound("no versions found for object_id=%d", object.ID)
		}
		selection, err := o.matcher.Select(versions, scenario, ec.Timestamp)
		if err != nil {
			return types.TraceData{"evaluations": selection.Evaluations}, err
		}
		version = selection.Selected
		run.audit.VersionID = version.ID
		run.audit.VersionName = version.VersionName
		return types.TraceData{
			"version_id":         version.ID,
			"version_name":       version.VersionName,
			"scenario_condition": version.ScenarioCondition,
			"priority":           version.Priority,
			"selected_by":        selection.SelectedBy,
			"evaluations":        selection.Evaluations,
		}, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(run, StageResolveLogic, types.TraceData{"version_id": version.ID}, func() (types.TraceData, error) {
		def, ok, err := o.metadata.GetLogicalDefinition(ctx, version.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.NewNotFound("no logical definition found for version_id=%d", version.ID)
		}
		logic = def
		run.audit.LogicalDefinitionID = logic.ID
		run.audit.LogicalExpression = logic.Expression
		data := types.TraceData{
			"logical_definition_id": logic.ID,
			"expression":            logic.Expression,
			"grain":                 logic.Grain,
			"variables":             logic.Variables,
		}
		if refs := metricref.Extract(logic.Expression); len(refs) > 0 {
			data["metric_refs"] = refs
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(run, StageGrainValidate, types.TraceData{"object_id": object.ID, "grain": logic.Grain}, func() (types.TraceData, error) {
		validation, err := o.grain.Validate(ctx, object.ID, params, logic.Grain)
		if err != nil {
			return nil, err
		}
		if validation.Status == types.GrainFail {
			msg := validation.Reason
			if len(validation.Suggestions) > 0 {
				msg = fmt.Sprintf("%s; suggestions: %s", msg, types.Conditions(validation.Suggestions).String())
			}
			return validation.TraceData(), types.NewValidation("%s", msg)
		}
		return validation.TraceData(), nil
	})
	if err != nil {
		return err
	}

	engine := o.config.engine()
	err = o.stage(run, StageResolveMapping, types.TraceData{"logical_definition_id": logic.ID, "engine_type": engine}, func() (types.TraceData, error) {
		m, err := o.execution.ResolveMapping(ctx, logic.ID, engine)
		if err != nil {
			return nil, err
		}
		mapping = m
		run.audit.PhysicalMappingID = mapping.ID
		run.audit.EngineType = mapping.EngineType
		run.audit.ConnectionRef = mapping.ConnectionRef
		return types.TraceData{
			"physical_mapping_id": mapping.ID,
			"engine_type":         mapping.EngineType,
			"connection_ref":      mapping.ConnectionRef,
			"priority":            mapping.Priority,
		}, nil
	})
	if err != nil {
		return err
	}

	err = o.stage(run, StagePolicyCheck, types.TraceData{"object_id": object.ID, "role": ec.Role, "action": types.ActionQuery}, func() (types.TraceData, error) {
		decision, err := o.policy.CheckAccess(ctx, object.ID, ec.Role, types.ActionQuery, policyAttributes(params, ec))
		if decision.Reason != "" {
			d := decision
			run.audit.PolicyDecision = &d
		}
		data := types.TraceData{
			"allow":              decision.Allow,
			"reason":             decision.Reason,
			"matched_policy_ids": decision.Matched,
			"evaluated":          decision.Evaluated,
		}
		return data, err
	})
	if err != nil {
		return err
	}

	return o.stage(run, StageRender, types.TraceData{"physical_mapping_id": mapping.ID, "parameters": params}, func() (types.TraceData, error) {
		if missing := MissingParameters(mapping, params); len(missing) > 0 {
			return types.TraceData{"missing_params": missing}, types.NewMissingParameters(missing)
		}
		query, err := o.execution.Render(mapping, params)
		if err != nil {
			return nil, err
		}
		run.audit.FinalQuery = query
		return types.TraceData{"query": query}, nil
	})
}

// stage brackets fn with _start and _complete trace entries. On failure the
// entry is <stage>_failed and the run remembers which stage aborted.
func (o *Orchestrator) stage(run *pipelineRun, name string, in types.TraceData, fn func() (types.TraceData, error)) error {
	run.stage = name
	run.trace.add(name+"_start", in)
	out, err := fn()
	if err != nil {
		data := types.TraceData{"error": err.Error(), "kind": string(types.KindOf(err))}
		for k, v := range out {
			data[k] = v
		}
		if cands := types.CandidatesOf(err); len(cands) > 0 {
			data["candidates"] = cands
		}
		run.trace.add(name+"_failed", data)
		return err
	}
	run.trace.add(name+"_complete", out)
	o.logger.Debug("stage complete", "stage", name, "audit_id", run.audit.AuditID)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, run *pipelineRun, err error) QueryResult {
	kind := types.KindOf(err)
	status := types.StatusError
	if kind == types.KindPolicyDenied {
		status = types.StatusDenied
	}
	o.metrics.observeStageFailure(run.stage, kind)
	o.logger.Warn("semantic query aborted", "audit_id", run.audit.AuditID, "stage", run.stage, "kind", kind, "error", err)

	run.audit.Status = status
	run.audit.ErrorKind = kind
	run.audit.ErrorMessage = err.Error()
	run.audit.FinalQuery = ""

	res := QueryResult{
		AuditID:     run.audit.AuditID,
		Status:      status,
		ObjectName:  run.audit.ObjectName,
		VersionName: run.audit.VersionName,
		Logic:       run.audit.LogicalExpression,
		ErrorKind:   kind,
		Error:       err.Error(),
		Candidates:  types.CandidatesOf(err),
	}
	if se, ok := errors.AsType[*types.SemanticError](err); ok {
		res.MissingParams = se.Missing
	}
	res.AuditError = o.persist(ctx, run)
	res.AuditID = run.audit.AuditID
	res.DecisionTrace = run.audit.DecisionTrace
	return res
}

// persist appends the final trace entry and inserts the audit row. The
// returned string is empty on success.
func (o *Orchestrator) persist(ctx context.Context, run *pipelineRun) string {
	run.audit.ExecutedAt = o.now().UTC()
	run.trace.add(StagePersistAudit, types.TraceData{"audit_id": run.audit.AuditID, "status": string(run.audit.Status)})
	run.audit.DecisionTrace = run.trace.snapshot()
	err := o.audits.SaveAudit(ctx, run.audit)
	if errors.Is(err, ports.ErrAuditExists) {
		err = o.retryAuditID(ctx, run)
	}
	if err != nil {
		o.metrics.observeAuditWriteError()
		o.logger.Error("audit persist failed", "audit_id", run.audit.AuditID, "error", err)
		return err.Error()
	}
	return ""
}

// retryAuditID handles a same-second id collision: the row is saved once more
// under a fresh id, which is also patched into the final trace entry.
func (o *Orchestrator) retryAuditID(ctx context.Context, run *pipelineRun) error {
	id, err := o.newAuditID(o.now())
	if err != nil {
		return err
	}
	o.logger.Warn("audit id collision, regenerating", "audit_id", run.audit.AuditID, "new_audit_id", id)
	run.audit.AuditID = id
	if n := len(run.audit.DecisionTrace); n > 0 {
		last := run.audit.DecisionTrace[n-1]
		last.Data = types.TraceData{"audit_id": id, "status": string(run.audit.Status)}
		run.audit.DecisionTrace[n-1] = last
	}
	return o.audits.SaveAudit(ctx, run.audit)
}

type ReplayOutcome struct {
	AuditID       string            `json:"audit_id"`
	Status        types.QueryStatus `json:"status"`
	Query         string            `json:"query"`
	Data          []types.Row       `json:"data,omitempty"`
	RowCount      int               `json:"row_count"`
	LatencyMS     int64             `json:"latency_ms"`
	Error         string            `json:"error,omitempty"`
	DecisionTrace []types.TraceStep `json:"decision_trace"`
	AuditError    string            `json:"audit_error,omitempty"`
}

type ReplayResult struct {
	OriginalAuditID string                `json:"original_audit_id"`
	NewAuditID      string                `json:"new_audit_id,omitempty"`
	Original        *types.ExecutionAudit `json:"original,omitempty"`
	New             *ReplayOutcome        `json:"new,omitempty"`
	Refused         bool                  `json:"refused,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// Replay re-executes the exact query stored in a successful audit against the
// recorded connection. Resolution, scenario matching and policy checks are
// not repeated. A non-success original is refused with a structured result;
// the returned error is reserved for load failures.
func (o *Orchestrator) Replay(ctx context.Context, sourceAuditID string) (ReplayResult, error) {
	out := ReplayResult{OriginalAuditID: sourceAuditID}
	original, err := o.audits.LoadAudit(ctx, sourceAuditID)
	if err != nil {
		if errors.Is(err, ports.ErrAuditNotFound) {
			return out, types.NewNotFound("audit record not found: %s", sourceAuditID)
		}
		return out, err
	}
	out.Original = &original

	if original.Status != types.StatusSuccess {
		out.Refused = true
		out.Error = fmt.Sprintf("cannot replay query with status: %s", original.Status)
		o.logger.Warn("replay refused", "source_audit_id", sourceAuditID, "status", original.Status)
		o.metrics.observeCall(modeReplay, types.StatusDenied)
		return out, nil
	}

	started := o.now()
	newID, err := o.newAuditID(started)
	if err != nil {
		return out, err
	}
	trace := &traceRecorder{now: o.now}
	trace.add(StageReplay+"_start", types.TraceData{
		"replay_mode":             true,
		"replay_source_audit_id":  sourceAuditID,
		"original_question":       original.Question,
		"original_query":          original.FinalQuery,
		"original_version_id":     original.VersionID,
		"original_mapping_id":     original.PhysicalMappingID,
		"original_connection_ref": original.ConnectionRef,
	})
	trace.add(StageExecute+"_start", types.TraceData{
		"query":          original.FinalQuery,
		"connection_ref": original.ConnectionRef,
		"engine_type":    original.EngineType,
	})
	exec := o.execution.execute(ctx, original.FinalQuery, original.ConnectionRef, original.RequestParams, original.EngineType)
	trace.add(StageExecute+"_complete", executionTraceData(exec))

	ec := original.Context
	ec.Parameters = types.CloneParams(original.Context.Parameters)
	ec.Timestamp = started
	run := &pipelineRun{
		trace: trace,
		stage: StageReplay,
		audit: types.ExecutionAudit{
			AuditID:             newID,
			Question:            original.Question,
			ObjectID:            original.ObjectID,
			ObjectName:          original.ObjectName,
			VersionID:           original.VersionID,
			VersionName:         original.VersionName,
			LogicalDefinitionID: original.LogicalDefinitionID,
			LogicalExpression:   original.LogicalExpression,
			PhysicalMappingID:   original.PhysicalMappingID,
			EngineType:          original.EngineType,
			ConnectionRef:       original.ConnectionRef,
			FinalQuery:          original.FinalQuery,
			RequestParams:       types.CloneParams(original.RequestParams),
			Context:             ec,
			PolicyDecision: &types.PolicyDecision{
				Allow:  true,
				Reason: "replay of pre-authorized query from audit " + sourceAuditID,
			},
			Status:    types.StatusSuccess,
			RowCount:  exec.RowCount,
			LatencyMS: exec.LatencyMS,
			ReplayOf:  sourceAuditID,
		},
	}
	if !exec.Success {
		run.audit.Status = types.StatusError
		run.audit.ErrorKind = types.KindExecutionFailure
		run.audit.ErrorMessage = exec.Error
	}
	auditErr := o.persist(ctx, run)
	newID = run.audit.AuditID
	o.metrics.observeCall(modeReplay, run.audit.Status)
	o.logger.Info("replay complete", "source_audit_id", sourceAuditID, "audit_id", newID, "status", run.audit.Status, "row_count", exec.RowCount)

	out.NewAuditID = newID
	out.New = &ReplayOutcome{
		AuditID:       newID,
		Status:        run.audit.Status,
		Query:         run.audit.FinalQuery,
		Data:          exec.Data,
		RowCount:      exec.RowCount,
		LatencyMS:     exec.LatencyMS,
		Error:         exec.Error,
		DecisionTrace: run.audit.DecisionTrace,
		AuditError:    auditErr,
	}
	return out, nil
}

func (o *Orchestrator) ListObjects(ctx context.Context) ([]types.ObjectSummary, error) {
	objects, err := o.metadata.ListActiveObjects(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.ObjectSummary, 0, len(objects))
	for _, obj := range objects {
		aliases := obj.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		out = append(out, types.ObjectSummary{
			ID:          obj.ID,
			Name:        obj.Name,
			Description: obj.Description,
			Domain:      obj.Domain,
			Aliases:     aliases,
		})
	}
	return out, nil
}

// GetAuditHistory lists summaries newest first. limit<=0 means 50.
func (o *Orchestrator) GetAuditHistory(ctx context.Context, limit int, userID string) ([]types.AuditSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxHistorySize {
		limit = maxHistorySize
	}
	return o.audits.ListAuditHistory(ctx, limit, userID)
}

func (o *Orchestrator) GetAudit(ctx context.Context, id string) (types.ExecutionAudit, error) {
	a, err := o.audits.LoadAudit(ctx, id)
	if errors.Is(err, ports.ErrAuditNotFound) {
		return types.ExecutionAudit{}, types.NewNotFound("audit record not found: %s", id)
	}
	return a, err
}

func (o *Orchestrator) ListPolicies(ctx context.Context, role string) ([]types.PolicySummary, error) {
	return o.policies.ListPoliciesForRole(ctx, role)
}

func scenarioFromParams(params map[string]any) (types.Conditions, error) {
	raw, ok := params[scenarioParam]
	if !ok || raw == nil {
		return nil, nil
	}
	switch t := raw.(type) {
	case types.Conditions:
		return t, nil
	case map[string]any:
		return types.Conditions(t), nil
	case map[string]string:
		out := make(types.Conditions, len(t))
		for k, v := range t {
			out[k] = v
		}
		return out, nil
	default:
		return nil, types.NewValidation("parameter %q must be an object, got %T", scenarioParam, raw)
	}
}

// policyAttributes exposes request parameters to policy conditions, plus the
// caller identity under user_id and role unless a parameter already uses them.
func policyAttributes(params map[string]any, ec types.ExecutionContext) map[string]any {
	attrs := make(map[string]any, len(params)+2)
	for k, v := range params {
		attrs[k] = v
	}
	if _, ok := attrs["user_id"]; !ok {
		attrs["user_id"] = ec.UserID
	}
	if _, ok := attrs["role"]; !ok {
		attrs["role"] = ec.Role
	}
	return attrs
}

func executionTraceData(exec ExecutionResult) types.TraceData {
	data := types.TraceData{
		"success":    exec.Success,
		"row_count":  exec.RowCount,
		"latency_ms": exec.LatencyMS,
	}
	if exec.Error != "" {
		data["error"] = exec.Error
	}
	return data
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
