package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/services"
	"github.com/jacksonlee411/semantic-layer/pkg/httperr"
)

const maxRequestBytes = 1 << 20

type PrincipalGetter func(ctx context.Context) (userID string, role string)

type SemanticController struct {
	Principal PrincipalGetter
	Facade    services.Facade
}

type queryAPIRequest struct {
	Question string         `json:"question"`
	Params   map[string]any `json:"params"`
	Scenario map[string]any `json:"scenario"`
}

type replayAPIRequest struct {
	AuditID string `json:"audit_id"`
}

func (c SemanticController) HandleQueryAPI(w http.ResponseWriter, r *http.Request) {
	c.handleQuery(w, r, false)
}

func (c SemanticController) HandlePreviewAPI(w http.ResponseWriter, r *http.Request) {
	c.handleQuery(w, r, true)
}

func (c SemanticController) handleQuery(w http.ResponseWriter, r *http.Request, preview bool) {
	var req queryAPIRequest
	if err := decodeBody(r, &req); err != nil {
		status, code := httperr.Status(err, "bad_json")
		writeError(w, r, status, code, err.Error())
		return
	}
	question, params, err := req.normalize()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	userID, role := c.principal(r.Context())
	res := c.Facade.Query(r.Context(), question, params, types.ExecutionContext{UserID: userID, Role: role}, preview)
	writeJSON(w, queryStatusCode(res), res)
}

func (req queryAPIRequest) normalize() (string, map[string]any, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", nil, httperr.NewBadRequest("question is required")
	}
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	if len(req.Scenario) > 0 {
		if _, ok := params["scenario"]; ok {
			return "", nil, httperr.NewBadRequest("scenario given both at top level and in params")
		}
		params["scenario"] = req.Scenario
	}
	return question, params, nil
}

func queryStatusCode(res services.QueryResult) int {
	switch res.Status {
	case types.StatusSuccess, types.StatusPreview:
		return http.StatusOK
	case types.StatusDenied:
		return http.StatusForbidden
	}
	return errorKindStatus(res.ErrorKind)
}

func errorKindStatus(kind types.ErrorKind) int {
	switch kind {
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindAmbiguity:
		return http.StatusConflict
	case types.KindValidation:
		return http.StatusUnprocessableEntity
	case types.KindPolicyDenied:
		return http.StatusForbidden
	case types.KindExecutionFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (c SemanticController) HandleReplayAPI(w http.ResponseWriter, r *http.Request) {
	var req replayAPIRequest
	if err := decodeBody(r, &req); err != nil {
		status, code := httperr.Status(err, "bad_json")
		writeError(w, r, status, code, err.Error())
		return
	}
	req.AuditID = strings.TrimSpace(req.AuditID)
	if req.AuditID == "" {
		writeError(w, r, http.StatusBadRequest, "missing_audit_id", "audit_id is required")
		return
	}

	res, err := c.Facade.Replay(r.Context(), req.AuditID)
	if err != nil {
		writeFacadeError(w, r, err, "replay failed")
		return
	}
	status := http.StatusOK
	switch {
	case res.Refused:
		status = http.StatusConflict
	case res.New != nil && res.New.Status != types.StatusSuccess:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (c SemanticController) HandleObjectsAPI(w http.ResponseWriter, r *http.Request) {
	objects, err := c.Facade.ListObjects(r.Context())
	if err != nil {
		writeFacadeError(w, r, err, "list objects failed")
		return
	}
	if objects == nil {
		objects = []types.ObjectSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": objects})
}

func (c SemanticController) HandleAuditsAPI(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "invalid limit")
			return
		}
		limit = n
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))

	audits, err := c.Facade.GetAuditHistory(r.Context(), limit, userID)
	if err != nil {
		writeFacadeError(w, r, err, "list audits failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": audits})
}

func (c SemanticController) HandleAuditAPI(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("audit_id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing_audit_id", "audit_id is required")
		return
	}
	audit, err := c.Facade.GetAudit(r.Context(), id)
	if err != nil {
		writeFacadeError(w, r, err, "get audit failed")
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

func (c SemanticController) HandlePoliciesAPI(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	policies, err := c.Facade.ListPolicies(r.Context(), role)
	if err != nil {
		writeFacadeError(w, r, err, "list policies failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": role, "policies": policies})
}

func (c SemanticController) principal(ctx context.Context) (string, string) {
	if c.Principal == nil {
		return "", "anonymous"
	}
	userID, role := c.Principal(ctx)
	if role == "" {
		role = "anonymous"
	}
	return userID, role
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		return httperr.NewBadRequest("bad json")
	}
	if len(body) > maxRequestBytes {
		return httperr.NewTooLarge("request body too large")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return httperr.NewBadRequest("bad json")
	}
	return nil
}

func writeFacadeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if httperr.IsBadRequest(err) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if se, ok := errors.AsType[*types.SemanticError](err); ok {
		writeError(w, r, errorKindStatus(se.Kind), string(se.Kind), se.Message)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "internal_error", fallback)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	writeJSON(w, status, errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}
