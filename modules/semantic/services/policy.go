package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/ports"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/domain/types"
)

var newPolicyCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)))
}

var newPolicyCELProgram = func(env *cel.Env, ast *cel.Ast) (cel.Program, error) {
	return env.Program(ast)
}

// PolicyEngine evaluates RBAC policies with optional ABAC conditions.
// Absence of a matching allow is always a denial.
type PolicyEngine struct {
	store    ports.PolicyStore
	logger   *slog.Logger
	programs sync.Map
}

func NewPolicyEngine(store ports.PolicyStore, logger *slog.Logger) *PolicyEngine {
	return &PolicyEngine{store: store, logger: orDiscard(logger)}
}

// CheckAccess returns the decision and, when access is not granted, a
// policy_denied error carrying the same reason.
func (e *PolicyEngine) CheckAccess(ctx context.Context, objectID int64, role string, action string, attrs map[string]any) (types.PolicyDecision, error) {
	policies, err := e.store.ListApplicablePolicies(ctx, objectID, role, action)
	if err != nil {
		return types.PolicyDecision{}, err
	}

	decision := e.evaluate(policies, attrs)
	e.logger.Info("policy decision",
		"object_id", objectID,
		"role", role,
		"action", action,
		"allow", decision.Allow,
		"reason", decision.Reason,
		"evaluated", decision.Evaluated,
	)
	if !decision.Allow {
		return decision, types.NewPolicyDenied(decision.Reason)
	}
	return decision, nil
}

func (e *PolicyEngine) evaluate(policies []types.AccessPolicy, attrs map[string]any) types.PolicyDecision {
	decision := types.PolicyDecision{Evaluated: len(policies)}
	if len(policies) == 0 {
		decision.Reason = "no access policies defined - default deny"
		return decision
	}

	for _, p := range policies {
		ok, err := e.matches(p, attrs)
		if err != nil {
			decision.Matched = append(decision.Matched, p.ID)
			decision.Reason = fmt.Sprintf("policy %d condition could not be evaluated: %v", p.ID, err)
			return decision
		}
		if !ok {
			continue
		}
		decision.Matched = append(decision.Matched, p.ID)
		if p.Effect != types.EffectAllow {
			decision.Reason = denyReason(p)
			return decision
		}
	}

	if len(decision.Matched) == 0 {
		decision.Reason = "no matching allow policy found - default deny"
		return decision
	}
	decision.Allow = true
	decision.Reason = fmt.Sprintf("allowed by %d policy(ies)", len(decision.Matched))
	return decision
}

func denyReason(p types.AccessPolicy) string {
	var parts []string
	if len(p.Condition) > 0 {
		parts = append(parts, "condition="+p.Condition.String())
	}
	if strings.TrimSpace(p.ConditionExpr) != "" {
		parts = append(parts, "expr="+strings.TrimSpace(p.ConditionExpr))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("denied by policy %d (role=%s)", p.ID, p.Role)
	}
	return fmt.Sprintf("denied by policy %d (role=%s): %s", p.ID, p.Role, strings.Join(parts, " "))
}

// matches requires both the key/value condition and the CEL expression, when
// present, to hold. Any effect other than allow is treated as deny.
func (e *PolicyEngine) matches(p types.AccessPolicy, attrs map[string]any) (bool, error) {
	if len(p.Condition) > 0 {
		if attrs == nil || !p.Condition.SatisfiedBy(attrs) {
			return false, nil
		}
	}
	expr := strings.TrimSpace(p.ConditionExpr)
	if expr == "" {
		return true, nil
	}
	program, err := e.program(expr)
	if err != nil {
		return false, err
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	out, _, err := program.Eval(map[string]any{"ctx": attrs})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("condition_expr did not evaluate to bool")
	}
	return v, nil
}

func (e *PolicyEngine) program(expr string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newPolicyCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return nil, errors.New("condition_expr output type mismatch")
	}
	program, err := newPolicyCELProgram(env, ast)
	if err != nil {
		return nil, err
	}
	e.programs.Store(expr, program)
	return program, nil
}

// ValidateConditionExpr compiles expr without caching it; used by catalog checks.
func ValidateConditionExpr(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	env, err := newPolicyCELEnv()
	if err != nil {
		return err
	}
	_, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}
