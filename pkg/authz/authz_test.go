package authz

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestModeFromEnv_Default(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeEnforce {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_Shadow(t *testing.T) {
	t.Setenv("AUTHZ_MODE", " Shadow ")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeShadow {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_DisabledRequiresUnsafe(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "disabled")
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
	t.Setenv("AUTHZ_UNSAFE_ALLOW_DISABLED", "1")
	m, err := ModeFromEnv()
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if m != ModeDisabled {
		t.Fatalf("mode=%q", m)
	}
}

func TestModeFromEnv_Invalid(t *testing.T) {
	t.Setenv("AUTHZ_MODE", "nope")
	if _, err := ModeFromEnv(); err == nil {
		t.Fatal("expected error")
	}
}

func repoConfig(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("caller")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "config", rel)
}

func TestRepoPolicy(t *testing.T) {
	a, err := NewAuthorizer(repoConfig(t, "access/model.conf"), repoConfig(t, "access/policy.csv"), ModeEnforce)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	cases := []struct {
		role   string
		object string
		action string
		want   bool
	}{
		{role: "", object: ObjectSemanticQuery, action: ActionExecute, want: true},
		{role: "anonymous", object: ObjectSemanticReplay, action: ActionExecute, want: false},
		{role: "viewer", object: ObjectSemanticObjects, action: ActionRead, want: true},
		{role: "viewer", object: ObjectSemanticQuery, action: ActionExecute, want: false},
		{role: "operator", object: ObjectSemanticPolicies, action: ActionRead, want: true},
		{role: "Finance_Manager", object: ObjectSemanticQuery, action: ActionExecute, want: true},
		{role: "operator", object: ObjectSemanticReplay, action: ActionExecute, want: false},
		{role: "auditor", object: ObjectSemanticReplay, action: ActionExecute, want: true},
		{role: "auditor", object: ObjectSemanticQuery, action: ActionExecute, want: false},
		{role: RoleAdmin, object: ObjectSemanticReplay, action: ActionExecute, want: true},
		{role: RoleAdmin, object: ObjectSemanticQuery, action: ActionRead, want: false},
	}
	for _, tc := range cases {
		allowed, enforced, err := a.Authorize(SubjectFromRole(tc.role), tc.object, tc.action)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if !enforced || allowed != tc.want {
			t.Fatalf("role=%q obj=%s act=%s allowed=%v enforced=%v", tc.role, tc.object, tc.action, allowed, enforced)
		}
	}
	// every route object is reachable by at least admin
	for _, obj := range Objects() {
		okRead, _, _ := a.Authorize(SubjectFromRole(RoleAdmin), obj, ActionRead)
		okExec, _, _ := a.Authorize(SubjectFromRole(RoleAdmin), obj, ActionExecute)
		if !okRead && !okExec {
			t.Fatalf("object %s unreachable", obj)
		}
	}
}

const flatModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

func TestNewAuthorizer_Modes(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.conf")
	policy := filepath.Join(dir, "policy.csv")
	if err := os.WriteFile(model, []byte(flatModel), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(policy, []byte("p, role:operator, semantic.query, execute\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	aShadow, err := NewAuthorizer(model, policy, ModeShadow)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if aShadow.Mode() != ModeShadow {
		t.Fatalf("mode=%q", aShadow.Mode())
	}
	allowed, enforced, err := aShadow.Authorize("role:operator", ObjectSemanticReplay, ActionExecute)
	if err != nil || enforced || allowed {
		t.Fatalf("allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}

	aDisabled, err := NewAuthorizer(model, policy, ModeDisabled)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	allowed, enforced, err = aDisabled.Authorize("role:operator", ObjectSemanticReplay, ActionExecute)
	if err != nil || enforced || !allowed {
		t.Fatalf("allowed=%v enforced=%v err=%v", allowed, enforced, err)
	}
}

func TestNewAuthorizer_Error(t *testing.T) {
	dir := t.TempDir()
	invalidModel := filepath.Join(dir, "invalid.conf")
	if err := os.WriteFile(invalidModel, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(invalidModel, "nope-policy.csv", ModeEnforce); err == nil {
		t.Fatal("expected error")
	}

	model := filepath.Join(dir, "model.conf")
	if err := os.WriteFile(model, []byte(flatModel), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAuthorizer(model, filepath.Join(dir, "missing-policy.csv"), ModeEnforce); err == nil {
		t.Fatal("expected error")
	}
}

func TestSubjectFromRole(t *testing.T) {
	if got := SubjectFromRole(""); got != "role:anonymous" {
		t.Fatalf("got=%q", got)
	}
	if got := SubjectFromRole(" Operator "); got != "role:operator" {
		t.Fatalf("got=%q", got)
	}
}

func TestAuthorize_UnknownMode(t *testing.T) {
	a := &Authorizer{mode: Mode("nope")}
	if _, _, err := a.Authorize("role:x", "o", "a"); err == nil {
		t.Fatal("expected error")
	}
}
