package routing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAllowlistYAML_Errors(t *testing.T) {
	t.Parallel()

	cases := []string{
		"\xff",
		"version: 2\nentrypoints: {}",
		"version: 1",
		"version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        route_class: ops\n",
		"version: 1\nentrypoints:\n  server:\n    routes:\n      - path: /health\n        methods: [get]\n        route_class: ops\n",
	}
	for _, in := range cases {
		if _, err := ParseAllowlistYAML([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoadAllowlist_RepoConfig(t *testing.T) {
	t.Parallel()

	a, err := LoadAllowlist(filepath.Join(repoRoot(t), "config/routing/allowlist.yaml"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	r, ok := c.Lookup("POST", "/api/semantic/query")
	if !ok || r.Object != "semantic.query" || r.Action != "execute" {
		t.Fatalf("route=%+v ok=%v", r, ok)
	}
	if _, err := LoadAllowlist(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Fatalf("err=%v", err)
	}
}
