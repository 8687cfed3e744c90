package routing

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Allowlist declares every route an entrypoint may serve. Handlers that are
// registered but not declared here are rejected at startup.
type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
	// Object and Action name the authz resource guarding the route; ops
	// routes leave them empty.
	Object string `yaml:"object"`
	Action string `yaml:"action"`
}

var knownMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	for name, ep := range a.Entrypoints {
		for _, r := range ep.Routes {
			if len(r.Methods) == 0 {
				return Allowlist{}, fmt.Errorf("allowlist: %s %s: methods required", name, r.Path)
			}
			for _, m := range r.Methods {
				if !slices.Contains(knownMethods, m) {
					return Allowlist{}, fmt.Errorf("allowlist: %s %s: unknown method %q", name, r.Path, m)
				}
			}
		}
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}
