package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassAPI RouteClass = "api"
	RouteClassOps RouteClass = "ops"
	// RouteClassUnknown is never served; it marks paths outside the allowlist.
	RouteClassUnknown RouteClass = "unknown"
)

type routeKey struct {
	method string
	path   string
}

// Classifier answers which class and authz resource a request maps to.
type Classifier struct {
	entrypoint string
	classes    map[string]RouteClass
	routes     map[routeKey]Route
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	c := &Classifier{
		entrypoint: entrypoint,
		classes:    make(map[string]RouteClass, len(ep.Routes)),
		routes:     make(map[routeKey]Route, len(ep.Routes)),
	}
	for _, r := range ep.Routes {
		if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
			return nil, errors.New("allowlist: invalid route path")
		}
		rc := RouteClass(r.RouteClass)
		switch rc {
		case RouteClassAPI:
			if r.Object == "" || r.Action == "" {
				return nil, errors.New("allowlist: api route " + r.Path + " requires object and action")
			}
		case RouteClassOps:
		default:
			return nil, errors.New("allowlist: invalid route class " + r.RouteClass)
		}
		c.classes[r.Path] = rc
		for _, m := range r.Methods {
			c.routes[routeKey{method: m, path: r.Path}] = r
		}
	}
	return c, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if rc, ok := c.classes[path]; ok {
		return rc
	}
	if hasPrefixSegment(path, "/api") {
		return RouteClassAPI
	}
	return RouteClassUnknown
}

// Lookup returns the allowlisted route for method and path.
func (c *Classifier) Lookup(method string, path string) (Route, bool) {
	r, ok := c.routes[routeKey{method: method, path: path}]
	return r, ok
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
