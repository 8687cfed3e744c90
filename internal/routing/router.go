package routing

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
)

type Router struct {
	classifier *Classifier
	logger     *slog.Logger
	routes     map[string]map[string]routeEntry
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

func NewRouter(classifier *Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		classifier: classifier,
		logger:     logger,
		routes:     make(map[string]map[string]routeEntry),
	}
}

// Handle registers h for method and path. The route must be allowlisted.
func (r *Router) Handle(method string, path string, h http.Handler) error {
	if _, ok := r.classifier.Lookup(method, path); !ok {
		return fmt.Errorf("routing: %s %s is not allowlisted for %s", method, path, r.classifier.entrypoint)
	}
	rc := r.classifier.Classify(path)
	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}

	r.routes[path][method] = routeEntry{
		rc: rc,
		handler: http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("handler panic", "path", req.URL.Path, "method", req.Method, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
					WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			h.ServeHTTP(w, req)
		}),
	}
	return nil
}

// Unregistered lists allowlisted routes that have no handler, as "METHOD path".
func (r *Router) Unregistered() []string {
	var out []string
	for key := range r.classifier.routes {
		if _, ok := r.routes[key.path][key.method]; !ok {
			out = append(out, key.method+" "+key.path)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, ok := methods[req.Method]
	if !ok {
		w.Header().Set("Allow", allowHeader(methods))
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func allowHeader(methods map[string]routeEntry) string {
	out := make([]string, 0, len(methods))
	for m := range methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}
