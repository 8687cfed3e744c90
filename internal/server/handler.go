package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jacksonlee411/semantic-layer/internal/routing"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/presentation/controllers"
	"github.com/jacksonlee411/semantic-layer/modules/semantic/services"
)

type HandlerOptions struct {
	Facade services.Facade
	// Authorizer defaults to the casbin authorizer from AUTHZ_* env.
	Authorizer authorizer
	// Allowlist defaults to ALLOWLIST_PATH or config/routing/allowlist.yaml.
	Allowlist *routing.Allowlist
	// Gatherer backs /metrics; defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	if opts.Facade == nil {
		return nil, errors.New("server: missing facade")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	var a routing.Allowlist
	if opts.Allowlist != nil {
		a = *opts.Allowlist
	} else {
		allowlistPath := os.Getenv("ALLOWLIST_PATH")
		if allowlistPath == "" {
			p, err := findConfigFile("config/routing/allowlist.yaml")
			if err != nil {
				return nil, err
			}
			allowlistPath = p
		}
		loaded, err := routing.LoadAllowlist(allowlistPath)
		if err != nil {
			return nil, err
		}
		a = loaded
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	authz := opts.Authorizer
	if authz == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		authz = loaded
	}

	c := controllers.SemanticController{Principal: principalFromContext, Facade: opts.Facade}
	router := routing.NewRouter(classifier, logger)
	routes := []struct {
		method string
		path   string
		h      http.Handler
	}{
		{http.MethodGet, "/health", handleHealth(now)},
		{http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})},
		{http.MethodPost, "/api/semantic/query", http.HandlerFunc(c.HandleQueryAPI)},
		{http.MethodPost, "/api/semantic/preview", http.HandlerFunc(c.HandlePreviewAPI)},
		{http.MethodPost, "/api/semantic/replay", http.HandlerFunc(c.HandleReplayAPI)},
		{http.MethodGet, "/api/semantic/objects", http.HandlerFunc(c.HandleObjectsAPI)},
		{http.MethodGet, "/api/semantic/audits", http.HandlerFunc(c.HandleAuditsAPI)},
		{http.MethodGet, "/api/semantic/audit", http.HandlerFunc(c.HandleAuditAPI)},
		{http.MethodGet, "/api/semantic/policies", http.HandlerFunc(c.HandlePoliciesAPI)},
	}
	for _, rt := range routes {
		if err := router.Handle(rt.method, rt.path, rt.h); err != nil {
			return nil, err
		}
	}
	if missing := router.Unregistered(); len(missing) > 0 {
		return nil, errors.New("server: allowlisted routes without handlers: " + strings.Join(missing, "; "))
	}

	return withRequestLog(logger, withPrincipalHeaders(withAuthz(classifier, authz, logger, router))), nil
}

func handleHealth(now func() time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":    "ok",
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"user_id", r.Header.Get(headerUser),
		)
	})
}
