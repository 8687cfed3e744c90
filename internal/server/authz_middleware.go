package server

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/semantic-layer/internal/routing"
	"github.com/jacksonlee411/semantic-layer/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := findConfigFile("config/access/model.conf")
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := findConfigFile("config/access/policy.csv")
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

// findConfigFile walks up from the working directory so binaries and tests
// started in subdirectories find the repo config.
func findConfigFile(rel string) (string, error) {
	path := rel
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + rel + " not found")
}

type authorizer interface {
	Authorize(subject string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		rc := classifier.Classify(path)

		route, ok := classifier.Lookup(r.Method, path)
		if !ok || rc != routing.RouteClassAPI {
			// ops routes are public; unknown routes fall through to 404/405.
			next.ServeHTTP(w, r)
			return
		}

		role := authz.RoleAnonymous
		if p, ok := currentPrincipal(r.Context()); ok {
			role = p.Role
		}
		subject := authz.SubjectFromRole(role)

		allowed, enforced, err := a.Authorize(subject, route.Object, route.Action)
		if err != nil {
			logger.Error("authz error", "path", path, "subject", subject, "error", err)
			routing.WriteError(w, r, rc, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if !allowed {
			logger.Warn("authz denied", "path", path, "subject", subject, "object", route.Object, "action", route.Action, "enforced", enforced)
		}
		if enforced && !allowed {
			routing.WriteError(w, r, rc, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}
