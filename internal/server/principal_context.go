package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/jacksonlee411/semantic-layer/pkg/authz"
)

const (
	headerUser = "X-Semantic-User"
	headerRole = "X-Semantic-Role"
)

// Principal is the caller identity asserted by the fronting gateway.
type Principal struct {
	UserID string
	Role   string
}

type principalContextKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalContextKey{})
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// principalFromContext adapts currentPrincipal to the controller getter.
func principalFromContext(ctx context.Context) (string, string) {
	p, ok := currentPrincipal(ctx)
	if !ok {
		return "", authz.RoleAnonymous
	}
	return p.UserID, p.Role
}

func withPrincipalHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			UserID: strings.TrimSpace(r.Header.Get(headerUser)),
			Role:   strings.TrimSpace(r.Header.Get(headerRole)),
		}
		if p.Role == "" {
			p.Role = authz.RoleAnonymous
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), p)))
	})
}
