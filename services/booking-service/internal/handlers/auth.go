package handlers

import (
	"context"
	"net/http"

	"github.com/md-rashed-zaman/serviceboard/libs/auth"
	"github.com/md-rashed-zaman/serviceboard/services/booking-service/internal/model"
)

// TokenVerifier is satisfied by *auth.Verifier.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type actorKey struct{}

func withActor(ctx context.Context, a model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(model.Actor)
	return a, ok
}

// Authenticate resolves the bearer token into an actor. Requests without a
// valid token stop here with 401.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeErrorCode(w, r, http.StatusUnauthorized, "unauthenticated", "bearer token required")
				return
			}
			claims, err := v.Verify(token)
			if err != nil {
				writeErrorCode(w, r, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}
			role, ok := model.ParseRole(claims.Role)
			if !ok {
				writeErrorCode(w, r, http.StatusUnauthorized, "unauthenticated", "unknown role")
				return
			}
			actor := model.Actor{ID: claims.Subject, Role: role, BusinessID: claims.BusinessID}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}
