package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fabtrack/fabtrack/internal/platform/httpx"
	"github.com/fabtrack/fabtrack/internal/shared"
)

// ActorHeader carries the authenticated user id, set by the upstream gateway.
const ActorHeader = "X-Actor-ID"

type actorContextKey struct{}

// Middleware resolves the actor per request and guards routes by capability.
type Middleware struct {
	Provider Provider
	Logger   *slog.Logger
}

// Authenticate resolves the actor from ActorHeader and stores it on the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(ActorHeader))
		userID, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil {
			httpx.RespondError(w, shared.ErrUnauthenticated)
			return
		}
		actor, err := m.Provider.Resolve(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("resolve actor", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireAny ensures the current actor has at least one of the capabilities.
func (m Middleware) RequireAny(caps ...string) func(http.Handler) http.Handler {
	normalized := normalizeCapabilities(caps)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			if len(normalized) == 0 || actor.IsAdmin() || actor.HasAny(normalized...) {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "requires one of "+strings.Join(normalized, ", "))
		})
	}
}

// ContextWithActor stores actor in ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor placed by Authenticate.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
