package middleware

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"tour-server/models"
	"tour-server/services"
	"tour-server/utils/errors"
)

// TokenCookie is the cookie carrying the JWT for browser clients.
const TokenCookie = "jwt"

type contextKey int

const userKey contextKey = iota

// UserLookup resolves a token subject to an active user.
type UserLookup interface {
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// TokenParser verifies a token and returns its claims.
type TokenParser interface {
	Parse(token string) (*services.Claims, error)
}

// AuthGuard authenticates requests with a JWT from the Authorization header
// or the jwt cookie.
type AuthGuard struct {
	tokens TokenParser
	users  UserLookup
}

func NewAuthGuard(tokens TokenParser, users UserLookup) *AuthGuard {
	return &AuthGuard{tokens: tokens, users: users}
}

// WithUser attaches an authenticated user to ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by Protect or OptionalAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// authenticate returns the user behind the request's token. Every credential
// failure is reported as ErrUnauthorized so callers cannot tell which check
// failed. Lookup failures other than a missing user are returned as is.
func (g *AuthGuard) authenticate(r *http.Request) (*models.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, errors.ErrUnauthorized
	}
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, errors.ErrUnauthorized
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, errors.ErrUnauthorized
	}
	user, err := g.users.GetUser(r.Context(), id)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, errors.ErrUnauthorized
	}
	return user, nil
}

// Protect rejects unauthenticated requests with 401.
func (g *AuthGuard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.authenticate(r)
		if err != nil {
			WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// OptionalAuth attaches the user when the request carries a valid token and
// lets every request through.
func (g *AuthGuard) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := g.authenticate(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// RestrictTo allows only the listed roles. It must run after Protect.
func RestrictTo(roles ...models.Role) func(http.Handler) http.Handler {
	allowed := models.NewRoleSet(roles...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteError(w, errors.ErrUnauthorized)
				return
			}
			if !allowed.Contains(user.Role) {
				WriteError(w, errors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
