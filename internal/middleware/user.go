package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/auth"
	"github.com/aleks8/blog-list/internal/db"
	"github.com/aleks8/blog-list/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserLookup resolves the user named by a token.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// token's user in the request context.
func RequireUser(tokens *auth.Tokens, users UserLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := auth.ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			user, err := users.GetUserByID(r.Context(), claims.ID)
			// A well-signed token carrying an id the store cannot parse is just an invalid token.
			if err != nil && !errors.Is(err, db.ErrInvalidID) {
				log.Error("token user lookup failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "db error")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}
