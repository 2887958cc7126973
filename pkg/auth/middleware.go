package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "github.com/rxpartners/crm-backend/pkg/app/errors"
	apphttp "github.com/rxpartners/crm-backend/pkg/app/http"
	"github.com/rxpartners/crm-backend/pkg/user"
)

// UserLookup resolves the user a token was issued to.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*user.User, error)
}

// Authenticator validates bearer tokens and re-reads the user so revoked or demoted accounts
// lose access before their token expires.
type Authenticator struct {
	tokens *TokenIssuer
	users  UserLookup
	logger *zap.Logger
}

// NewAuthenticator creates the request authenticator.
func NewAuthenticator(tokens *TokenIssuer, users UserLookup, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, logger: logger.Named("auth")}
}

// RequireUser rejects requests without a valid bearer token for an existing user.
func (a *Authenticator) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "missing bearer token"))
			return
		}

		info, err := a.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
			return
		}

		usr, err := a.users.GetUserByID(r.Context(), info.UserID)
		if err != nil {
			a.logger.Warn("Token for unknown user", zap.Int64("user_id", info.UserID), zap.Error(err))
			apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid token"))
			return
		}

		ctx := WithAuthInfo(r.Context(), &AuthInfo{UserID: usr.ID, Username: usr.Username, Role: usr.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated requests whose role is not one of roles.
// It must run after RequireUser.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "authentication required"))
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "insufficient role"))
		})
	}
}
