package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "mindbridge/internal/errors"
	"mindbridge/internal/model"
	"mindbridge/internal/policy"
)

const (
	// ContextKeyToken is where echo-jwt stores the parsed *jwt.Token.
	ContextKeyToken = "user"
	// ContextKeyCaller is where Authenticate stores the policy.Caller.
	ContextKeyCaller = "caller"
	// ContextKeyClaims is where Authenticate stores the *Claims.
	ContextKeyClaims = "claims"
)

func unauthorized(message string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

// JWT verifies the bearer token signature and expiry with echo-jwt.
func JWT(jwtService *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:  jwtService.Secret(),
		ContextKey:  ContextKeyToken,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized("missing or invalid token")
		},
	})
}

// AccountLookup resolves the account behind a token.
type AccountLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Authenticate turns the token verified by JWT into a policy.Caller.
// Refresh tokens, blacklisted access tokens and tokens whose account was
// deleted or deactivated are rejected.
func Authenticate(tokens TokenStoreInterface, accounts AccountLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(ContextKeyToken).(*jwt.Token)
			if !ok {
				return unauthorized("invalid token")
			}
			claims, ok := token.Claims.(*Claims)
			if !ok || claims.TokenType != AccessTokenType || !claims.Role.Valid() {
				return unauthorized("invalid token")
			}
			ctx := c.Request().Context()
			blacklisted, _ := tokens.IsAccessTokenBlacklisted(ctx, claims.ID)
			if blacklisted {
				return unauthorized("token has been revoked")
			}

			user, err := accounts.GetUser(ctx, claims.UserID)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					return unauthorized("account no longer exists")
				}
				return err
			}
			if !user.IsActive {
				return unauthorized("account is not active")
			}

			c.Set(ContextKeyClaims, claims)
			c.Set(ContextKeyCaller, policy.Caller{ID: user.ID, Role: user.Role})
			return next(c)
		}
	}
}

// RequireRoles rejects callers whose role is not listed.
func RequireRoles(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFrom(c)
			if !ok {
				return unauthorized("authentication required")
			}
			if !allowed[caller.Role] {
				return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
					Error: "role not allowed",
					Code:  "FORBIDDEN",
				})
			}
			return next(c)
		}
	}
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(c echo.Context) (policy.Caller, bool) {
	caller, ok := c.Get(ContextKeyCaller).(policy.Caller)
	return caller, ok
}

// ClaimsFrom returns the access token claims stored by Authenticate.
func ClaimsFrom(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKeyClaims).(*Claims)
	return claims, ok
}
