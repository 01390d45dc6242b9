package auth

import (
	"context"
	"strings"

	"personalysis-collab/internal/errors"

	"github.com/gin-gonic/gin"
)

// UserProvider resolves the identity attached to a verified token.
// Returning scalars keeps this package free of the user model.
type UserProvider interface {
	GetAuthInfo(ctx context.Context, userID uint64) (username string, tokenVersion uint64, err error)
}

type Auth struct {
	Users          UserProvider
	InternalSecret string
}

// Middleware authenticates requests via the Authorization header or,
// for WebSocket upgrades where headers are awkward, a token query param.
func (m *Auth) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		var token string
		tokenQuery := ctx.Query("token")

		if authHeader != "" {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else if tokenQuery != "" {
			token = tokenQuery
		} else {
			ctx.Error(errors.Unauthorized("Authorization is not found!", nil))
			ctx.Abort()
			return
		}

		parsedToken, err := VerifyJWT(token)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		userID, tokenVersion, err := GetDataFromToken(parsedToken)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid token!", err))
			ctx.Abort()
			return
		}

		username, currentVersion, err := m.Users.GetAuthInfo(ctx.Request.Context(), userID)
		if err != nil {
			ctx.Error(errors.Unauthorized("Invalid user!", err))
			ctx.Abort()
			return
		}

		// Tokens issued before the last logout carry a stale version
		if currentVersion != tokenVersion {
			ctx.Error(errors.Unauthorized("Invalid token version!", nil))
			ctx.Abort()
			return
		}

		ctx.Set("user_id", userID)
		ctx.Set("user_name", username)
		ctx.Set("jwt_token", token)
		ctx.Next()
	}
}

// InternalMiddleware guards server-to-server routes with a shared secret.
func (m *Auth) InternalMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := strings.TrimPrefix(
			ctx.GetHeader("Authorization"),
			"Bearer ",
		)

		if token != m.InternalSecret {
			ctx.Error(errors.Unauthorized("Unauthorized internal call!", nil))
			ctx.Abort()
			return
		}

		ctx.Next()
	}
}
