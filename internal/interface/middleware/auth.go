package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/saharansameer/wavytv-backend/pkg/helpers"
	"github.com/saharansameer/wavytv-backend/pkg/response"
)

const CtxUserIDKey = "userID"

// Auth validates the access-token cookie and, when Redis is configured,
// that an active session with a matching session id exists. It sets userID
// in the Gin context on success; handlers trust it without re-verification.
func Auth(rdb *redis.Client, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie("access_token")
		if err != nil || token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", nil)
			c.Abort()
			return
		}

		if rdb != nil {
			key := "user:session:" + claims.UserID
			data, rErr := rdb.HGetAll(c.Request.Context(), key).Result()
			if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
				response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
				c.Abort()
				return
			}
		}

		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}
