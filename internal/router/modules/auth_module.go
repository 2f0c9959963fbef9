package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saharansameer/wavytv-backend/internal/container"
	handlers "github.com/saharansameer/wavytv-backend/internal/interface/http"
	"github.com/saharansameer/wavytv-backend/internal/interface/middleware"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
)

// AuthModule wires the account lifecycle routes.
// Public: POST /api/register, /api/login, /api/refresh
// Protected: POST /api/logout
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP())

	rg.POST("/register", registerLimiter, m.Handler.Register)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.POST("/logout", m.Handler.Logout)
}
