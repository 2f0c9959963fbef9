package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saharansameer/wavytv-backend/internal/container"
	handlers "github.com/saharansameer/wavytv-backend/internal/interface/http"
	"github.com/saharansameer/wavytv-backend/internal/interface/middleware"
	"github.com/saharansameer/wavytv-backend/pkg/helpers"
)

// UserModule wires the profile, image, password, channel, and history routes.
// Everything here requires an authenticated caller.
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	users := rg.Group("/users")
	users.Use(middleware.Auth(container.GetRedis(), m.JWT))
	users.Use(middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		users.GET("/me", m.Handler.GetProfile)
		users.PATCH("/me", m.Handler.UpdateAccount)
		users.PATCH("/me/images", m.Handler.UpdateImages)
		users.PATCH("/me/password", m.Handler.ChangePassword)
		users.GET("/channel/:username", m.Handler.Channel)
		users.GET("/history", m.Handler.WatchHistory)
		users.GET("/search", m.Handler.Search)
	}
}
