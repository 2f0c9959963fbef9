package router

import (
	userapp "github.com/saharansameer/wavytv-backend/internal/application"
	"github.com/saharansameer/wavytv-backend/internal/container"
	pginfra "github.com/saharansameer/wavytv-backend/internal/infrastructure/postgres"
	handlers "github.com/saharansameer/wavytv-backend/internal/interface/http"
	"github.com/saharansameer/wavytv-backend/internal/router/modules"
)

func buildService() *userapp.Service {
	repo := pginfra.NewUserRepository(container.GetPGPool())
	cfg := container.GetConfig()

	var media userapp.MediaStore
	if ms := container.GetMediaStore(); ms != nil {
		media = ms
	}
	var pub userapp.Publisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	return userapp.NewService(
		repo,
		container.GetJWT(),
		media,
		container.GetRedis(),
		container.GetLogger(),
		container.GetES(),
		cfg.ESUsersIndex,
		pub,
	)
}

// InitModules builds the application service once and registers every
// feature module with the router registry.
func InitModules(r *Registry) {
	svc := buildService()
	cfg := container.GetConfig()

	userHandler := handlers.NewUserHandler(svc, container.GetLogger())
	authHandler := handlers.NewAuthHandler(svc, container.GetLogger(), cfg.CookieDomain, cfg.CookieSecure)

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
