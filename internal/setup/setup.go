package setup

import (
	"github.com/memberd-dev/memberd/internal/config"
	"github.com/memberd-dev/memberd/internal/email"
	"github.com/memberd-dev/memberd/internal/handler"
	"github.com/memberd-dev/memberd/internal/middleware"
	"github.com/memberd-dev/memberd/internal/service"
	"github.com/memberd-dev/memberd/internal/storage/pg"
	"github.com/memberd-dev/memberd/internal/token"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Tokens         *token.Service
}

// SetupDependencies initializes all dependencies required for the application.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	email := email.New(&cfg.Private.Email)
	tokens := token.New(cfg.JwtKey(), cfg.AccessTokenTTL(), cfg.RefreshTokenTTL(), cfg.VerifyTokenTTL())

	auth := service.NewAuth(storage, email, tokens, cfg)
	authMw := middleware.NewAuth(tokens, storage, cfg.Public.SecureCookies)

	h := handler.New(auth, cfg)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Handler:        h,
		AuthMiddleware: authMw,
		Tokens:         tokens,
	}, nil
}
