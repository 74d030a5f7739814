package httpadapter

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/PabloGalante/chatrelay/internal/app/conversation"
	"github.com/PabloGalante/chatrelay/internal/app/session"
	"github.com/PabloGalante/chatrelay/internal/domain"
)

type ServerConfig struct {
	AllowedOrigins []string
	Verifier       domain.TokenVerifier
}

// NewServer builds the echo instance serving the chat API.
func NewServer(cfg ServerConfig, sessions *session.Service, chat *conversation.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(withRequestContext())
	e.Use(withLogging())
	e.Use(middleware.Recover())
	e.Use(withCORS(cfg.AllowedOrigins))

	NewHandler(sessions, chat).RegisterRoutes(e, cfg.Verifier)
	return e
}
