// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"kalys/internal/apperrors"
	"kalys/internal/config"
	"kalys/internal/locale"
	"kalys/internal/logger"
	"kalys/internal/service"
	"kalys/internal/session"
	"kalys/internal/vectorstore"
)

const localeKey = "locale"

// Asker answers one question.
type Asker interface {
	Ask(ctx context.Context, in service.AskInput) (*service.Answer, error)
}

// Deps are the components the HTTP layer calls into.
type Deps struct {
	Assistant Asker
	Sessions  *session.Store
	// Index is optional; when set /healthz reports its record count.
	Index         vectorstore.Index
	PDFDir        string
	Pattern       string
	DefaultLocale locale.Locale
	Log           logger.ILogger
}

type Server struct {
	app  *fiber.App
	cfg  config.ServerConfig
	deps Deps
}

func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.DefaultLocale == "" {
		deps.DefaultLocale = locale.English
	}
	if deps.Log == nil {
		deps.Log = logger.NewNop()
	}
	bodyLimit := cfg.BodyLimitMB
	if bodyLimit <= 0 {
		bodyLimit = 1
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             bodyLimit * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Log, deps.DefaultLocale),
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.CORSOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(otelfiber.Middleware())

	newRagController(deps, queryTimeout(cfg), validator.New()).RegisterRoutes(app)

	return &Server{app: app, cfg: cfg, deps: deps}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Run listens until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Log.Info("server", "listening", map[string]interface{}{"addr": s.cfg.Addr})
		errCh <- s.app.Listen(s.cfg.Addr)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.deps.Log.Info("server", "shutting down", nil)
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

func queryTimeout(cfg config.ServerConfig) time.Duration {
	if cfg.QueryTimeoutSecs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.QueryTimeoutSecs) * time.Second
}

// errorHandler renders every failure as {"detail": ...} in the request's
// locale, with the status derived from the error kind.
func errorHandler(log logger.ILogger, def locale.Locale) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		loc := def
		if l, ok := c.Locals(localeKey).(locale.Locale); ok && l != "" {
			loc = l
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse{Detail: fe.Message})
		}

		status := apperrors.HTTPStatus(apperrors.KindOf(err))
		fields := map[string]interface{}{
			"method": c.Method(), "path": c.Path(), "status": status, "error": err.Error(),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("server", "request failed", fields)
		} else {
			log.Warn("server", "request rejected", fields)
		}
		return c.Status(status).JSON(ErrorResponse{Detail: service.UserMessage(err, loc)})
	}
}
