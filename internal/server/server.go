package server

import (
    "context"
    "errors"
    "log/slog"
    "time"

    "github.com/gofiber/fiber/v2"

    "github.com/alephbunnies/bunny_token/internal/config"
    "github.com/alephbunnies/bunny_token/internal/infra"
    "github.com/alephbunnies/bunny_token/internal/routes"
    "github.com/alephbunnies/bunny_token/internal/token"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
    app *fiber.App
    cfg config.Config
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, b infra.Backends, tok *token.Token, logger *slog.Logger) (*Server, error) {
    app := fiber.New(fiber.Config{
        AppName:      cfg.AppName,
        ReadTimeout:  30 * time.Second,
        WriteTimeout: 30 * time.Second,
        ErrorHandler: errorHandler,
    })

    if err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: b.DB, Cache: b.Cache, Logger: logger, Token: tok}); err != nil {
        return nil, err
    }

    return &Server{app: app, cfg: cfg}, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
    return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
    return s.app.ShutdownWithContext(ctx)
}

// errorHandler renders every error as a JSON body.
func errorHandler(c *fiber.Ctx, err error) error {
    code := fiber.StatusInternalServerError
    var fe *fiber.Error
    if errors.As(err, &fe) {
        code = fe.Code
    }
    return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
