package routes

import (
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/gofiber/fiber/v2"
    "github.com/gofiber/fiber/v2/middleware/logger"
    "github.com/gofiber/fiber/v2/middleware/recover"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/redis/go-redis/v9"

    "github.com/alephbunnies/bunny_token/internal/config"
    "github.com/alephbunnies/bunny_token/internal/middleware"
    "github.com/alephbunnies/bunny_token/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
    Cfg    config.Config
    DB     *pgxpool.Pool
    Cache  *redis.Client
    Logger *slog.Logger
    Token  *token.Token
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
    // Enforce DB/Redis presence outside of dev, even though config also checks.
    if !d.Cfg.IsDev() {
        if d.DB == nil {
            return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
        if d.Cache == nil {
            return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
        }
    }
    if d.Token == nil {
        return fmt.Errorf("token is required")
    }
    if d.Logger == nil {
        d.Logger = slog.Default()
    }

    // Middlewares
    app.Use(recover.New())
    app.Use(middleware.RequestID())
    if d.Cfg.IsDev() {
        // Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
        app.Use(logger.New(logger.Config{
            Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
            TimeFormat: "15:04:05",
            TimeZone:   "Local",
        }))
    }
    app.Use(middleware.Audit(d.Logger))

    RegisterHealthRoutes(app, d)

    handler := token.NewHandler(d.Token)

    api := app.Group("/api/v1")
    api.Get("/ping", func(c *fiber.Ctx) error {
        reqID, _ := c.Locals("X-Request-ID").(string)
        return c.Status(http.StatusOK).JSON(fiber.Map{
            "status": "ok",
            "request_id": reqID,
            "timestamp": time.Now().UTC().Format(time.RFC3339Nano),
        })
    })
    RegisterTokenQueryRoutes(api, handler)

    // Caller-authenticated routes
    skew := d.Cfg.CallerMaxSkew
    if skew <= 0 {
        skew = middleware.DefaultMaxSkew
    }
    var nonces middleware.NonceStore
    if d.Cache != nil {
        nonces = middleware.NewRedisNonceStore(d.Cache, 2*skew)
    }
    RegisterTokenCommandRoutes(api, handler,
        middleware.CallerAuth(middleware.CallerAuthConfig{
            TrustHeader: d.Cfg.TrustCallerHeader,
            MaxSkew:     skew,
            Nonces:      nonces,
        }),
        middleware.CallerRateLimit(d.Cache, d.Cfg.RateLimitPerMin),
        middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
    )

    return nil
}
