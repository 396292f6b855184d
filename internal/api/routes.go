package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouteConfig struct {
	AdminUser     string
	AdminPassword string
	// RateLimit é o máximo de requisições por minuto e IP em /api/v1.
	RateLimit int
	// Metrics expõe /metrics e mede as rotas de /api/v1.
	Metrics bool
}

// NewApp monta o app com os middlewares globais e as rotas.
func NewApp(handler *Handler, cfg RouteConfig, fiberCfg ...fiber.Config) *fiber.App {
	app := fiber.New(fiberCfg...)
	app.Use(recover.New())
	SetupRoutes(app, handler, cfg)
	return app
}

func SetupRoutes(app *fiber.App, handler *Handler, cfg RouteConfig) {
	app.Use(RequestID(), RequestContext())
	app.Use(ErrorHandler())

	// Health checks (sem rate limiting)
	app.Get("/health", handler.HealthCheck)
	app.Get("/ready", handler.ReadinessCheck)

	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1")
	v1.Use(RateLimiter(cfg.RateLimit))

	if cfg.Metrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
		v1.Use(Metrics())
	}

	days := v1.Group("/days")
	days.Get("/", handler.ListDays)
	days.Get("/:code", handler.GetDay)

	v1.Get("/merged", handler.GetMerged)

	ticker := v1.Group("/ticker")
	ticker.Get("/:ticker/stats", handler.GetTickerStats)
	ticker.Get("/:ticker/history", handler.GetTickerHistory)

	v1.Get("/options/:ticker/prices", handler.GetOptionPrices)

	admin := v1.Group("/admin")
	admin.Use(BasicAuth(cfg.AdminUser, cfg.AdminPassword))
	admin.Post("/merge", handler.RunMerge)
	admin.Post("/load", handler.LoadDataFromFile)
	admin.Delete("/cache/:pattern", handler.InvalidateCache)
	admin.Get("/stats", handler.GetSystemStats)
}

// BasicAuth protege as rotas de administração; sem senha configurada elas
// ficam fechadas.
func BasicAuth(user, password string) fiber.Handler {
	if password == "" {
		return func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusForbidden, "administração desabilitada")
		}
	}

	return basicauth.New(basicauth.Config{
		Users: map[string]string{user: password},
		Unauthorized: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusUnauthorized, "credenciais inválidas")
		},
	})
}
