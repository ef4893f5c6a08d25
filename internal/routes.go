package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalogapp/internal/catalog"
	"catalogapp/internal/config"
	"catalogapp/internal/http"
	"catalogapp/internal/http/middleware"
)

const categoryCacheTTL = 5 * time.Minute

// publicCORSConfig is shared by every endpoint the mini-app calls from the
// Telegram webview.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()

	catalog.LoadCategoryCache(srv.GetDBManager().GetConnection(), logger, categoryCacheTTL)

	// Rate limiting would interfere with tests, so it only runs in production
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP covers a user scrolling the catalog
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicReadConfig := &cartridge.RouteConfig{
		EnableCORS: true,
		CORSConfig: publicCORSConfig,
	}

	publicWriteConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Admin calls come from scripts and the back office; the bearer token
	// is the only gate.
	adminConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			middleware.AdminTokenAuth(cfg, logger),
		},
	}

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === OPERATIONS ===
	srv.Get("/health", http.HealthIndexAction)
	srv.Head("/health", http.HealthIndexAction)

	metricsHandler := adaptor.HTTPHandler(promhttp.Handler())
	srv.Get("/metrics", func(ctx *cartridge.Context) error {
		return metricsHandler(ctx.Ctx)
	})

	// === COURSES ===
	srv.Get("/api/courses", http.CoursesIndexAction, publicReadConfig)
	srv.Post("/api/courses", http.CourseCreateAction, adminConfig)
	srv.Get("/api/courses/:slug", http.CourseShowAction, publicReadConfig)
	srv.Post("/api/courses/:slug/click", http.CourseClickAction, publicWriteConfig)
	srv.Options("/api/courses/:slug/click", preflight, publicWriteConfig)
	srv.Post("/api/courses/:id", http.CourseUpdateAction, adminConfig)
	srv.Delete("/api/courses/:id", http.CourseArchiveAction, adminConfig)

	// === CATEGORIES ===
	srv.Get("/api/categories", http.CategoriesIndexAction, publicReadConfig)
	srv.Post("/api/categories", http.CategoryCreateAction, adminConfig)
	srv.Get("/api/categories/:slug", http.CategoryShowAction, publicReadConfig)
	srv.Post("/api/categories/:id", http.CategoryUpdateAction, adminConfig)
	srv.Delete("/api/categories/:id", http.CategoryDeactivateAction, adminConfig)

	// === ANALYTICS ===
	srv.Post("/api/analytics/track", http.AnalyticsTrackAction, publicWriteConfig)
	srv.Options("/api/analytics/track", preflight, publicWriteConfig)
	srv.Get("/api/analytics/stats", http.AnalyticsStatsAction, adminConfig)
	srv.Get("/api/analytics/events", http.AnalyticsEventsAction, adminConfig)

	// Must stay last: anything not matched above
	srv.App().Use(http.NotFoundHandler)
}
