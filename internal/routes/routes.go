package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/transitpago/transitpago/internal/auth"
	"github.com/transitpago/transitpago/internal/config"
	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/ledger"
	"github.com/transitpago/transitpago/internal/middleware"
	"github.com/transitpago/transitpago/internal/notification"
	"github.com/transitpago/transitpago/internal/payments"
	"github.com/transitpago/transitpago/internal/transit"
	"github.com/transitpago/transitpago/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Stores: Postgres when available, in-memory otherwise (dev/test).
	var (
		walletStore wallet.Store
		entryStore  ledger.EntryStore
		accountRepo identity.Repository
		routeRepo   transit.Repository
	)
	if d.DB != nil {
		walletStore = wallet.NewPostgresStore(d.DB)
		entryStore = ledger.NewPostgresEntryStore(d.DB)
		accountRepo = identity.NewPostgresRepository(d.DB)
		routeRepo = transit.NewPostgresRepository(d.DB)
	} else {
		walletStore = wallet.NewMemoryStore()
		entryStore = ledger.NewMemoryEntryStore()
		accountRepo = identity.NewMemoryRepository()
		routeRepo = transit.NewMemoryRepository()
	}

	// Services and handlers.
	walletSvc := wallet.NewService(walletStore)
	engine := ledger.NewEngine(walletStore, entryStore, d.Logger, d.Cfg.SettleRetries)
	resolver := payments.NewResolver(accountRepo, routeRepo)
	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(accountRepo)
	authSvc := auth.NewService(d.Cfg)
	paymentSvc := payments.NewService(engine, resolver, walletSvc, entryStore, accountRepo, notifier, d.Cfg.SettleTimeout)

	paymentHandler := payments.NewHandler(paymentSvc)
	walletHandler := wallet.NewHandler(walletSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes.
	RegisterAuthRoutes(api, identitySvc, authSvc, walletSvc, d.Logger)

	// Protected routes.
	jwtmw := middleware.JWTAuth(d.Cfg, accountRepo)
	protected := api.Group("", jwtmw)
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterWalletRoutes(protected, walletHandler, paymentHandler)

	scanLimiter := middleware.ScanRateLimit(d.Cache, 30)
	RegisterPaymentRoutes(protected, paymentHandler, scanLimiter)
	RegisterDriverRoutes(protected, paymentHandler, scanLimiter)

	return nil
}
