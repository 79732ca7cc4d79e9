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

	"github.com/rutacash/rutacash/internal/adjustment"
	"github.com/rutacash/rutacash/internal/collection"
	"github.com/rutacash/rutacash/internal/config"
	"github.com/rutacash/rutacash/internal/ledger"
	"github.com/rutacash/rutacash/internal/middleware"
	"github.com/rutacash/rutacash/internal/outbox"
	"github.com/rutacash/rutacash/internal/settlement"
	"github.com/rutacash/rutacash/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. It returns the
// outbox store backing the wired ledger engine so the caller can attach the
// dispatch relay.
func Setup(app *fiber.App, d Deps) (outbox.Store, error) {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	// Structured audit trail alongside the console access log.
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health
	RegisterHealthRoutes(app, d)

	// Engine and repositories: Postgres in production, in-memory in dev.
	var (
		engine ledger.Engine
		points collection.Repository
		events outbox.Store
	)
	if d.DB != nil {
		pgPoints := collection.NewPostgresRepository(d.DB)
		pgEvents := outbox.NewPostgresStore(d.DB)
		points = pgPoints
		events = pgEvents
		engine = ledger.NewPostgres(d.DB, pgPoints, pgEvents, d.Logger)
	} else {
		memPoints := collection.NewMemoryRepository()
		memEvents := outbox.NewMemoryStore()
		points = memPoints
		events = memEvents
		engine = ledger.NewInMemory(memPoints, memEvents)
	}

	walletSvc := wallet.NewService(engine)
	settlementSvc := settlement.NewService(engine)
	collectionSvc := collection.NewService(points, engine)
	adjustmentSvc := adjustment.NewService(engine, d.Cfg.MaxAdjustmentDelta)

	walletHandler := wallet.NewHandler(walletSvc)
	settlementHandler := settlement.NewHandler(settlementSvc)
	collectionHandler := collection.NewHandler(collectionSvc)
	adjustmentHandler := adjustment.NewHandler(adjustmentSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterSettlementRoutes(api, settlementHandler)
	RegisterCollectionRoutes(api, collectionHandler)
	RegisterAdjustmentRoutes(api, adjustmentHandler)

	return events, nil
}
