package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rutacash/rutacash/internal/config"
	"github.com/rutacash/rutacash/internal/outbox"
	"github.com/rutacash/rutacash/internal/routes"
)

// Server wraps the Fiber application, shared dependencies, and the outbox
// relay that publishes committed domain events.
type Server struct {
	app         *fiber.App
	cfg         config.Config
	db          *pgxpool.Pool
	cache       *redis.Client
	relay       *outbox.Relay
	cancelRelay context.CancelFunc
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	events, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger})
	if err != nil {
		return nil, err
	}

	var sink outbox.Sink
	if cache != nil {
		sink = outbox.NewRedisSink(cache)
	} else {
		sink = outbox.NewLoggerSink(logger)
	}
	relay := outbox.NewRelay(events, sink, logger, cfg.OutboxPollInterval)

	return &Server{app: app, cfg: cfg, db: db, cache: cache, relay: relay}, nil
}

// Listen starts the outbox relay and the HTTP server.
func (s *Server) Listen() error {
	relayCtx, cancel := context.WithCancel(context.Background())
	s.cancelRelay = cancel
	s.relay.Start(relayCtx)
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then the relay.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.cancelRelay != nil {
		s.cancelRelay()
		s.relay.Wait()
	}
	return err
}
