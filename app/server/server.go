package server

import (
	"context"
	"errors"
	"time"

	"newsrag/app/agent"
	"newsrag/app/api"
	"newsrag/app/middleware"
	"newsrag/app/rag"
	"newsrag/model"
	"newsrag/session"
	"newsrag/store"
	"newsrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr string
	app        *fiber.App
	logger     *logrus.Entry
	closers    []func() error
	checks     []api.Check
}

// NewServer connects every backend named in cfg and mounts the chat API.
// Resources opened before a failure are released.
func NewServer(ctx context.Context, cfg types.Config, logger *logrus.Entry) (_ *Server, err error) {
	s := &Server{
		listenAddr: cfg.Server.Addr,
		logger:     logger,
	}
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	embedder, closeEmbedder, err := model.NewFromConfig(ctx, cfg.Embedding, logger.WithField("component", "embedder"))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeEmbedder)

	index, err := store.Open(ctx, cfg.Index, cfg.Embedding.Dimension, logger.WithField("component", "index"))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, index.Close)

	history, err := s.openHistory(ctx, cfg.History)
	if err != nil {
		return nil, err
	}

	generator, closeGenerator, err := agent.NewFromConfig(ctx, cfg.LLM, logger.WithField("component", "generator"))
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeGenerator)

	engine := rag.NewEngine(embedder, index, history, generator,
		rag.WithStrategy(rag.DefaultStrategy(cfg.Search.PrimaryLimit, cfg.Search.PrimaryThreshold, cfg.Search.FallbackLimit)),
		rag.WithHistoryWindow(cfg.History.Window),
		rag.WithLogger(logger.WithField("component", "rag")),
	)

	s.app = NewApp(engine, cfg.Server, logger, s.checks...)
	return s, nil
}

func (s *Server) openHistory(ctx context.Context, cfg types.HistoryConfig) (session.Store, error) {
	if cfg.Backend == "memory" {
		s.logger.Warn("session history kept in memory, it is lost on restart")
		return session.NewMemoryStore(cfg.TTL, nil), nil
	}

	rdb, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, rdb.Close)
	s.logger.WithField("addr", cfg.RedisAddr).Info("connected to redis")
	history := session.NewRedisStore(rdb, cfg.TTL)
	s.checks = append(s.checks, api.Check{Name: "redis", Ping: history.Ping})
	return history, nil
}

// NewApp builds the fiber app with its middleware and routes. checks back the
// readiness endpoint.
func NewApp(engine api.ChatEngine, cfg types.ServerConfig, logger *logrus.Entry, checks ...api.Check) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          api.ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger(logger.WithField("component", "http")))
	app.Use(cors.New())
	if cfg.RateLimitMax > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: time.Minute,
		}))
	}

	var (
		checkHandler   = api.NewCheckHandler(checks...)
		chatHandler    = api.NewChatHandler(engine)
		sessionHandler = api.NewSessionHandler(engine)
		check          = app.Group("/check")
		apiGroup       = app.Group(cfg.APIPrefix)
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	check.Get("/ready", checkHandler.HandleReady)
	apiGroup.Post("/chat", chatHandler.HandleChat)
	apiGroup.Get("/session/:id", sessionHandler.HandleGetHistory)
	apiGroup.Delete("/session/:id", sessionHandler.HandleClear)

	return app
}

// Run blocks until the listener stops.
func (s *Server) Run() error {
	s.logger.WithField("addr", s.listenAddr).Info("server listening")
	return s.app.Listen(s.listenAddr)
}

// Stop drains in-flight requests and releases backend connections.
func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.WithError(err).Warn("server shutdown timed out")
	}
	s.close()
	s.logger.Info("server stopped")
}

func (s *Server) close() {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.WithError(err).Warn("error releasing resources")
	}
	s.closers = nil
}
