package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/codecollab/execd/internal/admission"
	"github.com/codecollab/execd/internal/api"
	"github.com/codecollab/execd/internal/config"
	"github.com/codecollab/execd/internal/database"
	"github.com/codecollab/execd/internal/events"
	"github.com/codecollab/execd/internal/executor"
	"github.com/codecollab/execd/internal/languages"
	"github.com/codecollab/execd/internal/queue"
	"github.com/codecollab/execd/internal/sandbox"
	"github.com/codecollab/execd/internal/service"
	"github.com/codecollab/execd/internal/store"
	"github.com/codecollab/execd/internal/store/postgres"
	"github.com/codecollab/execd/internal/worker"
)

const eventBufferSize = 64

type Server struct {
	conf       *config.Config
	logger     *zerolog.Logger
	httpServer *http.Server
	db         *database.Database
	registry   *languages.Registry
	sandbox    sandbox.Sandbox
	pool       *worker.Pool
	bridge     *events.Bridge
	cancelFunc context.CancelFunc
}

func New(conf *config.Config, logger *zerolog.Logger) (*Server, error) {
	var db *database.Database
	var st store.Store

	switch conf.StoreBackend {
	case "postgres":
		var err error
		db, err = database.New(conf, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		st = postgres.New(db.Pool)
	case "memory":
		st = store.NewMemory()
	}

	registry := languages.NewRegistry(conf.Images)

	sb, err := sandbox.NewDockerSandbox(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}

	exec := executor.NewExecutor(registry, sb)
	q := queue.NewManager(queue.Config{
		Capacity:    conf.Exec.QueueCapacity,
		MaxAttempts: conf.Exec.MaxAttempts,
		BackoffBase: conf.Exec.BackoffBase,
	})
	bridge := events.NewBridge(eventBufferSize, logger)
	pool := worker.NewPool(exec, q, st, bridge, conf.Exec, logger)

	adm := admission.NewController(conf.Exec.AdmissionWindow, conf.Exec.AdmissionMax)
	adm.StartCleanup(5 * time.Minute)

	var rooms service.RoomDirectory = service.OpenRooms{}
	if conf.Rooms.Mode == "seeded" {
		rooms = service.SeedMemoryRooms(conf.Rooms.Seed)
	}
	svc := service.New(rooms, adm, q, st, bridge, logger)
	handler := api.NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-User-Id"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Group(handler.Routes)

	httpServer := &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      r,
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	return &Server{
		conf:       conf,
		logger:     logger,
		httpServer: httpServer,
		db:         db,
		registry:   registry,
		sandbox:    sb,
		pool:       pool,
		bridge:     bridge,
	}, nil
}

// Bridge exposes the event bridge so the real-time layer can subscribe to
// room-scoped execution events.
func (s *Server) Bridge() *events.Bridge {
	return s.bridge
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("port", s.conf.Server.Port).
		Msg("starting HTTP server")

	// All language images must be present before accepting work.
	if err := s.ensureImages(context.Background()); err != nil {
		return fmt.Errorf("failed to ensure sandbox images: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.pool.Start(ctx)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) ensureImages(ctx context.Context) error {
	uniqueImages := make(map[string]bool)
	for _, rt := range s.registry.List() {
		uniqueImages[rt.Config.Image] = true
	}

	for img := range uniqueImages {
		if err := s.sandbox.EnsureImage(ctx, img); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.pool.Wait()

	if s.db != nil {
		_ = s.db.Close()
	}

	return nil
}
