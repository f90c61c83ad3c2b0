package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/brushwork-ai/brushwork/internal/api"
	"github.com/brushwork-ai/brushwork/internal/gemini"
	"github.com/brushwork-ai/brushwork/internal/keypool"
	"github.com/brushwork-ai/brushwork/internal/prompt"
	"github.com/brushwork-ai/brushwork/internal/queue"
	"github.com/brushwork-ai/brushwork/internal/storage"
	"github.com/brushwork-ai/brushwork/internal/store"
	"github.com/brushwork-ai/brushwork/internal/worker"
)

// Daemon is the core Brushwork runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Store   *store.Store
	Pool    *keypool.Pool
	Manager *queue.Manager
	Files   *storage.Files
	Worker  *worker.Worker
	Server  *api.Server

	logger zerolog.Logger
	cancel context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New(version string) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg, version)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config, version string) (*Daemon, error) {
	// A .env next to the binary can carry GEMINI_API_KEY.
	_ = godotenv.Load()

	logger := newLogger(cfg.Logging.Level)

	st, err := store.Open(brushworkHome())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	keys, err := st.LoadKeys()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load keys: %w", err)
	}
	tasks, queued, err := st.LoadTasks()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	pool := keypool.New(keys, st, logger)
	// First run: seed the pool from the environment so the daemon is
	// usable before any key is added over the API.
	if pool.Size() == 0 {
		if envKey := os.Getenv("GEMINI_API_KEY"); envKey != "" {
			pool.Add(envKey)
		}
	}

	manager := queue.NewManager(tasks, queued, st, logger)

	files, err := storage.New(cfg.Storage.ImagesDir, cfg.Storage.UploadsDir, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	client := gemini.New(cfg.Gemini.ImageModel, cfg.Gemini.TextModel, logger)
	splitter := prompt.NewSplitter(pool, client, logger)

	workerCfg := worker.Config{
		PollInterval: parseDuration(cfg.Worker.PollInterval, 2*time.Second),
		RetryDelay:   parseDuration(cfg.Worker.RetryDelay, 2*time.Second),
		ItemDelay:    parseDuration(cfg.Worker.ItemDelay, time.Second),
	}
	w := worker.New(manager, pool, client, files, workerCfg, logger)

	srv := api.NewServer(manager, pool, files, splitter, version, logger)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:  cfg,
		Store:   st,
		Pool:    pool,
		Manager: manager,
		Files:   files,
		Worker:  w,
		Server:  srv,
		logger:  logger,
	}, nil
}

// Serve starts the worker and HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Repair crash leftovers before the worker starts: tasks stuck in
	// processing are re-queued at the head, stale uploads are removed.
	// This runs here rather than in New so that read-only CLI commands
	// sharing the store never mutate a live daemon's state.
	d.Manager.Reconcile()
	d.Files.CleanupUploads()

	go d.Worker.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // zip downloads can be slow
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.Store.Close()
	}()

	d.logger.Info().Str("addr", addr).Int("keys", d.Pool.Size()).Msg("brushwork serving")
	if d.Config.Telemetry.Prometheus {
		d.logger.Info().Msgf("metrics at http://%s/metrics", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}
