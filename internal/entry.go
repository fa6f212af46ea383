// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/facdocs/internal/api"
	"github.com/starford/facdocs/internal/auth"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/mcpserver"
	"github.com/starford/facdocs/internal/nodestore"
	"github.com/starford/facdocs/internal/ratelimit"
	"github.com/starford/facdocs/internal/sse"
	"github.com/starford/facdocs/internal/storage"
	pkgconfig "github.com/starford/facdocs/pkg/config"
)

// Run starts the HTTP service with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	out := app.logOutput
	if out == nil {
		out = os.Stdout
		if cfg.App.LogFormat == LogFormatText {
			out = os.Stderr
		}
	}
	logger := newLogger(cfg.App.LogFormat, out, level)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("public_url", cfg.App.PublicURL),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("blobs_driver", cfg.Blobs.Driver),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	c.svc.OnChange(broker.PublishItemEvent)

	var limiter *ratelimit.Limiter
	if rl := cfg.Auth.LoginRate; rl.Requests > 0 {
		limiter = ratelimit.NewLimiter(rl.Requests, rl.Window, rl.Burst)
		defer limiter.Close()
	}

	handler := api.NewRouter(api.Deps{
		Service:      c.svc,
		Auth:         auth.New(cfg.Auth.Authenticator()),
		Events:       broker,
		Blobs:        c.fsBlobs,
		LoginLimiter: limiter,
		CORSOrigins:  cfg.App.CORSOrigins,
		AccessLog:    cfg.App.AccessLog,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Sweep blobs left behind by interrupted uploads and deletes.
	if sw := cfg.Tree.OrphanSweep; sw.Interval > 0 {
		g.Go(func() error {
			c.svc.RunSweeper(gCtx, sw.Interval, sw.Grace)
			return nil
		})
	}

	// Apply log level changes from the config file.
	if app.configFile != "" {
		g.Go(func() error {
			err := pkgconfig.Watch(gCtx, app.configFile, NewDefaultConfig,
				func(next *Config) {
					if next.App.LogLevel != level.Level() {
						level.Set(next.App.LogLevel)
						logger.Info("log level changed", slog.String("log_level", next.App.LogLevel.String()))
					}
				},
				func(err error) {
					logger.Warn("config reload failed", slog.String("error", err.Error()))
				})
			if err != nil {
				logger.Warn("config watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		// Stops the sweeper and the config watcher.
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the document tree as MCP tools on stdin/stdout. Logs go to
// stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	level := new(slog.LevelVar)
	level.Set(cfg.App.LogLevel)
	out := app.logOutput
	if out == nil {
		out = os.Stderr
	}
	logger := newLogger(cfg.App.LogFormat, out, level)
	slog.SetDefault(logger)

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	version := app.version
	if version == "" {
		version = "dev"
	}
	logger.Info("MCP server starting", slog.String("version", version))
	return mcpserver.New(c.svc, version).ServeStdio()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// components are the long-lived stores behind the tree service.
type components struct {
	store   nodestore.Store
	blobs   storage.Provider
	fsBlobs *storage.FS
	svc     *doctree.Service
	closers []func() error
}

func (c *components) close(logger *slog.Logger) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

// build opens the configured node store and blob store and creates the tree
// service over them.
func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	switch cfg.Store.Driver {
	case StoreMongo:
		m, err := nodestore.OpenMongo(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		c.store = m
	default:
		db, err := nodestore.OpenSQLite(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		c.store = db
	}
	c.closers = append(c.closers, c.store.Close)

	switch cfg.Blobs.Driver {
	case BlobsGCS:
		g, err := storage.NewGCS(ctx, cfg.Blobs.Bucket, cfg.Blobs.CredentialsFile)
		if err != nil {
			c.close(logger)
			return nil, fmt.Errorf("init blobs: %w", err)
		}
		c.blobs = g
		c.closers = append(c.closers, g.Close)
	default:
		key := []byte(cfg.Blobs.SigningKey)
		if len(key) == 0 {
			key = make([]byte, 32)
			if _, err := rand.Read(key); err != nil {
				c.close(logger)
				return nil, fmt.Errorf("generate signing key: %w", err)
			}
			logger.Warn("blobs.signing_key is empty, download links will not survive a restart")
		}
		local, err := storage.NewFS(cfg.Blobs.Root, storage.NewSigner(key, cfg.App.PublicURL+"/api/blobs"))
		if err != nil {
			c.close(logger)
			return nil, fmt.Errorf("init blobs: %w", err)
		}
		c.blobs = local
		c.fsBlobs = local
	}

	c.svc = doctree.NewService(c.store, c.blobs, logger, doctree.Options{
		DeleteConcurrency: cfg.Tree.DeleteConcurrency,
		URLTTL:            cfg.Blobs.URLTTL,
		MaxUploadBytes:    cfg.Blobs.MaxUploadBytes,
		SeedFacilityRoot:  cfg.Tree.SeedFacilityRoot,
	})
	return c, nil
}
