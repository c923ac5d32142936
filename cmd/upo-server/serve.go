package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/upo/upo/internal/config"
	"github.com/upo/upo/internal/domain/draft"
	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/domain/summary"
	"github.com/upo/upo/internal/platform/auth"
	"github.com/upo/upo/internal/platform/blobstore"
	"github.com/upo/upo/internal/platform/db"
	"github.com/upo/upo/internal/platform/metrics"
	"github.com/upo/upo/internal/platform/middleware"
	"github.com/upo/upo/internal/platform/websocket"
	"github.com/upo/upo/internal/platform/workspace"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the form API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

// server is the assembled HTTP application and the resources it owns.
type server struct {
	echo    *echo.Echo
	drafts  *draft.Service
	closers []func() error
	logger  zerolog.Logger
}

// close flushes every open form and releases the draft backend.
func (s *server) close(ctx context.Context) error {
	errs := []error{s.drafts.FlushAll(ctx)}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

func openDrafts(ctx context.Context, cfg *config.Config) (draft.Repository, *pgxpool.Pool, func() error, error) {
	switch cfg.DraftBackend {
	case config.BackendMemory:
		return draft.NewMemoryRepo(), nil, func() error { return nil }, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return draft.NewDraftRepoPG(pool), pool, func() error { pool.Close(); return nil }, nil
	default:
		repo, err := draft.NewSQLiteRepo(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		closer := func() error { return nil }
		if c, ok := repo.(io.Closer); ok {
			closer = c.Close
		}
		return repo, nil, closer, nil
	}
}

func openArtifacts(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.ArtifactBackend != config.ArtifactS3 {
		return blobstore.NewInMemoryBlobStore(), nil
	}
	return blobstore.NewS3BlobStore(ctx, blobstore.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PathStyle: cfg.S3PathStyle,
		Prefix:    cfg.S3Prefix,
	})
}

func newServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	repo, pool, closeRepo, err := openDrafts(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s draft store: %w", cfg.DraftBackend, err)
	}
	artifacts, err := openArtifacts(ctx, cfg)
	if err != nil {
		_ = closeRepo()
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	m := metrics.New()
	catalog := form.DefaultCatalog()

	store := draft.NewStore(repo, catalog, logger)
	store.SetMetrics(m)
	feed := websocket.NewHub(logger)
	store.SetPublisher(feed)
	drafts := draft.NewService(store, cfg.AutosaveDelay, logger)

	summaries := summary.NewService(summary.NewComposer(cfg.PastebinBaseURL), drafts, catalog, artifacts, logger)
	summaries.SetMetrics(m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderXRequestID, workspace.HeaderWorkspaceID},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderLocation, "X-Reminder-ID"},
	}))

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("development auth active: every request is admitted as admin")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.Skipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/store", db.HealthHandler(cfg.DraftBackend, store, pool))
	e.GET("/metrics", m.Handler())

	api := e.Group("/api/v1",
		workspace.Middleware(cfg.DefaultWorkspace),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
		middleware.RequestTimeout(cfg.RequestTimeout),
	)
	draft.NewHandler(drafts).RegisterRoutes(api)
	summary.NewHandler(summaries).RegisterRoutes(api)
	websocket.NewHandler(feed).RegisterRoutes(api)

	return &server{
		echo:    e,
		drafts:  drafts,
		closers: []func() error{closeRepo},
		logger:  logger,
	}, nil
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info().Str("drafts", cfg.DraftBackend).Str("artifacts", cfg.ArtifactBackend).Msg("stores ready")

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		_ = srv.close(ctx)
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := srv.close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("flushing drafts failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
