package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"kgraph/infrastructure/config"
	"kgraph/infrastructure/snapshot"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout bounds graceful HTTP shutdown
const ShutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the graph over HTTP. While running, a snapshot of the graph is
written periodically and once more on shutdown, and changes to the
config file's log level are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, rootOpts *RootOptions) error {
	container, cleanup, err := startGraph(ctx, rootOpts)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg, logger := container.Config, container.Logger
	instanceID := uuid.NewString()
	logger = logger.With(zap.String("instance", instanceID))

	listener, err := net.Listen("tcp", cfg.ServerAddress)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", listener.Addr().String()),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.SnapshotPath != "" {
		saver := snapshot.NewSaver(container.Engine, container.Snapshots, cfg.SnapshotInterval, logger, container.Metrics)
		g.Go(func() error {
			return saver.Run(gctx)
		})
	}

	if cfg.File != "" {
		watcher, err := config.NewWatcher(cfg, logger)
		if err != nil {
			logger.Warn("Config watcher disabled", zap.Error(err))
		} else {
			watcher.OnChange(config.LevelUpdater(container.LogLevel, logger))
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}
