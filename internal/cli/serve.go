package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/coffersTech/logwindow/internal/capture"
	"github.com/coffersTech/logwindow/internal/config"
	"github.com/coffersTech/logwindow/internal/engine"
	"github.com/coffersTech/logwindow/internal/logging"
	"github.com/coffersTech/logwindow/internal/server"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the log window and its management API",
		Long: `Run the log window and its management API.

The process's own zap and slog output is captured into the window, and
external producers can push records to POST /api/ingest.

Examples:
  logwindow serve --addr :9000 --size 5000
  LOGWINDOW_HTTP_TOKEN_HASH=$(logwindow hash-token s3cret) logwindow serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd, map[string]string{
				config.KeyHTTPAddr:      "addr",
				config.KeyBufferSize:    "size",
				config.KeyLogLevel:      "log-level",
				config.KeyLogFormat:     "log-format",
				config.KeyCaptureLevel:  "capture-level",
				config.KeyHost:          "host",
				config.KeyStatsInterval: "stats-interval",
			})
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("addr", ":8088", "management API listen address")
	cmd.Flags().Int("size", engine.DefaultSize, "number of events kept in the window")
	cmd.Flags().String("log-level", "info", "process log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "json", "process log format (json, console)")
	cmd.Flags().String("capture-level", "debug", "minimum level captured into the window")
	cmd.Flags().String("host", "", "host name reported on captured events (default: detected)")
	cmd.Flags().Duration("stats-interval", engine.DefaultStatsInterval, "ingestion rate sampling period")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	level := logging.ParseLevel(cfg.Log.Level)
	base, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = base.Sync() }()

	// The normalizer reports through base so its own warnings are never
	// captured.
	norm := capture.NewNormalizer(
		capture.WithHost(cfg.Host),
		capture.WithLogger(base.Named("capture")),
	)

	q, err := engine.New(engine.Config{
		Size:          cfg.Buffer.Size,
		StatsInterval: cfg.Stats.Interval,
		Host:          norm.Host(),
	}, base.Named("engine"))
	if err != nil {
		return err
	}

	captureLevel := logging.ParseLevel(cfg.Capture.Level)
	logger, err := logging.New(level, cfg.Log.Format, capture.NewZapCore(q, norm, captureLevel))
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	undo := zap.ReplaceGlobals(logger)
	defer undo()
	prevSlog := slog.Default()
	slog.SetDefault(slog.New(capture.NewSlogHandler(q, norm, &capture.SlogOptions{
		Level:  logging.SlogLevel(captureLevel),
		Logger: "logwindow",
	})))
	defer slog.SetDefault(prevSlog)

	q.Start()
	defer q.Stop()

	srv := server.New(q, norm, cfg.HTTP.TokenHash, base.Named("http"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("logwindow started",
		zap.String("instance_id", q.ID()),
		zap.Int("capacity", q.Capacity()),
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("auth", cfg.HTTP.TokenHash != ""))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(cfg.HTTP.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", zap.Error(err))
		return err
	}
	logger.Info("logwindow exited gracefully", zap.Int64("appended", q.Stats().Appended))
	return nil
}
