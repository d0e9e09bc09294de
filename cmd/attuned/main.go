package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/attune-ai/attune/internal/api"
	"github.com/attune-ai/attune/internal/buildconfig"
	"github.com/attune-ai/attune/internal/config"
	"github.com/attune-ai/attune/internal/logging"
)

func main() {
	root := &cobra.Command{
		Use:   "attuned",
		Short: "attune user-modeling engine daemon",
	}
	root.AddCommand(serveCmd(), sweepCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server with the background reflection sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, pool, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer pool.Close()

			app := api.NewApp(pool, logger)

			if err := app.Reflection.StartSweeper(config.SweepSchedule(), config.SweepLimit()); err != nil {
				logger.Fatal("failed to start reflection sweeper", zap.Error(err))
			}

			addr := config.ServerAddr()
			srv := &http.Server{
				Addr:    addr,
				Handler: app.Router,
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				logger.Info("server starting",
					zap.String("addr", addr),
					zap.String("version", buildconfig.Version()),
					zap.String("commit", buildconfig.Commit()))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("server failed", zap.Error(err))
				}
			}()

			<-quit
			logger.Info("shutting down server")

			app.Reflection.StopSweeper()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Fatal("server forced to shutdown", zap.Error(err))
			}

			logger.Info("server stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one reflection sweep over eligible profiles and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, pool, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer pool.Close()

			app := api.NewApp(pool, logger)

			result, err := app.Reflection.Sweep(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			fmt.Printf("processed=%d succeeded=%d failed=%d\n",
				result.Processed, result.Succeeded, result.Failed)
			for _, e := range result.Errors {
				fmt.Fprintln(os.Stderr, e)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max profiles per sweep (0 = service default)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the attuned version",
		Run: func(cmd *cobra.Command, args []string) {
			info := buildconfig.Info()
			fmt.Printf("attuned %s (commit %s, built %s)\n", info["version"], info["commit"], info["date"])
		},
	}
}

// bootstrap loads config, builds the logger and connects to the
// database. Shared by every subcommand that touches state.
func bootstrap() (*zap.Logger, *pgxpool.Pool, error) {
	if err := config.Load(); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(config.LogLevel(), config.LogFile())
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	dbURL := config.DatabaseURL()
	if dbURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	return logger, pool, nil
}
