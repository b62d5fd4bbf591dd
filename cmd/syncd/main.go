package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kunj2210/codeduel-sync/internal/config"
	"github.com/kunj2210/codeduel-sync/internal/httpapi"
	"github.com/kunj2210/codeduel-sync/internal/logging"
	"github.com/kunj2210/codeduel-sync/internal/realtime"
	"github.com/kunj2210/codeduel-sync/internal/store"
	"github.com/kunj2210/codeduel-sync/internal/streak"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "Companion daemon hosting the Code-duel sync core",
	Long: `syncd runs the real-time stream coordinator and the local streak
engine, exposing both to UI code over a small HTTP surface. Multiple
instances sharing a Redis bus elect a single stream leader between them.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "optional .env file to load")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load(envFile)

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Local activity log storage.
	var kv store.KV
	if cfg.DataPath != "" {
		kv, err = store.OpenBolt(cfg.DataPath)
		if err != nil {
			return fmt.Errorf("open data file: %w", err)
		}
	} else {
		kv = store.NewMemory()
	}
	defer kv.Close()

	// Cross-instance broadcast bus.
	var bus realtime.Bus
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(cmd.Context()).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		bus = realtime.NewRedisBus(rdb, realtime.DefaultChannel, logger)
		logger.Info("using redis bus", zap.String("addr", cfg.RedisAddr))
	} else {
		bus = realtime.NewMemoryBus()
		logger.Info("using in-process bus")
	}

	wsBase, err := realtime.StreamBaseURL(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	co := realtime.NewCoordinator(realtime.Config{
		WSBaseURL:            wsBase,
		ElectionWindow:       cfg.ElectionWindow,
		ReconnectBase:        cfg.ReconnectBase,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		PollInterval:         cfg.PollInterval,
		PollRetryInterval:    cfg.PollRetryInterval,
	}, bus, realtime.NewWebSocketDialer(), logger)
	if err := co.Start(); err != nil {
		return fmt.Errorf("start coordinator: %w", err)
	}
	defer co.Stop()

	eng := streak.NewEngine(kv, logger)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(co, eng),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
