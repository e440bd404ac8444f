package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mossy-p/call-signaling/config"
	"github.com/mossy-p/call-signaling/internal/logging"
	"github.com/mossy-p/call-signaling/internal/redis"
	"github.com/mossy-p/call-signaling/internal/relay"
	"github.com/mossy-p/call-signaling/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "signaling",
		Short:         "WebRTC signaling relay for two-party calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, envFile, cmd.Flags().Changed("env-file"))
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	return cmd
}

func run(ctx context.Context, envFile string, envFileRequired bool) error {
	// Load configuration
	cfg, err := config.Load(envFile, envFileRequired)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	var observer relay.Observer
	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Error("redis unavailable", zap.Error(err))
			return err
		}
		defer client.Close()

		presence := redis.NewPresence(client, logger.Named("presence"))
		if err := presence.Clear(ctx); err != nil {
			logger.Warn("failed to clear stale presence", zap.Error(err))
		}
		go presence.Run(ctx)
		observer = presence

		logger.Info("redis presence mirror enabled", zap.String("addr", cfg.Redis.Addr()))
	}

	r := relay.New(logger.Named("relay"), observer)
	srv := server.New(cfg, r, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	return nil
}
