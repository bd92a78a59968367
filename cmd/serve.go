package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"exposureshield/internal/api"
	"exposureshield/internal/api/handler/v1handler"
	"exposureshield/internal/config"
	"exposureshield/internal/feedback"
	"exposureshield/internal/worker"
	"exposureshield/pkg/logger"
	"exposureshield/pkg/metrics"
	"exposureshield/pkg/notify/sendgrid"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func setupServer(ctx context.Context, deps api.Deps, cfg *config.Config) func(ctx context.Context) {
	server := api.NewServer(deps, api.NewOptions(cfg))

	go func() {
		logger.Info(ctx, "starting webserver...", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts API server and background workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			meterProvider, err := metrics.Setup(prometheus.DefaultRegisterer)
			if err != nil {
				logger.Fatal(ctx, "could not setup metrics", zap.Error(err))
			}

			strg, dbPool, closeStrg := getStorage(ctx, cfg)
			defer closeStrg()

			redisClient, closeRedis := getRedis(ctx, cfg)
			defer closeRedis()

			store := newCache(cfg, redisClient)
			limiter := newLimiter(cfg, redisClient)
			go limiter.RunReaper(ctx, cfg.RateLimit.ReapInterval)

			deps := api.Deps{Deps: v1handler.Deps{
				Exposure: newAggregator(ctx, cfg, store),
				Feedback: feedback.New(
					strg,
					newChallengeCodec(ctx, cfg, redisClient),
					newTurnstile(cfg),
					feedback.NewOptions(cfg),
				),
				Limiter: limiter,
			}}
			if cfg.ScanLog.Enabled {
				deps.ScanLogs = strg
			}

			if cfg.Notify.Enabled && dbPool != nil {
				sender := sendgrid.New(
					&http.Client{Timeout: cfg.Notify.Timeout},
					cfg.Notify.SendGridAPIKey,
					cfg.Notify.BaseURL,
				)
				riverClient, err := worker.Start(ctx, dbPool, strg, sender, worker.NewOptions(cfg))
				if err != nil {
					logger.Fatal(ctx, "could not start workers", zap.Error(err))
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
					defer cancel()

					logger.Info(ctx, "stopping workers...")
					if err := riverClient.Stop(shutdownCtx); err != nil {
						logger.Error(ctx, "could not stop workers", zap.Error(err))
					}
				}()
			}

			stopWebserver := setupServer(ctx, deps, cfg)

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)

			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				logger.Warn(ctx, "could not shutdown meter provider", zap.Error(err))
			}
		},
	}

	return cmd
}
