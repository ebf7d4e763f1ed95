package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kodal/kodal/pkg/cache"
	"github.com/kodal/kodal/pkg/config"
	"github.com/kodal/kodal/pkg/coord"
	"github.com/kodal/kodal/pkg/events"
	"github.com/kodal/kodal/pkg/gateway"
	"github.com/kodal/kodal/pkg/health"
	"github.com/kodal/kodal/pkg/keyring"
	"github.com/kodal/kodal/pkg/log"
	"github.com/kodal/kodal/pkg/metrics"
	"github.com/kodal/kodal/pkg/ratelimit"
	"github.com/kodal/kodal/pkg/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the gateway: load configuration, wire the components, and serve
the JSON API until SIGINT or SIGTERM. In-flight requests drain within
the configured shutdown deadline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.Log.Level),
			JSONOutput: !cfg.Log.Console,
		})
		logger := log.WithComponent("serve")

		broker := events.NewBroker()
		broker.Start()

		keys, err := keyring.New(keyring.Options{
			Primary:       cfg.Keys.Primary,
			PrimaryExpiry: cfg.Keys.PrimaryExpiry,
			Services:      cfg.Keys.Services,
			Logger:        log.WithComponent("keyring"),
			Broker:        broker,
		})
		if err != nil {
			return err
		}
		keys.CheckExpiry()

		store := cache.New(cache.Options{
			MaxEntries: cfg.Cache.MaxEntries,
			MaxBytes:   cfg.Cache.MaxBytes,
			Logger:     log.WithComponent("cache"),
		})

		limiter := ratelimit.New(ratelimit.Options{
			Logger: log.WithComponent("ratelimit"),
			Broker: broker,
		})
		limiter.Start()

		engine := coord.New(coord.Options{
			StrictKoreaBounds: cfg.Coordinate.StrictKoreaBounds,
			Logger:            log.WithComponent("coord"),
		})

		client := upstream.New(upstream.Config{
			BaseURL:         cfg.Upstream.BaseURL,
			Timeout:         cfg.Upstream.Timeout(),
			MaxRetries:      cfg.Upstream.MaxRetries,
			RetryDelay:      cfg.Upstream.RetryDelay(),
			Provider:        "address",
			EnableCache:     cfg.Upstream.EnableCache,
			EnableRateLimit: cfg.Upstream.EnableRateLimit,
			EnableBreaker:   cfg.Upstream.EnableBreaker,
		}, upstream.Deps{
			Keys:    keys,
			Limiter: limiter,
			Cache:   store,
			Logger:  log.WithComponent("upstream"),
			Broker:  broker,
		})

		thresholds := health.Thresholds{
			CacheMemoryPercent: cfg.Health.CacheMemoryPercent,
			BlockRatePercent:   cfg.Health.BlockRatePercent,
			SuccessRatePercent: cfg.Health.SuccessRatePercent,
		}
		aggregator := health.NewAggregator(log.WithComponent("health"),
			health.NewKeyringChecker(keys),
			health.NewCacheChecker(store, thresholds),
			health.NewLimiterChecker(limiter, thresholds),
			health.NewUpstreamChecker(client, thresholds),
		)

		collector := metrics.NewCollector(keys, store, limiter, client)
		collector.Start()

		server := gateway.New(gateway.Config{
			Addr:            cfg.Server.Addr,
			Production:      cfg.Production(),
			ShutdownTimeout: time.Duration(cfg.Server.ShutdownSeconds) * time.Second,
		}, gateway.Deps{
			Keys:     keys,
			Cache:    store,
			Limiter:  limiter,
			Engine:   engine,
			Upstream: client,
			Health:   aggregator,
			Broker:   broker,
			Logger:   log.WithComponent("gateway"),
		})

		errCh := make(chan error, 1)
		go func() {
			if err := server.Start(); err != nil {
				errCh <- fmt.Errorf("gateway error: %w", err)
			}
		}()

		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("env", cfg.Env).
			Str("version", Version).
			Msg("Kodal started")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		case err := <-errCh:
			logger.Error().Err(err).Msg("Gateway failed")
			return err
		}

		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Drain did not complete cleanly")
		}
		collector.Stop()
		limiter.Stop()
		broker.Stop()

		logger.Info().Msg("Shutdown complete")
		return nil
	},
}
