package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/horsebet/keiba-autovote/internal/automation"
	"github.com/horsebet/keiba-autovote/internal/dispatch"
	"github.com/horsebet/keiba-autovote/internal/httpapi"
	"github.com/horsebet/keiba-autovote/internal/odds"
	"github.com/horsebet/keiba-autovote/internal/shared/cache"
	"github.com/horsebet/keiba-autovote/internal/shared/config"
	"github.com/horsebet/keiba-autovote/internal/shared/db"
	sharedkafka "github.com/horsebet/keiba-autovote/internal/shared/kafka"
	"github.com/horsebet/keiba-autovote/internal/shared/logger"
	"github.com/horsebet/keiba-autovote/internal/shared/metrics"
	"github.com/horsebet/keiba-autovote/internal/vote"
)

func main() {
	if os.Getenv("SERVICE_NAME") == "" {
		os.Setenv("SERVICE_NAME", "vote-service")
	}
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers
	outcomeWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicVoteOutcomes)
	defer outcomeWriter.Close()
	oddsWriter := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOddsSnapshots)
	defer oddsWriter.Close()

	// deps
	store := dispatch.NewStore(pg)
	creds := dispatch.NewCredentialStore(pg)
	publisher := dispatch.NewOutcomePublisher(outcomeWriter, log)

	surfaces := func(ctx context.Context, headless bool) (vote.Surface, error) {
		return automation.NewDriver(ctx, automation.Options{
			Headless:   headless,
			ProfileDir: cfg.ProfileDir,
		}, log)
	}

	runner := dispatch.NewRunner(store, creds, publisher, surfaces, dispatch.RunnerConfig{
		Concurrency:     cfg.JobConcurrency,
		HeadlessDefault: cfg.Headless,
		IPATBaseURL:     cfg.IPATBaseURL,
		SPAT4BaseURL:    cfg.SPAT4BaseURL,
	}, log)

	oddsCache := odds.NewCache(rdb, cfg.RedisOddsChannel)
	oddsFetcher := odds.NewFetcher(odds.SurfaceFactory(surfaces), cfg.OddsBaseURL, log)
	oddsService := odds.NewService(oddsFetcher, oddsCache, oddsWriter, log)

	// HTTP público
	api := httpapi.NewServer(runner, store, oddsService, cfg.ServiceAPIKey, log)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Handler(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	go func() {
		log.Info("vote-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api", zap.Error(err))
		}
	}()

	// Shutdown: para de aceitar jobs novos e espera os em voo terminarem.
	// Derrubar um job no meio podia deixar uma aposta sem desfecho registrado.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down, waiting for in-flight vote jobs")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	runner.Wait()
	log.Info("vote-service stopped")
}
