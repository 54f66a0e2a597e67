// The publisher drains the transactional outbox to the downstream bus.
// It runs as its own process; a cron ping drives extra ticks in
// cold-start environments where the steady loop may have just started.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/outbox"
)

type fileConfig struct {
	Publisher outbox.PublisherConfig `yaml:"publisher"`
	// PingSchedule is a cron expression for the cold-start ping.
	PingSchedule string `yaml:"ping_schedule"`
}

func main() {
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable required")
	}

	cfg := fileConfig{Publisher: outbox.DefaultPublisherConfig()}
	if path := os.Getenv("PUBLISHER_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read publisher config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to parse publisher config")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	repo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(repo, outbox.LogBus{}, cfg.Publisher)

	// Cold-start ping: fire a tick on a schedule in addition to the
	// steady loop, so freshly started replicas drain promptly.
	var pinger *cron.Cron
	if cfg.PingSchedule != "" {
		pinger = cron.New()
		if _, err := pinger.AddFunc(cfg.PingSchedule, func() {
			if _, err := publisher.Tick(ctx); err != nil {
				log.Error().Err(err).Msg("scheduled publisher tick failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.PingSchedule).Msg("Invalid ping schedule")
		}
		pinger.Start()
		log.Info().Str("schedule", cfg.PingSchedule).Msg("publisher ping scheduled")
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("Shutting down publisher...")
		if pinger != nil {
			<-pinger.Stop().Done()
		}
		cancel()
	}()

	publisher.Run(ctx)
}
