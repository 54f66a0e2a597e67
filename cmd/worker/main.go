// The worker consumes journal.entry.created events into the projection
// tables. With -rebuild it clears and recomputes a date range instead of
// running the live loop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/zayar/simplecashflow/internal/database"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/outbox"
	"github.com/zayar/simplecashflow/internal/projection"
)

type fileConfig struct {
	Worker projection.WorkerConfig `yaml:"worker"`
}

func main() {
	rebuild := flag.Bool("rebuild", false, "rebuild projections for -tenant over [-from, -to] and exit")
	tenantID := flag.Int64("tenant", 0, "tenant id for -rebuild")
	fromFlag := flag.String("from", "", "rebuild range start (YYYY-MM-DD)")
	toFlag := flag.String("to", "", "rebuild range end (YYYY-MM-DD)")
	flag.Parse()

	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable required")
	}

	cfg := fileConfig{Worker: projection.DefaultWorkerConfig()}
	if path := os.Getenv("WORKER_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to read worker config")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to parse worker config")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	ledgerService := ledger.NewService(pool, outbox.NewRepository(pool))
	worker := projection.NewWorker(pool, ledgerService, cfg.Worker)

	if *rebuild {
		if *tenantID <= 0 || *fromFlag == "" || *toFlag == "" {
			log.Fatal().Msg("-rebuild requires -tenant, -from and -to")
		}
		from, err := time.Parse("2006-01-02", *fromFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -from date")
		}
		to, err := time.Parse("2006-01-02", *toFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid -to date")
		}
		if err := worker.Rebuild(ctx, *tenantID, from, to); err != nil {
			log.Fatal().Err(err).Msg("Rebuild failed")
		}
		return
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("Shutting down worker...")
		cancel()
	}()

	worker.Run(ctx)
}
