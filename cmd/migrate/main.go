// migrate applies migrations/schema.sql to the target database.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zayar/simplecashflow/internal/database"
)

func main() {
	schemaPath := flag.String("schema", "migrations/schema.sql", "path to the schema file")
	flag.Parse()

	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal().Msg("DATABASE_URL environment variable required")
	}

	raw, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *schemaPath).Msg("Failed to read schema")
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, string(raw)); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Str("path", *schemaPath).Msg("Schema applied")
}
