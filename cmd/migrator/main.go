package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	bankapp "github.com/vandana0100/student-banking-app"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	migrationsPath := flag.String("migrations-path", "./migrations", "path to migrations")
	flag.Parse()

	cfg, err := bankapp.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading configuration")
	}

	m, err := migrate.New("file://"+*migrationsPath, cfg.Database.ConnectionString)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening migrations")
	}
	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("no migrations to apply")
			return
		}
		logger.Fatal().Err(err).Msg("error applying migrations")
	}

	logger.Info().Msg("migrations applied successfully")
}
