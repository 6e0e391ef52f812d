package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog"

	bankapp "github.com/vandana0100/student-banking-app"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	cfg, err := bankapp.LoadConfig(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error loading configuration")
	}

	lh, err := bankapp.NewLocalHelper(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting local helper")
	}
	if _, err = lh.InitDB(); err != nil {
		logger.Fatal().Err(err).Msg("error initializing database")
	}
	if err = lh.PrepareDemoAccounts(); err != nil {
		logger.Fatal().Err(err).Msg("error preparing demo accounts")
	}
}
