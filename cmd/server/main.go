package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
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

	pgendpt, err := bankapp.NewPostgresEndpoint(cfg.Database.ConnectionString, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting database")
	}
	defer pgendpt.Close()

	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating ID node")
	}

	svc := bankapp.NewService(pgendpt, node, &logger)
	svc = bankapp.NewLimitMiddleware(bankapp.NewServiceLimits(64))(
		bankapp.NewValidationMiddleware()(
			bankapp.NewCircuitBreakMiddleware(bankapp.NewServiceBreaker())(svc),
		),
	)

	sess := bankapp.NewSessions(cfg.Session.Secret, time.Duration(cfg.Session.TTLHours)*time.Hour)
	hndlr := bankapp.NewHTTPHandler(svc, sess, pgendpt, &logger)

	logger.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := http.ListenAndServe(cfg.Addr, hndlr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
