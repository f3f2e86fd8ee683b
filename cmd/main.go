// Package main runs the minutes ledger API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/minutes-ledger/cmd/httpserver"
	"github.com/go-petr/minutes-ledger/internal/eventpublisher"
	"github.com/go-petr/minutes-ledger/internal/middleware"
	"github.com/go-petr/minutes-ledger/pkg/configpkg"
	"github.com/go-petr/minutes-ledger/pkg/dbpkg"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.CreateLogger(config)

	// Fatal is only called once run has returned and its deferred cleanup is done.
	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Send()
	}
}

func run(config configpkg.Config, logger zerolog.Logger) error {
	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot connect to database")
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("cannot close database")
		}
	}()

	publisher := eventpublisher.New(config.Brokers(), config.KafkaTopic)

	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("cannot close event publisher")
		}
	}()

	if config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := httpserver.New(db, logger, config, publisher)
	if err != nil {
		return pkgerrors.Wrap(err, "cannot create server")
	}

	srv := &http.Server{
		Addr:              config.ServerAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", config.ServerAddress).Msg("MINUTES LEDGER SERVER HAS STARTED")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return pkgerrors.Wrap(err, "cannot start server")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("MINUTES LEDGER SERVER HAS STOPPED")

	return nil
}
