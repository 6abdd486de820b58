package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/guestdesk/backend/internal/config"
	"github.com/guestdesk/backend/internal/db"
	httpapi "github.com/guestdesk/backend/internal/http"
	"github.com/guestdesk/backend/internal/service"
	"github.com/guestdesk/backend/internal/wechat"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "guestdesk-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	var wechatClient wechat.Client
	if cfg.WeChatAPIURL == "" {
		wechatClient = wechat.MockClient{Logger: logger}
		logger.Info().Msg("using mock wechat client")
	} else {
		wechatClient = wechat.HTTPClient{BaseURL: cfg.WeChatAPIURL}
	}

	router := httpapi.Router(cfg, store, wechatClient, logger)

	if cfg.RescanSchedule != "" {
		sweeper := &service.Sweeper{
			Store: store,
			Routing: &service.RoutingService{
				Store:                 store,
				Logger:                logger,
				FallbackOnUnavailable: cfg.FallbackOnUnavailable,
			},
			Logger: logger,
		}
		if err := sweeper.Start(cfg.RescanSchedule); err != nil {
			logger.Fatal().Err(err).Msg("failed to start assignment sweeper")
		}
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
