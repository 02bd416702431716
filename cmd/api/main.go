package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"opsdesk/api/internal/app"
	"opsdesk/api/internal/config"
	"opsdesk/api/internal/email"
	"opsdesk/api/internal/files"
	"opsdesk/api/internal/logging"
	"opsdesk/api/internal/search"
	"opsdesk/api/internal/session"
	"opsdesk/api/internal/sheetdb"
	"opsdesk/api/internal/sheets"
	"opsdesk/api/internal/store"
)

func main() {
	logger := logging.New(nil)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	ctx := context.Background()

	gateway, err := sheets.NewGoogle(ctx, cfg.CredentialsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to sheets api")
	}

	dataStore := store.New(sheetdb.New(gateway), cfg.SpreadsheetID)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient)

	var sessions app.RefreshStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		logger.Info().Msg("using redis for refresh token storage")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to redis")
		}
		defer redisStore.Close()
		sessions = redisStore
	} else {
		logger.Info().Msg("using in-memory refresh token storage")
		sessions = session.NewMemoryStore()
	}

	var emailService *email.Service
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		emailService = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}

	var fileService *files.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		fileService, err = files.New(ctx, files.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to object storage")
		}
	}

	service := app.NewService(cfg, dataStore, sessions, searchService, emailService, fileService, logger)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn().Err(err).Msg("bootstrap failed, will retry on next restart")
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("opsdesk api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
