// chat-server is the realtime messaging backend: a WebSocket chat core with
// presence, duplicate suppression and an embedded assistant, plus the REST
// surface for group management and message history.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stafflink/go-chat-core/internal/assistant"
	"github.com/stafflink/go-chat-core/internal/chat"
	"github.com/stafflink/go-chat-core/internal/config"
	httpapi "github.com/stafflink/go-chat-core/internal/http"
	"github.com/stafflink/go-chat-core/internal/observability"
	"github.com/stafflink/go-chat-core/internal/repo"
	"github.com/stafflink/go-chat-core/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	kb, err := assistant.LoadKnowledgeBase(cfg.Assistant.DataPath, cfg.Assistant.Threshold)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Assistant.DataPath).
			Msg("knowledge file unavailable, assistant will decline everything")
		kb = assistant.NewKnowledgeBase("", cfg.Assistant.Threshold)
	}

	core := chat.New(cfg.WS, cfg.Chat, &chat.GormStore{DB: db}, kb, headerAuthenticator(), log.Logger)
	core.Start()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, core, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	core.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("server stopped")
}

// headerAuthenticator resolves WebSocket handshake identity from headers or,
// for browser clients that cannot set headers on the handshake, from query
// parameters. Verification of the credential happens upstream.
func headerAuthenticator() chat.Authenticator {
	return chat.AuthenticatorFunc(func(r *http.Request) (chat.Identity, error) {
		uid := strings.TrimSpace(sysutil.FirstNonEmpty(
			r.Header.Get("X-User-ID"), r.URL.Query().Get("user_id")))
		if uid == "" {
			return chat.Identity{}, errors.New("missing user identity")
		}
		name := strings.TrimSpace(sysutil.FirstNonEmpty(
			r.Header.Get("X-User-Name"), r.URL.Query().Get("user_name"), uid))
		return chat.Identity{UserID: uid, DisplayName: name, Role: r.Header.Get("X-User-Role")}, nil
	})
}
