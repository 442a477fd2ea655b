// Command server runs the HTTP API: phone verification, contact requests,
// and ephemeral messaging over a SQLite store.
//
// Startup order: env → config → logging → database → tracing → router →
// reaper → HTTP server. Shutdown drains in-flight requests, stops the reaper,
// and flushes the trace pipeline.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vanishchat/backend/internal/config"
	httpapi "github.com/vanishchat/backend/internal/http"
	"github.com/vanishchat/backend/internal/observability"
	"github.com/vanishchat/backend/internal/repo"
	"github.com/vanishchat/backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup tracing")
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, cfg)

	if cfg.ReaperInterval > 0 {
		go runReaper(ctx, db, cfg.ReaperInterval, cfg.ReaperRetention)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}

// runReaper periodically removes rows whose lifecycle already ended at read
// time: consumed or expired OTP challenges, messages past their deletion
// instant, idle rate-limit windows, and expired idempotency records. Visibility
// never depends on it; this is storage hygiene.
func runReaper(ctx context.Context, db *gorm.DB, interval, retention time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			cutoff := time.Now().UTC().Add(-retention)
			var total int64
			if n, err := repo.DeleteExpiredOtpChallenges(ctx, db, cutoff); err == nil {
				total += n
			} else {
				log.Warn().Err(err).Msg("reap otp challenges")
			}
			if n, err := repo.DeleteExpiredMessages(ctx, db, cutoff); err == nil {
				total += n
			} else {
				log.Warn().Err(err).Msg("reap messages")
			}
			if n, err := repo.DeleteExpiredRateLimitWindows(ctx, db, cutoff); err == nil {
				total += n
			} else {
				log.Warn().Err(err).Msg("reap rate-limit windows")
			}
			if n, err := repo.DeleteExpiredIdempotency(ctx, db, cutoff); err == nil {
				total += n
			} else {
				log.Warn().Err(err).Msg("reap idempotency records")
			}
			if total > 0 {
				log.Debug().Int64("rows", total).Msg("reaper pass complete")
			}
		}
	}
}
