// Command bot runs the lookup gateway: a webhook HTTP server in front of the
// access gate, the lookup pipeline, and the broadcast engine.
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
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nullprotocols/telegram/internal/bot"
	"github.com/Nullprotocols/telegram/internal/broadcast"
	"github.com/Nullprotocols/telegram/internal/command"
	"github.com/Nullprotocols/telegram/internal/config"
	"github.com/Nullprotocols/telegram/internal/convo"
	"github.com/Nullprotocols/telegram/internal/fetch"
	"github.com/Nullprotocols/telegram/internal/gate"
	httpapi "github.com/Nullprotocols/telegram/internal/http"
	"github.com/Nullprotocols/telegram/internal/observability"
	"github.com/Nullprotocols/telegram/internal/pipeline"
	"github.com/Nullprotocols/telegram/internal/platform"
	"github.com/Nullprotocols/telegram/internal/repo"
	"github.com/Nullprotocols/telegram/internal/sanitize"
	"github.com/Nullprotocols/telegram/internal/scheduler"
	"github.com/Nullprotocols/telegram/internal/sysutil"
)

const defaultFooter = "developer: @Nullprotocol_X\npowered_by: NULL PROTOCOL"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.LogPretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = logger

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version := sysutil.FirstNonEmpty(os.Getenv("VERSION"), "dev")
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}

	// The owner is always an admin; seeding is idempotent.
	if err := repo.AddAdmin(ctx, db, cfg.OwnerID); err != nil {
		logger.Fatal().Err(err).Msg("seed owner admin failed")
	}

	registry, err := command.NewRegistry(command.DefaultDefinitions(), command.DefaultAuditChannels())
	if err != nil {
		logger.Fatal().Err(err).Msg("command registry")
	}

	client := platform.NewTelegram(cfg.Token, cfg.APIBase, nil)

	fetchOpts := fetch.Options{
		Retries: cfg.FetchRetries,
		Timeout: cfg.FetchTimeout,
		Backoff: cfg.FetchBackoff,
	}
	if cfg.FetchRetry5xx {
		fetchOpts.RetryStatus = func(code int) bool { return code >= 500 }
	}
	fetcher := fetch.New(fetchOpts)

	sanitizer := sanitize.New(sanitize.DefaultGlobalRemoves(), sanitize.DefaultExtraRemoves())

	g := gate.New(db, gate.RepoFuncs{}, client, cfg.OwnerID, [2]gate.Channel{
		{ID: cfg.Channel1ID, URL: cfg.Channel1URL},
		{ID: cfg.Channel2ID, URL: cfg.Channel2URL},
	})

	var store convo.Store
	if cfg.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		store = convo.NewRedis(redis.NewClient(ropts), cfg.ConvoTTL)
	} else {
		store = convo.NewMemory(cfg.ConvoTTL)
	}

	footer := sysutil.FirstNonEmpty(os.Getenv("FOOTER"), defaultFooter)
	pipe := pipeline.New(db, registry, fetcher, sanitizer, client, footer, logger)

	b := &bot.Bot{
		DB:           db,
		Gate:         g,
		Pipeline:     pipe,
		Registry:     registry,
		Broadcast:    broadcast.New(cfg.BroadcastDelay, logger),
		Convo:        store,
		Client:       client,
		Log:          logger,
		DBPath:       cfg.DBPath,
		StatsChannel: cfg.StatsChannel,
	}

	cr := cron.New()
	digest := scheduler.NewDigest(db, client, cfg.StatsChannel, logger)
	if err := digest.Register(cr, cfg.DigestCron); err != nil {
		logger.Fatal().Err(err).Str("spec", cfg.DigestCron).Msg("digest schedule")
	}
	cr.Start()
	defer cr.Stop()

	r := gin.New()
	httpapi.RegisterRoutes(r, b, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.WebhookURL != "" {
		if err := client.SetWebhook(ctx, cfg.WebhookURL+cfg.WebhookPath); err != nil {
			logger.Fatal().Err(err).Msg("webhook registration failed")
		}
		logger.Info().Str("url", cfg.WebhookURL+cfg.WebhookPath).Msg("webhook registered")
	}

	eg, egctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egctx.Done()
		logger.Info().Msg("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cfg.WebhookURL != "" {
			if err := client.DeleteWebhook(sctx); err != nil {
				logger.Warn().Err(err).Msg("webhook removal")
			}
		}
		return srv.Shutdown(sctx)
	})

	if err := eg.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("gateway exited")
	}
	logger.Info().Msg("gateway stopped")
}
