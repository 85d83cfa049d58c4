package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blocchat/gatekeeper/adapters/events"
	"github.com/blocchat/gatekeeper/adapters/oracle"
	"github.com/blocchat/gatekeeper/adapters/policy"
	"github.com/blocchat/gatekeeper/adapters/store"
	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/internal/config"
	"github.com/blocchat/gatekeeper/ports"
	"github.com/blocchat/gatekeeper/service"
	"github.com/blocchat/gatekeeper/transport/http"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	whitelist := core.NewWhitelist(cfg.AdminAddresses)
	if len(whitelist) == 0 {
		log.Warn().Msg("ADMIN_ADDRESSES is empty, no wallet can authenticate")
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	policyStore, err := policy.NewGormStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare gate policy store")
	}

	var (
		challenges ports.ChallengeStore
		sessions   ports.SessionStore
		publisher  ports.EventPublisher
	)
	if cfg.RedisURL != "" {
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()

		challenges = store.NewRedisChallengeStore(client, cfg.NonceTTL)
		sessions = store.NewRedisSessionStore(client)

		wmPublisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: client},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = events.NewWatermillPublisher(wmPublisher)
		log.Info().Msg("using redis-backed stores")
	} else {
		challenges = store.NewMemoryChallengeStore()
		sessions = store.NewMemorySessionStore()
		log.Info().Msg("using in-memory stores")
	}

	balanceOracle, err := oracle.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatal().Err(err).Str("rpc_url", cfg.RPCURL).Msg("failed to connect to rpc node")
	}

	nonceManager := service.NewNonceManager(challenges, cfg.NonceTTL)
	sessionManager := service.NewSessionManager(sessions, cfg.SessionTTL)
	authService := service.NewAuthService(whitelist, nonceManager, sessionManager, publisher, log)
	gateService := service.NewGateService(policyStore, balanceOracle, cfg.GateRPCTimeout, cfg.GateConcurrent, log)

	sweeper := service.NewSweeper(nonceManager, sessionManager, cfg.SweepInterval, log)
	go sweeper.Run(ctx)

	router := http.SetupRouter(authService, gateService, db, cfg.CORSAllowedOrigins, log)

	log.Info().Str("addr", cfg.Addr()).Int("admins", len(whitelist)).Msg("starting gatekeeper")
	if err := router.Run(cfg.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if cfg.LogPretty {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(level).With().Timestamp().Logger()
}
