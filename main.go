package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veilvote/veilvote/anchor"
	"github.com/veilvote/veilvote/cliparse"
	"github.com/veilvote/veilvote/db"
	"github.com/veilvote/veilvote/handlers"
	"github.com/veilvote/veilvote/middleware"
	"github.com/veilvote/veilvote/nonce"
	"github.com/veilvote/veilvote/ratelimit"
	"github.com/veilvote/veilvote/router"
)

func main() {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		logger.Fatal("failed to parse configuration", zap.Error(err))
	}

	driver := "sqlite"
	if cfg.DatabaseType == "postgres" {
		driver = "postgres"
	}
	dbConn, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := dbConn.Ping(); err != nil {
		logger.Fatal("database ping failed", zap.Error(err))
	}
	if err := db.CreateSchema(dbConn); err != nil {
		logger.Fatal("schema creation failed", zap.Error(err))
	}
	logger.Info("database schema ready", zap.String("driver", driver))

	// Nonces and rate-limit counters live in redis when configured, so
	// consumption and lockouts hold across instances. Without redis the
	// in-process stores cover single-node deployments.
	var nonceStore nonce.Store
	var rlStore ratelimit.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid redis URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("redis ping failed", zap.Error(err))
		}
		defer client.Close()
		nonceStore = nonce.NewRedisStore(client)
		rlStore = ratelimit.NewRedisStore(client)
		logger.Info("using redis stores")
	} else {
		nonceStore = nonce.NewMemoryStore()
		rlStore = ratelimit.NewMemoryStore()
		logger.Info("using in-process stores")
	}

	deps, err := handlers.NewDeps(dbConn, cfg, nonceStore, rlStore, logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}

	var anchorClient anchor.Client
	if cfg.AnchorEndpoint != "" {
		ethClient, err := anchor.DialEth(context.Background(), cfg.AnchorEndpoint, cfg.AnchorKeyHex)
		if err != nil {
			logger.Fatal("failed to dial anchor endpoint", zap.Error(err))
		}
		defer ethClient.Close()
		anchorClient = ethClient
		logger.Info("anchoring to external chain", zap.String("endpoint", cfg.AnchorEndpoint))
	} else {
		anchorClient = anchor.NewFakeClient()
		logger.Warn("no anchor endpoint configured, using in-process fake")
	}
	anchorSvc := anchor.NewService(dbConn, anchorClient, deps.Recorder, cfg.AnchorMaxAttempts, logger)
	if err := anchorSvc.Start(cfg.AnchorCronSpec); err != nil {
		logger.Fatal("failed to start anchor service", zap.Error(err))
	}

	mux := router.NewRouter(deps)
	server := http.Server{
		Handler: middleware.CORS(mux),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		logger.Info("shutting down")
		anchorSvc.Stop()
		server.Close()
	}()

	logger.Info("listening", zap.Int("port", cfg.Port))
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("server closed", zap.Error(err))
	} else {
		logger.Info("server closed")
	}
}
