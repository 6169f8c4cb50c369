package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-whiteboard/internal/api"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

var (
	addr            string
	store           string
	dsn             string
	redisAddr       string
	redisPassword   string
	roomTTL         time.Duration
	signingKey      string
	allowedOrigins  stringSliceFlag
	historyDepth    int
	idleRoomTimeout time.Duration
	storeTimeout    time.Duration
	strictErase     bool
)

func openRepository(ctx context.Context, cfg *config.Config) (database.Repository, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := database.NewPgRepository(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case config.StoreRedis:
		rr, err := database.NewRedisRepository(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RoomTTL)
		if err != nil {
			return nil, err
		}
		return rr, nil
	default:
		return database.NewMemoryRepository(), nil
	}
}

func main() {
	logger := log.New(os.Stderr, "[go-whiteboard] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	defaults := server.DefaultOptions()

	flag.StringVar(&addr, "addr", envString("WHITEBOARD_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&store, "store", envString("WHITEBOARD_STORE", config.StorePostgres), "room store: postgres, redis or memory")
	flag.StringVar(&dsn, "dsn", envString("WHITEBOARD_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&redisAddr, "redis-addr", envString("WHITEBOARD_REDIS_ADDR", "localhost:6379"), "redis address")
	flag.StringVar(&redisPassword, "redis-password", envString("WHITEBOARD_REDIS_PASSWORD", ""), "redis password")
	flag.DurationVar(&roomTTL, "room-ttl", envDuration("WHITEBOARD_ROOM_TTL", 0), "expire rooms untouched for this long in redis, 0 keeps them")
	flag.StringVar(&signingKey, "signing-key", envString("WHITEBOARD_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.IntVar(&historyDepth, "history-depth", envInt("WHITEBOARD_HISTORY_DEPTH", defaults.HistoryDepth), "undo and redo entries kept per room; 0 keeps unbounded history so any run of undos can return to an empty board")
	flag.DurationVar(&idleRoomTimeout, "idle-room-timeout", envDuration("WHITEBOARD_IDLE_ROOM_TIMEOUT", defaults.IdleRoomTimeout), "how long an empty room stays loaded")
	flag.DurationVar(&storeTimeout, "store-timeout", envDuration("WHITEBOARD_STORE_TIMEOUT", defaults.StoreTimeout), "timeout for each store operation")
	flag.BoolVar(&strictErase, "strict-erase", envBool("WHITEBOARD_STRICT_ERASE", false), "compute erase results on the server")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if v := os.Getenv("WHITEBOARD_ALLOWED_ORIGINS"); v != "" {
			allowedOrigins.Set(v)
		}
	}

	cfg, err := config.NewConfig(config.Params{
		ServerAddr:      addr,
		Store:           store,
		DatabaseDSN:     dsn,
		RedisAddr:       redisAddr,
		RedisPassword:   redisPassword,
		RoomTTL:         roomTTL,
		SigningSecret:   signingKey,
		AllowedOrigins:  allowedOrigins,
		HistoryDepth:    historyDepth,
		IdleRoomTimeout: idleRoomTimeout,
		StoreTimeout:    storeTimeout,
		StrictErase:     strictErase,
	})
	if err != nil {
		logger.Fatal("config:", err)
	}

	openCtx, cancelOpen := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	repo, err := openRepository(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.Fatal("open store:", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Println("store close:", err)
		}
	}()
	logger.Printf("using %s store", cfg.Store)

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	boardServer, err := server.NewBoardServer(logger, repo, statsUpdater, server.Options{
		HistoryDepth:    cfg.HistoryDepth,
		IdleRoomTimeout: cfg.IdleRoomTimeout,
		StoreTimeout:    cfg.StoreTimeout,
		StrictErase:     cfg.StrictErase,
	})
	if err != nil {
		logger.Fatal("new board server:", err)
	}

	srv := api.NewWhiteboardApp(mux, logger, boardServer, repo, cfg)

	statsUpdater.Run()

	go boardServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down board server...")
	if err := boardServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("board server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
