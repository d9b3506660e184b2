package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"                      // .env loader for local runs
	"github.com/labstack/echo/v4"                   // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // request id, recover, request logging
	"github.com/labstack/gommon/log"                // structured logger shared with Echo

	"github.com/iliyamo/seat-locker-kiosk/internal/config"
	"github.com/iliyamo/seat-locker-kiosk/internal/database"
	"github.com/iliyamo/seat-locker-kiosk/internal/handler"
	"github.com/iliyamo/seat-locker-kiosk/internal/metrics"
	"github.com/iliyamo/seat-locker-kiosk/internal/middleware"
	"github.com/iliyamo/seat-locker-kiosk/internal/model"
	"github.com/iliyamo/seat-locker-kiosk/internal/queue"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository"
	"github.com/iliyamo/seat-locker-kiosk/internal/repository/memstore"
	"github.com/iliyamo/seat-locker-kiosk/internal/router"
	"github.com/iliyamo/seat-locker-kiosk/internal/scheduler"
	"github.com/iliyamo/seat-locker-kiosk/internal/service"
	"github.com/iliyamo/seat-locker-kiosk/internal/utils"
)

func main() {
	_ = godotenv.Load()  // optional .env; real env vars win
	cfg := config.Load() // Load environment config

	logger := log.New("kiosk")
	logger.SetLevel(log.INFO)
	if cfg.Env == "dev" {
		logger.SetLevel(log.DEBUG)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(cfg, logger)
	defer closeStore()

	var publisher service.EventPublisher
	if cfg.EventsEnabled {
		p := queue.NewPublisher(cfg.RabbitURL, 1024, logger)
		go p.Run(ctx)
		go queue.StartEventConsumer(ctx, cfg.RabbitURL, cfg.EventLogDir, logger)
		publisher = p
	}

	m := metrics.New()
	lifecycle := service.NewLifecycleService(store, publisher, logger,
		service.WithRetry(service.RetryPolicy{Attempts: cfg.RetryAttempts, BaseDelay: cfg.RetryBaseDelay}),
		service.WithMetrics(m),
	)
	settings := service.NewSettingsService(store, model.Settings{
		ExpirationHandling: model.ExpirationPolicy(cfg.ExpirationPolicy),
		QRFormat:           model.QRFormat(cfg.QRFormat),
		ScanMode:           model.ScanAuto,
	})
	expiration := service.NewExpirationService(store, lifecycle, settings, logger)
	state := service.NewStateService(store, expiration, settings, logger)
	scans := service.NewScanService(store, lifecycle)

	passcodeHash, err := utils.HashPasscode(cfg.AdminPasscode, cfg.BcryptCost)
	if err != nil {
		logger.Fatalf("hash admin passcode: %v", err)
	}

	rdb := config.NewRedisClient() // nil when Redis is unreachable; limiter and cache pass through
	if rdb == nil {
		logger.Warnj(log.JSON{"msg": "redis unavailable, rate limiting and caching disabled"})
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(m.Middleware())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			j := log.JSON{
				"msg":        "request",
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"req_id":     v.RequestID,
			}
			if v.Error != nil {
				j["error"] = v.Error.Error()
			}
			logger.Infoj(j)
			return nil
		},
	}))

	router.RegisterRoutes(e, m.Handler())
	router.RegisterKiosk(e,
		handler.NewKioskHandler(state, lifecycle, scans),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg.JWTSecret, cfg.AdminTTLMin, passcodeHash, cfg.Env == "prod"),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadLoginRateLimitConfig(), rdb),
	)
	router.RegisterAdmin(e, handler.NewAdminHandler(state, lifecycle, settings), cfg.JWTSecret)

	if cfg.SweepInterval > 0 {
		go scheduler.New(expiration, cfg.SweepInterval, logger).Start(ctx)
	}

	addr := ":" + cfg.Port // Address string with port
	logger.Infoj(log.JSON{"msg": "listening", "addr": addr, "env": cfg.Env, "store": cfg.StoreDriver})
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorj(log.JSON{"msg": "shutdown", "error": err.Error()})
	}
}

// openStore picks the storage driver. The memory driver is seeded with the
// default floor so the kiosk works without MySQL.
func openStore(cfg config.Config, logger *log.Logger) (repository.Store, func()) {
	if cfg.StoreDriver == config.DriverMemory {
		mem := memstore.New()
		if err := memstore.Seed(mem, "A-D", 4, 20); err != nil {
			logger.Fatalf("seed memory store: %v", err)
		}
		return mem, func() {}
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(db, "up"); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
	}
	return repository.NewSQLStore(db), func() { _ = db.Close() }
}
