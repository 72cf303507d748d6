package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/session_auth/internal/config"
	"github.com/Skotchmaster/session_auth/internal/db"
	"github.com/Skotchmaster/session_auth/internal/events"
	"github.com/Skotchmaster/session_auth/internal/hash"
	"github.com/Skotchmaster/session_auth/internal/httpserver"
	"github.com/Skotchmaster/session_auth/internal/logging"
	"github.com/Skotchmaster/session_auth/internal/metrics"
	"github.com/Skotchmaster/session_auth/internal/middleware"
	loggingmw "github.com/Skotchmaster/session_auth/internal/middleware/logging"
	"github.com/Skotchmaster/session_auth/internal/repo"
	"github.com/Skotchmaster/session_auth/internal/service"
	"github.com/Skotchmaster/session_auth/internal/tokens"
)

func main() {
	purgeOnly := flag.Bool("purge", false, "delete expired refresh sessions once and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	gdb, err := db.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	hasher, err := hash.NewHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatalf("password hasher: %v", err)
	}
	signer, err := tokens.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL)
	if err != nil {
		log.Fatalf("token signer: %v", err)
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	m := metrics.New()

	gormRepo := repo.New(gdb)
	svc := &service.AuthService{
		Users:      gormRepo,
		Sessions:   gormRepo,
		Hasher:     hasher,
		Signer:     signer,
		RefreshTTL: cfg.RefreshTTL,
		Events:     publisher,
		Metrics:    m,
	}

	if *purgeOnly {
		n, err := svc.PurgeExpired(logging.IntoContext(context.Background(), logger))
		if err != nil {
			log.Fatalf("purge: %v", err)
		}
		logger.Info("purge_completed", "deleted", n)
		shutdown(logger, gdb, publisher)
		return
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Common()...)
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc: svc,
			Cookie: httpserver.CookieSettings{
				Name:   cfg.RefreshCookieName,
				Secure: cfg.RefreshCookieSecure,
			},
		},
		Metrics: m,
		Ready: func(ctx context.Context) error {
			return db.Ping(ctx, gdb)
		},
	})

	sweepCtx, stopSweeper := context.WithCancel(logging.IntoContext(context.Background(), logger))
	sweeper := &service.Sweeper{Purger: svc, Interval: cfg.PurgeInterval}
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(sweepCtx)
	}()

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http_server_started", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting_down")
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}

	<-sweeperDone
	shutdown(logger, gdb, publisher)
	logger.Info("shutdown_complete")
}

func shutdown(logger *slog.Logger, gdb *gorm.DB, publisher events.Publisher) {
	if err := db.Close(gdb); err != nil {
		logger.Error("db_close_error", "error", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka_close_error", "error", err)
	}
}
