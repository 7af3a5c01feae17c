package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clientproof/backend/internal/application"
	appanalysis "github.com/clientproof/backend/internal/application/analysis"
	"github.com/clientproof/backend/internal/application/reports"
	"github.com/clientproof/backend/internal/config"
	domain "github.com/clientproof/backend/internal/domain/analysis"
	openaiClient "github.com/clientproof/backend/internal/infra/ai/openai"
	mysqlp "github.com/clientproof/backend/internal/infra/db/mysql"
	postgresp "github.com/clientproof/backend/internal/infra/db/postgres"
	"github.com/clientproof/backend/internal/infra/httpserver"
	stripeClient "github.com/clientproof/backend/internal/infra/payment/stripe"
	minioStore "github.com/clientproof/backend/internal/infra/storage"
	"github.com/clientproof/backend/internal/middleware"
	"github.com/clientproof/backend/internal/platform/logger"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logg, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logg.Close()

	ctx := context.Background()

	// connect the record store
	var db *sql.DB
	var repo domain.Repository
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			logg.Fatalw("mysql connect error", "error", err)
		}
		repo = mysqlp.NewAnalysisRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			logg.Fatalw("postgres connect error", "error", err)
		}
		repo = postgresp.NewAnalysisRepository(db)
	default:
		logg.Fatalw("unknown database driver", "driver", cfg.Database.Driver)
	}
	defer db.Close()

	// completion + checkout adapters
	completions := openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	generator := appanalysis.NewGenerator(completions, time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second)
	checkout := stripeClient.New(stripeClient.Config{
		SecretKey:          cfg.Stripe.SecretKey,
		WebhookSecret:      cfg.Stripe.WebhookSecret,
		Currency:           cfg.Stripe.Currency,
		UnitAmount:         cfg.Stripe.UnitAmount,
		ProductName:        cfg.Stripe.ProductName,
		ProductDescription: cfg.Stripe.ProductDescription,
	})

	// optional report archive
	var archive domain.ArchiveStore
	if cfg.Archive.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Archive.Endpoint,
			cfg.Archive.Region,
			cfg.Archive.BucketName,
			cfg.Archive.AccessKey,
			cfg.Archive.SecretKey,
			cfg.Archive.UseSSL,
		)
		if err != nil {
			logg.Fatalw("archive init error", "error", err)
		}
		archive = store
	}

	svc := &reports.Service{
		Repo:      repo,
		Generator: generator,
		Checkout:  checkout,
		Archive:   archive,
		Clock:     application.SystemClock{},
		Log:       logg,
	}

	opts := httpserver.Options{
		Webhooks:   checkout,
		TestSecret: cfg.TestPay.Secret,
		Production: cfg.Production(),
		Health: map[string]middleware.HealthChecker{
			"database": &middleware.DatabaseHealthChecker{DB: db},
		},
		Log: logg,
	}
	opts.RateLimit.Capacity = cfg.RateLimit.Capacity
	opts.RateLimit.RefillRate = cfg.RateLimit.RefillRate

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpserver.NewRouter(svc, opts),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // report generation blocks the handler
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logg.Infow("server listening", "addr", addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatalw("server error", "error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logg.Infow("shutting down server")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logg.Errorw("shutdown error", "error", err)
	}
}
