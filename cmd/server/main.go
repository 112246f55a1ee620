/**
 * @description
 * This is the main entry point for the Kenaz community backend. It is
 * responsible for initializing all components of the service, including
 * configuration, the database connection pool, the payment gateway adapter,
 * the Web Push sender, the websocket hub, the application services, the cron
 * scheduler, and the HTTP server. It wires everything together and starts
 * the service.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries for logging and serving.
 * - github.com/jackc/pgx/v5: PostgreSQL driver and connection pool.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/prometheus/client_golang: Metrics registry and /metrics handler.
 * - internal/*: The application packages wired here.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/api"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/app"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/config"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ratelimit"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/scheduler"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/ws"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/pkg/paygate"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/pkg/pushsender"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	log.Printf("level=info component=bootstrap msg=\"starting kenaz backend\" port=%s gateway=%s", cfg.ServerPort, cfg.PaymentGateway)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Pool sizing for a single-instance deployment with bursty traffic.
	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	if err := store.EnsureSchema(context.Background(), dbpool); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"schema migration failed\" err=%v", err)
	}

	repository := store.NewPostgres(dbpool)

	// Metrics registry with the standard process and Go collectors.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNew(registry)

	// Select the payment gateway adapter.
	var gateway paygate.Gateway
	switch cfg.PaymentGateway {
	case "snap":
		gateway = paygate.NewSnap(cfg.MidtransServerKey, cfg.MidtransProduction)
	default:
		gateway = paygate.NewFake(cfg.FakeGatewaySecret)
	}

	// Web Push sender; empty VAPID keys disable delivery but keep the API up.
	var sender pushsender.Sender
	if strings.TrimSpace(cfg.VAPIDPublicKey) == "" || strings.TrimSpace(cfg.VAPIDPrivateKey) == "" {
		log.Println("level=warn component=bootstrap msg=\"VAPID keys not configured; push delivery disabled\"")
		sender = pushsender.NewNoop()
	} else {
		sender = pushsender.NewWebPush(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	}

	// Websocket hub for the admin activity feed.
	hub := ws.NewHub(logger, m)
	go hub.Run()
	defer hub.Close()

	notifications := app.NewNotificationService(repository, sender, hub, logger, m, cfg.VAPIDPublicKey)
	defer notifications.Close()

	bank := app.BankDetails{
		AccountName:   cfg.BankAccountName,
		AccountNumber: cfg.BankAccountNumber,
	}

	accounts := app.NewAccountService(repository, notifications, logger, cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	events := app.NewEventService(repository, notifications, logger)
	registrations := app.NewRegistrationService(repository, nil, notifications, logger, m, bank)
	payments := app.NewPaymentService(repository, gateway, cfg.PaymentGateway, notifications, logger, m, cfg.PublicBaseURL)
	registrations.SetRefunder(payments)
	subscriptions := app.NewSubscriptionService(repository, notifications, logger)
	donations := app.NewDonationService(repository, payments, notifications, logger, bank)
	community := app.NewCommunityService(repository, notifications, logger)
	catalog := app.NewCatalogService(repository, logger)
	uploads, err := app.NewUploadService(repository, logger, cfg.UploadDir)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"upload dir init failed\" err=%v", err)
	}

	// Hourly reminder sweep.
	jobs := scheduler.NewJobs(repository, notifications, logger, m, time.Duration(cfg.ReminderWindowH)*time.Hour)
	sched := scheduler.NewScheduler(jobs, logger, cfg.ReminderCron)
	sched.Start()
	defer sched.Stop()

	limiter := ratelimit.NewLimiter(time.Minute)
	defer limiter.Stop()

	handlers := api.NewHandlers(api.Services{
		Accounts:      accounts,
		Events:        events,
		Registrations: registrations,
		Payments:      payments,
		Subscriptions: subscriptions,
		Donations:     donations,
		Community:     community,
		Catalog:       catalog,
		Uploads:       uploads,
		Notifications: notifications,
	}, cfg.MaxUploadBytes)

	router := api.Routes(handlers, api.RouterDeps{
		JWTSecret:        []byte(cfg.JWTSecret),
		Limiter:          limiter,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Hub:              hub,
		AllowedOrigins:   cfg.AllowedOrigins(),
		PublicPerMinute:  cfg.RateLimitPublicPerMinute,
		AuthPerMinute:    cfg.RateLimitAuthPerMinute,
		WebhookPerMinute: cfg.RateLimitWebhookPerMinute,
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
