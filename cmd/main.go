/**
 * @description
 * This is the main entry point for the payroll-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/fxclient, pkg/payclient, pkg/complianceclient: External service clients.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/geniehr/payroll-service/internal/api"
	"github.com/geniehr/payroll-service/internal/app"
	"github.com/geniehr/payroll-service/internal/config"
	"github.com/geniehr/payroll-service/internal/store"
	"github.com/geniehr/payroll-service/pkg/complianceclient"
	"github.com/geniehr/payroll-service/pkg/fxclient"
	"github.com/geniehr/payroll-service/pkg/payclient"
	rmrabbit "github.com/geniehr/payroll-service/pkg/rabbitmq"
)

func main() {
	// Load a local .env file if present; real deployments set the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payroll-service\" port=%s", cfg.ServerPort)

	// Data access layer: Postgres when configured, in-memory otherwise so the
	// service can run in local development without a database.
	var repository store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"no database url; using in-memory repository\" env=DATABASE_URL")
		repository = store.NewMemoryRepository()
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}
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
		repository = store.NewPostgresRepository(dbpool)
	}

	// Initialize the RabbitMQ producer to publish notifications.
	var producer rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; notifications degraded to no-op\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// FX rate providers: the primary quotes every recalculation; the fallback
	// serves provider switches when the primary is down or disputed.
	fxPrimary := fxclient.NewClient("primary", cfg.FXPrimaryBaseURL, cfg.FXPrimaryAPIKey)
	var fxFallback fxclient.RateProvider
	if strings.TrimSpace(cfg.FXFallbackBaseURL) != "" {
		fxFallback = fxclient.NewClient("fallback", cfg.FXFallbackBaseURL, cfg.FXFallbackAPIKey)
	} else {
		log.Println("level=warn component=bootstrap msg=\"no fallback fx provider configured; provider switch disabled\" env=FX_FALLBACK_BASE_URL")
	}

	// Payment dispatcher and compliance evaluator.
	dispatcher := payclient.NewClient(cfg.PaymentProviderBaseURL, cfg.PaymentProviderAPIKey)
	var compliance complianceclient.Evaluator
	if strings.TrimSpace(cfg.ComplianceServiceURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"compliance service not configured; readiness checks disabled\" env=COMPLIANCE_SERVICE_URL")
	} else {
		compliance = complianceclient.NewClient(cfg.ComplianceServiceURL, cfg.ComplianceInternalAPIKey)
	}

	// Redis backs the ingestion rate limiter; missing Redis only disables the
	// limiter, never the service.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; ingestion rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; ingestion rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; ingestion rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the core application service with its dependencies.
	payrollService := app.NewService(
		repository,
		fxPrimary,
		fxFallback,
		dispatcher,
		compliance,
		producer,
		cfg.NotificationExchange,
		cfg.BaseCurrency,
		cfg.FXLockTTLSeconds,
	)

	var limiter app.IngestionRateLimiter
	if redisClient != nil {
		limiter = app.NewRedisIngestionRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers and routes.
	payrollHandlers := api.NewPayrollHandlers(payrollService, limiter, cfg.BankFileRateLimitPerMinute)
	router := chi.NewRouter()
	router.Mount("/payroll", api.PayrollRoutes(payrollHandlers, cfg.JWKSURL, cfg.InternalAPIKey))

	// Receipt event consumer: settlement updates pushed by the payment provider.
	receiptConsumer := app.NewReceiptEventConsumer(payrollService)
	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; receipt events only via internal api\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		receiptBindings := map[string]func([]byte) bool{
			"payment.receipt.initiated":  receiptConsumer.HandleDelivery,
			"payment.receipt.in_transit": receiptConsumer.HandleDelivery,
			"payment.receipt.paid":       receiptConsumer.HandleDelivery,
			"payment.receipt.failed":     receiptConsumer.HandleDelivery,
		}
		if err := rabbitConsumer.ConsumeWithBindings(cfg.ReceiptEventExchange, cfg.ReceiptEventQueue, receiptBindings); err != nil {
			log.Printf("level=warn component=bootstrap msg=\"receipt consumer start failed\" err=%v", err)
		} else {
			log.Println("level=info component=bootstrap msg=\"receipt consumer started\"")
		}
	}

	// Background maintenance jobs.
	scheduler := app.NewScheduler(
		payrollService,
		cfg.FXRefreshJobSchedule,
		cfg.ApprovalReminderSchedule,
		time.Duration(cfg.ApprovalReminderAfterMin)*time.Minute,
	)
	scheduler.Start()

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

	<-scheduler.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
