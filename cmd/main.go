/**
 * @description
 * This is the main entry point for the balance-service. It is responsible for
 * initializing all components of the service: configuration, the balance
 * cache (in-memory or Redis), the optional audit database, the workflow
 * engine and company-directory clients, the ledger-event consumer, and the
 * HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/cache, internal/config, internal/store: Internal packages.
 * - pkg/companyclient, pkg/rabbitmq, pkg/workflowclient: External collaborators.
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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fondeo/balance-service/internal/api"
	"github.com/fondeo/balance-service/internal/app"
	"github.com/fondeo/balance-service/internal/cache"
	"github.com/fondeo/balance-service/internal/config"
	"github.com/fondeo/balance-service/internal/store"
	"github.com/fondeo/balance-service/pkg/companyclient"
	"github.com/fondeo/balance-service/pkg/rabbitmq"
	"github.com/fondeo/balance-service/pkg/workflowclient"
)

func main() {
	// Load .env for local development; in deployed environments the variables
	// come from the platform.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.WorkflowAPIBaseURL == "" || cfg.WorkflowAPIKey == "" {
		// Boot anyway so /health answers; balance endpoints will surface the
		// configuration fault as 500s.
		log.Printf("level=warn component=bootstrap msg=\"workflow engine not configured; balance resolution disabled\" base_url_set=%t api_key_set=%t",
			cfg.WorkflowAPIBaseURL != "", cfg.WorkflowAPIKey != "")
	}

	log.Printf("level=info component=bootstrap msg=\"starting balance-service\" port=%s", cfg.ServerPort)

	cacheTTL := time.Duration(cfg.BalanceCacheTTLSeconds) * time.Second

	// The balance cache is in-memory unless Redis is configured and reachable.
	var balanceCache cache.BalanceCache
	var memCache *cache.MemoryCache
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory cache\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory cache\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				balanceCache = cache.NewRedisCache(redisClient, cfg.RedisCachePrefix, cacheTTL)
				log.Println("level=info component=bootstrap msg=\"redis cache connected\"")
			}
		}
	}
	if balanceCache == nil {
		memCache = cache.NewMemoryCache(cacheTTL)
		balanceCache = memCache
	}

	// Audit persistence is optional; without DATABASE_URL the service runs
	// with audit records disabled.
	var repository store.Repository
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		poolConfig, parseErr := pgxpool.ParseConfig(cfg.DatabaseURL)
		if parseErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", parseErr)
		}
		poolConfig.MaxConns = 20
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute

		dbpool, poolErr := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if poolErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", poolErr)
		}
		defer dbpool.Close()
		repository = store.NewPostgresRepository(dbpool)
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	} else {
		log.Println("level=warn component=bootstrap msg=\"database not configured; audit records disabled\" env=DATABASE_URL")
	}

	// Initialize the client for the external workflow engine.
	workflowClient := workflowclient.NewClient(
		cfg.WorkflowAPIBaseURL,
		cfg.WorkflowAPIKey,
		cfg.WorkflowTriggerPath,
		cfg.WorkflowPollPath,
		cfg.WorkflowTransactionsPath,
	)

	// The company directory is optional; without it every caller resolves
	// with their own email.
	var directory app.CompanyDirectory
	if strings.TrimSpace(cfg.CompanyDirectoryURL) != "" {
		directory = companyclient.NewClient(cfg.CompanyDirectoryURL, cfg.CompanyDirectoryKey)
	} else {
		log.Println("level=warn component=bootstrap msg=\"company directory not configured; override lookups disabled\" env=COMPANY_DIRECTORY_URL")
	}

	balanceService := app.NewService(workflowClient, directory, balanceCache, repository)

	// Wire the ledger-event consumer so write-side flows can invalidate
	// cached balances.
	if strings.TrimSpace(cfg.RabbitMQURL) != "" {
		rabbitConsumer, consumerErr := rabbitmq.NewConsumer(cfg.RabbitMQURL)
		if consumerErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; cache invalidation events disabled\" err=%v", consumerErr)
		} else {
			defer rabbitConsumer.Close()
			ledgerConsumer := balanceService.LedgerEventConsumer()
			bindings := map[string]func([]byte) bool{
				"ledger.deposit.recorded":    ledgerConsumer.HandleMessage,
				"ledger.withdrawal.recorded": ledgerConsumer.HandleMessage,
			}
			if bindErr := rabbitConsumer.ConsumeWithBindings(cfg.LedgerEventExchange, cfg.LedgerEventQueue, bindings); bindErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"ledger consumer start failed; cache invalidation events disabled\" err=%v", bindErr)
			} else {
				log.Println("level=info component=bootstrap msg=\"ledger event consumer started\"")
			}
		}
	} else {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq not configured; cache invalidation events disabled\" env=RABBITMQ_URL")
	}

	// The janitor only matters for the in-memory backend; Redis entries
	// expire on their own.
	if memCache != nil {
		janitor, janitorErr := app.StartCacheJanitor(cfg.CacheSweepSchedule, memCache)
		if janitorErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"cache janitor not started\" schedule=%q err=%v", cfg.CacheSweepSchedule, janitorErr)
		} else {
			defer janitor.Stop()
		}
	}

	balanceHandlers := api.NewBalanceHandlers(balanceService)

	router := chi.NewRouter()
	router.Mount("/", api.BalanceRoutes(balanceHandlers, cfg.ClerkJWKSURL))

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
