package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arjunmehra/stitchkart-backend/api/routes"
	"github.com/arjunmehra/stitchkart-backend/internal/payments"
	"github.com/arjunmehra/stitchkart-backend/internal/returns"
	"github.com/arjunmehra/stitchkart-backend/internal/shipping"
	"github.com/arjunmehra/stitchkart-backend/internal/transitions"
	"github.com/arjunmehra/stitchkart-backend/pkg/cashfree"
	"github.com/arjunmehra/stitchkart-backend/pkg/config"
	"github.com/arjunmehra/stitchkart-backend/pkg/db"
	"github.com/arjunmehra/stitchkart-backend/pkg/logger"
	"github.com/arjunmehra/stitchkart-backend/pkg/metrics"
	"github.com/arjunmehra/stitchkart-backend/pkg/migrate"
	"github.com/arjunmehra/stitchkart-backend/pkg/outbox"
	"github.com/arjunmehra/stitchkart-backend/pkg/razorpay"
	"github.com/arjunmehra/stitchkart-backend/pkg/redis"
	"github.com/arjunmehra/stitchkart-backend/pkg/shiprocket"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	callMetrics := metrics.NewProviderCallMetrics(registry)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	transitionsRepo := transitions.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())

	configStore, err := payments.NewConfigStore(paymentsRepo, cfg.Payments)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment config store", err)
		os.Exit(1)
	}
	if _, err := configStore.Reload(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to load payment config", err)
		os.Exit(1)
	}

	providers := buildProviderRegistry(cfg, logg)

	paymentsSvc, err := payments.NewService(
		paymentsRepo,
		dbClient,
		outboxSvc,
		configStore,
		providers,
		redisClient,
		callMetrics,
		cfg.Payments.CallbackDedupTTL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	transitionsSvc, err := transitions.NewService(transitionsRepo, dbClient, outboxSvc, paymentsSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create transition service", err)
		os.Exit(1)
	}

	shippingSvc, err := buildShippingService(cfg, dbClient, redisClient, outboxSvc, transitionsSvc, callMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	returnsSvc, err := returns.NewService(
		returns.NewRepository(dbClient.DB()),
		transitionsSvc,
		paymentsSvc,
		dbClient,
		outboxSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create return service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			transitionsSvc,
			paymentsSvc,
			shippingSvc,
			returnsSvc,
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildProviderRegistry wires every gateway with credentials configured.
// Missing credentials leave the provider out of the registry; intents against
// it then fail with a dependency error instead of a panic.
func buildProviderRegistry(cfg *config.Config, logg *logger.Logger) payments.Registry {
	var wired []payments.Provider

	if cfg.Razorpay.KeyID != "" && cfg.Razorpay.KeySecret != "" {
		client, err := razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret,
			razorpay.WithBaseURL(cfg.Razorpay.BaseURL))
		if err != nil {
			logg.Error(context.Background(), "failed to create razorpay client", err)
		} else if provider, err := payments.NewRazorpayProvider(client, cfg.Razorpay.WebhookSecret); err == nil {
			wired = append(wired, provider)
		}
	}

	if cfg.Cashfree.AppID != "" && cfg.Cashfree.SecretKey != "" {
		client, err := cashfree.NewClient(cfg.Cashfree.AppID, cfg.Cashfree.SecretKey,
			cashfree.WithBaseURL(cfg.Cashfree.BaseURL))
		if err != nil {
			logg.Error(context.Background(), "failed to create cashfree client", err)
		} else if provider, err := payments.NewCashfreeProvider(client, cfg.Cashfree.WebhookSecret); err == nil {
			wired = append(wired, provider)
		}
	}

	return payments.NewRegistry(wired...)
}

func buildShippingService(
	cfg *config.Config,
	dbClient *db.Client,
	redisClient *redis.Client,
	outboxSvc *outbox.Service,
	transitionsSvc transitions.Service,
	callMetrics *metrics.ProviderCallMetrics,
	logg *logger.Logger,
) (shipping.Service, error) {
	courier, err := shiprocket.NewClient(cfg.Shiprocket.Email, cfg.Shiprocket.Password,
		shiprocket.WithBaseURL(cfg.Shiprocket.BaseURL),
		shiprocket.WithTokenStore(redisClient))
	if err != nil {
		return nil, err
	}
	return shipping.NewService(
		shipping.NewRepository(dbClient.DB()),
		dbClient,
		outboxSvc,
		courier,
		transitionsSvc,
		callMetrics,
		cfg.Shiprocket.PickupStation,
		logg,
	)
}
