package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pos-system/internal/config"
	"pos-system/internal/database"
	"pos-system/internal/handlers"
	"pos-system/internal/kafka"
	"pos-system/internal/logger"
	"pos-system/internal/models"
	"pos-system/internal/redis"
	"pos-system/internal/services"
)

// Factory functions for external dependencies (swappable in tests).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application aggregates the assembled dependencies.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting POS discount server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication creates every dependency (swappable in tests).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	eligibilityService := services.NewEligibilityService(db, log)
	discountService := services.NewDiscountService(db, eligibilityService, log, &cfg.Tax)
	catalogService := services.NewCatalogService(db, redisClient, log, &cfg.Cache)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	discountHandler := handlers.NewDiscountHandler(discountService, eligibilityService, producer, redisClient, log, &cfg.Cache)
	catalogHandler := handlers.NewCatalogHandler(catalogService, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(discountHandler, catalogHandler, healthHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes wires the HTTP routes.
func setupRoutes(discountHandler *handlers.DiscountHandler, catalogHandler *handlers.CatalogHandler, healthHandler *handlers.HealthHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter *services.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Order discount endpoints
	mux.HandleFunc("/api/orders/", applyAPI(handleOrderRoute(discountHandler)))

	// Eligibility endpoints
	mux.HandleFunc("/api/venues/", applyAPI(handleVenueRoute(discountHandler)))
	mux.HandleFunc("/api/customers/", applyAPI(handleCustomerRoute(discountHandler)))

	// Discount catalog endpoints
	mux.HandleFunc("/api/discounts", applyAPI(handleDiscountsRoute(catalogHandler)))
	mux.HandleFunc("/api/discounts/", applyAPI(handleDiscountRoute(catalogHandler)))

	// Customer assignment endpoints
	mux.HandleFunc("/api/customer-discounts", applyAPI(catalogHandler.AssignCustomerDiscount))
	mux.HandleFunc("/api/customer-discounts/", applyAPI(catalogHandler.RemoveCustomerDiscount))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(rateLimitHandler.Status))

	return mux
}

// handleOrderRoute dispatches the per-order discount routes.
func handleOrderRoute(handler *handlers.DiscountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		case strings.HasSuffix(path, "/discounts/evaluate"):
			handler.EvaluateDiscounts(w, r)
		case strings.HasSuffix(path, "/discounts/automatic"):
			handler.ApplyAutomaticDiscounts(w, r)
		case strings.HasSuffix(path, "/discounts/manual"):
			handler.ApplyManualDiscount(w, r)
		case strings.HasSuffix(path, "/discounts"):
			// Collection: read summary or apply one discount
			switch r.Method {
			case http.MethodGet:
				handler.GetOrderDiscounts(w, r)
			case http.MethodPost:
				handler.ApplyDiscount(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		case strings.Contains(path, "/discounts/"):
			// Single applied discount
			if r.Method == http.MethodDelete {
				handler.RemoveDiscount(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		default:
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// handleVenueRoute dispatches the per-venue routes.
func handleVenueRoute(handler *handlers.DiscountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/eligible-discounts") {
			handler.GetEligibleDiscounts(w, r)
			return
		}
		writeErrorResponse(w, http.StatusNotFound, "Not found")
	}
}

// handleCustomerRoute dispatches the per-customer routes.
func handleCustomerRoute(handler *handlers.DiscountHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/discounts") {
			handler.GetCustomerDiscounts(w, r)
			return
		}
		writeErrorResponse(w, http.StatusNotFound, "Not found")
	}
}

// handleDiscountsRoute dispatches the catalog collection routes.
func handleDiscountsRoute(handler *handlers.CatalogHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListDiscounts(w, r)
		case http.MethodPost:
			handler.CreateDiscount(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleDiscountRoute dispatches the single-discount catalog routes.
func handleDiscountRoute(handler *handlers.CatalogHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			handler.GetDiscount(w, r)
			return
		}
		if r.Method == http.MethodPut {
			handler.UpdateDiscount(w, r)
			return
		}
		if r.Method == http.MethodDelete {
			handler.DeleteDiscount(w, r)
			return
		}
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// registerEventHandlers registers the Kafka event handlers.
func registerEventHandlers(consumer *kafka.Consumer, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeDiscountApplied, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing discount applied event")
		return nil
	})

	consumer.RegisterHandler(models.EventTypeOrderTotalsUpdated, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing order totals updated event")
		return nil
	})
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
