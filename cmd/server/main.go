package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazyrhythm/hookfy/internal/config"
	"github.com/lazyrhythm/hookfy/internal/db"
	"github.com/lazyrhythm/hookfy/internal/metrics"
	mw "github.com/lazyrhythm/hookfy/internal/middleware"
	"github.com/lazyrhythm/hookfy/internal/webhook"
	"github.com/lazyrhythm/hookfy/internal/webhook/delivery"
	"github.com/lazyrhythm/hookfy/internal/ws"
)

// staleCutoff is how long an event may stay pending before startup
// reconciliation relabels it failed.
const staleCutoff = time.Minute

func main() {
	cfg := config.Load()

	// Database
	ctx := context.Background()
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		log.Printf("WARNING: migrations failed: %v", err)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	pipelineMetrics := metrics.New(registry)

	// Stores
	eventStore := webhook.NewEventStore(database.Pool)
	ruleStore := webhook.NewRuleStore(database.Pool)
	recorder := webhook.NewStatusRecorder(eventStore)

	// Reconcile events left pending by a previous run.
	if n, err := eventStore.ReconcileStale(ctx, staleCutoff); err != nil {
		log.Printf("WARNING: stale event reconciliation failed: %v", err)
	} else if n > 0 {
		log.Printf("relabeled %d pending event(s) from a previous run as stale", n)
	}

	// Event transport
	broker, err := webhook.NewBroker(cfg)
	if err != nil {
		log.Fatalf("event broker setup failed: %v", err)
	}
	defer broker.Close() //nolint:errcheck // best-effort cleanup on shutdown

	// WebSocket hub for the live delivery feed
	hub := ws.NewHub()
	go hub.Run()
	wsHandler := ws.NewWSHandler(hub)

	// Dispatch pipeline
	notifier := webhook.NewBrokerNotifier(broker)
	dispatcher := webhook.NewDispatcher(ruleStore, recorder, delivery.NewClient(), notifier,
		cfg.DispatchWorkers, cfg.DispatchQueueSize)
	dispatcher.SetHub(hub)
	dispatcher.SetMetrics(pipelineMetrics)
	dispatcher.Start()

	consumer := webhook.NewConsumer(broker, eventStore, dispatcher)
	consumer.SetMetrics(pipelineMetrics)
	if err := consumer.Start(); err != nil {
		log.Fatalf("event consumer failed to start: %v", err)
	}

	// Router
	r := mux.NewRouter()

	// Rate limiting: 100 req/s per IP with burst of 200
	r.Use(mw.RateLimitMiddleware(100, 200))

	// Health check and metrics (no rate-limit exemption needed; both are cheap)
	r.HandleFunc("/healthz", healthzHandler).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	// Pipeline API
	apiHandlers := webhook.NewHandlers(eventStore, broker)
	apiHandlers.RegisterRoutes(r)

	// WebSocket
	wsHandler.RegisterRoutes(r)

	// HTTP Server. CORS wraps the entire router so OPTIONS preflight
	// requests are handled before mux routing (which would 404 on OPTIONS).
	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        corsMiddleware(r),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("WARNING: server shutdown failed: %v", err)
		}

		consumer.Stop()
		dispatcher.Stop()
	}()

	log.Printf("Starting server on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}

	log.Println("Server stopped")
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000"
	}

	origins := make(map[string]bool)
	for _, o := range strings.Split(allowedOrigins, ",") {
		origins[strings.TrimSpace(o)] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(origins) == 1 {
			// Single origin mode: always set it (for dev convenience)
			for o := range origins {
				w.Header().Set("Access-Control-Allow-Origin", o)
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
