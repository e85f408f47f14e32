// Command facilitycored runs the facility work-order service: JSON API,
// Prometheus metrics, durable request store, attachment store, and the
// notification dispatcher. All configuration comes from FACILITYCORE_*
// environment variables.
package main

import (
	"context"
	"errors"
	"expvar"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"facilitycore/internal/adapters/api"
	"facilitycore/internal/blob"
	"facilitycore/internal/core"
	"facilitycore/internal/notify"
	"facilitycore/internal/seed"
	"facilitycore/pkg/domain"
)

func main() {
	logger := core.StdLogger{L: log.New(os.Stderr, "facilitycored ", log.LstdFlags|log.LUTC)}

	engine := core.NewDefaultRulesEngine()
	store, err := core.OpenPersistentStore(engine)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	ctx := context.Background()
	blobs, err := blob.Open(ctx)
	if err != nil {
		log.Fatalf("open blob store: %v", err)
	}

	dispatcher, _ := notify.OpenFromEnv(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetrics(core.NewPrometheusMetricsRecorder(registry)),
		core.WithNotifier(dispatcher),
	)

	if path := os.Getenv("FACILITYCORE_SEED_FILE"); path != "" {
		doc, err := seed.LoadPath(path)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		system := domain.Actor{ID: "system", Role: domain.RoleAdmin}
		sum, err := seed.Apply(ctx, svc, system, doc)
		if err != nil {
			log.Fatalf("apply seed: %v", err)
		}
		logger.Infof("seeded %d locations, %d assets, %d requests", sum.Locations, sum.Assets, sum.Requests)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", api.NewHandler(svc, blobs))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("FACILITYCORE_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}
