package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/RainDancerX/air-harmony-insight-server/internal/analytics"
	"github.com/RainDancerX/air-harmony-insight-server/internal/config"
	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/httpx"
	"github.com/RainDancerX/air-harmony-insight-server/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("query-api database error: %v", err)
	}
	defer dbPool.Close()

	repo := storage.NewRepository(dbPool)
	rollups := analytics.New(repo)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(15 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "query-api"})
	})

	router.Get("/v1/zones/{zoneID}/status", func(w http.ResponseWriter, r *http.Request) {
		readings, err := repo.LatestReadings(r.Context(), chi.URLParam(r, "zoneID"))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": readings})
	})

	router.Get("/v1/buildings/{buildingID}/alerts", func(w http.ResponseWriter, r *http.Request) {
		alerts, err := repo.ListActiveAlerts(r.Context(), chi.URLParam(r, "buildingID"))
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": alerts})
	})

	router.Get("/v1/series", func(w http.ResponseWriter, r *http.Request) {
		scope, kind, window, err := parseRollupQuery(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		points, err := rollups.HistoricalSeries(r.Context(), scope, kind, window)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": points})
	})

	router.Get("/v1/trend", func(w http.ResponseWriter, r *http.Request) {
		scope, kind, window, err := parseRollupQuery(r)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		trend, err := rollups.Trend(r.Context(), scope, kind, window)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, trend)
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("query-api listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("query-api server error: %v", err)
	}
}

func parseRollupQuery(r *http.Request) (contracts.AggregationScope, contracts.SensorKind, contracts.Window, error) {
	q := r.URL.Query()

	scope := contracts.AggregationScope{
		ZoneID:     q.Get("zone_id"),
		BuildingID: q.Get("building_id"),
	}
	if !scope.Valid() {
		return contracts.AggregationScope{}, "", "", errors.New("exactly one of zone_id or building_id is required")
	}

	kind, err := contracts.ParseKind(q.Get("kind"))
	if err != nil {
		return contracts.AggregationScope{}, "", "", err
	}

	windowRaw := q.Get("window")
	if windowRaw == "" {
		windowRaw = string(contracts.WindowDay)
	}
	window, err := contracts.ParseWindow(windowRaw)
	if err != nil {
		return contracts.AggregationScope{}, "", "", err
	}

	return scope, kind, window, nil
}
