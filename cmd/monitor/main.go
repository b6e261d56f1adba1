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
	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"

	"github.com/RainDancerX/air-harmony-insight-server/internal/alerts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/classify"
	"github.com/RainDancerX/air-harmony-insight-server/internal/config"
	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/engine"
	"github.com/RainDancerX/air-harmony-insight-server/internal/fanout"
	"github.com/RainDancerX/air-harmony-insight-server/internal/httpx"
	"github.com/RainDancerX/air-harmony-insight-server/internal/mq"
	"github.com/RainDancerX/air-harmony-insight-server/internal/registry"
	"github.com/RainDancerX/air-harmony-insight-server/internal/storage"
	"github.com/RainDancerX/air-harmony-insight-server/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		log.Fatalf("monitor database error: %v", err)
	}
	defer dbPool.Close()

	if err := storage.RunMigrations(ctx, dbPool); err != nil {
		log.Fatalf("monitor migration error: %v", err)
	}

	repo := storage.NewRepository(dbPool)
	reg := registry.New()
	broadcaster := fanout.New(reg)

	eventsWriter := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicEvents)
	defer eventsWriter.Close()

	svc := engine.NewService(
		classify.Default(),
		repo,
		alerts.New(repo),
		broadcaster,
		mq.NewEventPublisher(eventsWriter),
	)

	reader := mq.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicReadings, cfg.ConsumerGroupPrefix+"-monitor")
	defer reader.Close()

	go consumeReadings(ctx, reader, svc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "monitor"})
	})

	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("monitor ws upgrade error: %v", err)
			return
		}
		client := ws.NewClient(conn, reg, broadcaster, cfg.SendBuffer)
		go client.WritePump()
		go client.ReadPump()
	})

	router.Post("/v1/zones/{zoneID}/occupancy", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Occupants int `json:"occupants"`
		}
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		zoneID := chi.URLParam(r, "zoneID")
		if err := svc.UpdateOccupancy(r.Context(), zoneID, payload.Occupants); err != nil {
			writeDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"zone_id": zoneID, "occupants": payload.Occupants})
	})

	router.Patch("/v1/alerts/{id}/ack", func(w http.ResponseWriter, r *http.Request) {
		alert, err := svc.Acknowledge(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, alert)
	})

	router.Patch("/v1/alerts/{id}/resolve", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Actor string `json:"actor"`
		}
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		alert, err := svc.Resolve(r.Context(), chi.URLParam(r, "id"), payload.Actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, alert)
	})

	router.Post("/v1/buildings/{id}/alerts/resolve-all", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Actor string `json:"actor"`
		}
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		count, err := svc.ResolveAll(r.Context(), chi.URLParam(r, "id"), payload.Actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"resolved": count})
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

	log.Printf("monitor listening on %s, consuming %s", cfg.HTTPAddr, cfg.KafkaTopicReadings)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("monitor server error: %v", err)
	}
}

// consumeReadings ingests one reading per message. The readings topic
// is partitioned by sensor id, so a single sensor's reports arrive and
// are stored in order.
func consumeReadings(ctx context.Context, reader *kafka.Reader, svc *engine.Service) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Println("monitor reading consumer shutting down")
				return
			}
			log.Printf("monitor read error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		payload, err := mq.ParseMessageJSON[mq.ReadingMessage](msg)
		if err != nil {
			log.Printf("monitor decode reading error: %v", err)
			continue
		}
		kind, err := contracts.ParseKind(payload.Kind)
		if err != nil {
			log.Printf("monitor reject reading sensor=%s: %v", payload.SensorID, err)
			continue
		}

		ingestCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		result, err := svc.IngestReading(ingestCtx, engine.IngestInput{
			SensorID:     payload.SensorID,
			ZoneID:       payload.ZoneID,
			Kind:         kind,
			Value:        payload.Value,
			QualityScore: payload.QualityScore,
			CapturedAt:   payload.CapturedAt,
		})
		cancel()
		if err != nil {
			log.Printf("monitor ingest sensor=%s error: %v", payload.SensorID, err)
			continue
		}
		if result.Severity.AtLeast(contracts.SeverityPoor) {
			log.Printf("monitor reading sensor=%s zone=%s %s=%.2f severity=%s",
				payload.SensorID, payload.ZoneID, payload.Kind, payload.Value, result.Severity)
		}
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrAlertNotFound), errors.Is(err, contracts.ErrZoneNotFound):
		httpx.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, contracts.ErrKindNotConfigured):
		httpx.WriteError(w, http.StatusUnprocessableEntity, err)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, err)
	}
}
