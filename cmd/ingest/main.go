package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"

	"github.com/RainDancerX/air-harmony-insight-server/internal/config"
	"github.com/RainDancerX/air-harmony-insight-server/internal/contracts"
	"github.com/RainDancerX/air-harmony-insight-server/internal/httpx"
	"github.com/RainDancerX/air-harmony-insight-server/internal/mq"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer := mq.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicReadings)
	defer writer.Close()

	if cfg.MQTTBroker != "" {
		client, err := startMQTTBridge(cfg, writer)
		if err != nil {
			log.Fatalf("ingest mqtt error: %v", err)
		}
		defer client.Disconnect(250)
	}

	if cfg.SimulatorTick > 0 {
		go runSimulator(ctx, writer, cfg.SimulatorTick)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "ingest"})
	})

	router.Post("/v1/readings", func(w http.ResponseWriter, r *http.Request) {
		var payload mq.ReadingMessage
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}
		if err := validateReading(&payload); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		if err := mq.PublishJSON(r.Context(), writer, payload.Key(), payload); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, err)
			return
		}
		httpx.WriteJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
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

	log.Printf("ingest listening on %s, producing %s", cfg.HTTPAddr, cfg.KafkaTopicReadings)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("ingest server error: %v", err)
	}
}

func validateReading(payload *mq.ReadingMessage) error {
	if strings.TrimSpace(payload.SensorID) == "" || strings.TrimSpace(payload.ZoneID) == "" {
		return errors.New("sensor_id and zone_id are required")
	}
	if _, err := contracts.ParseKind(payload.Kind); err != nil {
		return err
	}
	if payload.CapturedAt.IsZero() {
		payload.CapturedAt = time.Now().UTC()
	}
	return nil
}

// startMQTTBridge forwards sensor reports arriving over MQTT onto the
// readings topic. Sensors publish the same JSON shape as the HTTP
// endpoint accepts.
func startMQTTBridge(cfg config.Config, writer *kafka.Writer) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.ConsumerGroupPrefix + "-ingest").
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var payload mq.ReadingMessage
		if err := mq.DecodeMQTT(msg.Payload(), &payload); err != nil {
			log.Printf("ingest mqtt decode topic=%s: %v", msg.Topic(), err)
			return
		}
		if err := validateReading(&payload); err != nil {
			log.Printf("ingest mqtt reject topic=%s: %v", msg.Topic(), err)
			return
		}

		publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mq.PublishJSON(publishCtx, writer, payload.Key(), payload); err != nil {
			log.Printf("ingest mqtt forward sensor=%s: %v", payload.SensorID, err)
		}
	}

	if token := client.Subscribe(cfg.MQTTTopic, 0, handler); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, token.Error()
	}
	log.Printf("ingest bridging mqtt %s from %s", cfg.MQTTTopic, cfg.MQTTBroker)
	return client, nil
}

// runSimulator emits plausible readings for a small fixed fleet, handy
// for local development without real sensors.
func runSimulator(ctx context.Context, writer *kafka.Writer, tick time.Duration) {
	type simSensor struct {
		sensorID string
		zoneID   string
		kind     string
		base     float64
		jitter   float64
	}
	fleet := []simSensor{
		{"sim-pm25-1", "zone-lobby", string(contracts.KindPM25), 18, 40},
		{"sim-co2-1", "zone-lobby", string(contracts.KindCO2), 700, 900},
		{"sim-hum-1", "zone-lab", string(contracts.KindHumidity), 38, 25},
		{"sim-temp-1", "zone-lab", string(contracts.KindTemperature), 23, 9},
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	log.Printf("ingest simulator emitting every %s", tick)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range fleet {
				payload := mq.ReadingMessage{
					SensorID:     s.sensorID,
					ZoneID:       s.zoneID,
					Kind:         s.kind,
					Value:        s.base + rand.Float64()*s.jitter,
					QualityScore: 0.9 + rand.Float64()*0.1,
					CapturedAt:   time.Now().UTC(),
				}
				if err := mq.PublishJSON(ctx, writer, payload.Key(), payload); err != nil {
					log.Printf("ingest simulator publish error: %v", err)
				}
			}
		}
	}
}
