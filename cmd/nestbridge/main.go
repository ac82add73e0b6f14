// Gray Logic Nest Bridge
//
// This is the main entry point for the Nest thermostat bridge. It mirrors
// every thermostat of one Nest account onto the Gray Logic MQTT topics:
//   - Periodic long-poll of every thermostat
//   - Commands and bulk requests over MQTT
//   - Local state history in SQLite and optional telemetry in InfluxDB
//   - A status HTTP API
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-nest/internal/api"
	"github.com/nerrad567/gray-logic-nest/internal/bridges/nest"
	"github.com/nerrad567/gray-logic-nest/internal/device"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-nest/internal/infrastructure/mqtt"
	nestapi "github.com/nerrad567/gray-logic-nest/internal/nest"
	"github.com/nerrad567/gray-logic-nest/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// maintenanceInterval paces history pruning and bridge stats telemetry.
	maintenanceInterval = time.Hour

	historyRetention = 30 * 24 * time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic Nest bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.Source()); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	thermostatRepo := device.NewSQLiteRepository(db.DB)
	historyRepo := device.NewSQLiteStateHistoryRepository(db.DB)

	// Connect to MQTT broker. The will marks the bridge offline if the
	// process dies without a clean shutdown.
	lwt, err := nest.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return fmt.Errorf("building last will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT,
		mqtt.WithWill(mqtt.Will{Topic: nest.HealthTopic(), Payload: lwt, QoS: 1, Retained: true}),
		mqtt.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	// Nest session
	sessionCfg := nestapi.ConfigFrom(cfg.Nest)
	session, err := nestapi.NewSession(sessionCfg)
	if err != nil {
		return fmt.Errorf("creating Nest session: %w", err)
	}
	sessions := nest.NewSessionHolder(session, func(_ context.Context) (nest.RemoteSession, error) {
		return nestapi.NewSession(sessionCfg)
	})

	bridge, err := startBridge(ctx, cfg, mqttClient, session, sessions, thermostatRepo, historyRepo, influxClient, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping Nest bridge")
		bridge.Stop()
	}()

	// Start status API (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:         cfg.API,
			Logger:         log,
			Controller:     bridge.Controller(),
			History:        historyRepo,
			MQTT:           mqttClient,
			Auth:           session,
			DB:             db,
			CommandTimeout: cfg.GetCommandTimeout(),
			Version:        version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	runMaintenance(ctx, cfg.Bridge.ID, bridge.Controller(), historyRepo, influxClient, log)

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic Nest bridge stopped")
	return nil
}

// startBridge wires the recorders and starts the bridge.
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	auth nest.Authorizer,
	sessions *nest.SessionHolder,
	registry nest.Registry,
	history nest.HistoryStore,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*nest.Bridge, error) {
	recorders := nest.Recorders{nest.NewHistoryRecorder(history, log)}
	if influxClient != nil {
		recorders = append(recorders, nest.NewTelemetryRecorder(influxClient))
	}

	bridge, err := nest.NewBridge(nest.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		APIURL:         cfg.Nest.APIURL,
		PIN:            cfg.Nest.PIN,
		PollInterval:   cfg.GetPollInterval(),
		HealthInterval: cfg.GetHealthInterval(),
		CommandTimeout: cfg.GetCommandTimeout(),
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Sessions:       sessions,
		Auth:           auth,
		Registry:       registry,
		Recorder:       recorders,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Nest bridge: %w", err)
	}

	// Retained state must be republished in full after the broker
	// drops the session.
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
		bridge.OnMQTTReconnect()
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting Nest bridge: %w", err)
	}
	log.Info("Nest bridge started",
		"bridge_id", cfg.Bridge.ID,
		"poll_interval", cfg.GetPollInterval().String(),
	)
	return bridge, nil
}

// historyPruner is the part of the history repository maintenance uses.
type historyPruner interface {
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// statsWriter is the part of the InfluxDB client maintenance uses.
type statsWriter interface {
	WriteBridgeStats(bridgeID string, fields map[string]any)
}

// runMaintenance prunes old history and writes bridge counters until ctx
// is cancelled.
func runMaintenance(ctx context.Context, bridgeID string, ctrl *nest.Controller, history historyPruner, influxClient *influxdb.Client, log *logging.Logger) {
	var stats statsWriter
	if influxClient != nil {
		stats = influxClient
	}

	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			maintain(ctx, bridgeID, ctrl.Stats(), history, stats, log)
		}
	}
}

// maintain runs one maintenance pass.
func maintain(ctx context.Context, bridgeID string, s nest.ControllerStats, history historyPruner, stats statsWriter, log *logging.Logger) {
	if history != nil {
		removed, err := history.PruneHistory(ctx, historyRetention)
		if err != nil {
			log.Warn("history prune failed", "error", err)
		} else if removed > 0 {
			log.Info("history pruned", "removed", removed)
		}
	}

	if stats != nil {
		stats.WriteBridgeStats(bridgeID, map[string]any{
			"thermostats":      s.Thermostats,
			"polls":            s.Polls,
			"poll_failures":    s.PollFailures,
			"commands":         s.Commands,
			"command_failures": s.CommandFailures,
			"reconnects":       s.Reconnects,
		})
	}
}

// getConfigPath returns the configuration file path.
// Uses NEST_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NEST_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when telemetry is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface, whose handlers return nothing.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements nest.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements nest.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements nest.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
