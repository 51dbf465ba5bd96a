// Gray Logic Gateway - Zigbee gateway adapter for the Gray Logic platform.
//
// gatewayd bridges a REST/WebSocket Zigbee gateway into the Gray Logic
// core over MQTT: it authorises against the gateway, mirrors device
// channels as retained state topics, relays channel commands, and
// reports the connection's health on the platform's status topics.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-gateway/migrations"

	"github.com/nerrad567/gray-logic-gateway/internal/adapter"
	"github.com/nerrad567/gray-logic-gateway/internal/api"
	"github.com/nerrad567/gray-logic-gateway/internal/corelink"
	"github.com/nerrad567/gray-logic-gateway/internal/discovery"
	"github.com/nerrad567/gray-logic-gateway/internal/gateway"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-gateway/internal/propstore"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// initializeTimeout bounds the adapter's bring-up sequence.
const initializeTimeout = 30 * time.Second

func main() {
	migrateStatus := flag.Bool("migrate-status", false, "print applied and pending migrations, then exit")
	migrateDown := flag.Bool("migrate-down", false, "roll back the most recent migration, then exit")
	flag.Parse()

	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch {
	case *migrateDown:
		err = runMigrateDown(ctx, os.Stdout)
	case *migrateStatus:
		err = runMigrateStatus(ctx, os.Stdout)
	default:
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic gateway adapter",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}

	// Load persisted properties (gateway credential, reported firmware info)
	store, err := propstore.New(ctx, db, log)
	if err != nil {
		return fmt.Errorf("loading property store: %w", err)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional channel history)
	var history gateway.HistoryRecorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		history = &channelHistory{gatewayID: cfg.Gateway.ID, influx: influxClient}
	} else {
		log.Info("InfluxDB disabled, channel history off")
	}

	// Platform link: status sink, command intake, channel publisher
	link := corelink.New(cfg.Gateway.ID, mqttClient, log)

	// Gateway transport and device layer
	rest := gateway.NewClient(cfg.Gateway.Host, cfg.Gateway.APIPort, cfg.GetRequestTimeout(), log)
	stream := gateway.NewEventStream(log)
	manager := gateway.NewManager(rest, store, link, history, log)

	// Discovery: seeds the device registry and announces devices to the core
	disc := discovery.New(cfg.Gateway.ID, db, mqttClient, log)

	// Lifecycle engine
	ad, err := adapter.New(adapter.Options{
		GatewayID:       cfg.Gateway.ID,
		Host:            cfg.Gateway.Host,
		EventPort:       cfg.Gateway.EventPort,
		RefreshInterval: cfg.GetRefreshInterval(),
		RequestTimeout:  cfg.GetRequestTimeout(),
		REST:            rest,
		Transport:       stream,
		Sink:            link,
		Store:           store,
		Devices:         manager,
		Bridge:          link,
		Discovery:       disc,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating adapter: %w", err)
	}
	defer ad.Dispose()

	// Event stream callbacks: lifecycle to the adapter, payloads to the
	// device layer.
	stream.SetListener(ad.Session())
	stream.SetHandler(manager.HandleEvent)
	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			log.Error("error closing event stream", "error", closeErr)
		}
	}()

	// Subscribe to core availability and channel commands
	if startErr := link.Start(ad.HandleCommand); startErr != nil {
		return fmt.Errorf("starting platform link: %w", startErr)
	}

	// Bring up the gateway connection
	initCtx, initCancel := context.WithTimeout(ctx, initializeTimeout)
	ad.Initialize(initCtx)
	initCancel()

	// Admin API
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Adapter:   ad,
		Devices:   manager,
		Store:     store,
		Discovery: disc,
		Core:      link,
		DB:        db,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating admin API: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting admin API: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing admin API", "error", closeErr)
		}
	}()

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Admin API
	// 2. Adapter (refresh job, event session, timers)
	// 3. Event stream
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("gateway adapter stopped")
	return nil
}

// runMigrateStatus opens the database and prints which migrations are
// applied and which are pending, without changing anything.
func runMigrateStatus(ctx context.Context, out io.Writer) error {
	db, err := openConfiguredDatabase()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Maintenance mode, exiting anyway

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", db.Path())
	fmt.Fprintf(out, "applied (%d):\n", len(applied))
	for _, record := range applied {
		fmt.Fprintf(out, "  %s  %s\n", record.Version, record.AppliedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "pending (%d):\n", len(pending))
	for _, migration := range pending {
		fmt.Fprintf(out, "  %s  %s\n", migration.Version, migration.Name)
	}
	return nil
}

// runMigrateDown rolls back the most recently applied migration.
func runMigrateDown(ctx context.Context, out io.Writer) error {
	db, err := openConfiguredDatabase()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Maintenance mode, exiting anyway

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	fmt.Fprintf(out, "rollback complete, %d migration(s) applied\n", len(applied))
	return nil
}

// openConfiguredDatabase loads the config file and opens the database
// it names. Shared by the migration maintenance modes.
func openConfiguredDatabase() (*database.DB, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// getConfigPath returns the configuration file path.
// Uses GLGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GLGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// channelHistory adapts the InfluxDB client to the device layer's
// history interface, pinning the gateway ID tag.
type channelHistory struct {
	gatewayID string
	influx    *influxdb.Client
}

func (h *channelHistory) RecordValue(channel string, value float64) {
	h.influx.WriteChannelValue(h.gatewayID, channel, value)
}

func (h *channelHistory) RecordState(channel string, state string) {
	h.influx.WriteChannelState(h.gatewayID, channel, state)
}
