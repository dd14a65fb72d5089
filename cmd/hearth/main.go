// Hearth Core - Home Automation Hub
//
// This is the main entry point for the Hearth Core runtime: the
// automation rule execution engine, machine registry, action dispatcher
// and operator API of a Hearth installation. Attached services (device
// adapters, camera recorders, notification relays) talk to the hub over
// the MQTT broker.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/hearth-home/hearth-core/migrations"

	"github.com/hearth-home/hearth-core/internal/actions"
	"github.com/hearth-home/hearth-core/internal/api"
	"github.com/hearth-home/hearth-core/internal/dispatch"
	"github.com/hearth-home/hearth-core/internal/engine"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/database"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/metrics"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/machine"
	"github.com/hearth-home/hearth-core/internal/suntime"
	"github.com/hearth-home/hearth-core/internal/ticker"
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

// transcoderVersion tags specifications canonicalised by the current
// (passthrough) transcoder. Bump when a new canonical dialect ships.
const transcoderVersion = 1

// counterFlushInterval bounds how much activity bookkeeping a crash can
// lose between durable writes.
const counterFlushInterval = 5 * time.Minute

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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
	log.Info("database migrations complete")

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
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var metricsClient *metrics.Client
	if cfg.InfluxDB.Enabled {
		metricsClient, err = metrics.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		metricsClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Engine host: the single serialised message pipeline.
	host := engine.NewHost(engine.Options{
		QueueSize: cfg.Engine.QueueSize,
		SlowWarn:  time.Duration(cfg.Engine.SlowWarnMS) * time.Millisecond,
	})
	host.SetLogger(log)
	if metricsClient != nil {
		host.SetLatencyRecorder(metricsClient)
	}

	// Machine registry on top of the engine host.
	registry := machine.NewRegistry(
		machine.NewSQLiteRepository(db.DB),
		machine.NewPassthroughTranscoder(transcoderVersion),
		host,
	)
	registry.SetLogger(log)
	registry.SetEventPublisher(&mqttEventPublisher{client: mqttClient, log: log})
	if metricsClient != nil {
		registry.SetActivityMetrics(metricsClient)
	}
	host.SetActivityRecorder(registry)

	// Sun-time monitor feeding message enrichment.
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil {
		return fmt.Errorf("loading site timezone: %w", err)
	}
	sun := suntime.NewMonitor(
		suntime.Astronomical{},
		rand.New(rand.NewSource(time.Now().UnixNano())),
		suntime.Options{
			Latitude:     cfg.Site.Location.Latitude,
			Longitude:    cfg.Site.Location.Longitude,
			Location:     loc,
			InitialDelay: time.Duration(cfg.Sun.InitialDelaySeconds) * time.Second,
			RetryDelay:   time.Duration(cfg.Sun.RetryDelaySeconds) * time.Second,
			Entropy:      time.Duration(cfg.Sun.EntropyMinutes) * time.Minute,
		},
	)
	sun.SetLogger(log)
	host.SetSunSource(sun)

	// Action dispatcher, re-posting responses into the host.
	dispatcher := dispatch.NewDispatcher(host, dispatch.Options{
		Workers:       cfg.Dispatch.Workers,
		QueueSize:     cfg.Dispatch.QueueSize,
		ActionTimeout: time.Duration(cfg.Dispatch.ActionTimeout) * time.Second,
	})
	dispatcher.SetLogger(log)
	if metricsClient != nil {
		dispatcher.SetActionRecorder(metricsClient)
	}
	host.SetActionSink(dispatcher)

	// Action handlers over the broker.
	mediaWait := actions.NewMediaWaitList(actions.MediaWaitOptions{})
	mediaWait.SetLogger(log)
	if attachErr := mediaWait.Attach(mqttClient); attachErr != nil {
		return fmt.Errorf("subscribing to media upload events: %w", attachErr)
	}
	handlers := actions.NewHandlers(mqttClient, mediaWait)
	handlers.SetLogger(log)
	handlers.Register(dispatcher)

	// Start the pipeline before loading machines so enables land on a
	// live host.
	if startErr := host.Start(); startErr != nil {
		return fmt.Errorf("starting engine host: %w", startErr)
	}
	defer func() {
		log.Info("stopping engine host")
		if stopErr := host.Stop(); stopErr != nil {
			log.Error("error stopping engine host", "error", stopErr)
		}
	}()

	if startErr := dispatcher.Start(); startErr != nil {
		return fmt.Errorf("starting dispatcher: %w", startErr)
	}
	defer func() {
		log.Info("stopping dispatcher")
		if stopErr := dispatcher.Stop(); stopErr != nil {
			log.Error("error stopping dispatcher", "error", stopErr)
		}
	}()

	// Load persisted machines, then the stock rule set.
	if loadErr := registry.LoadAll(ctx); loadErr != nil {
		return fmt.Errorf("loading machines: %w", loadErr)
	}
	log.Info("machines loaded", "count", registry.Count())

	if stockErr := registry.InstallStockRules(ctx, cfg.Rules.StockDirs); stockErr != nil {
		log.Error("stock rule install failed", "error", stockErr)
	}

	// Persist activity counters on the way down, while the DB is open.
	defer func() {
		if flushErr := registry.FlushCounters(context.Background()); flushErr != nil {
			log.Error("error flushing machine counters", "error", flushErr)
		}
	}()

	// Periodic counter flush so a crash loses at most one interval.
	go func() {
		flushTicker := time.NewTicker(counterFlushInterval)
		defer flushTicker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-flushTicker.C:
				if flushErr := registry.FlushCounters(ctx); flushErr != nil {
					log.Error("error flushing machine counters", "error", flushErr)
				}
			}
		}
	}()

	// Time sources.
	sun.Start()
	defer func() {
		log.Info("stopping sun monitor")
		sun.Stop()
	}()

	minuteTick := ticker.NewMinute(host)
	minuteTick.SetLogger(log)
	minuteTick.Start()
	defer func() {
		log.Info("stopping minute ticker")
		minuteTick.Stop()
	}()

	// Operator API.
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		Logger:    log,
		Registry:  registry,
		Engine:    host,
		StockDirs: cfg.Rules.StockDirs,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, metricsClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, time
	// sources, counter flush, dispatcher, engine host, InfluxDB, MQTT,
	// database.

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// metricsClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, metricsClient *metrics.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if metricsClient != nil {
		if err := metricsClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttEventPublisher adapts the infrastructure MQTT client to the
// machine registry's EventPublisher interface, broadcasting lifecycle
// events on the core event topic.
type mqttEventPublisher struct {
	client *mqtt.Client
	log    *logging.Logger
}

// PublishEvent implements machine.EventPublisher.
func (p *mqttEventPublisher) PublishEvent(eventType string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error("event payload marshal failed", "event", eventType, "error", err)
		return
	}

	topic := mqtt.Topics{}.CoreEvent(eventType)
	if err := p.client.Publish(topic, body, 1, false); err != nil {
		p.log.Warn("event broadcast failed", "event", eventType, "error", err)
	}
}
