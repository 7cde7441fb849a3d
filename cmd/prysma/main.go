// Prysma Core - LED light state synchronisation service.
//
// Prysma Core keeps a SQLite registry of MQTT-connected LED lights in sync
// with what the devices report, forwards commands to them, and exposes the
// result over a REST API and a WebSocket event feed.
//
// Usage:
//
//	prysma                      run the service (config from PRYSMA_CONFIG)
//	prysma token -sub NAME -role operator [-ttl 24h]
//	                            print a signed API token
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/prysmalight/prysma-core/migrations"

	"github.com/prysmalight/prysma-core/internal/api"
	"github.com/prysmalight/prysma-core/internal/auth"
	"github.com/prysmalight/prysma-core/internal/fanout"
	"github.com/prysmalight/prysma-core/internal/infrastructure/config"
	"github.com/prysmalight/prysma-core/internal/infrastructure/database"
	"github.com/prysmalight/prysma-core/internal/infrastructure/influxdb"
	"github.com/prysmalight/prysma-core/internal/infrastructure/logging"
	"github.com/prysmalight/prysma-core/internal/infrastructure/mqtt"
	"github.com/prysmalight/prysma-core/internal/light"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// historyPruneInterval is how often old state history is deleted.
const historyPruneInterval = time.Hour

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order of construction.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Prysma Core",
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

	db, err := database.Open(ctx, database.Config{
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	repo := light.NewSQLiteRepository(db)
	history := light.NewSQLiteHistoryRepository(db)

	broker := fanout.New(cfg.Lights.FanoutBuffer)
	broker.SetLogger(log)
	defer broker.Close()

	mqttClient, err := connectMQTT(cfg.MQTT, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	// A nil *influxdb.Client must not end up inside the interface.
	var telemetry light.TelemetrySink
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		telemetry = influxClient
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	locks := &light.KeyedLocker{}
	acks := light.NewAckTracker()

	messenger := light.NewMessenger(mqttClient, light.MessengerConfig{
		Namespace: cfg.MQTT.Namespace,
		QoS:       byte(cfg.MQTT.QoS),
	}, log)

	reconciler := light.NewReconciler(light.ReconcilerDeps{
		Repo:      repo,
		Messenger: messenger,
		Locks:     locks,
		Publisher: broker,
		History:   history,
		Telemetry: telemetry,
		Acks:      acks,
		Logger:    log,
	})
	reconciler.Start(ctx)
	defer func() {
		log.Info("stopping reconciler")
		reconciler.Stop()
	}()

	service := light.NewService(light.ServiceDeps{
		Repo:         repo,
		Messenger:    messenger,
		Locks:        locks,
		Publisher:    broker,
		Confirmation: light.Confirmation(cfg.Lights.Confirmation),
		AckTimeout:   cfg.GetAckTimeout(),
		Acks:         acks,
		History:      history,
		Telemetry:    telemetry,
		Logger:       log,
	})
	log.Info("light engine started", "confirmation", cfg.Lights.Confirmation)

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Lights:     service,
		Broker:     broker,
		Checks:     checks,
		Reconciler: reconciler,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	if cfg.Security.JWT.Secret == "" {
		log.Warn("API authentication disabled: security.jwt.secret is empty")
	}

	if days := cfg.Lights.HistoryRetentionDays; days > 0 {
		go pruneHistoryLoop(ctx, history, time.Duration(days)*24*time.Hour, log)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// connectMQTT dials the broker. A broker that is down at startup is not
// fatal: paho keeps retrying and the reconciler resubscribes on connect.
func connectMQTT(cfg config.MQTTConfig, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg)
	switch {
	case errors.Is(err, mqtt.ErrConnectTimeout):
		log.Warn("MQTT broker not reachable yet, retrying in background",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
	case err != nil:
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	default:
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"client_id", cfg.Broker.ClientID,
		)
	}
	client.SetLogger(log)
	return client, nil
}

// pruneHistoryLoop deletes state history older than retention once at
// startup and then every historyPruneInterval.
func pruneHistoryLoop(ctx context.Context, history light.HistoryRepository, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		n, err := history.PruneHistory(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("pruning light state history failed", "error", err)
		case n > 0:
			log.Info("pruned light state history", "removed", n, "retention", retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runToken mints an API bearer token with the configured JWT secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("sub", "", "Token subject (who the token is for)")
	role := fs.String("role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("-sub is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; authentication is disabled")
	}

	token, err := auth.GenerateAccessToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses PRYSMA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PRYSMA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
