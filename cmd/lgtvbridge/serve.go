package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lgtv/internal/api"
	"github.com/nerrad567/gray-logic-lgtv/internal/bridges/lgtv"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/mqtt"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Long: `Run the bridge until interrupted.

Stored TVs are validated in parallel; those that answer are exposed over
MQTT (graylogic/{command,ack,state,request,response}/lgtv/...) and the
HTTP API. TVs that fail validation are logged and left out until the next
start or until their options are changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
}

// run starts every component and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - cfg: Loaded configuration
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting lgtv bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	metrics := lgtv.NewMetrics()
	deps := runtimeDeps{metrics: metrics}

	// InfluxDB is optional; a failed connection is not fatal.
	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		log.Warn("InfluxDB unavailable, state history disabled", "error", err)
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
		deps.history = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	rt, err := newRuntime(cfg, st.entries, deps, log)
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}
	defer func() {
		log.Info("closing serial links")
		rt.Close()
	}()

	loaded, err := rt.SetupAll(ctx)
	if err != nil {
		return fmt.Errorf("loading entries: %w", err)
	}
	expected, _ := rt.ExpectedCount(ctx)
	log.Info("entries loaded", "loaded", loaded, "stored", expected)

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	bridge, err := lgtv.NewBridge(lgtv.BridgeOptions{
		Config: lgtv.BridgeConfig{
			ID:             cfg.Bridge.ID,
			Version:        version,
			HealthInterval: cfg.GetHealthInterval(),
		},
		MQTTClient: mqttClient,
		Runtime:    rt,
		Logger:     log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		srv, err := startAPI(ctx, cfg, st, rt, metrics, mqttClient, log)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("HTTP API disabled")
	}

	log.Info("initialisation complete, polling", "interval", cfg.GetPollInterval())
	rt.Run(ctx, cfg.GetPollInterval())

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// connectMQTT connects with the bridge's offline LWT registered.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	lwt, err := lgtv.LWTPayload(cfg.Bridge.ID)
	if err != nil {
		return nil, fmt.Errorf("building LWT: %w", err)
	}

	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: lgtv.HealthTopic(), Payload: lwt})
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// startAPI builds and starts the HTTP API.
func startAPI(ctx context.Context, cfg *config.Config, st *store, rt *lgtv.Runtime,
	metrics *lgtv.Metrics, mqttClient *mqtt.Client, log *logging.Logger,
) (*api.Server, error) {
	prov, err := newProvisioner(st, rt, log)
	if err != nil {
		return nil, fmt.Errorf("creating provisioner: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.Component("api"),
		Runtime:     rt,
		Provisioner: prov,
		Entries:     st.entries,
		Metrics:     metrics,
		MQTT:        mqttClient,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting API server: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		log.Warn("API authentication disabled (security.jwt.secret is empty)")
	}
	return srv, nil
}
