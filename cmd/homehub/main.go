// homehub - home telemetry hub
//
// homehub collects readings from external sensor programs, virtual switches
// and an MQTT heater/fan appliance, exports them as Prometheus metrics,
// relays them to a homebridge-style webhook and a WebSocket feed, and
// accepts appliance commands over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/nerrad567/homehub/internal/api"
	"github.com/nerrad567/homehub/internal/bus"
	"github.com/nerrad567/homehub/internal/heater"
	"github.com/nerrad567/homehub/internal/infrastructure/config"
	"github.com/nerrad567/homehub/internal/infrastructure/influxdb"
	"github.com/nerrad567/homehub/internal/infrastructure/logging"
	"github.com/nerrad567/homehub/internal/infrastructure/mqtt"
	"github.com/nerrad567/homehub/internal/metrics"
	"github.com/nerrad567/homehub/internal/notify"
	"github.com/nerrad567/homehub/internal/recorder"
	"github.com/nerrad567/homehub/internal/sensors/external"
	"github.com/nerrad567/homehub/internal/switches"
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

// Default lifetime of tokens minted with -token.
const defaultTokenTTL = 365 * 24 * time.Hour

func main() {
	tokenSubject := flag.String("token", "", "print a bearer token for `subject` and exit")
	tokenTTL := flag.Duration("token-ttl", defaultTokenTTL, "lifetime of the token printed by -token")
	flag.Parse()

	if *tokenSubject != "" {
		if err := printToken(*tokenSubject, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
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

// printToken signs a token with the configured secret.
func printToken(subject string, ttl time.Duration) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; authentication is disabled")
	}
	token, err := api.SignToken(cfg.Security.JWT.Secret, subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// run is the actual application logic, separated from main for testability.
//
// Startup order matters: every bus consumer subscribes in its constructor,
// so consumers are built before any producer registers a metric.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting homehub",
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

	eventBus := bus.New(log.Component("bus"), bus.Options{InboxSize: cfg.Bus.InboxSize})
	defer eventBus.Close()

	supervisor := suture.New("homehub", suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn("supervisor event", "event", e.String())
		},
	})
	health := map[string]api.HealthChecker{}

	// Consumers.
	registry, err := metrics.New(eventBus, log.Component("metrics"), cfg.Bus.InboxSize)
	if err != nil {
		return fmt.Errorf("starting metric registry: %w", err)
	}
	supervisor.Add(busService{name: "metrics", serve: registry.Serve})

	dispatcher := notify.NewDispatcher(
		&http.Client{Timeout: cfg.Webhook.TimeoutDuration()},
		int64(cfg.Webhook.MaxInFlight),
		log.Component("webhook"),
	)
	defer dispatcher.Wait()

	if cfg.Webhook.URL != "" {
		forwarder, fwdErr := notify.NewForwarder(eventBus, dispatcher, cfg.Webhook.URL, log.Component("notify"), cfg.Bus.InboxSize)
		if fwdErr != nil {
			return fmt.Errorf("starting notification forwarder: %w", fwdErr)
		}
		supervisor.Add(busService{name: "notify", serve: forwarder.Serve})
	} else {
		log.Info("webhook forwarding disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
		health["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		rec, recErr := recorder.New(eventBus, influxClient, log.Component("recorder"), cfg.Bus.InboxSize)
		if recErr != nil {
			return fmt.Errorf("starting recorder: %w", recErr)
		}
		supervisor.Add(busService{name: "recorder", serve: rec.Serve})
	} else {
		log.Info("InfluxDB disabled")
	}

	hub, err := api.NewHub(eventBus, cfg.WebSocket, log.Component("websocket"), cfg.Bus.InboxSize)
	if err != nil {
		return fmt.Errorf("starting websocket hub: %w", err)
	}
	supervisor.Add(busService{name: "websocket", serve: hub.Serve})

	supervisorErr := supervisor.ServeBackground(ctx)

	// Producers.
	for _, command := range cfg.Sensors.Externals {
		sensor, sensorErr := external.New(external.Config{
			Command:    command,
			MetricName: cfg.Metrics.Name,
			Resolution: cfg.Sensors.Resolution(),
		}, eventBus, nil, log.Component("external"))
		if sensorErr != nil {
			return fmt.Errorf("configuring external sensor %q: %w", command, sensorErr)
		}
		supervisor.Add(busService{name: "external:" + sensor.Path(), serve: sensor.Serve})
	}
	if len(cfg.Sensors.Externals) > 0 {
		log.Info("external sensors active", "count", len(cfg.Sensors.Externals))
	}

	var bank *switches.Bank
	if len(cfg.Switches.Names) > 0 {
		bank, err = switches.New(eventBus, cfg.Switches.Names)
		if err != nil {
			return fmt.Errorf("configuring switches: %w", err)
		}
		if err := bank.Start(); err != nil {
			return fmt.Errorf("starting switches: %w", err)
		}
		log.Info("virtual switches active", "switches", bank.Names())
	}

	var appliance *heater.Appliance
	if cfg.Heater.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		health["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		appliance, err = startHeater(ctx, cfg, eventBus, mqttClient, dispatcher, influxClient, log)
		if err != nil {
			return err
		}
		defer appliance.Stop()
	}

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Metrics:  registry,
		Hub:      hub,
		Health:   health,
		Version:  version,
	}
	// Typed nils must not reach the interface fields.
	if appliance != nil {
		deps.Heater = appliance
	}
	if bank != nil {
		deps.Switches = bank
	}
	server, err := api.New(deps)
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

	log.Info("homehub started",
		"site", cfg.Site.ID,
		"metrics_name", cfg.Metrics.Name,
		"heater", cfg.Heater.Enabled,
	)

	select {
	case <-ctx.Done():
	case err := <-supervisorErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("supervisor stopped: %w", err)
		}
	}

	log.Info("shutting down homehub")
	return nil
}

// startHeater wires the appliance to MQTT, the webhook and the audit log.
func startHeater(
	ctx context.Context,
	cfg *config.Config,
	eventBus *bus.Bus,
	mqttClient *mqtt.Client,
	dispatcher *notify.Dispatcher,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*heater.Appliance, error) {
	pusher, err := notify.NewStatePusher(cfg.Webhook.StateURL, dispatcher, log.Component("notify"))
	if err != nil {
		return nil, fmt.Errorf("configuring state push: %w", err)
	}

	opts := heater.Options{
		DeviceID:        cfg.Heater.DeviceID,
		MetricName:      cfg.Metrics.Name,
		HistorySize:     cfg.Heater.HistorySize,
		RefreshDebounce: cfg.Heater.RefreshDebounce(),
		Bus:             eventBus,
		Transport:       &mqttTransport{client: mqttClient},
		Pusher:          pusher,
		Logger:          log.Component("heater"),
	}
	if influxClient != nil {
		opts.Auditor = influxClient
	}

	appliance, err := heater.New(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring heater: %w", err)
	}
	if err := appliance.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting heater: %w", err)
	}
	log.Info("heater listening", "device_id", cfg.Heater.DeviceID)
	return appliance, nil
}

// getConfigPath returns the configuration file path from HOMEHUB_CONFIG,
// or the default.
func getConfigPath() string {
	if path := os.Getenv("HOMEHUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// mqttTransport adapts the infrastructure MQTT client to the heater's
// Transport interface. The handler types differ only by name.
type mqttTransport struct {
	client *mqtt.Client
}

func (t *mqttTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return t.client.Publish(topic, payload, qos, retained)
}

func (t *mqttTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return t.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

func (t *mqttTransport) IsConnected() bool {
	return t.client.IsConnected()
}

// busService adapts a bus consumer or producer to suture. A closed bus
// means shutdown, so it is not restarted.
type busService struct {
	name  string
	serve func(ctx context.Context) error
}

func (s busService) Serve(ctx context.Context) error {
	err := s.serve(ctx)
	if errors.Is(err, bus.ErrClosed) {
		return suture.ErrDoNotRestart
	}
	return err
}

func (s busService) String() string {
	return s.name
}
