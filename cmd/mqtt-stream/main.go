package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"mqtt-stream-client/config"
	"mqtt-stream-client/internal/logger"
	"mqtt-stream-client/metrics"
	"mqtt-stream-client/mqttstream"
)

func main() {
	// Command line flags
	configPath := pflag.String("config", "", "path to config file (json or yaml)")
	topics := pflag.StringSlice("topic", nil, "topic filter to subscribe to (repeatable)")
	qos := pflag.Uint8("qos", 2, "quality of service level (0, 1 or 2)")
	publishPayload := pflag.String("publish", "", "publish this payload to the first topic instead of subscribing")
	retained := pflag.Bool("retained", false, "set the retained flag on published messages")

	// Optional override flags
	brokerOverride := pflag.String("broker", "", "override broker url (empty = use config)")
	clientIDOverride := pflag.String("client-id", "", "override client id (empty = use config)")
	bufferOverride := pflag.Int("stream-buffer", 0, "override stream buffer size (0 = use config)")
	metricsAddrOverride := pflag.String("metrics-addr", "", "override metrics server address (empty = use config)")

	pflag.Parse()

	// Load configuration
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Apply any command line overrides
	cfg.ApplyOverrides(*brokerOverride, *clientIDOverride, *bufferOverride, *metricsAddrOverride)

	// Initialize logger
	logger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	if *qos > 2 {
		logger.Fatal("invalid qos level", "qos", *qos)
	}
	if len(*topics) == 0 {
		logger.Fatal("at least one --topic is required")
	}

	// Setup metrics if enabled
	var metricsService *metrics.Metrics
	var metricsServer *http.Server

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			logger.Fatal("failed to create metrics service", "error", err)
		}

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))

		metricsServer = &http.Server{
			Addr:    cfg.Metrics.Address,
			Handler: mux,
		}

		go func() {
			logger.Info("starting metrics server",
				"address", cfg.Metrics.Address,
				"path", cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	// Build the client
	opts, err := cfg.ClientOptions()
	if err != nil {
		logger.Fatal("invalid client configuration", "error", err)
	}
	opts.Logger = logger.Logger
	opts.Metrics = metricsService

	client, err := mqttstream.New(opts)
	if err != nil {
		logger.Fatal("failed to create client", "error", err)
	}
	defer client.DisconnectAndClose()

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = mqttstream.DefaultConnectTimeout
	}
	if err := client.Connect().WaitTimeout(connectTimeout); err != nil {
		logger.Fatal("failed to connect", "error", err)
	}
	logger.Info("connected", "topics", *topics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *publishPayload != "" {
		runPublish(ctx, client, logger, (*topics)[0], mqttstream.DecodeQoS(*qos), *retained, *publishPayload)
	} else {
		runSubscribe(ctx, client, logger, *topics, mqttstream.DecodeQoS(*qos))
	}

	// Shutdown metrics server if enabled
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}
}

func runPublish(ctx context.Context, client *mqttstream.Client, logger *logger.Logger, topic string, qos mqttstream.QoS, retained bool, payload string) {
	token := client.PublishText(topic, qos, retained, payload)
	if err := token.Wait(ctx); err != nil {
		logger.Error("publish failed", "topic", topic, "error", err)
		return
	}
	logger.Info("published", "topic", topic, "qos", qos.String(), "messageId", token.MessageID())
}

func runSubscribe(ctx context.Context, client *mqttstream.Client, logger *logger.Logger, topics []string, qos mqttstream.QoS) {
	filters := make([]mqttstream.TopicFilter, 0, len(topics))
	for _, topic := range topics {
		filters = append(filters, mqttstream.TopicFilter{Topic: topic, QoS: qos})
	}

	err := client.SubscribeAndCollect(ctx, func(m mqttstream.Message) {
		fmt.Printf("%s [%s] %s\n", m.Topic(), m.QoS(), m.Text())
	}, filters...)

	switch {
	case err == nil, ctx.Err() != nil:
		logger.Info("shutting down...")
	default:
		logger.Error("subscription failed", "error", err)
	}
}
