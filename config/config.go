// Package config loads and validates the stream client configuration from a
// YAML or JSON file and maps it onto mqttstream.Options.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gopkg.in/yaml.v3"

	"mqtt-stream-client/mqttstream"
)

type Config struct {
	MQTT    MQTTConfig    `json:"mqtt" yaml:"mqtt"`
	Stream  StreamConfig  `json:"stream" yaml:"stream"`
	Logging LogConfig     `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type MQTTConfig struct {
	// Broker is used verbatim when set; otherwise Scheme, Host and Port are
	// assembled into a URL.
	Broker string `json:"broker" yaml:"broker"`
	Scheme string `json:"scheme" yaml:"scheme"`
	Host   string `json:"host" yaml:"host"`
	Port   int    `json:"port" yaml:"port"`

	ClientID string `json:"clientId" yaml:"clientId"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`

	PersistentSession    bool   `json:"persistentSession" yaml:"persistentSession"`
	DisableAutoReconnect bool   `json:"disableAutoReconnect" yaml:"disableAutoReconnect"`
	ConnectTimeout       string `json:"connectTimeout" yaml:"connectTimeout"` // duration string
	KeepAlive            string `json:"keepAlive" yaml:"keepAlive"`           // duration string

	TLS struct {
		Enable   bool   `json:"enable" yaml:"enable"`
		CertFile string `json:"certFile" yaml:"certFile"`
		KeyFile  string `json:"keyFile" yaml:"keyFile"`
		CAFile   string `json:"caFile" yaml:"caFile"`
	} `json:"tls" yaml:"tls"`

	// Persistence selects the store the underlying client uses for in-flight
	// QoS 1/2 messages: "memory" (default) or "file".
	Persistence struct {
		Type      string `json:"type" yaml:"type"`
		Directory string `json:"directory" yaml:"directory"`
	} `json:"persistence" yaml:"persistence"`
}

type StreamConfig struct {
	// Buffer bounds each subscription stream's internal message buffer.
	Buffer int `json:"buffer" yaml:"buffer"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`       // megabytes, file output only
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`         // days
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
	Path    string `json:"path" yaml:"path"`
}

// Load reads and parses the configuration file. The format is chosen by file
// extension: .yaml and .yml are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyDefaults()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied and no broker
// set. Callers are expected to fill in the broker before use.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.MQTT.Scheme == "" {
		c.MQTT.Scheme = "tcp"
	}
	if c.MQTT.Persistence.Type == "" {
		c.MQTT.Persistence.Type = "memory"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.OutputPath == "" {
		c.Logging.OutputPath = "stdout"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "json"
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":2112"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	if cfg.MQTT.Broker == "" && cfg.MQTT.Host == "" {
		return fmt.Errorf("mqtt broker address is required")
	}

	if cfg.MQTT.ConnectTimeout != "" {
		if _, err := time.ParseDuration(cfg.MQTT.ConnectTimeout); err != nil {
			return fmt.Errorf("invalid connect timeout: %w", err)
		}
	}
	if cfg.MQTT.KeepAlive != "" {
		if _, err := time.ParseDuration(cfg.MQTT.KeepAlive); err != nil {
			return fmt.Errorf("invalid keep alive: %w", err)
		}
	}

	if cfg.MQTT.TLS.Enable {
		if cfg.MQTT.TLS.CertFile == "" {
			return fmt.Errorf("tls cert file is required when tls is enabled")
		}
		if cfg.MQTT.TLS.KeyFile == "" {
			return fmt.Errorf("tls key file is required when tls is enabled")
		}
		if cfg.MQTT.TLS.CAFile == "" {
			return fmt.Errorf("tls ca file is required when tls is enabled")
		}
	}

	switch cfg.MQTT.Persistence.Type {
	case "memory":
	case "file":
		if cfg.MQTT.Persistence.Directory == "" {
			return fmt.Errorf("persistence directory is required for file persistence")
		}
	default:
		return fmt.Errorf("invalid persistence type: %s", cfg.MQTT.Persistence.Type)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Stream.Buffer < 0 {
		return fmt.Errorf("stream buffer must not be negative")
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(broker, clientID string, streamBuffer int, metricsAddr string) {
	if broker != "" {
		c.MQTT.Broker = broker
	}
	if clientID != "" {
		c.MQTT.ClientID = clientID
	}
	if streamBuffer > 0 {
		c.Stream.Buffer = streamBuffer
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
}

// ClientOptions maps the configuration onto mqttstream.Options. Logger and
// metrics wiring is left to the caller.
func (c *Config) ClientOptions() (*mqttstream.Options, error) {
	opts := &mqttstream.Options{
		BrokerURL:            c.MQTT.Broker,
		Scheme:               c.MQTT.Scheme,
		Host:                 c.MQTT.Host,
		Port:                 c.MQTT.Port,
		ClientID:             c.MQTT.ClientID,
		Username:             c.MQTT.Username,
		Password:             c.MQTT.Password,
		PersistentSession:    c.MQTT.PersistentSession,
		DisableAutoReconnect: c.MQTT.DisableAutoReconnect,
		StreamBuffer:         c.Stream.Buffer,
	}

	if c.MQTT.ConnectTimeout != "" {
		d, err := time.ParseDuration(c.MQTT.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid connect timeout: %w", err)
		}
		opts.ConnectTimeout = d
	}
	if c.MQTT.KeepAlive != "" {
		d, err := time.ParseDuration(c.MQTT.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("invalid keep alive: %w", err)
		}
		opts.KeepAlive = d
	}

	if c.MQTT.TLS.Enable {
		tlsConfig, err := newTLSConfig(c.MQTT.TLS.CertFile, c.MQTT.TLS.KeyFile, c.MQTT.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	if c.MQTT.Persistence.Type == "file" {
		opts.Store = mqtt.NewFileStore(c.MQTT.Persistence.Directory)
	}

	return opts, nil
}

// newTLSConfig builds a mutual-TLS configuration from PEM files.
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
