package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		wantErr  bool
		validate func(*testing.T, *Config)
	}{
		{
			name: "Valid minimal config",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker": "tcp://localhost:1883",
				},
			},
			wantErr: false,
			validate: func(t *testing.T, c *Config) {
				if c.MQTT.Broker != "tcp://localhost:1883" {
					t.Errorf("expected broker url, got %s", c.MQTT.Broker)
				}
				if c.Logging.Level != "info" {
					t.Errorf("expected default log level info, got %s", c.Logging.Level)
				}
				if c.Metrics.Address != ":2112" {
					t.Errorf("expected default metrics address :2112, got %s", c.Metrics.Address)
				}
				if c.MQTT.Persistence.Type != "memory" {
					t.Errorf("expected default persistence memory, got %s", c.MQTT.Persistence.Type)
				}
			},
		},
		{
			name: "Host and port instead of url",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"host": "broker.example.com",
					"port": 8883,
				},
			},
			wantErr: false,
			validate: func(t *testing.T, c *Config) {
				if c.MQTT.Host != "broker.example.com" {
					t.Errorf("unexpected host: %s", c.MQTT.Host)
				}
				if c.MQTT.Scheme != "tcp" {
					t.Errorf("expected default scheme tcp, got %s", c.MQTT.Scheme)
				}
			},
		},
		{
			name:    "Missing broker",
			config:  map[string]interface{}{},
			wantErr: true,
		},
		{
			name: "Invalid log level",
			config: map[string]interface{}{
				"mqtt":    map[string]interface{}{"broker": "tcp://localhost:1883"},
				"logging": map[string]interface{}{"level": "loud"},
			},
			wantErr: true,
		},
		{
			name: "Invalid log encoding",
			config: map[string]interface{}{
				"mqtt":    map[string]interface{}{"broker": "tcp://localhost:1883"},
				"logging": map[string]interface{}{"encoding": "xml"},
			},
			wantErr: true,
		},
		{
			name: "Invalid connect timeout",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker":         "tcp://localhost:1883",
					"connectTimeout": "soon",
				},
			},
			wantErr: true,
		},
		{
			name: "TLS enabled without cert",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker": "ssl://localhost:8883",
					"tls":    map[string]interface{}{"enable": true},
				},
			},
			wantErr: true,
		},
		{
			name: "File persistence without directory",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker":      "tcp://localhost:1883",
					"persistence": map[string]interface{}{"type": "file"},
				},
			},
			wantErr: true,
		},
		{
			name: "Unknown persistence type",
			config: map[string]interface{}{
				"mqtt": map[string]interface{}{
					"broker":      "tcp://localhost:1883",
					"persistence": map[string]interface{}{"type": "redis"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.config)
			if err != nil {
				t.Fatal(err)
			}
			path := writeConfigFile(t, "config.json", data)

			cfg, err := Load(path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	data := []byte(`
mqtt:
  broker: tcp://localhost:1883
  clientId: yaml-client
  keepAlive: 30s
stream:
  buffer: 128
logging:
  level: debug
  encoding: console
`)
	path := writeConfigFile(t, "config.yaml", data)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MQTT.ClientID != "yaml-client" {
		t.Errorf("expected clientId yaml-client, got %s", cfg.MQTT.ClientID)
	}
	if cfg.Stream.Buffer != 128 {
		t.Errorf("expected stream buffer 128, got %d", cfg.Stream.Buffer)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Encoding != "console" {
		t.Errorf("expected log encoding console, got %s", cfg.Logging.Encoding)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker = "tcp://broker:1883"
	cfg.MQTT.ClientID = "opts-client"
	cfg.MQTT.Username = "alice"
	cfg.MQTT.PersistentSession = true
	cfg.MQTT.ConnectTimeout = "3s"
	cfg.MQTT.KeepAlive = "45s"
	cfg.Stream.Buffer = 32

	opts, err := cfg.ClientOptions()
	if err != nil {
		t.Fatalf("ClientOptions() error = %v", err)
	}
	if opts.BrokerURL != "tcp://broker:1883" {
		t.Errorf("unexpected broker url: %s", opts.BrokerURL)
	}
	if opts.ClientID != "opts-client" {
		t.Errorf("unexpected client id: %s", opts.ClientID)
	}
	if !opts.PersistentSession {
		t.Error("expected persistent session to carry over")
	}
	if opts.ConnectTimeout != 3*time.Second {
		t.Errorf("unexpected connect timeout: %v", opts.ConnectTimeout)
	}
	if opts.KeepAlive != 45*time.Second {
		t.Errorf("unexpected keep alive: %v", opts.KeepAlive)
	}
	if opts.StreamBuffer != 32 {
		t.Errorf("unexpected stream buffer: %d", opts.StreamBuffer)
	}
	if opts.Store != nil {
		t.Error("expected no store for memory persistence")
	}
}

func TestClientOptionsFilePersistence(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Broker = "tcp://broker:1883"
	cfg.MQTT.Persistence.Type = "file"
	cfg.MQTT.Persistence.Directory = t.TempDir()

	opts, err := cfg.ClientOptions()
	if err != nil {
		t.Fatalf("ClientOptions() error = %v", err)
	}
	if opts.Store == nil {
		t.Error("expected a file store to be configured")
	}
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name         string
		broker       string
		clientID     string
		streamBuffer int
		metricsAddr  string
		validate     func(*testing.T, *Config)
	}{
		{
			name:         "Override all values",
			broker:       "tcp://other:1883",
			clientID:     "cli-client",
			streamBuffer: 256,
			metricsAddr:  ":3000",
			validate: func(t *testing.T, c *Config) {
				if c.MQTT.Broker != "tcp://other:1883" {
					t.Errorf("expected broker override, got %s", c.MQTT.Broker)
				}
				if c.MQTT.ClientID != "cli-client" {
					t.Errorf("expected clientId override, got %s", c.MQTT.ClientID)
				}
				if c.Stream.Buffer != 256 {
					t.Errorf("expected buffer override, got %d", c.Stream.Buffer)
				}
				if c.Metrics.Address != ":3000" {
					t.Errorf("expected metrics address override, got %s", c.Metrics.Address)
				}
			},
		},
		{
			name: "No overrides",
			validate: func(t *testing.T, c *Config) {
				if c.MQTT.Broker != "tcp://localhost:1883" {
					t.Errorf("broker changed unexpectedly: %s", c.MQTT.Broker)
				}
				if c.Stream.Buffer != 64 {
					t.Errorf("buffer changed unexpectedly: %d", c.Stream.Buffer)
				}
				if c.Metrics.Address != ":2112" {
					t.Errorf("metrics address changed unexpectedly: %s", c.Metrics.Address)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.MQTT.Broker = "tcp://localhost:1883"
			cfg.Stream.Buffer = 64

			cfg.ApplyOverrides(tt.broker, tt.clientID, tt.streamBuffer, tt.metricsAddr)
			tt.validate(t, cfg)
		})
	}
}
