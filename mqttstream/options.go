package mqttstream

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"mqtt-stream-client/metrics"
)

// Defaults applied when the corresponding Options field is zero.
const (
	DefaultConnectTimeout       = 10 * time.Second
	DefaultKeepAlive            = 60 * time.Second
	DefaultOperationTimeout     = 5 * time.Second
	DefaultQuiesce              = 250 * time.Millisecond
	DefaultMaxReconnectInterval = time.Minute
	DefaultStreamBuffer         = 64
)

// Options configures the wrapper client and the paho client underneath it.
// Zero values fall back to the defaults above.
type Options struct {
	// BrokerURL is used verbatim when set; otherwise the URL is assembled
	// from Scheme, Host and Port.
	BrokerURL string
	Scheme    string // "tcp" or "ssl", defaults to "tcp"
	Host      string
	Port      int

	// ClientID identifies this client to the broker. When empty, a
	// uuid-suffixed identifier is generated.
	ClientID string
	Username string
	Password string

	// PersistentSession asks the broker to resume an existing session
	// instead of starting clean. The default is a clean session.
	PersistentSession bool

	// DisableAutoReconnect turns off the underlying client's automatic
	// reconnection. Reconnection is on by default.
	DisableAutoReconnect bool

	ConnectTimeout       time.Duration
	KeepAlive            time.Duration
	MaxReconnectInterval time.Duration

	// OperationTimeout bounds the synchronous waits the facade performs
	// internally, such as the unsubscribe issued on stream teardown.
	OperationTimeout time.Duration

	// Quiesce is the drain window granted to in-flight work by a graceful
	// disconnect.
	Quiesce time.Duration

	TLSConfig *tls.Config

	// Store is the persistence the underlying client uses for QoS 1/2
	// redelivery. Defaults to the client's in-memory store.
	Store mqtt.Store

	// StreamBuffer bounds each subscription stream's internal buffer.
	StreamBuffer int

	// Codec encodes and decodes structured payloads. Defaults to JSONCodec.
	Codec Codec

	// Logger receives client and stream events. Nil disables logging.
	Logger *slog.Logger

	// Metrics receives instrumentation updates. Nil disables them.
	Metrics *metrics.Metrics
}

// withDefaults returns a normalized copy of o with every zero field filled
// in.
func (o *Options) withDefaults() *Options {
	norm := *o
	if norm.Scheme == "" {
		norm.Scheme = "tcp"
	}
	if norm.ClientID == "" {
		norm.ClientID = fmt.Sprintf("mqtt-stream-%s", uuid.NewString())
	}
	if norm.ConnectTimeout <= 0 {
		norm.ConnectTimeout = DefaultConnectTimeout
	}
	if norm.KeepAlive <= 0 {
		norm.KeepAlive = DefaultKeepAlive
	}
	if norm.MaxReconnectInterval <= 0 {
		norm.MaxReconnectInterval = DefaultMaxReconnectInterval
	}
	if norm.OperationTimeout <= 0 {
		norm.OperationTimeout = DefaultOperationTimeout
	}
	if norm.Quiesce <= 0 {
		norm.Quiesce = DefaultQuiesce
	}
	if norm.StreamBuffer <= 0 {
		norm.StreamBuffer = DefaultStreamBuffer
	}
	if norm.Codec == nil {
		norm.Codec = JSONCodec{}
	}
	if norm.Logger == nil {
		norm.Logger = discardLogger()
	}
	return &norm
}

// brokerURL returns the broker address the client should dial.
func (o *Options) brokerURL() string {
	if o.BrokerURL != "" {
		return o.BrokerURL
	}
	if o.Host == "" {
		return ""
	}
	scheme := o.Scheme
	if scheme == "" {
		scheme = "tcp"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, o.Host, o.Port)
}

// BuildClientOptions translates Options into the paho client options the
// underlying client expects. It is also usable on its own as a
// default-options helper when constructing a paho client directly.
func BuildClientOptions(o *Options) *mqtt.ClientOptions {
	norm := o.withDefaults()

	opts := mqtt.NewClientOptions().
		AddBroker(norm.brokerURL()).
		SetClientID(norm.ClientID).
		SetCleanSession(!norm.PersistentSession).
		SetAutoReconnect(!norm.DisableAutoReconnect).
		SetMaxReconnectInterval(norm.MaxReconnectInterval).
		SetConnectTimeout(norm.ConnectTimeout).
		SetKeepAlive(norm.KeepAlive)

	if norm.Username != "" {
		opts.SetUsername(norm.Username)
		opts.SetPassword(norm.Password)
	}
	if norm.TLSConfig != nil {
		opts.SetTLSConfig(norm.TLSConfig)
	}
	if norm.Store != nil {
		opts.SetStore(norm.Store)
	}

	return opts
}
