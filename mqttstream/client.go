package mqttstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-stream-client/metrics"
)

// Client is the outward-facing facade over the wrapped MQTT client. It wires
// tokens, completion handlers and subscription streams around the underlying
// connect/disconnect/publish/subscribe calls; all protocol mechanics —
// framing, keep-alive, reconnect, QoS redelivery — belong to the wrapped
// client.
type Client struct {
	mqtt  mqtt.Client
	opts  *Options
	codec Codec
	log   *slog.Logger
	m     *metrics.Metrics

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// New builds a Client and its underlying paho client from opts.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	norm := opts.withDefaults()
	if norm.brokerURL() == "" {
		return nil, errors.New("mqttstream: broker address is required")
	}

	c := newClient(nil, norm)

	po := BuildClientOptions(norm)
	po.SetOnConnectHandler(func(_ mqtt.Client) {
		c.log.Info("connected to broker", "broker", norm.brokerURL())
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.SetConnectionStatus(true) })
	})
	po.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Error("connection lost", "error", err)
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.SetConnectionStatus(false) })
	})
	po.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.log.Info("reconnecting to broker", "broker", norm.brokerURL())
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.IncReconnects() })
	})

	c.mqtt = mqtt.NewClient(po)
	return c, nil
}

// NewWithClient wraps an already constructed client. It exists for tests and
// for callers that need full control over the underlying client options.
func NewWithClient(pc mqtt.Client, opts *Options) *Client {
	if opts == nil {
		opts = &Options{}
	}
	return newClient(pc, opts.withDefaults())
}

func newClient(pc mqtt.Client, norm *Options) *Client {
	return &Client{
		mqtt:  pc,
		opts:  norm,
		codec: norm.Codec,
		log:   norm.Logger,
		m:     norm.Metrics,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// safeMetricsUpdate applies fn when metrics are enabled.
func (c *Client) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if c.m != nil {
		fn(c.m)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Connect initiates the broker connection and returns its token. Use
// Token.Wait or Token.Notify to observe the outcome.
func (c *Client) Connect() *Token {
	if c.isClosed() {
		return newToken("connect", newCompletedToken(ErrClosed))
	}
	return watchToken("connect", c.mqtt.Connect(), func(t *Token) {
		c.log.Info("connect acknowledged", "sessionPresent", t.SessionPresent())
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.SetConnectionStatus(true) })
	}, func(err error) {
		c.log.Error("connect failed", "error", err)
	})
}

// IsConnected reports the underlying client's connection state.
func (c *Client) IsConnected() bool {
	return c.mqtt.IsConnected()
}

// Disconnect gracefully disconnects from the broker, granting in-flight
// work the configured quiesce window. It fails with ErrNotConnected when
// there is no connection to tear down.
func (c *Client) Disconnect() error {
	if c.isClosed() {
		return ErrClosed
	}
	if !c.mqtt.IsConnected() {
		return ErrNotConnected
	}
	c.log.Info("disconnecting from broker")
	c.mqtt.Disconnect(uint(c.opts.Quiesce / time.Millisecond))
	c.safeMetricsUpdate(func(m *metrics.Metrics) { m.SetConnectionStatus(false) })
	return nil
}

// ForceDisconnect drops the connection immediately, without waiting for
// in-flight work.
func (c *Client) ForceDisconnect() {
	c.log.Info("forcing disconnect from broker")
	c.mqtt.Disconnect(0)
	c.safeMetricsUpdate(func(m *metrics.Metrics) { m.SetConnectionStatus(false) })
}

// Close releases the client. Only the first call has effect; a closed
// client rejects further operations and must be replaced, not reopened.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.log.Info("mqtt client closed")
	})
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	return c.isClosed()
}

// DisconnectAndClose attempts a graceful disconnect, falls back to a forced
// one when that fails, and closes the client exactly once regardless of
// which path ran. Disconnect failures are recovered locally, not surfaced.
func (c *Client) DisconnectAndClose() {
	defer c.Close()
	if err := c.Disconnect(); err != nil {
		c.log.Warn("graceful disconnect failed, forcing", "error", err)
		c.ForceDisconnect()
	}
}

// Publish sends raw payload bytes to topic and returns the publish token.
func (c *Client) Publish(topic string, qos QoS, retained bool, payload []byte) *Token {
	if c.isClosed() {
		return newToken("publish", newCompletedToken(ErrClosed))
	}
	return watchToken("publish", c.mqtt.Publish(topic, byte(qos), retained, payload), func(t *Token) {
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.IncMessagesPublished("success") })
		c.log.Debug("published message",
			"topic", topic,
			"messageId", t.MessageID(),
			"payloadSize", len(payload))
	}, func(err error) {
		c.safeMetricsUpdate(func(m *metrics.Metrics) { m.IncMessagesPublished("error") })
		c.log.Error("failed to publish message", "topic", topic, "error", err)
	})
}

// PublishText publishes the UTF-8 encoding of text.
func (c *Client) PublishText(topic string, qos QoS, retained bool, text string) *Token {
	return c.Publish(topic, qos, retained, []byte(text))
}

// PublishJSON serializes v with the configured codec and publishes the
// result. Encoding failures surface synchronously.
func (c *Client) PublishJSON(topic string, qos QoS, retained bool, v any) (*Token, error) {
	payload, err := c.codec.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mqttstream: encode payload: %w", err)
	}
	return c.Publish(topic, qos, retained, payload), nil
}

// PublishMessage publishes a pre-built envelope to its topic.
func (c *Client) PublishMessage(m Message) (*Token, error) {
	if m.Topic() == "" {
		return nil, errors.New("mqttstream: message has no topic")
	}
	return c.Publish(m.Topic(), m.QoS(), m.Retained(), m.Payload()), nil
}

// SubscribeOption configures a single Subscribe call.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	buffer    int
	onSuccess func(*Token)
	onError   func(error)
}

// WithStreamBuffer overrides the stream's buffer bound for one subscription.
func WithStreamBuffer(n int) SubscribeOption {
	return func(cfg *subscribeConfig) { cfg.buffer = n }
}

// WithStatusHandlers registers optional handlers for the subscription
// acknowledgment. At most one fires, exactly once.
func WithStatusHandlers(onSuccess func(*Token), onError func(error)) SubscribeOption {
	return func(cfg *subscribeConfig) {
		cfg.onSuccess = onSuccess
		cfg.onError = onError
	}
}

// Subscribe registers the filters with the broker and returns the stream
// bridging their deliveries. The subscription is issued immediately and
// acknowledged asynchronously; use Stream.Ready to await the acknowledgment,
// and Stream.Collect to consume messages.
func (c *Client) Subscribe(filters []TopicFilter, opts ...SubscribeOption) (*Stream, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if len(filters) == 0 {
		return nil, errors.New("mqttstream: at least one topic filter is required")
	}
	for _, f := range filters {
		if f.Topic == "" {
			return nil, errors.New("mqttstream: topic cannot be empty")
		}
	}

	cfg := subscribeConfig{buffer: c.opts.StreamBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}

	names := make([]string, len(filters))
	qosByTopic := make(map[string]byte, len(filters))
	for i, f := range filters {
		names[i] = f.Topic
		qosByTopic[f.Topic] = byte(f.QoS)
	}

	s := newStream(filters, cfg.buffer, c.log, c.m, func() error {
		return c.unsubscribeTopics(names)
	})

	s.register(func(h mqtt.MessageHandler) mqtt.Token {
		if len(filters) == 1 {
			return c.mqtt.Subscribe(filters[0].Topic, byte(filters[0].QoS), h)
		}
		return c.mqtt.SubscribeMultiple(qosByTopic, h)
	}, cfg.onSuccess, cfg.onError)

	c.log.Debug("subscription issued", "topics", names)
	return s, nil
}

// SubscribeTopic subscribes to a single topic at qos.
func (c *Client) SubscribeTopic(topic string, qos QoS, opts ...SubscribeOption) (*Stream, error) {
	return c.Subscribe([]TopicFilter{{Topic: topic, QoS: qos}}, opts...)
}

// SubscribeAndCollect subscribes to the filters and consumes the stream
// inline until ctx is cancelled or the stream closes. The subscription is
// torn down before it returns.
func (c *Client) SubscribeAndCollect(ctx context.Context, handler func(Message), filters ...TopicFilter) error {
	s, err := c.Subscribe(filters)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Collect(ctx, handler)
}

// unsubscribeTopics removes the broker-side subscription for the given
// topics, bounded by the configured operation timeout.
func (c *Client) unsubscribeTopics(topics []string) error {
	token := c.mqtt.Unsubscribe(topics...)
	if !token.WaitTimeout(c.opts.OperationTimeout) {
		return ErrTimeout
	}
	return token.Error()
}
