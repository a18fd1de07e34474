package mqttstream

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken implements mqtt.Token for testing. It stays pending until
// complete is called.
type MockToken struct {
	mu   sync.Mutex
	err  error
	done chan struct{}
	once sync.Once
}

func NewMockToken() *MockToken {
	return &MockToken{done: make(chan struct{})}
}

// NewCompletedMockToken returns a token that has already finished with err.
func NewCompletedMockToken(err error) *MockToken {
	t := NewMockToken()
	t.complete(err)
	return t
}

func (t *MockToken) complete(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
	})
}

func (t *MockToken) Wait() bool {
	<-t.done
	return true
}

func (t *MockToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *MockToken) Error() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *MockToken) Done() <-chan struct{} { return t.done }

// MockClient implements mqtt.Client for testing. Individual operations can
// be overridden per test; calls are recorded for assertions.
type MockClient struct {
	mu sync.Mutex

	connected bool

	connectFunc     func() mqtt.Token
	publishFunc     func(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	subscribeFunc   func(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	unsubscribeFunc func(topics ...string) mqtt.Token

	subscribeHandler mqtt.MessageHandler
	unsubscribeCalls [][]string
	disconnectCalls  []uint
}

func NewMockClient() *MockClient {
	m := &MockClient{connected: true}
	m.connectFunc = func() mqtt.Token {
		return NewCompletedMockToken(nil)
	}
	m.publishFunc = func(string, byte, bool, interface{}) mqtt.Token {
		return NewCompletedMockToken(nil)
	}
	m.subscribeFunc = func(string, byte, mqtt.MessageHandler) mqtt.Token {
		return NewCompletedMockToken(nil)
	}
	m.unsubscribeFunc = func(...string) mqtt.Token {
		return NewCompletedMockToken(nil)
	}
	return m
}

func (m *MockClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// Handler returns the message callback captured by the last Subscribe or
// SubscribeMultiple call.
func (m *MockClient) Handler() mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribeHandler
}

// UnsubscribeCalls returns the topic lists of every Unsubscribe call.
func (m *MockClient) UnsubscribeCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([][]string, len(m.unsubscribeCalls))
	copy(calls, m.unsubscribeCalls)
	return calls
}

// DisconnectCalls returns the quiesce values of every Disconnect call.
func (m *MockClient) DisconnectCalls() []uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]uint, len(m.disconnectCalls))
	copy(calls, m.disconnectCalls)
	return calls
}

func (m *MockClient) Connect() mqtt.Token {
	return m.connectFunc()
}

func (m *MockClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectCalls = append(m.disconnectCalls, quiesce)
	m.connected = false
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return m.publishFunc(topic, qos, retained, payload)
}

func (m *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	m.subscribeHandler = callback
	m.mu.Unlock()
	return m.subscribeFunc(topic, qos, callback)
}

func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	m.subscribeHandler = callback
	m.mu.Unlock()
	return m.subscribeFunc("", 0, callback)
}

func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	m.mu.Lock()
	m.unsubscribeCalls = append(m.unsubscribeCalls, topics)
	m.mu.Unlock()
	return m.unsubscribeFunc(topics...)
}

func (m *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) IsConnectionOpen() bool { return true }

func (m *MockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// MockMessage implements mqtt.Message for testing.
type MockMessage struct {
	id       uint16
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func NewMockMessage(topic string, payload []byte, qos byte, retained bool) *MockMessage {
	return &MockMessage{topic: topic, payload: payload, qos: qos, retained: retained}
}

func (m *MockMessage) Duplicate() bool   { return false }
func (m *MockMessage) Qos() byte         { return m.qos }
func (m *MockMessage) Retained() bool    { return m.retained }
func (m *MockMessage) Topic() string     { return m.topic }
func (m *MockMessage) MessageID() uint16 { return m.id }
func (m *MockMessage) Payload() []byte   { return m.payload }
func (m *MockMessage) Ack()              {}
