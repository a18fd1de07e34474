package mqttstream

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// QoS is an MQTT quality of service level.
type QoS byte

const (
	// AtMostOnce delivers a message at most once, with no acknowledgment.
	AtMostOnce QoS = 0
	// AtLeastOnce delivers a message at least once; duplicates are possible.
	AtLeastOnce QoS = 1
	// ExactlyOnce delivers a message exactly once.
	ExactlyOnce QoS = 2
)

// DecodeQoS maps a wire-level QoS byte onto one of the three defined levels.
// Values outside {0,1,2} decode to ExactlyOnce instead of failing, so a
// malformed broker response degrades to the strictest delivery level rather
// than breaking the message path.
func DecodeQoS(b byte) QoS {
	switch b {
	case 0:
		return AtMostOnce
	case 1:
		return AtLeastOnce
	default:
		return ExactlyOnce
	}
}

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	default:
		return "exactly-once"
	}
}

// Message is an immutable envelope around a published or delivered payload.
// Inbound messages carry the topic and packet identifier reported by the
// underlying client; outgoing messages are built with the constructors below.
type Message struct {
	id       uint16
	payload  []byte
	qos      QoS
	retained bool
	topic    string
}

// MessageOption configures an outgoing Message.
type MessageOption func(*Message)

// WithQoS sets the delivery level for an outgoing message.
func WithQoS(q QoS) MessageOption {
	return func(m *Message) { m.qos = q }
}

// WithRetained marks an outgoing message as retained by the broker.
func WithRetained(retained bool) MessageOption {
	return func(m *Message) { m.retained = retained }
}

// WithTopic sets the destination topic for an outgoing message.
func WithTopic(topic string) MessageOption {
	return func(m *Message) { m.topic = topic }
}

// NewMessage builds an envelope around raw payload bytes. The default
// delivery level is ExactlyOnce.
func NewMessage(payload []byte, opts ...MessageOption) Message {
	m := Message{payload: payload, qos: ExactlyOnce}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NewTextMessage builds an envelope whose payload is the UTF-8 encoding of
// text.
func NewTextMessage(text string, opts ...MessageOption) Message {
	return NewMessage([]byte(text), opts...)
}

// NewJSONMessage builds an envelope whose payload is v serialized with
// codec. Encoding failures are reported synchronously.
func NewJSONMessage(codec Codec, v any, opts ...MessageOption) (Message, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return Message{}, &DecodeError{Err: err}
	}
	return NewMessage(data, opts...), nil
}

// ID returns the packet identifier, or zero for outgoing messages that have
// not been assigned one.
func (m Message) ID() uint16 { return m.id }

// Payload returns the raw payload bytes. Callers must not modify the
// returned slice.
func (m Message) Payload() []byte { return m.payload }

// Text returns the payload decoded as UTF-8 text. The caller is responsible
// for ensuring the payload actually is text.
func (m Message) Text() string { return string(m.payload) }

// QoS returns the message delivery level.
func (m Message) QoS() QoS { return m.qos }

// Retained reports whether the broker flagged the message as retained.
func (m Message) Retained() bool { return m.retained }

// Topic returns the topic the message was delivered on, or the destination
// topic of an outgoing message. It may be empty for outgoing messages.
func (m Message) Topic() string { return m.topic }

// DecodePayload parses the message payload with codec into a value of type
// T. A payload that does not fit T is reported as a *DecodeError.
func DecodePayload[T any](codec Codec, m Message) (T, error) {
	var v T
	if err := codec.Unmarshal(m.payload, &v); err != nil {
		return v, &DecodeError{Err: err}
	}
	return v, nil
}

// fromPahoMessage converts a delivered client message into an envelope.
func fromPahoMessage(msg mqtt.Message) Message {
	return Message{
		id:       msg.MessageID(),
		payload:  msg.Payload(),
		qos:      DecodeQoS(msg.Qos()),
		retained: msg.Retained(),
		topic:    msg.Topic(),
	}
}
