package mqttstream

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"mqtt-stream-client/metrics"
)

// TopicFilter pairs a topic pattern with the delivery level requested for it.
type TopicFilter struct {
	Topic string
	QoS   QoS
}

// streamState tracks the bridge lifecycle. A stream is terminal once closed:
// re-subscribing means issuing a new Subscribe call.
type streamState int

const (
	stateUnregistered streamState = iota
	stateRegistering
	stateActive
	stateClosing
	stateClosed
)

// Stream bridges a broker-side subscription into a consumable sequence of
// messages.
//
// Arriving messages are appended to a bounded buffer in the order the
// underlying client delivers them; a full buffer blocks the client's
// delivery goroutine rather than dropping messages. Delivery to consumers is
// broadcast: every consumer attached at dispatch time observes every message,
// in arrival order. Messages that arrive before the first consumer attaches
// are held in the buffer and dispatched once one does.
//
// The stream closes when its last consumer detaches, when Close is called,
// or when the subscription itself fails. Closing removes the broker-side
// subscription exactly once; an unsubscribe failure is logged and does not
// keep the stream open.
type Stream struct {
	filters     []TopicFilter
	log         *slog.Logger
	metrics     *metrics.Metrics
	unsubscribe func() error

	buf    chan Message
	closed chan struct{}

	mu        sync.Mutex
	cond      *sync.Cond
	state     streamState
	consumers map[int]*consumer
	nextID    int
	handler   mqtt.MessageHandler
	subToken  *Token
	err       error

	closeOnce sync.Once
}

// consumer is one attached Collect call. Its channel is fed by the
// dispatcher; done is closed when the consumer stops.
type consumer struct {
	id       int
	ch       chan Message
	done     chan struct{}
	stopOnce sync.Once
}

func (c *consumer) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *consumer) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func newStream(filters []TopicFilter, buffer int, log *slog.Logger, m *metrics.Metrics, unsubscribe func() error) *Stream {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	s := &Stream{
		filters:     filters,
		log:         log,
		metrics:     m,
		unsubscribe: unsubscribe,
		buf:         make(chan Message, buffer),
		closed:      make(chan struct{}),
		consumers:   make(map[int]*consumer),
		state:       stateUnregistered,
	}
	s.cond = sync.NewCond(&s.mu)
	s.handler = s.onMessage
	if s.metrics != nil {
		s.metrics.IncActiveStreams()
	}
	go s.dispatch()
	return s
}

// register issues the broker-side subscription through the subscribe
// delegate. Messages may begin arriving before the acknowledgment; they are
// buffered like any other. A failed subscription closes the stream with a
// terminal error.
func (s *Stream) register(subscribe func(mqtt.MessageHandler) mqtt.Token, onSuccess func(*Token), onError func(error)) {
	s.mu.Lock()
	s.state = stateRegistering
	handler := s.handler
	s.mu.Unlock()

	token := watchToken("subscribe", subscribe(handler), func(t *Token) {
		s.mu.Lock()
		if s.state == stateRegistering {
			s.state = stateActive
		}
		s.mu.Unlock()
		s.log.Debug("subscription acknowledged", "topics", s.topicNames())
		if onSuccess != nil {
			onSuccess(t)
		}
	}, func(err error) {
		s.log.Error("subscription failed", "topics", s.topicNames(), "error", err)
		s.fail(err)
		if onError != nil {
			onError(err)
		}
	})

	s.mu.Lock()
	s.subToken = token
	s.mu.Unlock()
}

// onMessage is the single producer feeding the buffer. It runs on the
// underlying client's delivery goroutine; when the buffer is full the send
// blocks, applying backpressure instead of discarding.
func (s *Stream) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m := fromPahoMessage(msg)
	select {
	case s.buf <- m:
		if s.metrics != nil {
			s.metrics.IncMessagesReceived()
		}
	case <-s.closed:
		// Listener released; late deliveries are dropped.
	}
}

// dispatch moves messages from the buffer to the attached consumers. It
// deliberately idles while no consumer is attached so that pre-attach
// messages accumulate in the buffer instead of vanishing.
func (s *Stream) dispatch() {
	for {
		if !s.waitForConsumer() {
			return
		}
		select {
		case m := <-s.buf:
			s.fanOut(m)
		case <-s.closed:
			return
		}
	}
}

// waitForConsumer blocks until at least one consumer is attached or the
// stream starts shutting down. Returns false in the latter case.
func (s *Stream) waitForConsumer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.consumers) == 0 && s.state != stateClosing && s.state != stateClosed {
		s.cond.Wait()
	}
	return len(s.consumers) > 0
}

// fanOut delivers m to every attached consumer in attachment order. Each
// send blocks while the consumer's channel is full, so one slow consumer
// backpressures the whole stream rather than losing messages.
func (s *Stream) fanOut(m Message) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.consumers))
	for id := range s.consumers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	targets := make([]*consumer, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, s.consumers[id])
	}
	s.mu.Unlock()

	for _, c := range targets {
		select {
		case c.ch <- m:
		case <-c.done:
		case <-s.closed:
			return
		}
	}
}

func (s *Stream) attach(buffer int) (*consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosing || s.state == stateClosed {
		if s.err != nil {
			return nil, s.err
		}
		return nil, ErrClosed
	}
	s.nextID++
	c := &consumer{
		id:   s.nextID,
		ch:   make(chan Message, buffer),
		done: make(chan struct{}),
	}
	s.consumers[c.id] = c
	s.cond.Broadcast()
	return c, nil
}

// detach removes a consumer. Detaching the last one drives the stream to
// Closing.
func (s *Stream) detach(c *consumer) {
	c.stop()
	s.mu.Lock()
	delete(s.consumers, c.id)
	last := len(s.consumers) == 0
	s.mu.Unlock()
	if last {
		s.Close()
	}
}

// fail records a terminal error and closes the stream. Pending and future
// Collect calls observe the error.
func (s *Stream) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	s.Close()
}

// Close tears the stream down: the broker-side subscription is removed, the
// message listener is released, and attached consumers observe a graceful
// end of the stream. Close is idempotent and a closed stream is terminal.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = stateClosing
		s.cond.Broadcast()
		s.mu.Unlock()

		if err := s.unsubscribe(); err != nil {
			// Teardown must reach Closed even when the broker refuses.
			s.log.Warn("unsubscribe failed during stream close",
				"topics", s.topicNames(),
				"error", err)
		}

		s.mu.Lock()
		s.handler = nil
		s.state = stateClosed
		s.mu.Unlock()
		close(s.closed)

		if s.metrics != nil {
			s.metrics.DecActiveStreams()
		}
		s.log.Debug("stream closed", "topics", s.topicNames())
	})
}

// Ready blocks until the broker acknowledges the subscription, ctx is
// cancelled, or the subscription fails.
func (s *Stream) Ready(ctx context.Context) error {
	s.mu.Lock()
	token := s.subToken
	s.mu.Unlock()
	if token == nil {
		return ErrClosed
	}
	return token.Wait(ctx)
}

// Filters returns the topic filters this stream was subscribed with.
func (s *Stream) Filters() []TopicFilter {
	filters := make([]TopicFilter, len(s.filters))
	copy(filters, s.filters)
	return filters
}

func (s *Stream) topicNames() []string {
	names := make([]string, len(s.filters))
	for i, f := range s.filters {
		names[i] = f.Topic
	}
	return names
}

// Err returns the terminal error of a failed stream, or nil after a
// graceful close.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collect attaches a consumer and invokes fn for every delivered message in
// arrival order. It blocks until the stream closes or ctx is cancelled; the
// consumer detaches either way, and detaching the last consumer closes the
// stream. A graceful close returns nil, a failed subscription returns its
// error, a cancelled ctx returns ctx.Err().
func (s *Stream) Collect(ctx context.Context, fn func(Message)) error {
	return s.CollectWithStop(ctx, func(m Message, _ func()) { fn(m) })
}

// CollectWithStop is Collect with an explicit stop capability handed to the
// handler. Invoking stop halts delivery to this consumer only; when it is
// the last one attached, the whole stream closes and the broker-side
// subscription is removed.
func (s *Stream) CollectWithStop(ctx context.Context, fn func(Message, func())) error {
	c, err := s.attach(cap(s.buf))
	if err != nil {
		return err
	}
	defer s.detach(c)

	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case m := <-c.ch:
			fn(m, c.stop)
			if c.stopped() {
				return nil
			}
		case <-s.closed:
			// Drain what was already fanned out before reporting
			// termination.
			for {
				select {
				case m := <-c.ch:
					fn(m, c.stop)
					if c.stopped() {
						return nil
					}
				default:
					return s.Err()
				}
			}
		}
	}
}
