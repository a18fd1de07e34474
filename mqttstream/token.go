package mqttstream

import (
	"context"
	"sort"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token tracks a pending asynchronous broker operation. It is a pure
// observer of the underlying client's token: it never retries, and its
// completion is monotonic — once Done is closed the outcome does not change.
type Token struct {
	op    string
	inner mqtt.Token
}

func newToken(op string, inner mqtt.Token) *Token {
	return &Token{op: op, inner: inner}
}

// Op returns the name of the operation this token tracks.
func (t *Token) Op() string { return t.op }

// Done returns a channel that is closed when the operation completes.
func (t *Token) Done() <-chan struct{} { return t.inner.Done() }

// Complete reports whether the operation has finished, successfully or not.
func (t *Token) Complete() bool {
	select {
	case <-t.inner.Done():
		return true
	default:
		return false
	}
}

// Err returns the operation outcome. It is only meaningful once the token
// is complete.
func (t *Token) Err() error { return t.inner.Error() }

// Wait blocks until the operation completes or ctx is cancelled. A failed
// operation is returned as an *OperationError.
func (t *Token) Wait(ctx context.Context) error {
	select {
	case <-t.inner.Done():
		return t.outcome()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout blocks until the operation completes or d elapses, returning
// ErrTimeout in the latter case. A non-positive d polls: it fails with
// ErrTimeout unless the operation has already completed.
func (t *Token) WaitTimeout(d time.Duration) error {
	if d <= 0 {
		select {
		case <-t.inner.Done():
			return t.outcome()
		default:
			return ErrTimeout
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.inner.Done():
		return t.outcome()
	case <-timer.C:
		return ErrTimeout
	}
}

func (t *Token) outcome() error {
	if err := t.inner.Error(); err != nil {
		return newOperationError(t.op, t, err)
	}
	return nil
}

// MessageID returns the packet identifier for a publish operation, or zero
// when the underlying token does not carry one.
func (t *Token) MessageID() uint16 {
	if pt, ok := t.inner.(*mqtt.PublishToken); ok {
		return pt.MessageID()
	}
	return 0
}

// Topics returns the topics a subscribe operation covered, sorted, or nil
// when the underlying token does not carry them.
func (t *Token) Topics() []string {
	st, ok := t.inner.(*mqtt.SubscribeToken)
	if !ok {
		return nil
	}
	topics := make([]string, 0, len(st.Result()))
	for topic := range st.Result() {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// GrantedQoS returns the broker-granted delivery level per topic for a
// subscribe operation, or nil for other operations.
func (t *Token) GrantedQoS() map[string]QoS {
	st, ok := t.inner.(*mqtt.SubscribeToken)
	if !ok {
		return nil
	}
	granted := make(map[string]QoS, len(st.Result()))
	for topic, qos := range st.Result() {
		granted[topic] = DecodeQoS(qos)
	}
	return granted
}

// SessionPresent reports whether the broker resumed an existing session for
// a connect operation.
func (t *Token) SessionPresent() bool {
	ct, ok := t.inner.(*mqtt.ConnectToken)
	if !ok {
		return false
	}
	return ct.SessionPresent()
}

// completedToken is an already-finished mqtt.Token. It backs the tokens the
// facade hands out when an operation is rejected without reaching the
// underlying client.
type completedToken struct {
	err  error
	done chan struct{}
}

func newCompletedToken(err error) mqtt.Token {
	t := &completedToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *completedToken) Wait() bool                     { return true }
func (t *completedToken) WaitTimeout(time.Duration) bool { return true }
func (t *completedToken) Error() error                   { return t.err }
func (t *completedToken) Done() <-chan struct{}          { return t.done }
