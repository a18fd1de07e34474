package mqttstream

import (
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// watchToken bridges the underlying client's asynchronous completion into a
// pair of optional handlers. Exactly one of onSuccess/onError is invoked,
// exactly once, when the operation completes; failures are wrapped in an
// *OperationError carrying the partially-completed token. The wrapped token
// is returned immediately.
func watchToken(op string, inner mqtt.Token, onSuccess func(*Token), onError func(error)) *Token {
	t := newToken(op, inner)
	t.Notify(onSuccess, onError)
	return t
}

// Notify registers optional completion handlers on the token. On success the
// success handler receives the token itself; on failure the error handler
// receives an *OperationError wrapping the cause. At most one handler fires,
// and only once, from a goroutine awaiting the underlying completion.
func (t *Token) Notify(onSuccess func(*Token), onError func(error)) {
	if onSuccess == nil && onError == nil {
		return
	}
	go func() {
		<-t.inner.Done()
		if err := t.inner.Error(); err != nil {
			if onError != nil {
				onError(newOperationError(t.op, t, err))
			}
			return
		}
		if onSuccess != nil {
			onSuccess(t)
		}
	}()
}
