/*
Package mqttstream is a thin ergonomic layer over the eclipse paho MQTT
client. It adds default-options helpers, awaitable tokens for asynchronous
operations, and a stream abstraction over subscription delivery, while
leaving the wire protocol, connection state machine and QoS redelivery to
the wrapped client.

The two pieces with real lifecycle design are the Token, which turns the
client's asynchronous completion callbacks into something that can be awaited
with a context or a timeout, and the Stream, which turns a subscription's
push callbacks into a bounded, cancelable, broadcast sequence of Message
envelopes. Everything else is parameter plumbing around the wrapped client's
connect, disconnect, publish and subscribe calls.

A minimal consumer looks like:

	client, err := mqttstream.New(&mqttstream.Options{Host: "localhost", Port: 1883})
	if err != nil {
		log.Fatal(err)
	}
	if err := client.Connect().WaitTimeout(10 * time.Second); err != nil {
		log.Fatal(err)
	}
	defer client.DisconnectAndClose()

	err = client.SubscribeAndCollect(ctx, func(m mqttstream.Message) {
		fmt.Println(m.Topic(), m.Text())
	}, mqttstream.TopicFilter{Topic: "sensors/#", QoS: mqttstream.AtLeastOnce})
*/
package mqttstream
