// Copyright (c) 2021 Nutanix, Inc.
/*
Package bridge connects a message queue client to a NATS broker, so that messages delivered to the
client can be consumed from a NATS subject and messages published on a NATS subject reach a message
queue topic.

A bridge is created for a client with the URL of the broker and a connection name:
	b := bridge.New(c, "nats://127.0.0.1:4222", "alice-bridge")

Forward publishes everything the client retrieves to a subject. It returns when the client is
stopped or the context ends:
	go b.Forward(ctx, "mq.alice.inbox")

Relay subscribes to a subject and publishes each message it receives to a topic:
	sub, err := b.Relay("sensors.weather", "weather")
	...
	sub.Unsubscribe()

Messages on NATS are protobuf encoded Struct envelopes carrying the payload and the time it was
bridged; Encode and Decode convert between envelopes and Message values.
*/
package bridge
