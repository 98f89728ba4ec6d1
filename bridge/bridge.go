// Copyright (c) 2021 Nutanix, Inc.
package bridge

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"
	"github.com/nutanix/mq-client-go-sdk/internal"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	timestampProp = "timestamp"
	payloadProp   = "payload"
)

// Queue is the part of the message queue client the bridge uses. *client.Client satisfies it.
type Queue interface {
	// Retrieve waits for the next delivered message, returning false once there will be no more
	Retrieve(ctx context.Context) ([]byte, bool)
	// Publish queues body for publication to topic
	Publish(topic string, body []byte)
}

// Message defines the data structure of the messages conveyed over NATS
type Message struct {
	Timestamp time.Time
	Payload   []byte
}

// Subscription describes the interface of the subscription object returned by Relay
type Subscription interface {
	// Unsubscribe stops relaying
	Unsubscribe() error
	// Channel returns the NATS subject the subscription belongs to
	Channel() string
}

// natsSubscription relays one NATS subject into a message queue topic
type natsSubscription struct {
	*nats.Subscription
}

// Unsubscribe stops relaying messages from the subject
func (sub *natsSubscription) Unsubscribe() error {
	return sub.Subscription.Unsubscribe()
}

// Channel returns the NATS subject being relayed
func (sub *natsSubscription) Channel() string {
	return sub.Subject
}

// Bridge moves messages between a message queue client and a NATS broker
type Bridge struct {
	mq   Queue
	url  string
	name string
	conn internal.Lazy[*nats.Conn]

	forwarded prometheus.Counter
	relayed   prometheus.Counter
	errors    prometheus.Counter
}

// New creates a bridge for mq. The NATS connection to url is opened on first use and retried on
// later calls if it fails.
func New(mq Queue, url, name string) *Bridge {
	labels := prometheus.Labels{"bridge": name}
	return &Bridge{
		mq:   mq,
		url:  url,
		name: name,
		forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bridge_forwarded_total",
			Help:        "Number of message queue messages published to NATS",
			ConstLabels: labels,
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bridge_relayed_total",
			Help:        "Number of NATS messages published to the message queue",
			ConstLabels: labels,
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "bridge_errors_total",
			Help:        "Number of messages the bridge failed to encode, decode or publish",
			ConstLabels: labels,
		}),
	}
}

// Collectors returns the bridge metrics for registration
func (b *Bridge) Collectors() []prometheus.Collector {
	return []prometheus.Collector{b.forwarded, b.relayed, b.errors}
}

func (b *Bridge) connect() (*nats.Conn, error) {
	return b.conn.Get(func() (*nats.Conn, error) {
		nc, err := newNatsConn(b.url, b.name)
		if err != nil {
			glog.Errorf("Failed to connect to NATS broker %s: %s", b.url, err.Error())
			return nil, err
		}
		return nc, nil
	})
}

// create the underlying nats.Conn object
func newNatsConn(url string, name string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Name(name),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			glog.Warningf("Bridge %s disconnected: %v", name, err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			glog.Infof("Bridge %s reconnected to %v", name, nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			glog.Infof("Bridge %s connection closed: %v", name, nc.LastError())
		}))
}

// Forward publishes every message retrieved from the queue to subject until the queue reports
// no more messages or ctx is done
func (b *Bridge) Forward(ctx context.Context, subject string) error {
	nc, err := b.connect()
	if err != nil {
		return err
	}
	for {
		body, ok := b.mq.Retrieve(ctx)
		if !ok {
			return ctx.Err()
		}
		data, err := Encode(Message{Timestamp: time.Now(), Payload: body})
		if err != nil {
			b.errors.Inc()
			glog.Errorf("Failed to encode message for %s: %s", subject, err.Error())
			continue
		}
		if err := nc.Publish(subject, data); err != nil {
			b.errors.Inc()
			glog.Errorf("Failed to publish message to %s: %s", subject, err.Error())
			continue
		}
		b.forwarded.Inc()
	}
}

// Relay publishes every message received on subject to topic until the subscription is
// unsubscribed
func (b *Bridge) Relay(subject, topic string) (Subscription, error) {
	nc, err := b.connect()
	if err != nil {
		return nil, err
	}
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		m, err := Decode(msg.Data)
		if err != nil {
			b.errors.Inc()
			glog.Errorf("Unable to decode data from %s: %s", msg.Subject, err.Error())
			return
		}
		b.mq.Publish(topic, m.Payload)
		b.relayed.Inc()
	})
	if err != nil {
		return nil, err
	}
	// make sure the server knows about the subscription before the caller publishes
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return &natsSubscription{Subscription: sub}, nil
}

// Close closes the NATS connection if one was opened
func (b *Bridge) Close() {
	if nc, ok := b.conn.Peek(); ok {
		nc.Close()
	}
}

// Encode wraps m into its protobuf envelope
func Encode(m Message) ([]byte, error) {
	envelope, err := structpb.NewStruct(map[string]interface{}{
		timestampProp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		payloadProp:   base64.StdEncoding.EncodeToString(m.Payload),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(envelope)
}

// Decode unwraps a protobuf envelope produced by Encode
func Decode(data []byte) (Message, error) {
	var envelope structpb.Struct
	if err := proto.Unmarshal(data, &envelope); err != nil {
		return Message{}, err
	}
	fields := envelope.GetFields()
	payload, err := base64.StdEncoding.DecodeString(fields[payloadProp].GetStringValue())
	if err != nil {
		return Message{}, fmt.Errorf("decode payload: %w", err)
	}
	m := Message{Payload: payload}
	if ts := fields[timestampProp].GetStringValue(); ts != "" {
		if m.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Message{}, fmt.Errorf("decode timestamp: %w", err)
		}
	}
	return m, nil
}
