// Copyright (c) 2021 Nutanix, Inc.
package client

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/nutanix/mq-client-go-sdk/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJob = "mq_client_metrics_job"

type metrics struct {
	sent          prometheus.Counter
	dropped       prometheus.Counter
	received      prometheus.Counter
	fetchFailures prometheus.Counter
	connectErrors prometheus.Counter
}

func newMetrics(name string) *metrics {
	labels := prometheus.Labels{"client": name}
	return &metrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mq_requests_sent_total",
			Help:        "Number of outgoing requests written to the server",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mq_requests_dropped_total",
			Help:        "Number of outgoing requests abandoned without reaching the server",
			ConstLabels: labels,
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mq_messages_received_total",
			Help:        "Number of messages fetched into the incoming queue",
			ConstLabels: labels,
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "mq_fetch_failures_total",
			Help:        "Number of fetches that ended in an unsuccessful or malformed response",
			ConstLabels: labels,
		}),
		connectErrors: transport.NewConnectErrorCounter(labels),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.sent, m.dropped, m.received, m.fetchFailures, m.connectErrors} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register client metrics: %w", err)
		}
	}
	return nil
}

// pushMetrics periodically pushes the client registry to the push gateway until the client stops,
// then pushes one final time
func (c *Client) pushMetrics() {
	defer c.wg.Done()

	pusher := push.New(c.cfg.PushGateway, pushJob).
		Grouping("client", c.cfg.Name).
		Gatherer(c.registry)

	ticker := time.NewTicker(c.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			if err := pusher.Push(); err != nil {
				glog.Errorf("Failed to push final metrics to %s: %s", c.cfg.PushGateway, err.Error())
			}
			return
		case <-ticker.C:
			if err := pusher.Push(); err != nil {
				glog.V(2).Infof("Failed to push metrics to %s: %s", c.cfg.PushGateway, err.Error())
			}
		}
	}
}
