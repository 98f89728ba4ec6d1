// Copyright (c) 2021 Nutanix, Inc.
package client

import (
	"bufio"
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/nutanix/mq-client-go-sdk/request"
	"github.com/nutanix/mq-client-go-sdk/transport"
	"github.com/sethvargo/go-retry"
)

// pusher sends outgoing requests one connection each, until it pops the control request Stop
// queues behind the last real request
func (c *Client) pusher() {
	defer c.wg.Done()

	for {
		r, err := c.outgoing.Pop(context.Background())
		if err != nil {
			return
		}
		if r.IsControl() {
			return
		}
		c.push(r)
	}
}

func (c *Client) push(r *request.Request) {
	// The dial itself is not tied to c.ctx: requests queued before Stop still get an attempt.
	conn, ok := c.connect(context.Background())
	if !ok {
		c.metrics.dropped.Inc()
		glog.Warningf("Client %s stopped before %s could be sent, dropping it", c.cfg.Name, r)
		return
	}
	defer conn.Close()

	c.setDeadline(conn)
	if _, err := r.WriteTo(conn); err != nil {
		c.metrics.dropped.Inc()
		glog.Errorf("Failed to send %s: %s", r, err.Error())
		return
	}
	c.metrics.sent.Inc()

	if err := request.Drain(conn); err != nil {
		glog.V(2).Infof("Failed to read response to %s: %s", r, err.Error())
	}
}

// puller fetches the next pending message for this client, one connection each, while running
func (c *Client) puller() {
	defer c.wg.Done()

	fetch := request.Fetch(c.cfg.Name)
	for c.Running() {
		conn, ok := c.connect(c.ctx)
		if !ok {
			return
		}
		c.pull(conn, fetch)
		conn.Close()
	}
}

func (c *Client) pull(conn transport.Conn, fetch *request.Request) {
	c.setDeadline(conn)
	if _, err := fetch.WriteTo(conn); err != nil {
		c.metrics.fetchFailures.Inc()
		glog.V(2).Infof("Failed to send fetch for %s: %s", c.cfg.Name, err.Error())
		return
	}

	resp, err := request.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		c.metrics.fetchFailures.Inc()
		glog.V(2).Infof("Fetch for %s failed: %s", c.cfg.Name, err.Error())
		return
	}
	msg, err := resp.Message(fetch.Resource)
	if err != nil {
		if errors.Is(err, request.ErrNoBody) {
			glog.V(2).Infof("No message pending for %s", c.cfg.Name)
		}
		return
	}
	if isWakeUp(c.cfg, msg.Body) {
		// possibly left on the server by an earlier session with the same name
		glog.V(2).Infof("Client %s dropped a shutdown wake up", c.cfg.Name)
		return
	}
	c.metrics.received.Inc()
	c.incoming.Push(msg)
}

// connect dials the server, backing off exponentially between failures.
// It gives up, returning false, once the client is no longer running.
func (c *Client) connect(ctx context.Context) (transport.Conn, bool) {
	var backoff retry.Backoff
	for {
		conn, err := c.dialer.Dial(ctx, c.cfg.Host, c.cfg.Port)
		if err == nil {
			return conn, true
		}
		if !c.Running() {
			return nil, false
		}

		if backoff == nil {
			backoff = retry.WithCappedDuration(c.cfg.BackoffMax, retry.NewExponential(c.cfg.BackoffBase))
		}
		wait, _ := backoff.Next()
		timer := time.NewTimer(wait)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}
	}
}

func (c *Client) setDeadline(conn transport.Conn) {
	if c.cfg.IOTimeout <= 0 {
		return
	}
	if err := conn.SetDeadline(time.Now().Add(c.cfg.IOTimeout)); err != nil {
		glog.V(2).Infof("Failed to set connection deadline: %s", err.Error())
	}
}
