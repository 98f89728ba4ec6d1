// Copyright (c) 2021 Nutanix, Inc.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/nutanix/mq-client-go-sdk/queue"
	"github.com/nutanix/mq-client-go-sdk/request"
	"github.com/nutanix/mq-client-go-sdk/transport"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidConfig is returned by New when the identity or endpoint is missing
	ErrInvalidConfig = errors.New("invalid client config")
	// ErrAlreadyStarted is returned by Start on a client that is not in the created state
	ErrAlreadyStarted = errors.New("client already started")
	// ErrNotRunning is returned by Stop on a client that is not running
	ErrNotRunning = errors.New("client not running")
	// ErrStillRunning is returned by Destroy on a client that has not been stopped
	ErrStillRunning = errors.New("client still running")
	// ErrNotStopped is returned by Destroy on a client that was never started
	ErrNotStopped = errors.New("client not stopped")
)

// State is a stage of the client lifecycle
type State int

const (
	// StateCreated is the state of a client returned by New
	StateCreated State = iota
	// StateRunning is entered by Start
	StateRunning
	// StateStopped is entered by Stop
	StateStopped
	// StateDestroyed is entered by Destroy
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option defines the type for the functional options of New
type Option func(*Client)

// WithDialer replaces the TCP dialer used to reach the server
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithRegistry registers the client metrics in reg instead of a private registry
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// Client publishes to and retrieves from a message queue server.
// Publish, Subscribe, Unsubscribe and Retrieve are safe for concurrent use.
type Client struct {
	cfg Config
	// token is the body published to the control topic on Stop, see wakeUpToken
	token []byte

	dialer   transport.Dialer
	registry *prometheus.Registry
	metrics  *metrics

	outgoing *queue.Queue[*request.Request]
	incoming *queue.Queue[*request.Request]

	mu      sync.Mutex
	state   State
	running bool

	// ctx is cancelled by Stop to interrupt backoff sleeps and in progress dials
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a client with the identity and endpoint in cfg. Unset tunables take their defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:      cfg,
		token:    wakeUpToken(cfg),
		metrics:  newMetrics(cfg.Name),
		outgoing: queue.New[*request.Request](),
		incoming: queue.New[*request.Request](),
		state:    StateCreated,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = transport.NewTCPDialer(cfg.DialTimeout)
	}
	c.dialer = transport.Instrument(c.dialer, c.metrics.connectErrors)
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	if err := c.metrics.register(c.registry); err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

// Name returns the client identity
func (c *Client) Name() string {
	return c.cfg.Name
}

// Registry returns the registry holding the client metrics
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether the background loops should keep iterating
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Publish queues body for publication to topic
func (c *Client) Publish(topic string, body []byte) {
	c.enqueue(request.Publish(topic, body))
}

// Subscribe queues a subscription of this client to topic
func (c *Client) Subscribe(topic string) {
	c.enqueue(request.Subscribe(c.cfg.Name, topic))
}

// Unsubscribe queues the removal of this client's subscription to topic
func (c *Client) Unsubscribe(topic string) {
	c.enqueue(request.Unsubscribe(c.cfg.Name, topic))
}

func (c *Client) enqueue(r *request.Request) {
	if state := c.State(); state != StateCreated && state != StateRunning {
		glog.Warningf("Client %s is %s, request %s will not be sent", c.cfg.Name, state, r)
	}
	c.outgoing.Push(r)
}

// Retrieve waits for the next message delivered to this client and returns its body.
// It returns false once the client has been stopped and every earlier message retrieved,
// or when ctx is done first.
func (c *Client) Retrieve(ctx context.Context) ([]byte, bool) {
	r, err := c.incoming.Pop(ctx)
	if err != nil {
		return nil, false
	}
	if r.IsControl() {
		// Put it back so that every other retriever also observes the shutdown.
		c.incoming.Push(r)
		return nil, false
	}
	return r.Body, true
}

// Start subscribes to the control topic and launches the pusher and puller loops
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateCreated {
		return fmt.Errorf("%w: client is %s", ErrAlreadyStarted, c.state)
	}
	c.outgoing.Push(request.Subscribe(c.cfg.Name, c.cfg.controlTopic()))
	c.running = true
	c.state = StateRunning

	c.wg.Add(2)
	go c.pusher()
	go c.puller()
	if c.cfg.PushGateway != "" {
		c.wg.Add(1)
		go c.pushMetrics()
	}
	glog.Infof("Client %s started against %s:%s", c.cfg.Name, c.cfg.Host, c.cfg.Port)
	return nil
}

// Stop wakes the puller through the control topic, signals the loops to exit and waits for them.
// Requests queued before Stop are still sent while the server is reachable.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.state != StateRunning {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: client is %s", ErrNotRunning, state)
	}
	c.outgoing.Push(request.Publish(c.cfg.controlTopic(), c.token))
	c.outgoing.Push(request.Control())
	c.running = false
	c.state = StateStopped
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	// The loops are gone, so nothing can be queued after this marker.
	c.incoming.Push(request.Control())
	glog.Infof("Client %s stopped", c.cfg.Name)
	return nil
}

// Destroy discards every queued request and releases the queues. It must follow Stop.
func (c *Client) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateCreated:
		return fmt.Errorf("%w: client is %s", ErrNotStopped, c.state)
	case StateRunning:
		return ErrStillRunning
	case StateDestroyed:
		return nil
	}
	discarded := len(c.outgoing.Close())
	for _, r := range c.incoming.Close() {
		if !r.IsControl() {
			discarded++
		}
	}
	c.state = StateDestroyed
	c.cancel()
	if discarded > 0 {
		glog.Infof("Client %s destroyed, %d queued requests discarded", c.cfg.Name, discarded)
	}
	return nil
}
