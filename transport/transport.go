package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrConnect wraps every failure to establish a connection
var ErrConnect = errors.New("transport connect failed")

// Conn is a duplex byte stream to the server. net.Conn satisfies it.
type Conn interface {
	io.ReadWriteCloser
	// SetDeadline bounds every read and write on the connection
	SetDeadline(t time.Time) error
}

// Dialer establishes connections to a server
type Dialer interface {
	// Dial connects to host:port, respecting ctx for cancellation
	Dial(ctx context.Context, host, port string) (Conn, error)
}

// DialerFunc adapts a function into a Dialer
type DialerFunc func(ctx context.Context, host, port string) (Conn, error)

// Dial calls f
func (f DialerFunc) Dial(ctx context.Context, host, port string) (Conn, error) {
	return f(ctx, host, port)
}

type tcpDialer struct {
	dialer net.Dialer
}

var _ Dialer = (*tcpDialer)(nil)

// NewTCPDialer returns a Dialer opening TCP connections, each attempt bounded by timeout
func NewTCPDialer(timeout time.Duration) Dialer {
	return &tcpDialer{
		dialer: net.Dialer{Timeout: timeout},
	}
}

// Dial connects to host:port over TCP
func (d *tcpDialer) Dial(ctx context.Context, host, port string) (Conn, error) {
	conn, err := d.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnect, err.Error())
	}
	return conn, nil
}

// NewConnectErrorCounter creates the counter Instrument increments on every failed dial
func NewConnectErrorCounter(labels prometheus.Labels) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "transport_connect_errors",
		Help:        "Number of message queue server connect errors encountered",
		ConstLabels: labels,
	})
}

type instrumentedDialer struct {
	next   Dialer
	errors prometheus.Counter
}

// Instrument wraps d so that failed dials are logged, counted and reported as ErrConnect
func Instrument(d Dialer, errorCounter prometheus.Counter) Dialer {
	return &instrumentedDialer{next: d, errors: errorCounter}
}

// Dial connects through the wrapped Dialer
func (d *instrumentedDialer) Dial(ctx context.Context, host, port string) (Conn, error) {
	conn, err := d.next.Dial(ctx, host, port)
	if err != nil {
		d.errors.Inc()
		glog.V(2).Infof("Failed to connect to %s: %s", net.JoinHostPort(host, port), err.Error())
		if !errors.Is(err, ErrConnect) {
			err = fmt.Errorf("%w: %s", ErrConnect, err.Error())
		}
		return nil, err
	}
	return conn, nil
}
