// Copyright (c) 2021 Nutanix, Inc.
/*
Package transport establishes the connections the message queue client speaks its protocol over.

transport package exposes two interfaces:
	type Conn interface {
		io.ReadWriteCloser
		SetDeadline(t time.Time) error
	}
and
	type Dialer interface {
		Dial(ctx context.Context, host, port string) (Conn, error)
	}

A TCP `Dialer` can be created by calling the `NewTCPDialer` function with the time allowed for each attempt:
	dialer := NewTCPDialer(5 * time.Second)

Any function with the right signature becomes a Dialer through `DialerFunc`, which is handy for tests:
	dialer := DialerFunc(func(ctx context.Context, host, port string) (Conn, error) {
		return nil, ErrConnect
	})

A Dialer can be instrumented so that every failed attempt is counted in a prometheus counter
named `transport_connect_errors`:
	counter := NewConnectErrorCounter(prometheus.Labels{"client": "alice"})
	dialer = Instrument(dialer, counter)

Every connection failure returned by these dialers wraps ErrConnect, so callers can tell transient
network failures apart with errors.Is.
*/
package transport
