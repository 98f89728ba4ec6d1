// Package mqtest provides an in-process message queue server speaking the client wire protocol,
// for use in tests.
package mqtest

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nutanix/mq-client-go-sdk/request"
	"github.com/stretchr/testify/require"
)

// DefaultPollWait is how long a fetch waits for a message before answering with no body
const DefaultPollWait = 100 * time.Millisecond

// Server is a minimal topic server. Each connection carries one request and one response.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	mu       sync.Mutex
	pollWait time.Duration
	failing  bool
	subs     map[string]map[string]bool
	pending  map[string][][]byte
	received []*request.Request
	// changed is closed and replaced whenever a message is queued
	changed chan struct{}
	closed  bool
}

// NewServer starts a server on a random local port. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{
		ln:       ln,
		pollWait: DefaultPollWait,
		subs:     make(map[string]map[string]bool),
		pending:  make(map[string][][]byte),
		changed:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Host returns the host the server listens on
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the port the server listens on
func (s *Server) Port() string {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	return port
}

// SetFailing makes every following request receive a 500 response while failing is true
func (s *Server) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// SetPollWait changes how long fetches wait for a message
func (s *Server) SetPollWait(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollWait = d
}

// Enqueue places body directly in name's pending messages
func (s *Server) Enqueue(name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueLocked(name, body)
}

// Requests returns every request received so far, fetches included, in arrival order
func (s *Server) Requests() []*request.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*request.Request(nil), s.received...)
}

// Published returns the bodies published to topic, in arrival order
func (s *Server) Published(topic string) []string {
	var bodies []string
	for _, r := range s.Requests() {
		if r.Method == request.PUT && r.Resource == request.TopicPath(topic) {
			bodies = append(bodies, string(r.Body))
		}
	}
	return bodies
}

// Subscribed reports whether name is subscribed to topic
func (s *Server) Subscribed(name, topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[topic][name]
}

// Close stops accepting connections and waits for in flight ones
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.ln.Close()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r, err := request.Read(bufio.NewReader(conn))
	if err != nil {
		respond(conn, "400 Bad Request", nil)
		return
	}

	s.mu.Lock()
	s.received = append(s.received, r)
	failing := s.failing
	s.mu.Unlock()
	if failing {
		respond(conn, "500 Internal Server Error", nil)
		return
	}

	switch {
	case r.Method == request.PUT && strings.HasPrefix(r.Resource, "/topic/"):
		s.publish(strings.TrimPrefix(r.Resource, "/topic/"), r.Body)
		respond(conn, "200 OK", nil)
	case strings.HasPrefix(r.Resource, "/subscription/"):
		name, topic, ok := strings.Cut(strings.TrimPrefix(r.Resource, "/subscription/"), "/")
		if !ok || r.Method == request.GET {
			respond(conn, "404 Not Found", nil)
			return
		}
		s.subscribe(name, topic, r.Method == request.PUT)
		respond(conn, "200 OK", nil)
	case r.Method == request.GET && strings.HasPrefix(r.Resource, "/queue/"):
		body := s.next(strings.TrimPrefix(r.Resource, "/queue/"))
		respond(conn, "200 OK", body)
	default:
		respond(conn, "404 Not Found", nil)
	}
}

func (s *Server) publish(topic string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.subs[topic] {
		s.enqueueLocked(name, body)
	}
}

func (s *Server) subscribe(name, topic string, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !add {
		delete(s.subs[topic], name)
		return
	}
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[string]bool)
	}
	s.subs[topic][name] = true
}

func (s *Server) enqueueLocked(name string, body []byte) {
	s.pending[name] = append(s.pending[name], append([]byte{}, body...))
	close(s.changed)
	s.changed = make(chan struct{})
}

// next pops name's oldest pending message, waiting up to the poll wait for one to arrive
func (s *Server) next(name string) []byte {
	s.mu.Lock()
	timer := time.NewTimer(s.pollWait)
	s.mu.Unlock()
	defer timer.Stop()

	for {
		s.mu.Lock()
		if msgs := s.pending[name]; len(msgs) > 0 {
			s.pending[name] = msgs[1:]
			s.mu.Unlock()
			return msgs[0]
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return nil
		}
	}
}

func respond(conn net.Conn, status string, body []byte) {
	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "%s %s\r\n", request.Version, status)
	if len(body) > 0 {
		fmt.Fprintf(w, "Content-Length: %d\r\n", len(body))
	}
	w.WriteString("\r\n")
	w.Write(body)
	_ = w.Flush()
}
