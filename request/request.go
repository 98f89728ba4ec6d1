// Copyright (c) 2021 Nutanix, Inc.
package request

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Method is the verb of a request
type Method string

const (
	// GET fetches the next message
	GET Method = "GET"
	// PUT creates or updates a topic message or a subscription
	PUT Method = "PUT"
	// DELETE removes a subscription
	DELETE Method = "DELETE"
)

// Version is the protocol version written on every request line
const Version = "HTTP/1.0"

const (
	topicPrefix        = "/topic/"
	subscriptionPrefix = "/subscription/"
	queuePrefix        = "/queue/"
)

type kind int

const (
	kindMessage kind = iota
	kindControl
)

// Request is one protocol exchange, or one message delivered to the client.
// A nil Body means the request carries no body.
type Request struct {
	Method   Method
	Resource string
	Body     []byte

	kind kind
}

// New creates a request. The body is copied.
func New(method Method, resource string, body []byte) *Request {
	r := &Request{
		Method:   method,
		Resource: resource,
	}
	if body != nil {
		r.Body = append([]byte{}, body...)
	}
	return r
}

// Control creates a request that never goes on the wire. It is used to signal shutdown through a
// queue without reserving any message body.
func Control() *Request {
	return &Request{kind: kindControl}
}

// IsControl reports whether r was created by Control
func (r *Request) IsControl() bool {
	return r.kind == kindControl
}

// HasBody reports whether r carries a body
func (r *Request) HasBody() bool {
	return r.Body != nil
}

// TopicPath is the resource messages for topic are published to
func TopicPath(topic string) string {
	return topicPrefix + topic
}

// SubscriptionPath is the resource of name's subscription to topic
func SubscriptionPath(name, topic string) string {
	return subscriptionPrefix + name + "/" + topic
}

// QueuePath is the resource name's pending messages are fetched from
func QueuePath(name string) string {
	return queuePrefix + name
}

// Publish creates a PUT of body to topic
func Publish(topic string, body []byte) *Request {
	if body == nil {
		body = []byte{}
	}
	return New(PUT, TopicPath(topic), body)
}

// Subscribe creates a PUT of name's subscription to topic
func Subscribe(name, topic string) *Request {
	return New(PUT, SubscriptionPath(name, topic), nil)
}

// Unsubscribe creates a DELETE of name's subscription to topic
func Unsubscribe(name, topic string) *Request {
	return New(DELETE, SubscriptionPath(name, topic), nil)
}

// Fetch creates a GET of the next message pending for name
func Fetch(name string) *Request {
	return New(GET, QueuePath(name), nil)
}

// WriteTo writes the wire encoding of r to w
func (r *Request) WriteTo(w io.Writer) (int64, error) {
	if r.IsControl() {
		return 0, fmt.Errorf("control request cannot be written: %w", ErrMalformed)
	}
	n, err := w.Write(r.Encode())
	return int64(n), err
}

// Encode returns the wire encoding of r
func (r *Request) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s %s\r\n", r.Method, r.Resource, Version)
	if r.HasBody() {
		fmt.Fprintf(&buf, "%s: %d\r\n", contentLengthHeader, len(r.Body))
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// String creates a stringified representation of the request
func (r *Request) String() string {
	if r.IsControl() {
		return "[control]"
	}
	return fmt.Sprintf("[method: %s][resource: %s][body: %d bytes]", r.Method, r.Resource, len(r.Body))
}

// Read decodes one request from br, the counterpart of WriteTo
func Read(br *bufio.Reader) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, fmt.Errorf("request line %q: %w", line, ErrMalformed)
	}
	method := Method(fields[0])
	switch method {
	case GET, PUT, DELETE:
	default:
		return nil, fmt.Errorf("unknown method %q: %w", fields[0], ErrMalformed)
	}

	length, present, err := readHeaders(br)
	if err != nil {
		return nil, err
	}
	r := &Request{Method: method, Resource: fields[1]}
	if !present {
		return r, nil
	}
	r.Body, err = readBody(br, length)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// readLine reads one CRLF (or bare LF) terminated line without its terminator
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineLength {
			return "", fmt.Errorf("line exceeds %d bytes: %w", MaxLineLength, ErrMalformed)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return "", fmt.Errorf("unterminated line: %w", io.ErrUnexpectedEOF)
			}
			return "", err
		}
		return strings.TrimRight(string(line), "\r\n"), nil
	}
}

// readHeaders consumes header lines up to the blank line and returns the declared content length.
// present is false when no usable Content-Length header was found.
func readHeaders(br *bufio.Reader) (length int, present bool, err error) {
	for {
		line, err := readLine(br)
		if err != nil {
			return 0, false, err
		}
		if line == "" {
			return length, present, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), contentLengthHeader) {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil || n < 0 {
			length, present = 0, false
			continue
		}
		length, present = n, true
	}
}

func readBody(br *bufio.Reader, length int) ([]byte, error) {
	if length > MaxBodySize {
		return nil, fmt.Errorf("content length %d exceeds %d: %w", length, MaxBodySize, ErrMalformed)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(br, body); err != nil {
		return nil, fmt.Errorf("read %d body bytes: %w: %v", length, ErrShortBody, err)
	}
	return body, nil
}
