// Copyright (c) 2021 Nutanix, Inc.
package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	contentLengthHeader = "Content-Length"
	successMarker       = "200 OK"
)

// MaxLineLength bounds a status, request or header line
const MaxLineLength = 8 * 1024

// MaxBodySize bounds the body a single response may declare (16MB)
const MaxBodySize = 16 * 1024 * 1024

var (
	// ErrStatus is returned for a response whose status line does not contain "200 OK"
	ErrStatus = errors.New("unsuccessful response")
	// ErrNoBody is returned when a successful response carries no message
	ErrNoBody = errors.New("response has no body")
	// ErrShortBody is returned when fewer body bytes arrive than were declared
	ErrShortBody = errors.New("response body shorter than content length")
	// ErrMalformed is returned for lines that cannot be parsed
	ErrMalformed = errors.New("malformed message")
)

// Response is a decoded server response
type Response struct {
	Status string
	Body   []byte
}

// ReadResponse decodes one response from br.
// A status line without "200 OK" drains the rest of the stream and returns ErrStatus.
// On success exactly Content-Length body bytes are read; trailing bytes are left unread.
func ReadResponse(br *bufio.Reader) (*Response, error) {
	status, err := readLine(br)
	if err != nil {
		return nil, fmt.Errorf("read status line: %w", err)
	}
	if !strings.Contains(status, successMarker) {
		_ = Drain(br)
		return nil, fmt.Errorf("status %q: %w", status, ErrStatus)
	}

	length, present, err := readHeaders(br)
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	resp := &Response{Status: status}
	if !present || length == 0 {
		return resp, nil
	}
	resp.Body, err = readBody(br, length)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Message converts a response body into a delivered message for resource.
// It returns ErrNoBody when the response carried nothing.
func (resp *Response) Message(resource string) (*Request, error) {
	if len(resp.Body) == 0 {
		return nil, ErrNoBody
	}
	return &Request{Method: GET, Resource: resource, Body: resp.Body}, nil
}

// Drain reads and discards r until EOF
func Drain(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}
