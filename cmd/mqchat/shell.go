package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const prompt = "MQ:: "

var (
	errExit           = errors.New("exit")
	errUnknownCommand = errors.New("unknown command")
	errMissingArgs    = errors.New("missing arguments")
)

// messageQueue is the part of the client the shell drives
type messageQueue interface {
	Publish(topic string, body []byte)
	Subscribe(topic string)
	Unsubscribe(topic string)
}

type retriever interface {
	Retrieve(ctx context.Context) ([]byte, bool)
}

// syncWriter serialises writes from the shell and the listener
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type command struct {
	name  string
	topic string
	body  string
}

// parseCommand splits a line into a command, its topic and, for message, the rest of the line as
// the body
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, nil
	}
	cmd := command{name: strings.ToLower(fields[0])}
	switch cmd.name {
	case "help", "exit", "quit":
		return cmd, nil
	case "subscribe", "unsubscribe":
		if len(fields) < 2 {
			return cmd, fmt.Errorf("%s: %w: topic", cmd.name, errMissingArgs)
		}
		cmd.topic = fields[1]
		return cmd, nil
	case "message", "publish":
		if len(fields) < 3 {
			return cmd, fmt.Errorf("%s: %w: topic and body", cmd.name, errMissingArgs)
		}
		cmd.topic = fields[1]
		rest := strings.TrimSpace(line)
		rest = strings.TrimSpace(rest[len(fields[0]):])
		cmd.body = strings.TrimSpace(rest[len(fields[1]):])
		return cmd, nil
	}
	return cmd, fmt.Errorf("%q: %w", fields[0], errUnknownCommand)
}

type shell struct {
	mq  messageQueue
	out io.Writer
}

func newShell(mq messageQueue, out io.Writer) *shell {
	return &shell{mq: mq, out: out}
}

// run executes commands read from in until exit or EOF
func (s *shell) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, prompt)
	for scanner.Scan() {
		err := s.execute(scanner.Text())
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err.Error())
		}
		fmt.Fprint(s.out, prompt)
	}
	return scanner.Err()
}

func (s *shell) execute(line string) error {
	cmd, err := parseCommand(line)
	if err != nil {
		return err
	}
	switch cmd.name {
	case "":
	case "help":
		s.usage()
	case "exit", "quit":
		return errExit
	case "subscribe":
		s.mq.Subscribe(cmd.topic)
	case "unsubscribe":
		s.mq.Unsubscribe(cmd.topic)
	case "message", "publish":
		s.mq.Publish(cmd.topic, []byte(cmd.body))
	}
	return nil
}

func (s *shell) usage() {
	fmt.Fprint(s.out, `Commands:
  subscribe <topic>          receive messages published to topic
  unsubscribe <topic>        stop receiving messages from topic
  message <topic> <body>     publish body to topic (alias: publish)
  help                       show this help
  exit                       leave the chat
`)
}

// listen prints every retrieved message until the client is stopped
func listen(ctx context.Context, mq retriever, out io.Writer) {
	for {
		body, ok := mq.Retrieve(ctx)
		if !ok {
			return
		}
		fmt.Fprintf(out, "\nMessage received: %s\n%s", body, prompt)
	}
}
