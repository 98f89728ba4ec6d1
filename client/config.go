// Copyright (c) 2021 Nutanix, Inc.
package client

import (
	"fmt"
	"os"
	"time"
)

const (
	// DefaultHost is the server host used when none is configured
	DefaultHost = "localhost"
	// DefaultPort is the server port used when none is configured
	DefaultPort = "9620"
	// DefaultControlTopic prefixes the reserved topic used to wake the puller on shutdown
	DefaultControlTopic = "SHUTDOWN"

	defaultDialTimeout  = 5 * time.Second
	defaultIOTimeout    = 30 * time.Second
	defaultBackoffBase  = 50 * time.Millisecond
	defaultBackoffMax   = 5 * time.Second
	defaultPushInterval = 1 * time.Minute
)

// Config describes the identity of a client and how it reaches the server
type Config struct {
	// Name identifies the client's subscriptions and inbound queue on the server
	Name string
	Host string
	Port string
	// ControlTopic prefixes the reserved topic subscribed to on Start and published to on Stop.
	// The client name is appended so that clients never receive each other's wake ups.
	ControlTopic string

	// DialTimeout bounds each connection attempt
	DialTimeout time.Duration
	// IOTimeout bounds the whole exchange on one connection
	IOTimeout time.Duration
	// BackoffBase and BackoffMax shape the exponential backoff between failed connection attempts
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// PushGateway enables periodic pushes of the client metrics when non empty
	PushGateway  string
	PushInterval time.Duration
}

// DefaultConfig returns a Config for the default server with no name set
func DefaultConfig() Config {
	return Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		ControlTopic: DefaultControlTopic,
		DialTimeout:  defaultDialTimeout,
		IOTimeout:    defaultIOTimeout,
		BackoffBase:  defaultBackoffBase,
		BackoffMax:   defaultBackoffMax,
		PushInterval: defaultPushInterval,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by MQ_NAME (falling back to USER), MQ_HOST, MQ_PORT
// and PUSH_GW
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Name = os.Getenv("USER")
	if v := os.Getenv("MQ_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("MQ_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MQ_PORT"); v != "" {
		cfg.Port = v
	}
	cfg.PushGateway = os.Getenv("PUSH_GW")
	return cfg
}

// withDefaults fills every unset tunable from DefaultConfig
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.ControlTopic == "" {
		cfg.ControlTopic = def.ControlTopic
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.IOTimeout < 0 {
		cfg.IOTimeout = 0
	} else if cfg.IOTimeout == 0 {
		cfg.IOTimeout = def.IOTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = def.PushInterval
	}
	return cfg
}

func (cfg Config) controlTopic() string {
	return cfg.ControlTopic + "-" + cfg.Name
}

func (cfg Config) validate() error {
	switch {
	case cfg.Name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidConfig)
	case cfg.Host == "":
		return fmt.Errorf("%w: host is empty", ErrInvalidConfig)
	case cfg.Port == "":
		return fmt.Errorf("%w: port is empty", ErrInvalidConfig)
	}
	return nil
}
