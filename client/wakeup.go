// Copyright (c) 2021 Nutanix, Inc.
package client

import (
	"strings"

	"github.com/google/uuid"
)

// wakeUpToken returns a fresh body for the message Stop publishes to the control topic:
// the control topic, a colon and a random UUID
func wakeUpToken(cfg Config) []byte {
	return []byte(wakeUpPrefix(cfg) + uuid.New().String())
}

func wakeUpPrefix(cfg Config) string {
	return cfg.controlTopic() + ":"
}

// isWakeUp reports whether body was produced by wakeUpToken for any client with cfg's name and
// control topic, including earlier sessions
func isWakeUp(cfg Config, body []byte) bool {
	rest, ok := strings.CutPrefix(string(body), wakeUpPrefix(cfg))
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
