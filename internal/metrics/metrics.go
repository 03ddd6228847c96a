// Package metrics counts what a cmdshell server or local shell does:
// sessions, dispatched commands, relayed bytes and failures.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

type counter int

const (
	sessionsActive counter = iota
	sessionsTotal
	commandsTotal
	unknownCommands
	handshakeFailures
	bytesIn
	bytesOut
	errorsTotal
	numCounters
)

// Collector tracks runtime statistics for the `stats` command.
type Collector struct {
	counts [numCounters]atomic.Int64

	mu        sync.RWMutex
	started   time.Time
	lastErrAt time.Time
	lastErr   string
}

// New creates a collector whose uptime starts now.
func New() *Collector {
	return &Collector{started: time.Now()}
}

func (c *Collector) add(k counter, n int64) {
	if c != nil {
		c.counts[k].Add(n)
	}
}

func (c *Collector) get(k counter) int64 {
	if c == nil {
		return 0
	}
	return c.counts[k].Load()
}

// SessionOpened records a session that passed the handshake stage.
func (c *Collector) SessionOpened() {
	c.add(sessionsActive, 1)
	c.add(sessionsTotal, 1)
}

// SessionClosed records the end of a session.
func (c *Collector) SessionClosed() { c.add(sessionsActive, -1) }

// HandshakeFailed records a TLS handshake that did not complete.
func (c *Collector) HandshakeFailed() { c.add(handshakeFailures, 1) }

// CommandDispatched records one command that reached a handler.
func (c *Collector) CommandDispatched() { c.add(commandsTotal, 1) }

// UnknownCommand records a line naming an unregistered or disabled
// command.
func (c *Collector) UnknownCommand() { c.add(unknownCommands, 1) }

// BytesReceived records n bytes read from a client.
func (c *Collector) BytesReceived(n int64) { c.add(bytesIn, n) }

// BytesSent records n bytes written to a client.
func (c *Collector) BytesSent(n int64) { c.add(bytesOut, n) }

func (c *Collector) ActiveSessions() int64    { return c.get(sessionsActive) }
func (c *Collector) TotalSessions() int64     { return c.get(sessionsTotal) }
func (c *Collector) HandshakeFailures() int64 { return c.get(handshakeFailures) }
func (c *Collector) Commands() int64          { return c.get(commandsTotal) }
func (c *Collector) UnknownCommands() int64   { return c.get(unknownCommands) }
func (c *Collector) TotalBytesIn() int64      { return c.get(bytesIn) }
func (c *Collector) TotalBytesOut() int64     { return c.get(bytesOut) }
func (c *Collector) ErrorCount() int64        { return c.get(errorsTotal) }

// RecordError counts a failed session and remembers its message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.add(errorsTotal, 1)
	c.mu.Lock()
	c.lastErrAt, c.lastErr = time.Now(), msg
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters, as printed by
// `stats`.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	SessionsActive    int64  `json:"sessions_active"`
	SessionsTotal     int64  `json:"sessions_total"`
	Commands          int64  `json:"commands"`
	UnknownCommands   int64  `json:"unknown_commands"`
	HandshakeFailures int64  `json:"handshake_failures"`
	BytesIn           int64  `json:"bytes_in"`
	BytesOut          int64  `json:"bytes_out"`
	ErrorsTotal       int64  `json:"errors_total"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Uptime:            time.Since(c.started).Truncate(time.Second).String(),
		SessionsActive:    c.get(sessionsActive),
		SessionsTotal:     c.get(sessionsTotal),
		Commands:          c.get(commandsTotal),
		UnknownCommands:   c.get(unknownCommands),
		HandshakeFailures: c.get(handshakeFailures),
		BytesIn:           c.get(bytesIn),
		BytesOut:          c.get(bytesOut),
		ErrorsTotal:       c.get(errorsTotal),
	}
	c.mu.RLock()
	if !c.lastErrAt.IsZero() {
		s.LastError = c.lastErrAt.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErr
	}
	c.mu.RUnlock()
	return s
}

// JSON returns the snapshot as indented JSON.
func (c *Collector) JSON() string {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(data)
}
