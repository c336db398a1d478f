// Package logging sets up the structured logger of efish and can mirror
// its output to a Logstash TCP input.
package logging

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// LogstashWriter forwards log lines to a Logstash TCP input over a single
// connection. It never blocks the caller on an unreachable Logstash for
// longer than the dial or write timeout: while Logstash is down, lines are
// dropped and a reconnect is attempted after the retry interval.
//
// LogstashWriter is safe for concurrent use.
type LogstashWriter struct {
	addr string
	cfg  LogstashConfig

	mu        sync.Mutex
	conn      net.Conn
	nextRetry time.Time
	dropped   int
	closed    bool
}

// LogstashConfig holds the timeouts of a LogstashWriter.
type LogstashConfig struct {
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryInterval time.Duration
}

// DefaultLogstashConfig returns the timeouts used in production.
func DefaultLogstashConfig() LogstashConfig {
	return LogstashConfig{
		DialTimeout:   2 * time.Second,
		WriteTimeout:  time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// NewLogstashWriter creates a writer for the Logstash TCP input at addr.
// The connection is established on the first write.
func NewLogstashWriter(addr string, cfg LogstashConfig) (*LogstashWriter, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("logstash address is required")
	}

	return &LogstashWriter{
		addr: addr,
		cfg:  cfg,
	}, nil
}

// Write sends p as one newline terminated line. Write only fails when the
// writer was closed; lines that can't be delivered are counted as dropped.
func (w *LogstashWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	line := make([]byte, len(p), len(p)+1)
	copy(line, p)
	if line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, io.ErrClosedPipe
	}

	if !w.connectLocked() {
		w.dropped++
		return len(p), nil
	}

	if w.cfg.WriteTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.cfg.WriteTimeout))
	}

	if _, err := w.conn.Write(line); err != nil {
		_ = w.conn.Close()
		w.conn = nil
		w.nextRetry = time.Now().Add(w.cfg.RetryInterval)
		w.dropped++
	}

	return len(p), nil
}

// Dropped returns the number of lines that could not be delivered.
func (w *LogstashWriter) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Close closes the connection. Writes after Close fail.
func (w *LogstashWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.conn == nil {
		return nil
	}

	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *LogstashWriter) connectLocked() bool {
	if w.conn != nil {
		return true
	}

	if time.Now().Before(w.nextRetry) {
		return false
	}

	conn, err := net.DialTimeout("tcp", w.addr, w.cfg.DialTimeout)
	if err != nil {
		w.nextRetry = time.Now().Add(w.cfg.RetryInterval)
		return false
	}

	w.conn = conn
	return true
}
