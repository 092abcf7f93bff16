package logcollection

import (
	"io"
	"time"
)

// LogOutputWriter receives every captured line in addition to the in-memory buffer
type LogOutputWriter interface {
	Write(entry LogEntry) error
	Close() error
}

// LogEntry is one captured line of a tunnel client's output
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	TunnelID  string    `json:"tunnel_id"`
	Message   string    `json:"message"`
}

// TunnelLogStatus describes the capture state of one tunnel
type TunnelLogStatus struct {
	TunnelID       string    `json:"tunnel_id"`
	Active         bool      `json:"active"`
	LinesProcessed int64     `json:"lines_processed"`
	BytesProcessed int64     `json:"bytes_processed"`
	BufferedLines  int       `json:"buffered_lines"`
	LastActivity   time.Time `json:"last_activity,omitempty"`
	Errors         []string  `json:"errors,omitempty"`
}

// LogCollectionService owns per-tunnel log buffers and their capture sinks
type LogCollectionService interface {
	// Collect resets the buffer for tunnelID and starts draining stream into it
	Collect(tunnelID string, stream io.Reader) *Collector

	// Discard drops the buffer for tunnelID, if any
	Discard(tunnelID string)

	GetLogs(tunnelID string, limit int) []string
	GetStatus(tunnelID string) (*TunnelLogStatus, bool)

	// Close waits for every sink to finish and closes the outputs
	Close() error
}
