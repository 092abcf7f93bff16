package tunnelprocess

import "time"

const (
	DefaultBinaryPath         = "cloudflared"
	DefaultGracefulTimeout    = 10 * time.Second
	DefaultLogDrainTimeout    = 2 * time.Second
	DefaultStopAllConcurrency = 4

	StatusRunning = "running"
	StatusStopped = "stopped"
)

type Options struct {
	// BinaryPath is looked up on PATH unless it contains a separator
	BinaryPath string

	// GracefulTimeout bounds the wait between the termination signal and the forced kill
	GracefulTimeout time.Duration

	// LogDrainTimeout bounds how long output is still read after the process exits
	LogDrainTimeout time.Duration

	StopAllConcurrency int

	// RetainLogsAfterExit keeps a tunnel's log buffer readable after its record is gone,
	// until the next start with the same id
	RetainLogsAfterExit bool

	// Now defaults to time.Now
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.BinaryPath == "" {
		o.BinaryPath = DefaultBinaryPath
	}
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = DefaultGracefulTimeout
	}
	if o.LogDrainTimeout <= 0 {
		o.LogDrainTimeout = DefaultLogDrainTimeout
	}
	if o.StopAllConcurrency <= 0 {
		o.StopAllConcurrency = DefaultStopAllConcurrency
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type StartResult struct {
	TunnelID string `json:"tunnel_id"`
	Name     string `json:"name"`
	PID      int    `json:"pid"`
	Message  string `json:"message"`
}

type StopResult struct {
	TunnelID string `json:"tunnel_id"`
	Message  string `json:"message"`

	// Forced is set when the process had to be killed
	Forced bool `json:"forced"`
}

type StatusResult struct {
	Running bool   `json:"running"`
	Status  string `json:"status"`

	// Set while running
	PID         int      `json:"pid,omitempty"`
	Uptime      *int     `json:"uptime,omitempty"` // whole seconds
	Name        string   `json:"name,omitempty"`
	CommandLine []string `json:"command_line,omitempty"`

	// Set when the process was found exited
	ExitCode *int `json:"exit_code,omitempty"`
}

type TunnelSummary struct {
	TunnelID string  `json:"tunnel_id"`
	Name     string  `json:"name"`
	PID      int     `json:"pid"`
	Uptime   int     `json:"uptime"` // whole seconds
	Status   string  `json:"status"`
}

type StopAllItem struct {
	TunnelID string    `json:"tunnel_id"`
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Kind     ErrorKind `json:"kind,omitempty"`
}

type StopAllResult struct {
	StoppedCount int           `json:"stopped_count"`
	Results      []StopAllItem `json:"results"`
}
