package logcollection

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"
)

const (
	// Longer lines are split rather than failing the sink
	maxLineBytes = 64 * 1024

	timestampLayout = "15:04:05"
)

type Options struct {
	BufferLines int
	Outputs     []LogOutputWriter

	// OnLine is called once per captured line
	OnLine func(tunnelID string)

	// Now defaults to time.Now
	Now func() time.Time
}

type logCollectionService struct {
	options Options
	logger  logging.Logger

	mu      sync.Mutex
	tunnels map[string]*tunnelLogs

	wg sync.WaitGroup
}

type tunnelLogs struct {
	buffer    *LogBuffer
	collector *Collector
}

func NewLogCollectionService(options Options, logger logging.Logger) LogCollectionService {
	if options.BufferLines <= 0 {
		options.BufferLines = DefaultBufferLines
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &logCollectionService{
		options: options,
		logger:  logger,
		tunnels: make(map[string]*tunnelLogs),
	}
}

func (s *logCollectionService) Collect(tunnelID string, stream io.Reader) *Collector {
	buffer := NewLogBuffer(s.options.BufferLines)
	collector := newCollector(tunnelID, buffer, s)

	s.mu.Lock()
	s.tunnels[tunnelID] = &tunnelLogs{buffer: buffer, collector: collector}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		collector.streamReader(stream)
	}()

	s.logger.Debugf("Log collection started, tunnel: %s", tunnelID)
	return collector
}

func (s *logCollectionService) Discard(tunnelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tunnels, tunnelID)
}

func (s *logCollectionService) GetLogs(tunnelID string, limit int) []string {
	s.mu.Lock()
	logs, ok := s.tunnels[tunnelID]
	s.mu.Unlock()

	if !ok {
		return []string{}
	}
	return logs.buffer.Lines(limit)
}

func (s *logCollectionService) GetStatus(tunnelID string) (*TunnelLogStatus, bool) {
	s.mu.Lock()
	logs, ok := s.tunnels[tunnelID]
	s.mu.Unlock()

	if !ok {
		return nil, false
	}
	return logs.collector.getStatus(), true
}

func (s *logCollectionService) Close() error {
	s.wg.Wait()

	errorCollection := errors.NewErrorCollection()
	for _, output := range s.options.Outputs {
		if err := output.Close(); err != nil {
			errorCollection.Add(errors.NewIOError("failed to close log output", err))
		}
	}
	return errorCollection.ToError()
}

func (s *logCollectionService) writeToOutputs(collector *Collector, entry LogEntry) {
	for _, output := range s.options.Outputs {
		if err := output.Write(entry); err != nil {
			s.logger.Warnf("Failed to write to log output, tunnel: %s, error: %v", entry.TunnelID, err)
			collector.recordError(fmt.Sprintf("output write error: %v", err))
		}
	}
}

// Collector drains one tunnel client's combined output into its buffer
type Collector struct {
	tunnelID string
	buffer   *LogBuffer
	service  *logCollectionService
	done     chan struct{}

	mu             sync.Mutex
	active         bool
	linesProcessed int64
	bytesProcessed int64
	lastActivity   time.Time
	errors         []string
}

func newCollector(tunnelID string, buffer *LogBuffer, service *logCollectionService) *Collector {
	return &Collector{
		tunnelID: tunnelID,
		buffer:   buffer,
		service:  service,
		done:     make(chan struct{}),
		active:   true,
	}
}

// Done is closed once the stream has been fully drained or abandoned
func (c *Collector) Done() <-chan struct{} {
	return c.done
}

func (c *Collector) streamReader(stream io.Reader) {
	defer close(c.done)
	defer func() {
		c.mu.Lock()
		c.active = false
		c.mu.Unlock()
	}()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes+1)
	scanner.Split(scanBoundedLines)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.processLogLine(line)
	}

	if err := scanner.Err(); err != nil && !isClosedStream(err) {
		c.service.logger.Warnf("Error reading tunnel output, tunnel: %s, error: %v", c.tunnelID, err)
		c.recordError(fmt.Sprintf("stream reading error: %v", err))
	}
	c.service.logger.Debugf("Log collection finished, tunnel: %s", c.tunnelID)
}

func (c *Collector) processLogLine(line string) {
	now := c.service.options.Now()

	c.mu.Lock()
	c.linesProcessed++
	c.bytesProcessed += int64(len(line))
	c.lastActivity = now
	c.mu.Unlock()

	c.buffer.Append(fmt.Sprintf("[%s] %s", now.Format(timestampLayout), line))

	if c.service.options.OnLine != nil {
		c.service.options.OnLine(c.tunnelID)
	}

	c.service.writeToOutputs(c, LogEntry{
		Timestamp: now,
		TunnelID:  c.tunnelID,
		Message:   line,
	})
}

func (c *Collector) getStatus() *TunnelLogStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errorsCopy := make([]string, len(c.errors))
	copy(errorsCopy, c.errors)

	return &TunnelLogStatus{
		TunnelID:       c.tunnelID,
		Active:         c.active,
		LinesProcessed: c.linesProcessed,
		BytesProcessed: c.bytesProcessed,
		BufferedLines:  c.buffer.Len(),
		LastActivity:   c.lastActivity,
		Errors:         errorsCopy,
	}
}

func (c *Collector) recordError(errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, fmt.Sprintf("%s: %s", time.Now().Format(time.RFC3339), errMsg))

	// Keep only the last 10 errors
	if len(c.errors) > 10 {
		c.errors = c.errors[len(c.errors)-10:]
	}
}

// scanBoundedLines behaves like bufio.ScanLines but emits overlong lines in chunks
func scanBoundedLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 && i <= maxLineBytes {
		return bufio.ScanLines(data, atEOF)
	}
	if len(data) >= maxLineBytes {
		return maxLineBytes, data[:maxLineBytes], nil
	}
	return bufio.ScanLines(data, atEOF)
}

// The supervisor closes the read end after the process exits, which surfaces as a closed-file error
func isClosedStream(err error) bool {
	return err == io.ErrClosedPipe || errors.Is(err, os.ErrClosed)
}
