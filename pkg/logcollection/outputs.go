package logcollection

import (
	"fmt"
	"sync"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"

	"github.com/juju/lumberjack/v2"
)

// FileOutputOptions configures the aggregated, rotated tunnel log file
type FileOutputOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileWriter appends every tunnel's lines to one rotated file
type fileWriter struct {
	mutex  sync.Mutex
	writer *lumberjack.Logger
}

func NewFileOutput(options FileOutputOptions) LogOutputWriter {
	maxSize := options.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	return &fileWriter{
		writer: &lumberjack.Logger{
			Filename:   options.Path,
			MaxSize:    maxSize,
			MaxBackups: options.MaxBackups,
			MaxAge:     options.MaxAgeDays,
			Compress:   options.Compress,
		},
	}
}

func (f *fileWriter) Write(entry LogEntry) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	logLine := fmt.Sprintf("[%s][%s] %s\n",
		entry.Timestamp.Format(time.RFC3339),
		entry.TunnelID,
		entry.Message,
	)
	if _, err := f.writer.Write([]byte(logLine)); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

func (f *fileWriter) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.writer.Close()
}

// loggerWriter forwards tunnel lines to the supervisor's own logger at debug level
type loggerWriter struct {
	logger logging.Logger
}

func NewLoggerOutput(logger logging.Logger) LogOutputWriter {
	return &loggerWriter{logger: logger}
}

func (l *loggerWriter) Write(entry LogEntry) error {
	l.logger.Debugf("[%s] %s", entry.TunnelID, entry.Message)
	return nil
}

func (l *loggerWriter) Close() error {
	return nil
}
