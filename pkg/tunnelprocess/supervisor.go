package tunnelprocess

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logcollection"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"
	"github.com/core-tools/hsu-tunnelman-go/pkg/metrics"
	"github.com/core-tools/hsu-tunnelman-go/pkg/process"

	"github.com/im7mortal/kmutex"
	"golang.org/x/sync/errgroup"
)

// Supervisor launches tunnel client processes and tracks them until they are
// stopped or observed to have exited. It owns every process it spawns.
type Supervisor struct {
	options Options
	logs    logcollection.LogCollectionService
	metrics *metrics.Collector
	logger  logging.Logger

	// serializes Start and Stop per tunnel id
	idLocks *kmutex.Kmutex

	mu      sync.Mutex
	records map[string]*tunnelRecord
	seq     uint64
	closed  bool

	// process waiters
	tasks sync.WaitGroup
}

type tunnelRecord struct {
	tunnelID    string
	name        string
	commandLine []string
	startTime   time.Time
	seq         uint64

	process *os.Process
	output  *os.File

	// closed by the waiter once the process has been reaped; exitCode is valid afterwards
	done     chan struct{}
	exitCode int
}

func (r *tunnelRecord) exited() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// NewSupervisor creates a supervisor. metricsCollector may be nil.
func NewSupervisor(options Options, logs logcollection.LogCollectionService, metricsCollector *metrics.Collector, logger logging.Logger) *Supervisor {
	options.setDefaults()
	return &Supervisor{
		options: options,
		logs:    logs,
		metrics: metricsCollector,
		logger:  logger,
		idLocks: kmutex.New(),
		records: make(map[string]*tunnelRecord),
	}
}

// Start spawns `<binary> tunnel --token <token>` for tunnelID. An existing record is
// trusted without a liveness check, so a tunnel that exited unobserved must be
// reconciled by Status or List before it can be started again.
func (s *Supervisor) Start(ctx context.Context, token, tunnelID, name string) (StartResult, error) {
	if tunnelID == "" {
		return StartResult{}, errors.NewValidationError("tunnel id is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return StartResult{}, errors.NewCancelledError("start cancelled", err).WithContext("tunnel_id", tunnelID)
	}
	if name == "" {
		name = tunnelID
	}

	s.idLocks.Lock(tunnelID)
	defer s.idLocks.Unlock(tunnelID)

	s.mu.Lock()
	closed := s.closed
	_, exists := s.records[tunnelID]
	s.mu.Unlock()

	if closed {
		return StartResult{}, errors.NewInternalError("supervisor is shut down", nil).WithContext("tunnel_id", tunnelID)
	}
	if exists {
		s.metrics.TunnelStarted(metrics.StartAlreadyRunning)
		return StartResult{}, errors.NewConflictError("tunnel is already running", nil).WithContext("tunnel_id", tunnelID)
	}

	commandLine := []string{s.options.BinaryPath, "tunnel", "--token", token}
	s.logger.Infof("Starting tunnel, id: %s, name: %s, binary: %s", tunnelID, name, s.options.BinaryPath)

	cmd, output, err := s.spawn(commandLine)
	if err != nil {
		if process.IsBinaryNotFound(err) {
			s.metrics.TunnelStarted(metrics.StartBinaryNotFound)
			s.logger.Errorf("Tunnel client binary not found, id: %s, binary: %s", tunnelID, s.options.BinaryPath)
			return StartResult{}, errors.NewExecutableNotFoundError(
				fmt.Sprintf("%s not found, install the tunnel client first", s.options.BinaryPath), err,
			).WithContext("tunnel_id", tunnelID)
		}
		s.metrics.TunnelStarted(metrics.StartSpawnFailed)
		s.logger.Errorf("Failed to start tunnel, id: %s, error: %v", tunnelID, err)
		return StartResult{}, errors.NewProcessError("failed to start tunnel process", err).WithContext("tunnel_id", tunnelID)
	}

	record := &tunnelRecord{
		tunnelID:    tunnelID,
		name:        name,
		commandLine: commandLine,
		startTime:   s.options.Now(),
		process:     cmd.Process,
		output:      output,
		done:        make(chan struct{}),
	}
	collector := s.logs.Collect(tunnelID, output)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.abandon(cmd, record, collector)
		return StartResult{}, errors.NewInternalError("supervisor is shut down", nil).WithContext("tunnel_id", tunnelID)
	}
	s.seq++
	record.seq = s.seq
	s.records[tunnelID] = record
	s.tasks.Add(1)
	s.metrics.SetRunningTunnels(len(s.records))
	s.mu.Unlock()

	go s.waitProcess(cmd, record, collector)

	s.metrics.TunnelStarted(metrics.StartSucceeded)
	s.logger.Infof("Started tunnel, id: %s, pid: %d", tunnelID, record.process.Pid)

	return StartResult{
		TunnelID: tunnelID,
		Name:     name,
		PID:      record.process.Pid,
		Message:  fmt.Sprintf("Tunnel %s started", name),
	}, nil
}

// spawn starts the process with stdout and stderr sharing one pipe and returns the read end
func (s *Supervisor) spawn(commandLine []string) (*exec.Cmd, *os.File, error) {
	cmd := exec.Command(commandLine[0], commandLine[1:]...)
	process.PrepareCommand(cmd)

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.Stdout = writer
	cmd.Stderr = writer

	err = cmd.Start()
	// the child holds its own copy of the write end
	writer.Close()
	if err != nil {
		reader.Close()
		return nil, nil, err
	}
	return cmd, reader, nil
}

// waitProcess reaps the process, then gives the sink a short window to drain
// buffered output before closing the read end under it
func (s *Supervisor) waitProcess(cmd *exec.Cmd, record *tunnelRecord, collector *logcollection.Collector) {
	defer s.tasks.Done()

	err := cmd.Wait()
	record.exitCode = process.ExitCode(cmd.ProcessState)
	close(record.done)

	if err != nil {
		s.logger.Infof("Tunnel process exited, id: %s, pid: %d, status: %v", record.tunnelID, record.process.Pid, err)
	} else {
		s.logger.Infof("Tunnel process exited, id: %s, pid: %d, status: 0", record.tunnelID, record.process.Pid)
	}

	timer := time.NewTimer(s.options.LogDrainTimeout)
	defer timer.Stop()
	select {
	case <-collector.Done():
	case <-timer.C:
		s.logger.Debugf("Output of tunnel %s still open after exit, closing it", record.tunnelID)
	}
	record.output.Close()
}

// abandon kills a process spawned while the supervisor was shutting down
func (s *Supervisor) abandon(cmd *exec.Cmd, record *tunnelRecord, collector *logcollection.Collector) {
	s.logger.Warnf("Supervisor shut down during start, killing tunnel, id: %s, pid: %d", record.tunnelID, record.process.Pid)
	if err := process.ForceKill(record.process); err != nil && !process.IsProcessDone(err) {
		s.logger.Errorf("Failed to kill abandoned tunnel, id: %s, error: %v", record.tunnelID, err)
	}
	_ = cmd.Wait()
	record.output.Close()
	<-collector.Done()
	s.logs.Discard(record.tunnelID)
}

// Stop terminates the tunnel gracefully, escalating to a forced kill after the
// graceful timeout or when ctx is cancelled. After a forced kill it waits for the
// process without a deadline; an unkillable process blocks the caller.
func (s *Supervisor) Stop(ctx context.Context, tunnelID string) (StopResult, error) {
	s.idLocks.Lock(tunnelID)
	defer s.idLocks.Unlock(tunnelID)

	s.mu.Lock()
	record := s.records[tunnelID]
	s.mu.Unlock()

	if record == nil {
		return StopResult{}, errors.NewNotFoundError("tunnel is not running", nil).WithContext("tunnel_id", tunnelID)
	}

	s.logger.Infof("Stopping tunnel, id: %s, pid: %d", tunnelID, record.process.Pid)
	began := time.Now()

	path, err := s.terminate(ctx, record)
	if err != nil {
		s.metrics.TunnelStopped(metrics.StopFailed, time.Since(began))
		s.logger.Errorf("Failed to stop tunnel, id: %s, error: %v", tunnelID, err)
		return StopResult{}, err
	}

	s.mu.Lock()
	s.removeRecordLocked(record)
	s.mu.Unlock()

	s.metrics.TunnelStopped(path, time.Since(began))
	s.logger.Infof("Stopped tunnel, id: %s, path: %s", tunnelID, path)

	return StopResult{
		TunnelID: tunnelID,
		Message:  fmt.Sprintf("Tunnel %s stopped", tunnelID),
		Forced:   path == metrics.StopForced,
	}, nil
}

func (s *Supervisor) terminate(ctx context.Context, record *tunnelRecord) (string, error) {
	pid := record.process.Pid

	if record.exited() {
		return metrics.StopExited, nil
	}

	if err := process.SendTerminationSignal(record.process); err != nil {
		if process.IsProcessDone(err) {
			<-record.done
			return metrics.StopExited, nil
		}
		s.logger.Warnf("Failed to send termination signal to PID %d: %v", pid, err)
		return s.forceKill(record)
	}

	timer := time.NewTimer(s.options.GracefulTimeout)
	defer timer.Stop()

	select {
	case <-record.done:
		s.logger.Infof("Process PID %d terminated gracefully", pid)
		return metrics.StopGraceful, nil
	case <-timer.C:
		s.logger.Warnf("Process PID %d did not terminate within %v, forcing termination", pid, s.options.GracefulTimeout)
	case <-ctx.Done():
		s.logger.Warnf("Context cancelled during graceful termination of PID %d, forcing termination", pid)
	}

	return s.forceKill(record)
}

func (s *Supervisor) forceKill(record *tunnelRecord) (string, error) {
	pid := record.process.Pid
	if err := process.ForceKill(record.process); err != nil {
		if !process.IsProcessDone(err) {
			return metrics.StopFailed, errors.NewTerminationError("failed to kill tunnel process", err).
				WithContext("tunnel_id", record.tunnelID).WithContext("pid", pid)
		}
	}

	<-record.done
	s.logger.Infof("Process PID %d force terminated", pid)
	return metrics.StopForced, nil
}

// removeRecordLocked drops the record if it is still the current one for its id
func (s *Supervisor) removeRecordLocked(record *tunnelRecord) bool {
	if s.records[record.tunnelID] != record {
		return false
	}
	delete(s.records, record.tunnelID)
	if !s.options.RetainLogsAfterExit {
		s.logs.Discard(record.tunnelID)
	}
	s.metrics.SetRunningTunnels(len(s.records))
	return true
}

// reapLocked evicts the record if its process has exited and reports whether it did
func (s *Supervisor) reapLocked(record *tunnelRecord) bool {
	if !record.exited() {
		return false
	}
	if s.removeRecordLocked(record) {
		s.metrics.TunnelReaped()
		s.logger.Infof("Reaped exited tunnel, id: %s, pid: %d, exit code: %d", record.tunnelID, record.process.Pid, record.exitCode)
	}
	return true
}

// Status reports whether the tunnel is running. A tunnel found exited is evicted
// and its exit code returned once; later calls report it as plainly stopped.
func (s *Supervisor) Status(tunnelID string) StatusResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.records[tunnelID]
	if record == nil {
		return StatusResult{Running: false, Status: StatusStopped}
	}

	if s.reapLocked(record) {
		exitCode := record.exitCode
		return StatusResult{Running: false, Status: StatusStopped, ExitCode: &exitCode}
	}

	commandLine := make([]string, len(record.commandLine))
	copy(commandLine, record.commandLine)
	uptime := s.uptime(record)

	return StatusResult{
		Running:     true,
		Status:      StatusRunning,
		PID:         record.process.Pid,
		Uptime:      &uptime,
		Name:        record.name,
		CommandLine: commandLine,
	}
}

// List evicts every exited tunnel, then summarizes the rest in start order
func (s *Supervisor) List() []TunnelSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	survivors := make([]*tunnelRecord, 0, len(s.records))
	for _, record := range s.records {
		if !s.reapLocked(record) {
			survivors = append(survivors, record)
		}
	}
	sort.Slice(survivors, func(i, j int) bool { return survivors[i].seq < survivors[j].seq })

	summaries := make([]TunnelSummary, 0, len(survivors))
	for _, record := range survivors {
		summaries = append(summaries, TunnelSummary{
			TunnelID: record.tunnelID,
			Name:     record.name,
			PID:      record.process.Pid,
			Uptime:   s.uptime(record),
			Status:   StatusRunning,
		})
	}
	return summaries
}

// StopAll stops every tunnel tracked when it is called. Tunnels started while it
// runs are left alone. A failure for one tunnel does not affect the others.
func (s *Supervisor) StopAll(ctx context.Context) StopAllResult {
	ids := s.snapshotIDs()
	items := make([]StopAllItem, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(s.options.StopAllConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			result, err := s.Stop(ctx, id)
			if err != nil {
				items[i] = StopAllItem{TunnelID: id, Success: false, Error: err.Error(), Kind: KindOf(err)}
				return nil
			}
			items[i] = StopAllItem{TunnelID: id, Success: true, Message: result.Message}
			return nil
		})
	}
	_ = g.Wait()

	stopped := 0
	for _, item := range items {
		if item.Success {
			stopped++
		}
	}
	s.logger.Infof("Stopped %d of %d tunnels", stopped, len(ids))

	return StopAllResult{StoppedCount: stopped, Results: items}
}

func (s *Supervisor) snapshotIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*tunnelRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.tunnelID
	}
	return ids
}

// GetLogs returns the last limit captured lines; limit <= 0 returns all of them
func (s *Supervisor) GetLogs(tunnelID string, limit int) []string {
	return s.logs.GetLogs(tunnelID, limit)
}

// LogStatus reports the capture state of the tunnel's output, if a buffer exists
func (s *Supervisor) LogStatus(tunnelID string) (*logcollection.TunnelLogStatus, bool) {
	return s.logs.GetStatus(tunnelID)
}

// Close refuses further starts, stops every tunnel and waits for all process waiters.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.logger.Infof("Shutting down tunnel supervisor...")

	result := s.StopAll(ctx)

	errorCollection := errors.NewErrorCollection()
	for _, item := range result.Results {
		// reaped concurrently, nothing left to stop
		if !item.Success && item.Kind != KindNotRunning {
			errorCollection.Add(errors.NewTerminationError(item.Error, nil).WithContext("tunnel_id", item.TunnelID))
		}
	}

	s.tasks.Wait()
	s.logger.Infof("Tunnel supervisor stopped")

	return errorCollection.ToError()
}

func (s *Supervisor) uptime(record *tunnelRecord) int {
	return int(s.options.Now().Sub(record.startTime) / time.Second)
}
