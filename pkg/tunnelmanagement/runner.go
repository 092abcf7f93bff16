package tunnelmanagement

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/cloudflare"
	"github.com/core-tools/hsu-tunnelman-go/pkg/config"
	"github.com/core-tools/hsu-tunnelman-go/pkg/controlplane"
	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logcollection"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"
	"github.com/core-tools/hsu-tunnelman-go/pkg/metrics"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// RunOptions are the command line overrides applied on top of the loaded configuration
type RunOptions struct {
	ConfigFile    string
	ListenAddress string
	LogLevel      string
}

// LoadRunConfig loads the configuration, applies command line overrides and validates the result
func LoadRunConfig(options RunOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(options.ConfigFile)
	if err != nil {
		return nil, err
	}

	if options.ListenAddress != "" {
		cfg.Server.ListenAddress = options.ListenAddress
	}
	if options.LogLevel != "" {
		cfg.Logging.Level = options.LogLevel
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", options.ConfigFile)
	}
	return cfg, nil
}

// Components is the wired service: supervisor, log capture, cloud client and HTTP API
type Components struct {
	Config     *config.Config
	Registry   *prometheus.Registry
	Metrics    *metrics.Collector
	Logs       logcollection.LogCollectionService
	Supervisor *tunnelprocess.Supervisor

	// Cloud is built from configured credentials and nil without them; credentials
	// saved through /api/config replace the server's client, not this one
	Cloud *cloudflare.Client

	Server *controlplane.Server

	logger logging.Logger
}

func NewComponents(cfg *config.Config, logger logging.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("configuration cannot be nil", nil)
	}

	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewMetricsCollector()
	if err := registry.Register(metricsCollector); err != nil {
		return nil, errors.NewInternalError("failed to register metrics", err)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	outputs := []logcollection.LogOutputWriter{
		logcollection.NewLoggerOutput(logging.NewLogger("tunnel-output , ", logging.LogFuncs{Debugf: logger.Debugf})),
	}
	if cfg.Supervisor.LogOutputFile != "" {
		outputs = append(outputs, logcollection.NewFileOutput(logcollection.FileOutputOptions{
			Path:       cfg.Supervisor.LogOutputFile,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		}))
		logger.Infof("Tunnel output is also written to %s", cfg.Supervisor.LogOutputFile)
	}

	logs := logcollection.NewLogCollectionService(logcollection.Options{
		BufferLines: cfg.Supervisor.LogBufferLines,
		Outputs:     outputs,
		OnLine:      metricsCollector.LogLineCaptured,
	}, logger)

	supervisor := tunnelprocess.NewSupervisor(tunnelprocess.Options{
		BinaryPath:          cfg.Supervisor.BinaryPath,
		GracefulTimeout:     cfg.Supervisor.GracefulTimeout,
		LogDrainTimeout:     cfg.Supervisor.LogDrainTimeout,
		StopAllConcurrency:  cfg.Supervisor.StopAllConcurrency,
		RetainLogsAfterExit: cfg.Supervisor.RetainLogsAfterExit,
	}, logs, metricsCollector, logger)

	credentials := cloudflare.Credentials{
		APIToken:  cfg.Cloudflare.APIToken,
		ZoneID:    cfg.Cloudflare.ZoneID,
		AccountID: cfg.Cloudflare.AccountID,
	}
	newCloud := func(credentials cloudflare.Credentials) *cloudflare.Client {
		return cloudflare.NewClient(credentials, cloudflare.Options{
			BaseURL: cfg.Cloudflare.BaseURL,
			Timeout: cfg.Cloudflare.RequestTimeout,
		}, logger)
	}
	serverOptions := controlplane.Options{
		Supervisor:  supervisor,
		Credentials: credentials,
		NewCloud: func(credentials cloudflare.Credentials) controlplane.CloudAPI {
			return newCloud(credentials)
		},
		Gatherer:   registry,
		BinaryPath: cfg.Supervisor.BinaryPath,
	}

	var cloud *cloudflare.Client
	if credentials.Valid() {
		cloud = newCloud(credentials)
		serverOptions.Cloud = cloud
	} else {
		logger.Warnf("Cloudflare credentials are not configured, cloud endpoints are disabled until set through /api/config")
	}

	return &Components{
		Config:     cfg,
		Registry:   registry,
		Metrics:    metricsCollector,
		Logs:       logs,
		Supervisor: supervisor,
		Cloud:      cloud,
		Server:     controlplane.NewServer(serverOptions, logger),
		logger:     logger,
	}, nil
}

// Shutdown stops every tunnel and closes the log outputs
func (c *Components) Shutdown(ctx context.Context) error {
	errorCollection := errors.NewErrorCollection()
	if err := c.Supervisor.Close(ctx); err != nil {
		errorCollection.Add(errors.NewInternalError("failed to stop all tunnels", err))
	}
	if err := c.Logs.Close(); err != nil {
		errorCollection.Add(errors.NewIOError("failed to close log outputs", err))
	}
	return errorCollection.ToError()
}

// Run serves the control plane until a termination signal arrives, ctx ends or runDuration
// seconds pass, then stops all tunnels.
func Run(ctx context.Context, cfg *config.Config, runDuration int, logger logging.Logger) error {
	logger.Infof("Tunnel manager starting...")

	logger.Infof("Platform: OS=%s, Arch=%s, CPUs=%d, Go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())

	operationCtx := ctx
	if runDuration > 0 {
		logger.Infof("Using RUN DURATION of %d seconds", runDuration)
		var cancel context.CancelFunc
		operationCtx, cancel = context.WithTimeout(ctx, time.Duration(runDuration)*time.Second)
		defer cancel()
	}

	summary := config.GetConfigSummary(cfg)
	logger.Infof("Configuration: binary: %s, graceful timeout: %s, log buffer: %d lines, cloudflare configured: %t",
		summary.BinaryPath, summary.GracefulTimeout, summary.LogBufferLines, summary.CloudflareConfigured)

	components, err := NewComponents(cfg, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		_ = components.Shutdown(context.Background())
		return errors.NewNetworkError("failed to listen", err).WithContext("listen_address", cfg.Server.ListenAddress)
	}

	httpServer := &http.Server{
		Handler:           components.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Infof("Control plane listening on %s", listener.Addr())

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig, os.Interrupt)
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	var runErr error
	select {
	case receivedSignal := <-sig:
		logger.Infof("Tunnel manager received signal: %v", receivedSignal)
	case <-operationCtx.Done():
		logger.Infof("Tunnel manager run ended: %v", operationCtx.Err())
	case err := <-serveErr:
		if err != nil {
			logger.Errorf("Control plane server failed: %v", err)
			runErr = errors.NewNetworkError("control plane server failed", err)
		}
	}

	logger.Infof("Ready to stop tunnel manager...")

	// Fresh context so shutdown is not cut short by the one that ended the run
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Control plane shutdown: %v", err)
	}
	if err := components.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Tunnel shutdown: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	logger.Infof("Tunnel manager stopped")
	return runErr
}
