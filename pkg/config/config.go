package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix           = "TUNNELMAN"
	CloudflareEnvPrefix = "CLOUDFLARE"

	DefaultCloudflareBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultPort              = 5000
)

// Config represents the top-level configuration file structure
type Config struct {
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Read from the unprefixed CLOUDFLARE_* variables
	Cloudflare CloudflareConfig `yaml:"cloudflare" ignored:"true"`
}

type SupervisorConfig struct {
	BinaryPath          string        `yaml:"binary_path,omitempty" split_words:"true"`
	GracefulTimeout     time.Duration `yaml:"graceful_timeout,omitempty" split_words:"true"`
	LogBufferLines      int           `yaml:"log_buffer_lines,omitempty" split_words:"true"`
	LogDrainTimeout     time.Duration `yaml:"log_drain_timeout,omitempty" split_words:"true"`
	StopAllConcurrency  int           `yaml:"stop_all_concurrency,omitempty" split_words:"true"`
	RetainLogsAfterExit bool          `yaml:"retain_logs_after_exit,omitempty" split_words:"true"`
	LogOutputFile       string        `yaml:"log_output_file,omitempty" split_words:"true"`
}

type ServerConfig struct {
	// ListenAddress takes precedence over Port
	ListenAddress   string        `yaml:"listen_address,omitempty" split_words:"true"`
	// PORT is also read unprefixed
	Port            int           `yaml:"port,omitempty" envconfig:"PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" split_words:"true"`
}

type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" split_words:"true"`
	File       string `yaml:"file,omitempty" split_words:"true"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" split_words:"true"`
	MaxBackups int    `yaml:"max_backups,omitempty" split_words:"true"`
}

type CloudflareConfig struct {
	APIToken       string        `yaml:"api_token,omitempty" split_words:"true"`
	ZoneID         string        `yaml:"zone_id,omitempty" split_words:"true"`
	AccountID      string        `yaml:"account_id,omitempty" split_words:"true"`
	BaseURL        string        `yaml:"base_url,omitempty" split_words:"true"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty" split_words:"true"`
}

// Configured reports whether all credentials needed for the cloud API are present
func (c CloudflareConfig) Configured() bool {
	return c.APIToken != "" && c.ZoneID != "" && c.AccountID != ""
}

// LoadConfig reads the optional file, applies environment overrides and then defaults
func LoadConfig(filename string) (*Config, error) {
	config := &Config{}
	if filename != "" {
		var err error
		if config, err = readConfigFile(filename); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnvironment(config); err != nil {
		return nil, err
	}

	if err := setConfigDefaults(config); err != nil {
		return nil, errors.NewValidationError("failed to apply configuration defaults", err)
	}

	return config, nil
}

// LoadConfigFromFile reads a configuration file and applies defaults, without environment overrides
func LoadConfigFromFile(filename string) (*Config, error) {
	config, err := readConfigFile(filename)
	if err != nil {
		return nil, err
	}

	if err := setConfigDefaults(config); err != nil {
		return nil, errors.NewValidationError("failed to apply configuration defaults", err)
	}

	return config, nil
}

func readConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}
	return &config, nil
}

// ApplyEnvironment overrides config with TUNNELMAN_* variables and the CLOUDFLARE_* credentials.
// Variables that are not set leave the current values untouched.
func ApplyEnvironment(config *Config) error {
	if err := envconfig.Process(EnvPrefix, config); err != nil {
		return errors.NewValidationError("failed to read environment configuration", err)
	}
	if err := envconfig.Process(CloudflareEnvPrefix, &config.Cloudflare); err != nil {
		return errors.NewValidationError("failed to read cloudflare environment configuration", err)
	}
	return nil
}

func setConfigDefaults(config *Config) error {
	if config.Supervisor.BinaryPath == "" {
		config.Supervisor.BinaryPath = "cloudflared"
	}
	if config.Supervisor.GracefulTimeout == 0 {
		config.Supervisor.GracefulTimeout = 10 * time.Second
	}
	if config.Supervisor.LogBufferLines == 0 {
		config.Supervisor.LogBufferLines = 1000
	}
	if config.Supervisor.LogDrainTimeout == 0 {
		config.Supervisor.LogDrainTimeout = 2 * time.Second
	}
	if config.Supervisor.StopAllConcurrency == 0 {
		config.Supervisor.StopAllConcurrency = 4
	}

	if config.Server.ListenAddress == "" {
		port := config.Server.Port
		if port == 0 {
			port = DefaultPort
		}
		config.Server.ListenAddress = ":" + strconv.Itoa(port)
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	if config.Cloudflare.BaseURL == "" {
		config.Cloudflare.BaseURL = DefaultCloudflareBaseURL
	}
	if config.Cloudflare.RequestTimeout == 0 {
		config.Cloudflare.RequestTimeout = 30 * time.Second
	}

	return nil
}

// ValidateConfig validates a configuration after defaults have been applied
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateSupervisorConfig(&config.Supervisor); err != nil {
		return errors.NewValidationError("invalid supervisor configuration", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return errors.NewValidationError("invalid server configuration", err)
	}
	if err := validateLoggingConfig(&config.Logging); err != nil {
		return errors.NewValidationError("invalid logging configuration", err)
	}
	if err := validateCloudflareConfig(&config.Cloudflare); err != nil {
		return errors.NewValidationError("invalid cloudflare configuration", err)
	}

	return nil
}

func validateSupervisorConfig(config *SupervisorConfig) error {
	if strings.TrimSpace(config.BinaryPath) == "" {
		return errors.NewValidationError("binary_path is required", nil)
	}
	if config.GracefulTimeout < 0 {
		return errors.NewValidationError("graceful_timeout must be positive", nil).
			WithContext("graceful_timeout", config.GracefulTimeout.String())
	}
	if config.LogBufferLines < 1 || config.LogBufferLines > 100000 {
		return errors.NewValidationError("log_buffer_lines must be between 1 and 100000", nil).
			WithContext("log_buffer_lines", config.LogBufferLines)
	}
	if config.LogDrainTimeout < 0 {
		return errors.NewValidationError("log_drain_timeout must be positive", nil).
			WithContext("log_drain_timeout", config.LogDrainTimeout.String())
	}
	if config.StopAllConcurrency < 1 {
		return errors.NewValidationError("stop_all_concurrency must be at least 1", nil).
			WithContext("stop_all_concurrency", config.StopAllConcurrency)
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return errors.NewValidationError(fmt.Sprintf("invalid port: %d", config.Port), nil)
	}
	if _, port, err := net.SplitHostPort(config.ListenAddress); err != nil || port == "" {
		return errors.NewValidationError("invalid listen_address", err).WithContext("listen_address", config.ListenAddress)
	}
	if config.ShutdownTimeout < 0 {
		return errors.NewValidationError("shutdown_timeout must be positive", nil)
	}
	return nil
}

func validateLoggingConfig(config *LoggingConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown log level: %s", config.Level), nil)
	}
	if config.MaxSizeMB < 0 || config.MaxBackups < 0 {
		return errors.NewValidationError("log rotation limits must not be negative", nil)
	}
	return nil
}

func validateCloudflareConfig(config *CloudflareConfig) error {
	parsed, err := url.Parse(config.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.NewValidationError("invalid base_url", err).WithContext("base_url", config.BaseURL)
	}
	if config.RequestTimeout < 0 {
		return errors.NewValidationError("request_timeout must be positive", nil)
	}
	return nil
}

// ConfigSummary is a loggable view of the configuration with credentials masked
type ConfigSummary struct {
	BinaryPath           string `json:"binary_path"`
	GracefulTimeout      string `json:"graceful_timeout"`
	LogBufferLines       int    `json:"log_buffer_lines"`
	ListenAddress        string `json:"listen_address"`
	LogLevel             string `json:"log_level"`
	CloudflareConfigured bool   `json:"cloudflare_configured"`
	CloudflareAccountID  string `json:"cloudflare_account_id,omitempty"`
	CloudflareZoneID     string `json:"cloudflare_zone_id,omitempty"`
	Error                string `json:"error,omitempty"`
}

func GetConfigSummary(config *Config) ConfigSummary {
	if config == nil {
		return ConfigSummary{Error: "configuration is nil"}
	}
	return ConfigSummary{
		BinaryPath:           config.Supervisor.BinaryPath,
		GracefulTimeout:      config.Supervisor.GracefulTimeout.String(),
		LogBufferLines:       config.Supervisor.LogBufferLines,
		ListenAddress:        config.Server.ListenAddress,
		LogLevel:             config.Logging.Level,
		CloudflareConfigured: config.Cloudflare.Configured(),
		CloudflareAccountID:  mask(config.Cloudflare.AccountID),
		CloudflareZoneID:     mask(config.Cloudflare.ZoneID),
	}
}

func mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-4)
}
