package main

import (
	"context"
	"fmt"
	"os"

	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging/zaplogging"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelmanagement"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Config      string `long:"config" short:"c" description:"Configuration file path (YAML), optional"`
	Listen      string `long:"listen" short:"l" description:"Control plane listen address, overrides the configuration"`
	LogLevel    string `long:"log-level" description:"Log level: debug, info, warn, error"`
	RunDuration int    `long:"run-duration" description:"Duration in seconds to run (debug feature)"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-server , ", module)
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := tunnelmanagement.LoadRunConfig(tunnelmanagement.RunOptions{
		ConfigFile:    opts.Config,
		ListenAddress: opts.Listen,
		LogLevel:      opts.LogLevel,
	})
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := zaplogging.New(zaplogging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := logging.NewLogger(logPrefix("tunnelman"), zapLogger.Funcs())

	err = tunnelmanagement.Run(context.Background(), cfg, opts.RunDuration, logger)
	if err != nil {
		logger.Errorf("Failed to run: %v", err)
		zapLogger.Sync()
		os.Exit(1)
	}
}
