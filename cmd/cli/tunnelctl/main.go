package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/controlplane"
	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Server  string        `long:"server" short:"s" env:"TUNNELMAN_URL" default:"http://localhost:5000" description:"Control plane base URL"`
	Timeout time.Duration `long:"timeout" default:"60s" description:"Request timeout"`
}

var options globalOptions

func client() *controlplane.Client {
	return controlplane.NewClient(options.Server, options.Timeout)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

type tunnelArgs struct {
	TunnelID string `positional-arg-name:"tunnel-id" required:"true"`
}

type startCommand struct {
	Name string     `long:"name" description:"Display name for the tunnel"`
	Args tunnelArgs `positional-args:"true"`
}

func (c *startCommand) Execute([]string) error {
	result, err := client().StartTunnel(context.Background(), c.Args.TunnelID, c.Name)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type stopCommand struct {
	Args tunnelArgs `positional-args:"true"`
}

func (c *stopCommand) Execute([]string) error {
	result, err := client().StopTunnel(context.Background(), c.Args.TunnelID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type statusCommand struct {
	Args tunnelArgs `positional-args:"true"`
}

func (c *statusCommand) Execute([]string) error {
	result, err := client().TunnelStatus(context.Background(), c.Args.TunnelID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type listCommand struct{}

func (c *listCommand) Execute([]string) error {
	tunnels, err := client().RunningTunnels(context.Background())
	if err != nil {
		return err
	}
	if len(tunnels) == 0 {
		fmt.Println("No running tunnels")
		return nil
	}
	for _, tunnel := range tunnels {
		fmt.Printf("%-38s %-24s pid=%-8d uptime=%ds\n", tunnel.TunnelID, tunnel.Name, tunnel.PID, tunnel.Uptime)
	}
	return nil
}

type logsCommand struct {
	Lines int        `long:"lines" short:"n" default:"50" description:"Number of lines, 0 for all"`
	Args  tunnelArgs `positional-args:"true"`
}

func (c *logsCommand) Execute([]string) error {
	lines, err := client().TunnelLogs(context.Background(), c.Args.TunnelID, c.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

type stopAllCommand struct{}

func (c *stopAllCommand) Execute([]string) error {
	result, err := client().StopAll(context.Background())
	if err != nil {
		return err
	}
	return printJSON(result)
}

func main() {
	parser := flags.NewParser(&options, flags.HelpFlag|flags.PassDoubleDash)

	commands := []struct {
		name, short string
		data        interface{}
	}{
		{"start", "Start a tunnel by id", &startCommand{}},
		{"stop", "Stop a running tunnel", &stopCommand{}},
		{"status", "Show a tunnel's status", &statusCommand{}},
		{"list", "List running tunnels", &listCommand{}},
		{"logs", "Show captured tunnel output", &logsCommand{}},
		{"stop-all", "Stop every running tunnel", &stopAllCommand{}},
	}
	for _, command := range commands {
		if _, err := parser.AddCommand(command.name, command.short, "", command.data); err != nil {
			fmt.Printf("Failed to register command %s: %v\n", command.name, err)
			os.Exit(1)
		}
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.IsNotFoundError(err) || errors.IsConflictError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
