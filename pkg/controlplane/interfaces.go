package controlplane

import (
	"context"

	"github.com/core-tools/hsu-tunnelman-go/pkg/cloudflare"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logcollection"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"
)

// Supervisor is the part of tunnelprocess.Supervisor the HTTP layer drives
type Supervisor interface {
	Start(ctx context.Context, token, tunnelID, name string) (tunnelprocess.StartResult, error)
	Stop(ctx context.Context, tunnelID string) (tunnelprocess.StopResult, error)
	Status(tunnelID string) tunnelprocess.StatusResult
	List() []tunnelprocess.TunnelSummary
	StopAll(ctx context.Context) tunnelprocess.StopAllResult
	GetLogs(tunnelID string, limit int) []string
	LogStatus(tunnelID string) (*logcollection.TunnelLogStatus, bool)
}

// CloudAPI is implemented by *cloudflare.Client
type CloudAPI interface {
	VerifyCredentials(ctx context.Context) (bool, error)
	ZoneName(ctx context.Context) (string, error)
	ListTunnels(ctx context.Context) ([]cloudflare.Tunnel, error)
	TunnelToken(ctx context.Context, tunnelID string) (string, error)
	DeleteTunnel(ctx context.Context, tunnelID string) error
	SetupSubdomainTunnel(ctx context.Context, request cloudflare.SetupRequest) (*cloudflare.SetupResult, error)
	CleanupSubdomain(ctx context.Context, subdomain string) (*cloudflare.CleanupResult, error)
	VerifySetup(ctx context.Context, subdomain string) (*cloudflare.Verification, error)
}

var (
	_ Supervisor = (*tunnelprocess.Supervisor)(nil)
	_ CloudAPI   = (*cloudflare.Client)(nil)
)
