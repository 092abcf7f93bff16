package cloudflare

import (
	"context"
	"fmt"
	"strings"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
)

type SetupRequest struct {
	Subdomain  string
	ServiceURL string
	// Defaults to <subdomain>-tunnel
	TunnelName string
}

type SetupResult struct {
	Tunnel     *Tunnel              `json:"tunnel"`
	DNS        *DNSRecord           `json:"dns"`
	Route      *TunnelConfiguration `json:"route"`
	Hostname   string               `json:"hostname"`
	Subdomain  string               `json:"subdomain"`
	ServiceURL string               `json:"service_url"`
}

func TunnelNameFor(subdomain string) string {
	return subdomain + "-tunnel"
}

// SetupSubdomainTunnel creates a tunnel, routes the subdomain to serviceURL and publishes its DNS record.
// The tunnel is deleted again when a later step fails.
func (c *Client) SetupSubdomainTunnel(ctx context.Context, request SetupRequest) (*SetupResult, error) {
	if strings.TrimSpace(request.Subdomain) == "" {
		return nil, errors.NewValidationError("subdomain is required", nil)
	}
	if strings.TrimSpace(request.ServiceURL) == "" {
		return nil, errors.NewValidationError("service URL is required", nil)
	}
	name := request.TunnelName
	if name == "" {
		name = TunnelNameFor(request.Subdomain)
	}

	tunnel, err := c.CreateTunnel(ctx, name, "")
	if err != nil {
		return nil, err
	}

	result, err := c.completeSetup(ctx, tunnel, request)
	if err != nil {
		c.logger.Warnf("Setup of %s failed, deleting tunnel %s: %v", request.Subdomain, tunnel.ID, err)
		if deleteErr := c.DeleteTunnel(context.WithoutCancel(ctx), tunnel.ID); deleteErr != nil {
			c.logger.Errorf("Failed to delete tunnel %s after failed setup: %v", tunnel.ID, deleteErr)
		}
		return nil, err
	}

	c.logger.Infof("Tunnel ready: https://%s -> %s", result.Hostname, request.ServiceURL)
	return result, nil
}

func (c *Client) completeSetup(ctx context.Context, tunnel *Tunnel, request SetupRequest) (*SetupResult, error) {
	hostname, err := c.Hostname(ctx, request.Subdomain)
	if err != nil {
		return nil, err
	}

	route, err := c.ConfigureIngress(ctx, tunnel.ID, hostname, request.ServiceURL)
	if err != nil {
		return nil, err
	}

	record, err := c.CreateDNSRecord(ctx, request.Subdomain, tunnel.ID)
	if err != nil {
		return nil, err
	}

	return &SetupResult{
		Tunnel:     tunnel,
		DNS:        record,
		Route:      route,
		Hostname:   hostname,
		Subdomain:  request.Subdomain,
		ServiceURL: request.ServiceURL,
	}, nil
}

type CleanupResult struct {
	Subdomain         string `json:"subdomain"`
	DeletedDNSRecords int    `json:"deleted_dns_records"`
	DeletedTunnels    int    `json:"deleted_tunnels"`
}

// CleanupSubdomain removes the DNS records for the subdomain and every tunnel whose name contains it.
// Individual failures do not stop the sweep and are returned together.
func (c *Client) CleanupSubdomain(ctx context.Context, subdomain string) (*CleanupResult, error) {
	if strings.TrimSpace(subdomain) == "" {
		return nil, errors.NewValidationError("subdomain is required", nil)
	}

	result := &CleanupResult{Subdomain: subdomain}
	collection := errors.NewErrorCollection()

	records, err := c.DNSRecordsByName(ctx, subdomain)
	if err != nil {
		collection.Add(err)
	}
	for _, record := range records {
		if err := c.DeleteDNSRecord(ctx, record.ID); err != nil {
			collection.Add(err)
			continue
		}
		result.DeletedDNSRecords++
	}

	tunnels, err := c.ListTunnels(ctx)
	if err != nil {
		collection.Add(err)
	}
	for _, tunnel := range tunnels {
		if !strings.Contains(tunnel.Name, subdomain) {
			continue
		}
		if err := c.DeleteTunnel(ctx, tunnel.ID); err != nil {
			collection.Add(err)
			continue
		}
		result.DeletedTunnels++
	}

	c.logger.Infof("Cleaned up %s: %d DNS records, %d tunnels", subdomain, result.DeletedDNSRecords, result.DeletedTunnels)
	return result, collection.ToError()
}

type Verification struct {
	Subdomain       string     `json:"subdomain"`
	Hostname        string     `json:"hostname"`
	DNSRecordExists bool       `json:"dns_record_exists"`
	TunnelExists    bool       `json:"tunnel_exists"`
	Accessible      bool       `json:"accessible"`
	DNSRecord       *DNSRecord `json:"dns_record,omitempty"`
	Tunnel          *Tunnel    `json:"tunnel,omitempty"`
}

// VerifySetup reports whether the subdomain has a DNS record and a matching tunnel
func (c *Client) VerifySetup(ctx context.Context, subdomain string) (*Verification, error) {
	if strings.TrimSpace(subdomain) == "" {
		return nil, errors.NewValidationError("subdomain is required", nil)
	}

	hostname, err := c.Hostname(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	verification := &Verification{Subdomain: subdomain, Hostname: hostname}

	records, err := c.DNSRecordsByName(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		verification.DNSRecordExists = true
		verification.DNSRecord = &records[0]
	}

	tunnels, err := c.ListTunnels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tunnels {
		if strings.Contains(tunnels[i].Name, subdomain) {
			verification.TunnelExists = true
			verification.Tunnel = &tunnels[i]
			break
		}
	}

	verification.Accessible = verification.DNSRecordExists && verification.TunnelExists
	return verification, nil
}

func (v *Verification) String() string {
	return fmt.Sprintf("%s: dns=%t tunnel=%t", v.Hostname, v.DNSRecordExists, v.TunnelExists)
}
