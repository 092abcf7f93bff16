package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"

	// tunnels are reached through a proxied CNAME to <tunnel id>.cfargotunnel.com
	tunnelDomain = "cfargotunnel.com"

	catchAllService = "http_status:404"
)

type Credentials struct {
	APIToken  string
	ZoneID    string
	AccountID string
}

func (c Credentials) Valid() bool {
	return c.APIToken != "" && c.ZoneID != "" && c.AccountID != ""
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the tunnel and DNS endpoints of the Cloudflare v4 API
type Client struct {
	credentials Credentials
	baseURL     string
	httpClient  *http.Client
	logger      logging.Logger

	zoneMutex sync.Mutex
	zoneName  string
}

func NewClient(credentials Credentials, options Options, logger logging.Logger) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		credentials: credentials,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		logger:      logger,
	}
}

type Tunnel struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Status      string             `json:"status,omitempty"`
	CreatedAt   string             `json:"created_at,omitempty"`
	DeletedAt   *string            `json:"deleted_at,omitempty"`
	Token       string             `json:"token,omitempty"`
	Connections []TunnelConnection `json:"connections,omitempty"`
}

type TunnelConnection struct {
	ID       string `json:"id"`
	ColoName string `json:"colo_name"`
	OpenedAt string `json:"opened_at,omitempty"`
	OriginIP string `json:"origin_ip,omitempty"`
}

type DNSRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type IngressRule struct {
	Hostname string `json:"hostname,omitempty"`
	Service  string `json:"service"`
}

type TunnelConfiguration struct {
	Ingress []IngressRule `json:"ingress"`
}

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Success bool            `json:"success"`
	Errors  []APIError      `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

func describeErrors(apiErrors []APIError) string {
	if len(apiErrors) == 0 {
		return "unknown error"
	}
	parts := make([]string, 0, len(apiErrors))
	for _, e := range apiErrors {
		parts = append(parts, fmt.Sprintf("%d: %s", e.Code, e.Message))
	}
	return strings.Join(parts, "; ")
}

// do sends a request and decodes the result field of the response envelope into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternalError("failed to encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.NewInternalError("failed to build request", err).WithContext("path", path)
	}
	req.Header.Set("Authorization", "Bearer "+c.credentials.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCancelledError("cloudflare request cancelled", err).WithContext("path", path)
		}
		return errors.NewNetworkError("cloudflare request failed", err).WithContext("method", method).WithContext("path", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return errors.NewNetworkError("failed to read cloudflare response", err).WithContext("path", path)
	}

	var envelope apiResponse
	decodeErr := json.Unmarshal(data, &envelope)

	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFoundError("cloudflare resource not found", nil).WithContext("path", path)
	}
	if resp.StatusCode >= 400 {
		detail := http.StatusText(resp.StatusCode)
		if decodeErr == nil && len(envelope.Errors) > 0 {
			detail = describeErrors(envelope.Errors)
		}
		return errors.NewNetworkError(fmt.Sprintf("cloudflare API returned %d: %s", resp.StatusCode, detail), nil).
			WithContext("method", method).WithContext("path", path).WithContext("status", resp.StatusCode)
	}
	if decodeErr != nil {
		return errors.NewNetworkError("invalid cloudflare response", decodeErr).WithContext("path", path)
	}
	if !envelope.Success {
		return errors.NewNetworkError("cloudflare API error: "+describeErrors(envelope.Errors), nil).
			WithContext("method", method).WithContext("path", path)
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return errors.NewNetworkError("failed to decode cloudflare result", err).WithContext("path", path)
		}
	}
	return nil
}

func (c *Client) accountPath(format string, args ...interface{}) string {
	return "/accounts/" + url.PathEscape(c.credentials.AccountID) + fmt.Sprintf(format, args...)
}

func (c *Client) zonePath(format string, args ...interface{}) string {
	return "/zones/" + url.PathEscape(c.credentials.ZoneID) + fmt.Sprintf(format, args...)
}

// VerifyCredentials checks the token and that the configured zone is readable with it
func (c *Client) VerifyCredentials(ctx context.Context) (bool, error) {
	if err := c.do(ctx, http.MethodGet, "/user/tokens/verify", nil, nil, nil); err != nil {
		if errors.IsCancelledError(err) {
			return false, err
		}
		c.logger.Warnf("Cloudflare token verification failed: %v", err)
		return false, nil
	}
	if _, err := c.ZoneName(ctx); err != nil {
		if errors.IsCancelledError(err) {
			return false, err
		}
		c.logger.Warnf("Cloudflare zone lookup failed: %v", err)
		return false, nil
	}
	return true, nil
}

// ZoneName returns the domain of the configured zone. It is cached after the first lookup.
func (c *Client) ZoneName(ctx context.Context) (string, error) {
	c.zoneMutex.Lock()
	defer c.zoneMutex.Unlock()

	if c.zoneName != "" {
		return c.zoneName, nil
	}

	var zone struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, c.zonePath(""), nil, nil, &zone); err != nil {
		return "", err
	}
	if zone.Name == "" {
		return "", errors.NewNetworkError("zone has no name", nil).WithContext("zone_id", c.credentials.ZoneID)
	}
	c.zoneName = zone.Name
	return c.zoneName, nil
}

// Hostname returns <subdomain>.<zone name>
func (c *Client) Hostname(ctx context.Context, subdomain string) (string, error) {
	zoneName, err := c.ZoneName(ctx)
	if err != nil {
		return "", err
	}
	return subdomain + "." + zoneName, nil
}

// NewTunnelSecret returns a random 32 character hex secret
func NewTunnelSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateTunnel creates a remotely managed tunnel. An empty secret is generated.
func (c *Client) CreateTunnel(ctx context.Context, name, secret string) (*Tunnel, error) {
	if secret == "" {
		secret = NewTunnelSecret()
	}
	request := map[string]string{
		"name":          name,
		"tunnel_secret": secret,
		"config_src":    "cloudflare",
	}

	var tunnel Tunnel
	if err := c.do(ctx, http.MethodPost, c.accountPath("/cfd_tunnel"), nil, request, &tunnel); err != nil {
		return nil, err
	}
	c.logger.Infof("Created tunnel: %s with ID: %s", name, tunnel.ID)
	return &tunnel, nil
}

// ConfigureIngress routes hostname to serviceURL and everything else to a 404
func (c *Client) ConfigureIngress(ctx context.Context, tunnelID, hostname, serviceURL string) (*TunnelConfiguration, error) {
	configuration := TunnelConfiguration{
		Ingress: []IngressRule{
			{Hostname: hostname, Service: serviceURL},
			{Service: catchAllService},
		},
	}
	request := map[string]interface{}{"config": configuration}

	if err := c.do(ctx, http.MethodPut, c.accountPath("/cfd_tunnel/%s/configurations", url.PathEscape(tunnelID)), nil, request, nil); err != nil {
		return nil, err
	}
	c.logger.Infof("Created route for %s -> %s", hostname, serviceURL)
	return &configuration, nil
}

// CreateDNSRecord points subdomain at the tunnel with a proxied CNAME
func (c *Client) CreateDNSRecord(ctx context.Context, subdomain, tunnelID string) (*DNSRecord, error) {
	request := DNSRecord{
		Type:    "CNAME",
		Name:    subdomain,
		Content: tunnelID + "." + tunnelDomain,
		TTL:     1,
		Proxied: true,
	}

	var record DNSRecord
	if err := c.do(ctx, http.MethodPost, c.zonePath("/dns_records"), nil, request, &record); err != nil {
		return nil, err
	}
	c.logger.Infof("Created DNS record: %s -> %s", subdomain, request.Content)
	return &record, nil
}

// ListTunnels returns the account's tunnels that have not been deleted
func (c *Client) ListTunnels(ctx context.Context) ([]Tunnel, error) {
	query := url.Values{"is_deleted": []string{"false"}}

	var tunnels []Tunnel
	if err := c.do(ctx, http.MethodGet, c.accountPath("/cfd_tunnel"), query, nil, &tunnels); err != nil {
		return nil, err
	}
	if tunnels == nil {
		tunnels = []Tunnel{}
	}
	return tunnels, nil
}

func (c *Client) GetTunnel(ctx context.Context, tunnelID string) (*Tunnel, error) {
	var tunnel Tunnel
	if err := c.do(ctx, http.MethodGet, c.accountPath("/cfd_tunnel/%s", url.PathEscape(tunnelID)), nil, nil, &tunnel); err != nil {
		return nil, err
	}
	return &tunnel, nil
}

// TunnelToken returns the token the tunnel client needs to run the tunnel
func (c *Client) TunnelToken(ctx context.Context, tunnelID string) (string, error) {
	tunnel, err := c.GetTunnel(ctx, tunnelID)
	if err != nil {
		return "", err
	}
	if tunnel.Token != "" {
		return tunnel.Token, nil
	}

	var token string
	if err := c.do(ctx, http.MethodGet, c.accountPath("/cfd_tunnel/%s/token", url.PathEscape(tunnelID)), nil, nil, &token); err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.NewNotFoundError("tunnel token not available", nil).WithContext("tunnel_id", tunnelID)
	}
	return token, nil
}

func (c *Client) DeleteTunnel(ctx context.Context, tunnelID string) error {
	if err := c.do(ctx, http.MethodDelete, c.accountPath("/cfd_tunnel/%s", url.PathEscape(tunnelID)), nil, nil, nil); err != nil {
		return err
	}
	c.logger.Infof("Deleted tunnel: %s", tunnelID)
	return nil
}

// DNSRecordsByName returns the records for <subdomain>.<zone name>
func (c *Client) DNSRecordsByName(ctx context.Context, subdomain string) ([]DNSRecord, error) {
	hostname, err := c.Hostname(ctx, subdomain)
	if err != nil {
		return nil, err
	}

	var records []DNSRecord
	query := url.Values{"name": []string{hostname}}
	if err := c.do(ctx, http.MethodGet, c.zonePath("/dns_records"), query, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []DNSRecord{}
	}
	return records, nil
}

func (c *Client) DeleteDNSRecord(ctx context.Context, recordID string) error {
	if err := c.do(ctx, http.MethodDelete, c.zonePath("/dns_records/%s", url.PathEscape(recordID)), nil, nil, nil); err != nil {
		return err
	}
	c.logger.Infof("Deleted DNS record: %s", recordID)
	return nil
}
