package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"
)

// Client calls the supervisor endpoints of a running control plane
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) StartTunnel(ctx context.Context, tunnelID, name string) (tunnelprocess.StartResult, error) {
	path := "/api/tunnels/" + url.PathEscape(tunnelID) + "/start"
	if name != "" {
		path += "?name=" + url.QueryEscape(name)
	}
	var result tunnelprocess.StartResult
	err := c.call(ctx, http.MethodPost, path, &result)
	return result, err
}

func (c *Client) StopTunnel(ctx context.Context, tunnelID string) (tunnelprocess.StopResult, error) {
	var result tunnelprocess.StopResult
	err := c.call(ctx, http.MethodPost, "/api/tunnels/"+url.PathEscape(tunnelID)+"/stop", &result)
	return result, err
}

func (c *Client) TunnelStatus(ctx context.Context, tunnelID string) (tunnelprocess.StatusResult, error) {
	var result tunnelprocess.StatusResult
	err := c.call(ctx, http.MethodGet, "/api/tunnels/"+url.PathEscape(tunnelID)+"/status", &result)
	return result, err
}

func (c *Client) RunningTunnels(ctx context.Context) ([]tunnelprocess.TunnelSummary, error) {
	var result struct {
		RunningTunnels []tunnelprocess.TunnelSummary `json:"running_tunnels"`
	}
	err := c.call(ctx, http.MethodGet, "/api/tunnels/running", &result)
	return result.RunningTunnels, err
}

func (c *Client) TunnelLogs(ctx context.Context, tunnelID string, lines int) ([]string, error) {
	var result struct {
		Logs []string `json:"logs"`
	}
	path := "/api/tunnels/" + url.PathEscape(tunnelID) + "/logs?lines=" + strconv.Itoa(lines)
	err := c.call(ctx, http.MethodGet, path, &result)
	return result.Logs, err
}

func (c *Client) StopAll(ctx context.Context) (tunnelprocess.StopAllResult, error) {
	var result tunnelprocess.StopAllResult
	err := c.call(ctx, http.MethodPost, "/api/tunnels/stop-all", &result)
	return result, err
}

func (c *Client) call(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return errors.NewInternalError("failed to build request", err).WithContext("path", path)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewNetworkError("control plane request failed", err).WithContext("path", path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError("failed to read control plane response", err).WithContext("path", path)
	}

	if resp.StatusCode >= 400 {
		var failure errorResponse
		if json.Unmarshal(data, &failure) != nil || failure.Error == "" {
			failure.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return errorForStatus(resp.StatusCode, failure.Error).WithContext("path", path)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewNetworkError("invalid control plane response", err).WithContext("path", path)
	}
	return nil
}

func errorForStatus(status int, message string) *errors.DomainError {
	switch status {
	case http.StatusBadRequest:
		return errors.NewValidationError(message, nil)
	case http.StatusNotFound:
		return errors.NewNotFoundError(message, nil)
	case http.StatusConflict:
		return errors.NewConflictError(message, nil)
	case http.StatusFailedDependency:
		return errors.NewExecutableNotFoundError(message, nil)
	default:
		return errors.NewNetworkError(message, nil).WithContext("status", status)
	}
}
