package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-tunnelman-go/pkg/cloudflare"
	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logcollection"
	"github.com/core-tools/hsu-tunnelman-go/pkg/logging"
	"github.com/core-tools/hsu-tunnelman-go/pkg/metrics"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupervisor struct {
	mu       sync.Mutex
	running  map[string]string // id -> token
	order    []string
	startErr error
	logs     map[string][]string

	// stopDelay stands in for the graceful window; a ctx ending first forces the stop
	stopDelay time.Duration
	stops     []tunnelprocess.StopResult
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{running: make(map[string]string), logs: make(map[string][]string)}
}

func (f *fakeSupervisor) Start(ctx context.Context, token, tunnelID, name string) (tunnelprocess.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return tunnelprocess.StartResult{}, f.startErr
	}
	if _, ok := f.running[tunnelID]; ok {
		return tunnelprocess.StartResult{}, errors.NewConflictError("tunnel is already running", nil)
	}
	if name == "" {
		name = tunnelID
	}
	f.running[tunnelID] = token
	f.order = append(f.order, tunnelID)
	return tunnelprocess.StartResult{TunnelID: tunnelID, Name: name, PID: 4242, Message: "Tunnel " + name + " started"}, nil
}

func (f *fakeSupervisor) Stop(ctx context.Context, tunnelID string) (tunnelprocess.StopResult, error) {
	f.mu.Lock()
	delay := f.stopDelay
	f.mu.Unlock()

	forced := false
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			forced = true
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.running[tunnelID]; !ok {
		return tunnelprocess.StopResult{}, errors.NewNotFoundError("tunnel is not running", nil)
	}
	delete(f.running, tunnelID)
	result := tunnelprocess.StopResult{TunnelID: tunnelID, Message: "Tunnel stopped", Forced: forced}
	f.stops = append(f.stops, result)
	return result, nil
}

func (f *fakeSupervisor) completedStops() []tunnelprocess.StopResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tunnelprocess.StopResult(nil), f.stops...)
}

func (f *fakeSupervisor) Status(tunnelID string) tunnelprocess.StatusResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.running[tunnelID]
	if !ok {
		return tunnelprocess.StatusResult{Status: tunnelprocess.StatusStopped}
	}
	uptime := 12
	return tunnelprocess.StatusResult{
		Running:     true,
		Status:      tunnelprocess.StatusRunning,
		PID:         4242,
		Uptime:      &uptime,
		CommandLine: []string{"cloudflared", "tunnel", "--token", token},
	}
}

func (f *fakeSupervisor) List() []tunnelprocess.TunnelSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	summaries := []tunnelprocess.TunnelSummary{}
	for _, id := range f.order {
		if _, ok := f.running[id]; ok {
			summaries = append(summaries, tunnelprocess.TunnelSummary{TunnelID: id, Name: id, PID: 4242, Status: tunnelprocess.StatusRunning})
		}
	}
	return summaries
}

func (f *fakeSupervisor) StopAll(ctx context.Context) tunnelprocess.StopAllResult {
	result := tunnelprocess.StopAllResult{Results: []tunnelprocess.StopAllItem{}}
	for _, summary := range f.List() {
		_, err := f.Stop(ctx, summary.TunnelID)
		result.Results = append(result.Results, tunnelprocess.StopAllItem{TunnelID: summary.TunnelID, Success: err == nil})
		if err == nil {
			result.StoppedCount++
		}
	}
	return result
}

func (f *fakeSupervisor) GetLogs(tunnelID string, limit int) []string {
	lines := f.logs[tunnelID]
	if limit > 0 && len(lines) > limit {
		return lines[len(lines)-limit:]
	}
	return lines
}

func (f *fakeSupervisor) LogStatus(tunnelID string) (*logcollection.TunnelLogStatus, bool) {
	lines, ok := f.logs[tunnelID]
	if !ok {
		return nil, false
	}
	return &logcollection.TunnelLogStatus{TunnelID: tunnelID, LinesProcessed: int64(len(lines)), BufferedLines: len(lines)}, true
}

type fakeCloud struct {
	tunnels  []cloudflare.Tunnel
	tokens   map[string]string
	deleted  []string
	setup    []cloudflare.SetupRequest
	setupErr error
	valid    bool
}

func (f *fakeCloud) VerifyCredentials(ctx context.Context) (bool, error) { return f.valid, nil }

func (f *fakeCloud) ZoneName(ctx context.Context) (string, error) { return "example.com", nil }

func (f *fakeCloud) ListTunnels(ctx context.Context) ([]cloudflare.Tunnel, error) {
	return f.tunnels, nil
}

func (f *fakeCloud) TunnelToken(ctx context.Context, tunnelID string) (string, error) {
	token, ok := f.tokens[tunnelID]
	if !ok {
		return "", errors.NewNotFoundError("cloudflare resource not found", nil)
	}
	return token, nil
}

func (f *fakeCloud) DeleteTunnel(ctx context.Context, tunnelID string) error {
	f.deleted = append(f.deleted, tunnelID)
	return nil
}

func (f *fakeCloud) SetupSubdomainTunnel(ctx context.Context, request cloudflare.SetupRequest) (*cloudflare.SetupResult, error) {
	if f.setupErr != nil {
		return nil, f.setupErr
	}
	f.setup = append(f.setup, request)
	tunnel := &cloudflare.Tunnel{ID: "tun-1", Name: request.TunnelName, Token: "tok-1"}
	return &cloudflare.SetupResult{
		Tunnel:     tunnel,
		DNS:        &cloudflare.DNSRecord{ID: "dns-1", Type: "CNAME", Name: request.Subdomain + ".example.com", Content: "tun-1.cfargotunnel.com", Proxied: true, TTL: 1},
		Hostname:   request.Subdomain + ".example.com",
		Subdomain:  request.Subdomain,
		ServiceURL: request.ServiceURL,
	}, nil
}

func (f *fakeCloud) CleanupSubdomain(ctx context.Context, subdomain string) (*cloudflare.CleanupResult, error) {
	return &cloudflare.CleanupResult{Subdomain: subdomain, DeletedDNSRecords: 1, DeletedTunnels: 1}, nil
}

func (f *fakeCloud) VerifySetup(ctx context.Context, subdomain string) (*cloudflare.Verification, error) {
	return &cloudflare.Verification{Subdomain: subdomain, Hostname: subdomain + ".example.com"}, nil
}

func createTestServer(t *testing.T, cloud CloudAPI) (*httptest.Server, *fakeSupervisor) {
	t.Helper()
	supervisor := newFakeSupervisor()
	server := NewServer(Options{
		Supervisor:  supervisor,
		Cloud:       cloud,
		Credentials: cloudflare.Credentials{APIToken: "t", ZoneID: "z"},
		LocalIP:     func() string { return "10.0.0.5" },
	}, logging.NewNullLogger())

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	return httpServer, supervisor
}

func doRequest(t *testing.T, method, url string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestHealth(t *testing.T) {
	server, _ := createTestServer(t, nil)

	status, body := doRequest(t, http.MethodGet, server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestCloudEndpoints_RequireConfiguration(t *testing.T) {
	server, _ := createTestServer(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/tunnels"},
		{http.MethodPost, "/api/tunnels"},
		{http.MethodDelete, "/api/tunnels/abc"},
		{http.MethodPost, "/api/tunnels/abc/start"},
		{http.MethodPost, "/api/tunnels/cleanup"},
		{http.MethodPost, "/api/subdomains/cleanup"},
		{http.MethodGet, "/api/status/app"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, body := doRequest(t, tt.method, server.URL+tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, "Configuration not available", body["error"])
		})
	}
}

func TestGetConfig(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{valid: true})

	status, body := doRequest(t, http.MethodGet, server.URL+"/api/config", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "example.com", body["zone_name"])
	assert.Equal(t, "10.0.0.5", body["local_ip"])
	assert.Equal(t, true, body["has_api_token"])
	assert.Equal(t, false, body["has_account_id"])

	unconfigured, _ := createTestServer(t, nil)
	_, body = doRequest(t, http.MethodGet, unconfigured.URL+"/api/config", nil)
	assert.Equal(t, false, body["configured"])
	assert.Nil(t, body["zone_name"])
}

func TestSaveConfig_EnablesCloudEndpoints(t *testing.T) {
	var (
		mu    sync.Mutex
		built []cloudflare.Credentials
	)
	builtCredentials := func() []cloudflare.Credentials {
		mu.Lock()
		defer mu.Unlock()
		return append([]cloudflare.Credentials(nil), built...)
	}
	server := httptest.NewServer(NewServer(Options{
		Supervisor: newFakeSupervisor(),
		NewCloud: func(credentials cloudflare.Credentials) CloudAPI {
			mu.Lock()
			defer mu.Unlock()
			built = append(built, credentials)
			return &fakeCloud{valid: credentials.APIToken == "good"}
		},
		LocalIP: func() string { return "10.0.0.5" },
	}, logging.NewNullLogger()).Handler())
	defer server.Close()

	status, _ := doRequest(t, http.MethodGet, server.URL+"/api/tunnels", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/config", map[string]string{"api_token": "good", "zone_id": "z"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "All fields are required", body["error"])
	assert.Empty(t, builtCredentials())

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/config", map[string]string{"api_token": "bad", "zone_id": "z", "account_id": "a"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/config", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["configured"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/config", map[string]string{"api_token": " good ", "zone_id": "z", "account_id": "a"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Configuration saved successfully", body["message"])
	assert.Equal(t, "example.com", body["zone_name"])
	saved := builtCredentials()
	require.Len(t, saved, 2)
	assert.Equal(t, cloudflare.Credentials{APIToken: "good", ZoneID: "z", AccountID: "a"}, saved[1])

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/config", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["configured"])
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, true, body["has_account_id"])

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/tunnels", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "tunnels")
}

func TestCreateTunnel_AutoStarts(t *testing.T) {
	cloud := &fakeCloud{}
	server, supervisor := createTestServer(t, cloud)

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{"subdomain": "app", "port": 3000})
	require.Equal(t, http.StatusOK, status)

	require.Len(t, cloud.setup, 1)
	assert.Equal(t, "http://10.0.0.5:3000", cloud.setup[0].ServiceURL)
	assert.Equal(t, "app-tunnel", cloud.setup[0].TunnelName)

	assert.Equal(t, "app.example.com", body["subdomain"])
	assert.Equal(t, "cloudflared tunnel --token tok-1", body["cloudflared_command"])
	assert.Equal(t, true, body["setup_complete"])
	assert.Equal(t, true, body["auto_started"])
	startResult := body["start_result"].(map[string]interface{})
	assert.Equal(t, true, startResult["success"])
	assert.Equal(t, "tun-1", startResult["tunnel_id"])

	assert.Equal(t, "tok-1", supervisor.running["tun-1"])
}

func TestCreateTunnel_Options(t *testing.T) {
	cloud := &fakeCloud{}
	server, supervisor := createTestServer(t, cloud)

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{
		"subdomain": "web", "port": 8080, "use_local_ip": false, "auto_start": false,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "http://localhost:8080", cloud.setup[0].ServiceURL)
	assert.Equal(t, false, body["auto_started"])
	assert.Nil(t, body["start_result"])
	assert.Empty(t, supervisor.running)
}

func TestCreateTunnel_StartFailureIsReported(t *testing.T) {
	server, supervisor := createTestServer(t, &fakeCloud{})
	supervisor.startErr = errors.NewExecutableNotFoundError("cloudflared not found", nil)

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{"subdomain": "app", "port": 3000})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["auto_started"])
	startResult := body["start_result"].(map[string]interface{})
	assert.Equal(t, false, startResult["success"])
	assert.Equal(t, "binary_not_found", startResult["kind"])
}

func TestCreateTunnel_Validation(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{})

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{"subdomain": "app"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Subdomain and port are required", body["error"])

	status, _ = doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{"subdomain": "app", "port": 70000})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCreateTunnel_UpstreamFailure(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{setupErr: errors.NewNetworkError("cloudflare API returned 500", nil)})

	status, _ := doRequest(t, http.MethodPost, server.URL+"/api/tunnels", map[string]interface{}{"subdomain": "app", "port": 3000})
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestStartStopTunnel(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{tokens: map[string]string{"tun-9": "secret-token"}})

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels/tun-9/start", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(4242), body["pid"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/tun-9/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_running", body["kind"])

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/tunnels/tun-9/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, []interface{}{"cloudflared", "tunnel", "--token", "***"}, body["command_line"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/tun-9/stop", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/tun-9/stop", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_running", body["kind"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/unknown/start", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Tunnel not found", body["error"])
}

func TestStop_OutlivesClientDisconnect(t *testing.T) {
	server, supervisor := createTestServer(t, nil)
	_, _ = supervisor.Start(context.Background(), "tok", "abc", "")
	_, _ = supervisor.Start(context.Background(), "tok", "def", "")
	supervisor.mu.Lock()
	supervisor.stopDelay = 300 * time.Millisecond
	supervisor.mu.Unlock()

	for _, path := range []string{"/api/tunnels/abc/stop", "/api/tunnels/stop-all"} {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.URL+path, nil)
		require.NoError(t, err)
		_, err = http.DefaultClient.Do(req)
		cancel()
		require.Error(t, err)
	}

	require.Eventually(t, func() bool {
		return len(supervisor.completedStops()) == 2
	}, 5*time.Second, 10*time.Millisecond)

	for _, stop := range supervisor.completedStops() {
		assert.False(t, stop.Forced, "tunnel %s was forced", stop.TunnelID)
	}
	assert.Empty(t, supervisor.List())
}

func TestStartTunnel_MissingToken(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{tokens: map[string]string{"tun-2": ""}})

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels/tun-2/start", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Tunnel token not available", body["error"])
}

func TestRunningLogsAndStopAll(t *testing.T) {
	server, supervisor := createTestServer(t, nil)
	ctx := context.Background()
	_, _ = supervisor.Start(ctx, "a", "t1", "one")
	_, _ = supervisor.Start(ctx, "b", "t2", "two")
	supervisor.logs["t1"] = []string{"[10:00:00] a", "[10:00:01] b", "[10:00:02] c"}

	_, body := doRequest(t, http.MethodGet, server.URL+"/api/tunnels/running", nil)
	running := body["running_tunnels"].([]interface{})
	require.Len(t, running, 2)
	assert.Equal(t, "t1", running[0].(map[string]interface{})["tunnel_id"])

	_, body = doRequest(t, http.MethodGet, server.URL+"/api/tunnels/t1/logs?lines=2", nil)
	assert.Equal(t, []interface{}{"[10:00:01] b", "[10:00:02] c"}, body["logs"])
	capture := body["capture"].(map[string]interface{})
	assert.Equal(t, float64(3), capture["lines_processed"])

	_, body = doRequest(t, http.MethodGet, server.URL+"/api/tunnels/missing/logs", nil)
	assert.Equal(t, []interface{}{}, body["logs"])
	assert.NotContains(t, body, "capture")

	status, _ := doRequest(t, http.MethodGet, server.URL+"/api/tunnels/t1/logs?lines=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	_, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/stop-all", nil)
	assert.Equal(t, float64(2), body["stopped_count"])
	assert.Len(t, body["results"], 2)
	assert.Empty(t, supervisor.List())
}

func TestCleanupTunnels_SkipsRunning(t *testing.T) {
	cloud := &fakeCloud{tunnels: []cloudflare.Tunnel{{ID: "t1", Name: "live"}, {ID: "t2", Name: "stale"}, {ID: "t3"}}}
	server, supervisor := createTestServer(t, cloud)
	_, _ = supervisor.Start(context.Background(), "tok", "t1", "live")

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/tunnels/cleanup", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Confirmation required", body["error"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/tunnels/cleanup", map[string]bool{"confirm": true})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["deleted_count"])
	assert.Equal(t, "Cleaned up 2 tunnels", body["message"])
	assert.Equal(t, []string{"t2", "t3"}, cloud.deleted)
}

func TestDeleteTunnel_StopsLocalProcess(t *testing.T) {
	cloud := &fakeCloud{}
	server, supervisor := createTestServer(t, cloud)
	_, _ = supervisor.Start(context.Background(), "tok", "t1", "")

	status, body := doRequest(t, http.MethodDelete, server.URL+"/api/tunnels/t1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Tunnel deleted successfully", body["message"])
	assert.Equal(t, []string{"t1"}, cloud.deleted)
	assert.Empty(t, supervisor.List())
}

func TestSubdomainEndpoints(t *testing.T) {
	server, _ := createTestServer(t, &fakeCloud{})

	status, body := doRequest(t, http.MethodPost, server.URL+"/api/subdomains/cleanup", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Subdomain is required", body["error"])

	status, body = doRequest(t, http.MethodPost, server.URL+"/api/subdomains/cleanup", map[string]string{"subdomain": "app"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cleaned up subdomain: app", body["message"])

	status, body = doRequest(t, http.MethodGet, server.URL+"/api/status/app", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "app.example.com", body["hostname"])
	assert.Equal(t, false, body["accessible"])
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewMetricsCollector()
	registry.MustRegister(collector)
	collector.TunnelStarted(metrics.StartSucceeded)

	server := httptest.NewServer(NewServer(Options{Supervisor: newFakeSupervisor(), Gatherer: registry}, logging.NewNullLogger()).Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, buf.String(), `tunnelman_tunnel_starts_total{result="success"} 1`)
}

func TestRedactCommandLine(t *testing.T) {
	assert.Nil(t, redactCommandLine(nil))
	original := []string{"cloudflared", "tunnel", "--token", "abc"}
	assert.Equal(t, []string{"cloudflared", "tunnel", "--token", "***"}, redactCommandLine(original))
	assert.Equal(t, "abc", original[3])
}
