package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-tunnelman-go/pkg/cloudflare"
	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"

	"github.com/go-chi/chi/v5"
)

const defaultLogLines = 50

type configStatus struct {
	Configured   bool    `json:"configured"`
	Valid        bool    `json:"valid"`
	ZoneName     *string `json:"zone_name"`
	LocalIP      string  `json:"local_ip"`
	HasAPIToken  bool    `json:"has_api_token"`
	HasZoneID    bool    `json:"has_zone_id"`
	HasAccountID bool    `json:"has_account_id"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	credentials := s.currentCredentials()
	status := configStatus{
		Configured:   cloud != nil,
		LocalIP:      s.localIP(),
		HasAPIToken:  credentials.APIToken != "",
		HasZoneID:    credentials.ZoneID != "",
		HasAccountID: credentials.AccountID != "",
	}

	if cloud != nil {
		valid, err := cloud.VerifyCredentials(r.Context())
		if err != nil {
			s.logger.Errorf("Config validation error: %v", err)
		}
		status.Valid = valid
		if valid {
			if zoneName, err := cloud.ZoneName(r.Context()); err == nil {
				status.ZoneName = &zoneName
			}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

type saveConfigRequest struct {
	APIToken  string `json:"api_token"`
	ZoneID    string `json:"zone_id"`
	AccountID string `json:"account_id"`
}

// handleSaveConfig verifies the posted credentials and installs them for the cloud endpoints
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var request saveConfigRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	credentials := cloudflare.Credentials{
		APIToken:  strings.TrimSpace(request.APIToken),
		ZoneID:    strings.TrimSpace(request.ZoneID),
		AccountID: strings.TrimSpace(request.AccountID),
	}
	if !credentials.Valid() {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}

	cloud := s.newCloud(credentials)
	valid, err := cloud.VerifyCredentials(r.Context())
	if err != nil {
		s.logger.Errorf("Error saving config: %v", err)
		writeCloudError(w, err)
		return
	}
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	zoneName, err := cloud.ZoneName(r.Context())
	if err != nil {
		s.logger.Errorf("Error saving config: %v", err)
		writeCloudError(w, err)
		return
	}

	s.setCloud(cloud, credentials)
	s.logger.Infof("Cloudflare configuration saved, zone: %s", zoneName)

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Configuration saved successfully",
		"zone_name": zoneName,
	})
}

func (s *Server) handleNetworkInfo(w http.ResponseWriter, r *http.Request) {
	primary := s.localIP()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"primary_ip": primary,
		"interfaces": ListInterfaceAddresses(primary),
	})
}

func (s *Server) handleListTunnels(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}

	tunnels, err := cloud.ListTunnels(r.Context())
	if err != nil {
		s.logger.Errorf("Error listing tunnels: %v", err)
		writeCloudError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tunnels": tunnels})
}

type createTunnelRequest struct {
	Subdomain  string `json:"subdomain"`
	Port       int    `json:"port"`
	UseLocalIP *bool  `json:"use_local_ip"`
	AutoStart  *bool  `json:"auto_start"`
}

type startResponse struct {
	Success bool `json:"success"`
	tunnelprocess.StartResult
	Error string                  `json:"error,omitempty"`
	Kind  tunnelprocess.ErrorKind `json:"kind,omitempty"`
}

type createTunnelResponse struct {
	Tunnel             *cloudflare.Tunnel    `json:"tunnel"`
	DNS                *cloudflare.DNSRecord `json:"dns"`
	Subdomain          string                `json:"subdomain"`
	ServiceURL         string                `json:"service_url"`
	CloudflaredCommand string                `json:"cloudflared_command"`
	SetupComplete      bool                  `json:"setup_complete"`
	AutoStarted        bool                  `json:"auto_started"`
	StartResult        *startResponse        `json:"start_result,omitempty"`
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// handleCreateTunnel creates a tunnel for the subdomain pointing at a local port and optionally runs it
func (s *Server) handleCreateTunnel(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}

	var request createTunnelRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	request.Subdomain = strings.TrimSpace(request.Subdomain)
	if request.Subdomain == "" || request.Port == 0 {
		writeError(w, http.StatusBadRequest, "Subdomain and port are required")
		return
	}
	if request.Port < 0 || request.Port > 65535 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid port: %d", request.Port))
		return
	}

	host := "localhost"
	if boolOr(request.UseLocalIP, true) {
		host = s.localIP()
	}
	serviceURL := fmt.Sprintf("http://%s:%d", host, request.Port)
	tunnelName := cloudflare.TunnelNameFor(request.Subdomain)

	setup, err := cloud.SetupSubdomainTunnel(r.Context(), cloudflare.SetupRequest{
		Subdomain:  request.Subdomain,
		ServiceURL: serviceURL,
		TunnelName: tunnelName,
	})
	if err != nil {
		s.logger.Errorf("Error creating tunnel: %v", err)
		writeCloudError(w, err)
		return
	}

	token := setup.Tunnel.Token
	displayToken := token
	if displayToken == "" {
		displayToken = "TOKEN_NOT_AVAILABLE"
	}

	response := createTunnelResponse{
		Tunnel:             setup.Tunnel,
		DNS:                setup.DNS,
		Subdomain:          setup.Hostname,
		ServiceURL:         serviceURL,
		CloudflaredCommand: fmt.Sprintf("%s tunnel --token %s", s.binaryPath, displayToken),
		SetupComplete:      true,
	}

	if boolOr(request.AutoStart, true) && token != "" {
		started := s.startTunnel(r, token, setup.Tunnel.ID, tunnelName)
		response.AutoStarted = started.Success
		response.StartResult = &started
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) startTunnel(r *http.Request, token, tunnelID, name string) startResponse {
	result, err := s.supervisor.Start(r.Context(), token, tunnelID, name)
	if err != nil {
		return startResponse{Success: false, StartResult: tunnelprocess.StartResult{TunnelID: tunnelID, Name: name}, Error: err.Error(), Kind: tunnelprocess.KindOf(err)}
	}
	return startResponse{Success: true, StartResult: result}
}

// handleDeleteTunnel stops the local process if any, then deletes the tunnel in the account
func (s *Server) handleDeleteTunnel(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}
	tunnelID := chi.URLParam(r, "id")

	if _, err := s.supervisor.Stop(stopContext(r), tunnelID); err != nil && tunnelprocess.KindOf(err) != tunnelprocess.KindNotRunning {
		s.logger.Warnf("Failed to stop tunnel before deleting it, id: %s, error: %v", tunnelID, err)
	}

	if err := cloud.DeleteTunnel(r.Context(), tunnelID); err != nil {
		s.logger.Errorf("Error deleting tunnel %s: %v", tunnelID, err)
		writeCloudError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tunnel deleted successfully"})
}

func (s *Server) handleStartTunnel(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}
	tunnelID := chi.URLParam(r, "id")

	token, err := cloud.TunnelToken(r.Context(), tunnelID)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, "Tunnel not found")
			return
		}
		s.logger.Errorf("Error fetching token for tunnel %s: %v", tunnelID, err)
		writeCloudError(w, err)
		return
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "Tunnel token not available")
		return
	}

	name := r.URL.Query().Get("name")
	result, err := s.supervisor.Start(r.Context(), token, tunnelID, name)
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Success: true, StartResult: result})
}

// stopContext keeps the request's values but not its cancellation; a stop always
// gets the supervisor's full graceful window
func stopContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) handleStopTunnel(w http.ResponseWriter, r *http.Request) {
	result, err := s.supervisor.Stop(stopContext(r), chi.URLParam(r, "id"))
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"tunnel_id": result.TunnelID,
		"message":   result.Message,
		"forced":    result.Forced,
	})
}

func (s *Server) handleTunnelStatus(w http.ResponseWriter, r *http.Request) {
	status := s.supervisor.Status(chi.URLParam(r, "id"))
	status.CommandLine = redactCommandLine(status.CommandLine)
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleTunnelLogs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if value := r.URL.Query().Get("lines"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid lines parameter")
			return
		}
		lines = parsed
	}

	tunnelID := chi.URLParam(r, "id")
	logs := s.supervisor.GetLogs(tunnelID, lines)
	if logs == nil {
		logs = []string{}
	}
	response := map[string]interface{}{"logs": logs}
	if capture, ok := s.supervisor.LogStatus(tunnelID); ok {
		response["capture"] = capture
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleRunningTunnels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"running_tunnels": s.supervisor.List()})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	result := s.supervisor.StopAll(stopContext(r))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopped_count": result.StoppedCount,
		"results":       result.Results,
	})
}

type cleanupTunnelsRequest struct {
	Confirm bool `json:"confirm"`
}

// handleCleanupTunnels deletes every tunnel in the account that is not running locally
func (s *Server) handleCleanupTunnels(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}

	var request cleanupTunnelsRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !request.Confirm {
		writeError(w, http.StatusBadRequest, "Confirmation required")
		return
	}

	tunnels, err := cloud.ListTunnels(r.Context())
	if err != nil {
		s.logger.Errorf("Error during cleanup: %v", err)
		writeCloudError(w, err)
		return
	}

	running := make(map[string]bool)
	for _, summary := range s.supervisor.List() {
		running[summary.TunnelID] = true
	}

	deleted := 0
	failures := []string{}
	for _, tunnel := range tunnels {
		if running[tunnel.ID] {
			continue
		}
		name := tunnel.Name
		if name == "" {
			name = "Unknown"
		}
		if err := cloud.DeleteTunnel(r.Context(), tunnel.ID); err != nil {
			failures = append(failures, fmt.Sprintf("Error deleting tunnel %s: %v", name, err))
			continue
		}
		deleted++
		s.logger.Infof("Cleaned up tunnel: %s (%s)", name, tunnel.ID)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"message":       fmt.Sprintf("Cleaned up %d tunnels", deleted),
		"deleted_count": deleted,
		"errors":        failures,
	})
}

type cleanupSubdomainRequest struct {
	Subdomain string `json:"subdomain"`
}

func (s *Server) handleCleanupSubdomain(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}

	var request cleanupSubdomainRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(request.Subdomain) == "" {
		writeError(w, http.StatusBadRequest, "Subdomain is required")
		return
	}

	result, err := cloud.CleanupSubdomain(r.Context(), request.Subdomain)
	if err != nil {
		s.logger.Errorf("Error cleaning up subdomain %s: %v", request.Subdomain, err)
		writeCloudError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Cleaned up subdomain: %s", request.Subdomain),
		"result":  result,
	})
}

func (s *Server) handleVerifySubdomain(w http.ResponseWriter, r *http.Request) {
	cloud := s.cloudAPI()
	if cloud == nil {
		writeError(w, http.StatusBadRequest, configNotAvailable)
		return
	}

	verification, err := cloud.VerifySetup(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		writeCloudError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verification)
}
