package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
	"github.com/core-tools/hsu-tunnelman-go/pkg/tunnelprocess"
)

type errorResponse struct {
	Error string                  `json:"error"`
	Kind  tunnelprocess.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeSupervisorError maps a supervisor failure to its HTTP status
func writeSupervisorError(w http.ResponseWriter, err error) {
	kind := tunnelprocess.KindOf(err)
	writeJSON(w, supervisorStatus(kind), errorResponse{Error: err.Error(), Kind: kind})
}

func supervisorStatus(kind tunnelprocess.ErrorKind) int {
	switch kind {
	case tunnelprocess.KindAlreadyRunning:
		return http.StatusConflict
	case tunnelprocess.KindNotRunning:
		return http.StatusNotFound
	case tunnelprocess.KindBinaryNotFound:
		return http.StatusFailedDependency
	case tunnelprocess.KindInvalidRequest:
		return http.StatusBadRequest
	case tunnelprocess.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeCloudError maps a Cloudflare API failure to its HTTP status
func writeCloudError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.IsValidationError(err):
		status = http.StatusBadRequest
	case errors.IsNotFoundError(err):
		status = http.StatusNotFound
	case errors.IsInternalError(err):
		status = http.StatusInternalServerError
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewValidationError("invalid JSON body", err)
	}
	return nil
}

// redactCommandLine hides the value following --token
func redactCommandLine(commandLine []string) []string {
	if commandLine == nil {
		return nil
	}
	redacted := make([]string, len(commandLine))
	copy(redacted, commandLine)
	for i := 0; i < len(redacted)-1; i++ {
		if redacted[i] == "--token" {
			redacted[i+1] = "***"
		}
	}
	return redacted
}
