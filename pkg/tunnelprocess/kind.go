package tunnelprocess

import (
	"github.com/core-tools/hsu-tunnelman-go/pkg/errors"
)

// ErrorKind classifies supervisor failures for callers that branch on them
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindAlreadyRunning   ErrorKind = "already_running"
	KindNotRunning       ErrorKind = "not_running"
	KindBinaryNotFound   ErrorKind = "binary_not_found"
	KindSpawnError       ErrorKind = "spawn_error"
	KindTerminationError ErrorKind = "termination_error"
	KindInvalidRequest   ErrorKind = "invalid_request"
	KindUnavailable      ErrorKind = "unavailable"
)

func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch errors.TypeOf(err) {
	case errors.ErrorTypeConflict:
		return KindAlreadyRunning
	case errors.ErrorTypeNotFound:
		return KindNotRunning
	case errors.ErrorTypeExecutableNotFound:
		return KindBinaryNotFound
	case errors.ErrorTypeProcess:
		return KindSpawnError
	case errors.ErrorTypeTermination:
		return KindTerminationError
	case errors.ErrorTypeValidation:
		return KindInvalidRequest
	default:
		return KindUnavailable
	}
}
