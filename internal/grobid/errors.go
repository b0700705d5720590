package grobid

import (
	"errors"
	"fmt"
)

// Errors raised while establishing or using the extraction service.
var (
	// ErrServiceUnavailable indicates the service endpoint never answered
	// and provisioning was not allowed.
	ErrServiceUnavailable = errors.New("grobid service unavailable")

	// ErrBackendUnavailable indicates the container backend (Docker) is
	// not reachable, so the service cannot be provisioned.
	ErrBackendUnavailable = errors.New("docker backend unavailable")

	// ErrServiceStartTimeout indicates a provisioned service instance
	// never became ready within the startup timeout.
	ErrServiceStartTimeout = errors.New("grobid did not become ready after container start")

	// ErrNetwork indicates a transport-level failure talking to the service.
	ErrNetwork = errors.New("network error communicating with grobid")
)

// StatusError is a non-2xx response from the extraction service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("grobid returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("grobid returned status %d", e.StatusCode)
}

// statusClass classifies an HTTP status code for retry policy.
type statusClass int

const (
	classSuccess statusClass = iota
	classRetry
	classFatal
)

// classifyStatus maps a response status to {success, retry, fatal}.
// Server-busy statuses (500/502/503) are transient; every other error
// status is a request problem that retrying cannot fix.
func classifyStatus(code int) statusClass {
	switch {
	case code >= 200 && code < 300:
		return classSuccess
	case code == 500 || code == 502 || code == 503:
		return classRetry
	default:
		return classFatal
	}
}

// IsRetryable reports whether an extraction error was transient: a
// server-busy status or a network-level failure.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode) == classRetry
	}
	return false
}
