// Package errs defines the engine's error taxonomy. Every type carries the
// context a caller needs to decide whether to retry, surface, or abort; the
// engine itself only ever auto-retries AuthenticationError, and exactly once.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNotSupported signals that a schema method is unavailable on a platform,
// as opposed to returning an empty result. Extraction strategies use it to
// advance the fallback chain.
var ErrNotSupported = errors.New("operation not supported by this platform")

func formatDetails(details map[string]string) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, details[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// ConfigurationError reports malformed engine configuration. Never retried.
type ConfigurationError struct {
	Message string
	Details map[string]string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message + formatDetails(e.Details)
}

// ValidationError reports invalid input to the engine. Never retried.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed for %s: %q", e.Field, e.Value)
	}
	return "validation failed for " + e.Field
}

// AuthenticationError reports a credential acquisition or validation failure.
// The engine retries it exactly once with a force-refreshed token.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	msg := "authentication failed"
	if e.Provider != "" {
		msg += " for " + e.Provider
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectionError reports a transport-level failure reaching a collaborator.
// Not retried by the engine; the service name tells the caller which side
// broke.
type ConnectionError struct {
	Service string
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := "connection failed"
	if e.Service != "" {
		msg += " to " + e.Service
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ResourceNotFoundError reports a missing model, table, dataset or snapshot.
type ResourceNotFoundError struct {
	ResourceType string
	ResourceID   string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
}

// RateLimitError carries the service's retry-after hint. The engine never
// waits on it; the caller decides.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TransactionError reports a failed transactional apply and whether the
// rollback that followed succeeded.
type TransactionError struct {
	Operation         string
	RollbackPerformed bool
	Err               error
}

func (e *TransactionError) Error() string {
	msg := "transaction failed"
	if e.Operation != "" {
		msg += " during " + e.Operation
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.RollbackPerformed {
		msg += " (rolled back)"
	} else {
		msg += " (rollback FAILED, manual intervention may be required)"
	}
	return msg
}

func (e *TransactionError) Unwrap() error { return e.Err }

// SyncError wraps an apply-time failure with the run's direction and side
// labels for diagnostics.
type SyncError struct {
	Direction string
	Source    string
	Target    string
	Err       error
}

func (e *SyncError) Error() string {
	msg := "sync failed"
	if e.Direction != "" {
		msg += " (" + e.Direction + ")"
	}
	if e.Source != "" || e.Target != "" {
		msg += fmt.Sprintf(" [%s -> %s]", e.Source, e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error { return e.Err }

// NotSupported reports whether err is, or wraps, ErrNotSupported.
func NotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// NotFound reports whether err is, or wraps, a ResourceNotFoundError.
func NotFound(err error) bool {
	var nf *ResourceNotFoundError
	return errors.As(err, &nf)
}

// AuthFailure reports whether err is, or wraps, an AuthenticationError.
func AuthFailure(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
