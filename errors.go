package gatelog

import (
	"errors"
	"fmt"

	"github.com/hyperengineering/gatelog/internal/kv"
	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/remote"
	engine "github.com/hyperengineering/gatelog/internal/sync"
)

// Sync error classes. Cycle results and module failures wrap exactly one.
var (
	ErrOffline         = engine.ErrOffline
	ErrSessionInvalid  = engine.ErrSessionInvalid
	ErrTimeout         = engine.ErrTimeout
	ErrRemoteRejected  = engine.ErrRemoteRejected
	ErrPersistence     = engine.ErrPersistence
	ErrCycleInProgress = engine.ErrCycleInProgress
)

// Local store errors.
var (
	// ErrNotFound is returned when a record id is not in its module.
	ErrNotFound = records.ErrRecordNotFound

	// ErrQuotaExceeded is returned when a write would exceed the storage
	// quota. The previous state is kept.
	ErrQuotaExceeded = kv.ErrQuotaExceeded
)

var (
	// ErrClientClosed is returned when operating on a closed client.
	ErrClientClosed = errors.New("gatelog: client is closed")

	// ErrNoRemote is returned by sync operations when no remote store is
	// configured.
	ErrNoRemote = errors.New("gatelog: no remote store configured")

	// ErrUnknownModule is returned for a module key that does not exist.
	ErrUnknownModule = errors.New("gatelog: unknown module")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// RemoteError carries the details of a failed remote call. Extractable via
// errors.As(). Supports Unwrap().
type RemoteError = remote.Error
