package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperengineering/gatelog/internal/remote"
)

// Error classes. Every module failure wraps exactly one of them.
var (
	// ErrOffline is returned when no connectivity is available. The cycle is
	// not attempted.
	ErrOffline = errors.New("sync: offline")

	// ErrSessionInvalid is returned when no remote session is established or
	// it expired during the cycle.
	ErrSessionInvalid = errors.New("sync: session invalid")

	// ErrTimeout is returned when an operation or the whole cycle ran out of
	// time.
	ErrTimeout = errors.New("sync: timed out")

	// ErrRemoteRejected is returned when the remote store refused a call.
	ErrRemoteRejected = errors.New("sync: remote rejected")

	// ErrPersistence is returned when a local read or write failed.
	ErrPersistence = errors.New("sync: local persistence failure")

	// ErrCycleInProgress is returned when a cycle is requested while another
	// is running.
	ErrCycleInProgress = errors.New("sync: cycle already in progress")
)

// persistence wraps a local store error.
func persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// classify wraps a remote call error with its class.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range []error{ErrOffline, ErrSessionInvalid, ErrTimeout, ErrRemoteRejected, ErrPersistence} {
		if errors.Is(err, class) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var remoteErr *remote.Error
	if errors.As(err, &remoteErr) && remoteErr.Unauthorized() {
		return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
	}
	return fmt.Errorf("%w: %w", ErrRemoteRejected, err)
}
