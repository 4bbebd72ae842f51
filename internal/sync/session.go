package sync

import (
	"context"
	"errors"
	"time"

	"github.com/hyperengineering/gatelog/internal/remote"
)

// Session supplies the remote owner scope. Scope returns an error wrapping
// ErrSessionInvalid when no valid session exists.
type Session interface {
	Scope(ctx context.Context) (owner string, err error)
}

// SessionFunc adapts a function to Session.
type SessionFunc func(ctx context.Context) (string, error)

func (f SessionFunc) Scope(ctx context.Context) (string, error) { return f(ctx) }

// StaticSession is a session with a fixed owner and optional expiry.
type StaticSession struct {
	Owner     string
	ExpiresAt time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

func (s StaticSession) Scope(context.Context) (string, error) {
	if s.Owner == "" {
		return "", errors.Join(ErrSessionInvalid, errors.New("no owner configured"))
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if !s.ExpiresAt.IsZero() && !now().Before(s.ExpiresAt) {
		return "", errors.Join(ErrSessionInvalid, errors.New("session expired"))
	}
	return s.Owner, nil
}

// Probe reports connectivity.
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline is a Probe that never reports offline.
var AlwaysOnline Probe = ProbeFunc(func(context.Context) bool { return true })

// RemoteProbe reports online when a ping to the remote store succeeds
// within Timeout.
type RemoteProbe struct {
	Store   remote.Store
	Timeout time.Duration
}

func (p RemoteProbe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.Store.Ping(ctx)
	if err == nil {
		return true
	}
	// A refused credential still proves the network path works.
	var remoteErr *remote.Error
	return errors.As(err, &remoteErr) && remoteErr.StatusCode != 0
}
