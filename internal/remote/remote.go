// Package remote is the boundary to the shared relational store that every
// device reconciles against.
package remote

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hyperengineering/gatelog/internal/schema"
)

// Store is a remote relational store scoped by owner.
// Implementations must be safe for concurrent use and must honor ctx
// cancellation inside the network call.
type Store interface {
	// Upsert inserts rows, or updates the existing row sharing the value of
	// conflictKey. Repeating the same call is safe.
	Upsert(ctx context.Context, table string, rows []schema.Row, conflictKey string) error

	// Select returns the rows of table matching q.
	Select(ctx context.Context, table string, q Query) ([]schema.Row, error)

	// Delete removes the rows with the given ids. Ids that do not exist are
	// not an error.
	Delete(ctx context.Context, table string, ids []string) error

	// Ping performs a lightweight read to check reachability.
	Ping(ctx context.Context) error
}

// Query filters a Select.
type Query struct {
	// OwnerColumn and Owner restrict rows to one account.
	OwnerColumn string
	Owner       string
	// UpdatedSince, when non-zero, keeps rows with updated_at at or after it.
	UpdatedSince time.Time
}

// PingTable is read by Ping.
const PingTable = "app_logs"

// ErrUnsupported is returned for a table or column name the store refuses.
var ErrUnsupported = errors.New("remote: unsupported identifier")

// Error is returned when a remote operation fails.
// Extractable via errors.As(). Supports Unwrap().
type Error struct {
	Op         string
	Table      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote: %s %s failed (status %d): %v", e.Op, e.Table, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote: %s %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Unauthorized reports whether the remote refused the credentials.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// Tracer receives wire-level details of remote calls.
type Tracer interface {
	LogRequest(method, url string, body []byte)
	LogResponse(statusCode int, status string, body []byte)
	LogError(operation string, err error)
}

type nopTracer struct{}

func (nopTracer) LogRequest(string, string, []byte) {}
func (nopTracer) LogResponse(int, string, []byte)   {}
func (nopTracer) LogError(string, error)            {}

// identRegex matches the table and column names accepted by the stores:
// lowercase snake_case, at most 63 bytes.
var identRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidateIdentifier rejects table or column names that are not plain
// lowercase snake_case.
func ValidateIdentifier(name string) error {
	if !identRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return nil
}

func validate(table string, columns ...string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	for _, c := range columns {
		if c == "" {
			continue
		}
		if err := ValidateIdentifier(c); err != nil {
			return err
		}
	}
	return nil
}
