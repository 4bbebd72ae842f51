package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/gatelog/internal/schema"
)

type recordingTracer struct {
	requests  []string
	responses []int
	errs      []string
}

func (r *recordingTracer) LogRequest(method, url string, _ []byte) {
	r.requests = append(r.requests, method+" "+url)
}
func (r *recordingTracer) LogResponse(code int, _ string, _ []byte) {
	r.responses = append(r.responses, code)
}
func (r *recordingTracer) LogError(op string, _ error) { r.errs = append(r.errs, op) }

func TestPostgREST_Upsert(t *testing.T) {
	var got []schema.Row
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/rest/v1/packages" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("on_conflict") != "id" {
			t.Errorf("on_conflict = %q, want id", r.URL.Query().Get("on_conflict"))
		}
		if !strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
			t.Errorf("Prefer = %q", r.Header.Get("Prefer"))
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("apikey = %q", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewPostgREST(server.URL+"/", "anon-key", "user-token")
	err := client.Upsert(context.Background(), "packages", []schema.Row{
		{"id": "p1", "user_id": "u1", "status": "pending"},
		{"id": "p2", "user_id": "u1", "status": "delivered"},
	}, "id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("server received %d rows, want 2", len(got))
	}
	if got[1]["status"] != "delivered" {
		t.Errorf("status = %v, want delivered", got[1]["status"])
	}
}

func TestPostgREST_UpsertEmptyIsNoop(t *testing.T) {
	client := NewPostgREST("http://localhost:1", "k", "")
	if err := client.Upsert(context.Background(), "packages", nil, "id"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgREST_SelectWindowFilter(t *testing.T) {
	since := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "eq.owner-1" {
			t.Errorf("user_id filter = %q", q.Get("user_id"))
		}
		if q.Get("updated_at") != "gte.2025-03-03T08:00:00Z" {
			t.Errorf("updated_at filter = %q", q.Get("updated_at"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"m1","value":12.5,"updated_at":"2025-03-04T10:00:00+00:00"}]`))
	}))
	defer server.Close()

	client := NewPostgREST(server.URL, "k", "")
	rows, err := client.Select(context.Background(), "meter_readings", Query{
		OwnerColumn:  "user_id",
		Owner:        "owner-1",
		UpdatedSince: since,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "m1" {
		t.Fatalf("rows = %v", rows)
	}
	if n, ok := rows[0]["value"].(json.Number); !ok || n.String() != "12.5" {
		t.Errorf("value = %#v, want json.Number 12.5", rows[0]["value"])
	}
}

func TestPostgREST_SelectWithoutWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["updated_at"]; ok {
			t.Errorf("unexpected updated_at filter")
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	rows, err := NewPostgREST(server.URL, "k", "").Select(context.Background(), "patrols", Query{OwnerColumn: "user_id", Owner: "o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %v, want none", rows)
	}
}

func TestPostgREST_Delete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != `in.("a","b")` {
			t.Errorf("id filter = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewPostgREST(server.URL, "k", "").Delete(context.Background(), "vehicle_entries", []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgREST_RejectedReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"duplicate key"}`))
	}))
	defer server.Close()

	tracer := &recordingTracer{}
	client := NewPostgREST(server.URL, "k", "").WithTracer(tracer)
	err := client.Upsert(context.Background(), "meters", []schema.Row{{"id": "m"}}, "id")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if remoteErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want %d", remoteErr.StatusCode, http.StatusConflict)
	}
	if remoteErr.Op != "upsert" || remoteErr.Table != "meters" {
		t.Errorf("Op/Table = %s/%s", remoteErr.Op, remoteErr.Table)
	}
	if !strings.Contains(err.Error(), "duplicate key") {
		t.Errorf("error %q does not carry body", err)
	}
	if len(tracer.requests) != 1 || len(tracer.responses) != 1 || tracer.responses[0] != http.StatusConflict {
		t.Errorf("tracer saw requests=%v responses=%v", tracer.requests, tracer.responses)
	}
}

func TestPostgREST_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	err := NewPostgREST(server.URL, "k", "expired").Ping(context.Background())
	var remoteErr *Error
	if !errors.As(err, &remoteErr) || !remoteErr.Unauthorized() {
		t.Fatalf("expected unauthorized remote error, got %v", err)
	}
}

func TestPostgREST_PingReadsAppLogs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/app_logs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("limit = %q", r.URL.Query().Get("limit"))
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if err := NewPostgREST(server.URL, "k", "").Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgREST_ContextCancelsRequest(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := NewPostgREST(server.URL, "k", "").Ping(ctx)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("request was not cancelled promptly")
	}
}

func TestPostgREST_InvalidTable(t *testing.T) {
	err := NewPostgREST("http://localhost:1", "k", "").Delete(context.Background(), "packages; drop", []string{"x"})
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestPostgREST_NetworkError(t *testing.T) {
	tracer := &recordingTracer{}
	err := NewPostgREST("http://localhost:1", "k", "").WithTracer(tracer).Ping(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if remoteErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", remoteErr.StatusCode)
	}
	if len(tracer.errs) != 1 {
		t.Errorf("tracer errors = %v", tracer.errs)
	}
}
