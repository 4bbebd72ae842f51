// Package gatelog is an offline-first operational log for a gatehouse:
// vehicle entries, deliveries, breakfast lists, meters, patrols, shifts and
// an audit trail, kept in a local database and reconciled with a shared
// remote store when connectivity allows.
package gatelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperengineering/gatelog/internal/kv"
	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/remote"
	engine "github.com/hyperengineering/gatelog/internal/sync"
	"github.com/hyperengineering/gatelog/internal/trigger"
	"github.com/hyperengineering/gatelog/model"
)

// Client is the main interface for recording operations and syncing them.
type Client struct {
	config Config
	db     kv.Store
	store  *records.Store
	remote remote.Store
	syncer *engine.Syncer
	runner *trigger.Runner
	logger *slog.Logger
	debug  *DebugLogger
	notify model.StatusFunc

	closers []func() error

	mu     sync.Mutex
	closed bool
	last   *model.CycleResult
}

// Option configures New.
type Option func(*clientOptions)

type clientOptions struct {
	remote  remote.Store
	session engine.Session
	probe   engine.Probe
	logger  *slog.Logger
	clock   func() time.Time
	notify  model.StatusFunc
}

// WithRemote uses rs instead of building a remote store from the config.
func WithRemote(rs remote.Store) Option { return func(o *clientOptions) { o.remote = rs } }

// WithSession supplies the remote session. Defaults to a session scoped to
// Config.OwnerID.
func WithSession(s engine.Session) Option { return func(o *clientOptions) { o.session = s } }

// WithProbe sets the connectivity probe. Defaults to pinging the remote.
func WithProbe(p engine.Probe) Option { return func(o *clientOptions) { o.probe = p } }

// WithLogger sets the structured logger instead of building one from the
// config.
func WithLogger(l *slog.Logger) Option { return func(o *clientOptions) { o.logger = l } }

// WithClock overrides the clock used to stamp records.
func WithClock(now func() time.Time) Option { return func(o *clientOptions) { o.clock = now } }

// WithStatus receives sync status transitions.
func WithStatus(fn model.StatusFunc) Option { return func(o *clientOptions) { o.notify = fn } }

// New opens the local database and, when a remote is configured, prepares
// sync. With AutoSync the background runner starts immediately.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{config: cfg, notify: o.notify}
	if c.notify == nil {
		c.notify = func(model.Status) {}
	}

	c.logger = o.logger
	if c.logger == nil {
		logger, closer, err := NewLogger(cfg)
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.logger = logger
		c.closers = append(c.closers, closer.Close)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LocalPath), 0o755); err != nil {
		return nil, fmt.Errorf("client: create data dir: %w", err)
	}
	db, err := kv.Open(cfg.LocalPath, kv.Options{Backend: cfg.Backend, QuotaBytes: cfg.QuotaBytes})
	if err != nil {
		c.close()
		return nil, fmt.Errorf("client: %w", err)
	}
	c.db = db

	var storeOpts []records.Option
	if o.clock != nil {
		storeOpts = append(storeOpts, records.WithClock(o.clock))
	}
	c.store = records.New(db, storeOpts...)

	if err := c.openRemote(o.remote); err != nil {
		c.close()
		return nil, fmt.Errorf("client: %w", err)
	}
	if c.remote != nil {
		c.prepareSync(o)
	}

	if c.runner != nil && cfg.AutoSync {
		c.runner.Start(context.Background())
	}
	return c, nil
}

func (c *Client) openRemote(rs remote.Store) error {
	switch {
	case rs != nil:
		c.remote = rs
	case c.config.DatabaseURL != "":
		ctx, cancel := context.WithTimeout(context.Background(), c.config.OperationTimeout)
		defer cancel()
		pg, err := remote.NewPostgres(ctx, c.config.DatabaseURL)
		if err != nil {
			return err
		}
		c.remote = pg
		c.closers = append(c.closers, func() error { pg.Close(); return nil })
	case c.config.RemoteURL != "":
		rest := remote.NewPostgREST(c.config.RemoteURL, c.config.APIKey, c.config.AccessToken)
		if c.config.Debug {
			debug, err := NewDebugLogger(true, c.config.DebugLogPath)
			if err != nil {
				return err
			}
			c.debug = debug
			c.closers = append(c.closers, debug.Close)
			rest.WithTracer(debug)
		}
		c.remote = rest
	}
	return nil
}

func (c *Client) prepareSync(o clientOptions) {
	session := o.session
	if session == nil {
		session = engine.StaticSession{Owner: c.config.OwnerID}
	}
	probe := o.probe
	if probe == nil {
		probe = engine.RemoteProbe{Store: c.remote}
	}

	c.syncer = engine.NewSyncer(c.store, c.remote, session,
		engine.WithProbe(probe),
		engine.WithLogger(c.logger),
		engine.WithConfig(engine.Config{
			PullWindow:       c.config.PullWindow,
			CycleTimeout:     c.config.CycleTimeout,
			OperationTimeout: c.config.OperationTimeout,
		}),
	)
	c.runner = trigger.New(c.syncer, trigger.Config{
		Interval:      c.config.SyncInterval,
		ProbeInterval: c.config.ProbeInterval,
		IdleAfter:     c.config.IdleAfter,
	},
		trigger.WithSession(session),
		trigger.WithProbe(probe),
		trigger.WithLogger(c.logger),
		trigger.WithStatus(c.notify),
		trigger.WithResults(func(_ trigger.Reason, res model.CycleResult) { c.recordResult(res) }),
	)
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Sync runs one cycle now and returns its result. The error is the cycle's
// cause when it was skipped, aborted or had module failures.
func (c *Client) Sync(ctx context.Context) (model.CycleResult, error) {
	return c.runCycle(ctx, c.syncer.RunCycle)
}

// Resync runs one cycle that pulls every remote record regardless of age.
func (c *Client) Resync(ctx context.Context) (model.CycleResult, error) {
	return c.runCycle(ctx, c.syncer.Resync)
}

func (c *Client) runCycle(ctx context.Context, run func(context.Context, model.StatusFunc) model.CycleResult) (model.CycleResult, error) {
	if err := c.checkOpen(); err != nil {
		return model.CycleResult{}, err
	}
	if c.syncer == nil {
		return model.CycleResult{}, ErrNoRemote
	}
	res := run(ctx, c.notify)
	c.recordResult(res)
	return res, res.Err
}

func (c *Client) recordResult(res model.CycleResult) {
	c.mu.Lock()
	c.last = &res
	c.mu.Unlock()
	c.debug.LogCycle(res.ID, string(res.Status), res.Message)
}

// Start launches background sync: at startup, every SyncInterval, and
// whenever connectivity returns.
func (c *Client) Start(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.runner == nil {
		return ErrNoRemote
	}
	c.runner.Start(ctx)
	return nil
}

// RequestSync asks the background runner for a cycle. Requests made while a
// cycle runs are coalesced into one follow-up.
func (c *Client) RequestSync() bool {
	if c.runner == nil {
		return false
	}
	return c.runner.Trigger(trigger.ReasonManual)
}

// NotifyOnline tells the runner the host regained connectivity.
func (c *Client) NotifyOnline() bool {
	if c.runner == nil {
		return false
	}
	return c.runner.NotifyOnline()
}

// Report summarizes local sync state.
type Report struct {
	Status     model.Status       `json:"status"`
	Remote     bool               `json:"remote"`
	LastSync   time.Time          `json:"last_sync,omitempty"`
	Modules    []ModuleReport     `json:"modules"`
	Tombstones int                `json:"tombstones"`
	LastCycle  *model.CycleResult `json:"last_cycle,omitempty"`
}

// ModuleReport counts one module's records.
type ModuleReport struct {
	Module   string `json:"module"`
	Table    string `json:"table"`
	Total    int    `json:"total"`
	Unsynced int    `json:"unsynced"`
}

// Pending returns the total number of unsynced records.
func (r *Report) Pending() int {
	n := 0
	for _, m := range r.Modules {
		n += m.Unsynced
	}
	return n
}

// Status reports pending counts per module, queued deletions and the last
// successful sync.
func (c *Client) Status() (*Report, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	report := &Report{Status: model.StatusIdle, Remote: c.remote != nil}
	if c.runner != nil {
		report.Status = c.runner.Status()
	}

	last, err := c.store.LastSync()
	if err != nil {
		return nil, err
	}
	report.LastSync = last

	settings, err := c.store.Settings().Get()
	if err != nil {
		return nil, err
	}
	sm := ModuleReport{Module: model.ModuleSettings.Key, Table: model.ModuleSettings.Table, Total: 1}
	if !settings.Synced {
		sm.Unsynced = 1
	}
	report.Modules = append(report.Modules, sm)

	for _, counter := range c.counters() {
		total, unsynced, err := counter.Count()
		if err != nil {
			return nil, err
		}
		m := counter.Module()
		report.Modules = append(report.Modules, ModuleReport{Module: m.Key, Table: m.Table, Total: total, Unsynced: unsynced})
	}

	if report.Tombstones, err = c.store.Tombstones().Len(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	report.LastCycle = c.last
	c.mu.Unlock()
	return report, nil
}

type counter interface {
	Module() model.Module
	Count() (total, unsynced int, err error)
}

func (c *Client) counters() []counter {
	return []counter{
		c.Entries().coll,
		c.Breakfast().coll,
		c.Packages().coll,
		c.Meters().coll,
		c.MeterReadings().coll,
		c.Patrols().coll,
		c.Shifts().coll,
		c.Logs().coll,
	}
}

// Ping checks the remote store with a lightweight select.
func (c *Client) Ping(ctx context.Context) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	return c.remote.Ping(ctx)
}

// Close stops background sync and closes the local database.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.runner != nil {
		c.runner.Stop()
	}
	return c.close()
}

func (c *Client) close() error {
	var first error
	if c.db != nil {
		first = c.db.Close()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ io.Closer = (*Client)(nil)
