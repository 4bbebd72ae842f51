// Package sync reconciles the local record store with the remote store:
// tombstone flush, push of unsynced records, windowed pull and merge.
package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/internal/remote"
	"github.com/hyperengineering/gatelog/model"
	"github.com/oklog/ulid/v2"
)

// Default durations.
const (
	DefaultPullWindow       = 7 * 24 * time.Hour
	DefaultCycleTimeout     = 2 * time.Minute
	DefaultOperationTimeout = 30 * time.Second
)

// Config bounds a cycle.
type Config struct {
	// PullWindow limits pulls to records updated within the window. Zero
	// pulls everything.
	PullWindow time.Duration
	// CycleTimeout bounds the whole cycle. Zero means no bound.
	CycleTimeout time.Duration
	// OperationTimeout bounds each remote call. Zero means no bound.
	OperationTimeout time.Duration
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		PullWindow:       DefaultPullWindow,
		CycleTimeout:     DefaultCycleTimeout,
		OperationTimeout: DefaultOperationTimeout,
	}
}

// Syncer orchestrates sync cycles. At most one cycle runs at a time.
type Syncer struct {
	store    *records.Store
	remote   remote.Store
	session  Session
	probe    Probe
	adapters []Adapter
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time

	running gosync.Mutex
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithAdapters replaces the default module adapters.
func WithAdapters(adapters ...Adapter) Option {
	return func(s *Syncer) { s.adapters = adapters }
}

// WithProbe sets the connectivity probe. Defaults to RemoteProbe.
func WithProbe(p Probe) Option {
	return func(s *Syncer) { s.probe = p }
}

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConfig sets the cycle bounds.
func WithConfig(cfg Config) Option {
	return func(s *Syncer) { s.cfg = cfg }
}

// NewSyncer creates a syncer with injected dependencies.
func NewSyncer(store *records.Store, rs remote.Store, session Session, opts ...Option) *Syncer {
	s := &Syncer{
		store:   store,
		remote:  rs,
		session: session,
		cfg:     DefaultConfig(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     store.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.adapters == nil {
		s.adapters = DefaultAdapters(store)
	}
	if s.probe == nil {
		s.probe = RemoteProbe{Store: rs}
	}
	return s
}

// Adapters returns the module adapters in sync order.
func (s *Syncer) Adapters() []Adapter { return s.adapters }

// RunCycle runs one sync cycle with the configured pull window. notify, if
// non-nil, receives status transitions; it is not called when the cycle is
// skipped for lack of connectivity or because another cycle is running.
func (s *Syncer) RunCycle(ctx context.Context, notify model.StatusFunc) model.CycleResult {
	return s.run(ctx, notify, s.cfg.PullWindow)
}

// Resync runs one cycle that pulls every remote record regardless of age.
// Devices that were offline longer than the pull window need it to catch up.
func (s *Syncer) Resync(ctx context.Context, notify model.StatusFunc) model.CycleResult {
	return s.run(ctx, notify, 0)
}

// cycle carries the state of one running cycle.
type cycle struct {
	*Syncer
	ctx    context.Context
	res    *model.CycleResult
	owner  string
	errs   []error
	logger *slog.Logger
}

func (s *Syncer) run(ctx context.Context, notify model.StatusFunc, window time.Duration) model.CycleResult {
	if notify == nil {
		notify = func(model.Status) {}
	}
	res := model.CycleResult{
		ID:        ulid.Make().String(),
		StartedAt: s.now(),
	}
	logger := s.logger.With("cycle", res.ID)

	if !s.running.TryLock() {
		res.Status = model.StatusSyncing
		res.Message = "sync already in progress"
		res.Err = ErrCycleInProgress
		res.FinishedAt = s.now()
		return res
	}
	defer s.running.Unlock()

	if !s.probe.Online(ctx) {
		logger.Debug("sync skipped: offline")
		res.Status = model.StatusIdle
		res.Message = "offline"
		res.Err = ErrOffline
		res.FinishedAt = s.now()
		return res
	}

	owner, err := s.session.Scope(ctx)
	if err != nil {
		logger.Warn("sync skipped: no session", "error", err)
		res.Status = model.StatusError
		res.Message = "not signed in"
		res.Err = sessionErr(err)
		res.FinishedAt = s.now()
		notify(model.StatusError)
		return res
	}

	notify(model.StatusSyncing)
	logger.Info("sync cycle starting", "window", window)

	cctx, cancel := ctx, context.CancelFunc(func() {})
	if s.cfg.CycleTimeout > 0 {
		cctx, cancel = context.WithTimeout(ctx, s.cfg.CycleTimeout)
	}
	defer cancel()

	c := &cycle{Syncer: s, ctx: cctx, res: &res, owner: owner, logger: logger}
	if err := c.execute(window); err != nil {
		res.Status = model.StatusError
		res.Err = err
		switch {
		case errors.Is(err, ErrTimeout):
			res.Message = "sync timed out"
		case errors.Is(err, ErrSessionInvalid):
			res.Message = "session expired during sync"
		default:
			res.Message = "sync aborted"
		}
		res.Errors++
		res.FinishedAt = s.now()
		logger.Error("sync cycle aborted", "error", err, "errors", res.Errors)
		notify(model.StatusError)
		return res
	}

	res.FinishedAt = s.now()
	if res.Errors == 0 {
		res.Status = model.StatusSuccess
		res.Message = fmt.Sprintf("sync complete: %d added, %d updated", res.Added, res.Updated)
		if err := s.store.SetLastSync(res.FinishedAt); err != nil {
			logger.Warn("record last sync", "error", err)
		}
		logger.Info("sync cycle complete", "added", res.Added, "updated", res.Updated)
		notify(model.StatusSuccess)
		return res
	}

	res.Status = model.StatusError
	res.Message = fmt.Sprintf("sync finished with %d errors: %d added, %d updated", res.Errors, res.Added, res.Updated)
	res.Err = errors.Join(c.errs...)
	logger.Warn("sync cycle finished with errors", "errors", res.Errors)
	notify(model.StatusError)
	return res
}

// execute runs the cycle steps in order. It returns an error only for
// conditions that abort the cycle.
func (c *cycle) execute(window time.Duration) error {
	if err := c.flushTombstones(); err != nil {
		return err
	}

	if err := c.checkSession(); err != nil {
		return err
	}
	for _, a := range c.adapters {
		if err := c.alive(); err != nil {
			return err
		}
		if err := c.push(a); err != nil {
			return err
		}
	}

	if err := c.checkSession(); err != nil {
		return err
	}
	var since time.Time
	if window > 0 {
		since = c.now().Add(-window)
	}
	for _, a := range c.adapters {
		if !a.Pulls() {
			continue
		}
		if err := c.alive(); err != nil {
			return err
		}
		if err := c.pull(a, since); err != nil {
			return err
		}
	}
	return nil
}

func (c *cycle) flushTombstones() error {
	queue, err := c.store.Tombstones().Drain()
	if err != nil {
		c.fail(model.ModuleOutcome{Module: records.TombstoneKey, Phase: model.PhaseDelete}, persistence(err))
		return nil
	}
	if len(queue) == 0 {
		return nil
	}

	byTable := make(map[string][]string)
	for _, t := range queue {
		byTable[t.Table] = append(byTable[t.Table], t.ID)
	}
	tables := make([]string, 0, len(byTable))
	for table := range byTable {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if err := c.alive(); err != nil {
			return err
		}
		ids := byTable[table]
		outcome := model.ModuleOutcome{Module: table, Phase: model.PhaseDelete}

		ctx, cancel := c.opContext()
		err := c.remote.Delete(ctx, table, ids)
		cancel()
		if err != nil {
			if abort := c.fail(outcome, classify(err)); abort != nil {
				return abort
			}
			continue
		}
		if err := c.store.Tombstones().Clear(ids); err != nil {
			c.fail(outcome, persistence(err))
			continue
		}
		outcome.Deleted = len(ids)
		c.res.Modules = append(c.res.Modules, outcome)
		c.logger.Debug("tombstones flushed", "table", table, "count", len(ids))
	}
	return nil
}

func (c *cycle) push(a Adapter) error {
	outcome := model.ModuleOutcome{Module: a.Module().Key, Phase: model.PhasePush}

	ctx, cancel := c.opContext()
	n, err := a.Push(ctx, c.remote, c.owner)
	cancel()

	outcome.Pushed = n
	if err != nil {
		return c.fail(outcome, err)
	}
	c.res.Modules = append(c.res.Modules, outcome)
	if n > 0 {
		c.logger.Debug("module pushed", "module", outcome.Module, "count", n)
	}
	return nil
}

func (c *cycle) pull(a Adapter, since time.Time) error {
	outcome := model.ModuleOutcome{Module: a.Module().Key, Phase: model.PhasePull}

	ctx, cancel := c.opContext()
	added, updated, err := a.Pull(ctx, c.remote, c.owner, since)
	cancel()

	outcome.Added, outcome.Updated = added, updated
	c.res.Added += added
	c.res.Updated += updated
	if err != nil {
		return c.fail(outcome, err)
	}
	c.res.Modules = append(c.res.Modules, outcome)
	return nil
}

// fail records a module failure. It returns a non-nil error when the
// failure aborts the cycle.
func (c *cycle) fail(outcome model.ModuleOutcome, err error) error {
	err = fmt.Errorf("%s %s: %w", outcome.Module, outcome.Phase, err)
	outcome.Error = err.Error()
	c.res.Modules = append(c.res.Modules, outcome)

	if errors.Is(err, ErrSessionInvalid) {
		return err
	}
	if cerr := c.alive(); cerr != nil {
		return cerr
	}

	c.res.Errors++
	c.errs = append(c.errs, err)
	c.logger.Warn("module sync failed", "module", outcome.Module, "phase", outcome.Phase, "error", err)
	return nil
}

// alive returns an abort error once the cycle deadline passed or the
// caller cancelled.
func (c *cycle) alive() error {
	err := c.ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: cycle deadline exceeded", ErrTimeout)
	}
	return err
}

func (c *cycle) checkSession() error {
	owner, err := c.session.Scope(c.ctx)
	if err != nil {
		return sessionErr(err)
	}
	if owner != c.owner {
		return fmt.Errorf("%w: owner changed during cycle", ErrSessionInvalid)
	}
	return nil
}

func (c *cycle) opContext() (context.Context, context.CancelFunc) {
	if c.cfg.OperationTimeout > 0 {
		return context.WithTimeout(c.ctx, c.cfg.OperationTimeout)
	}
	return context.WithCancel(c.ctx)
}

func sessionErr(err error) error {
	if errors.Is(err, ErrSessionInvalid) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrSessionInvalid, err)
}
