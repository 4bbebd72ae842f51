// Package trigger decides when sync cycles run: at startup, on a fixed
// interval, when connectivity returns and on demand. Requests that arrive
// while a cycle runs are coalesced into a single follow-up cycle.
package trigger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	engine "github.com/hyperengineering/gatelog/internal/sync"
	"github.com/hyperengineering/gatelog/model"
)

// Reason names what requested a cycle.
type Reason string

const (
	ReasonStartup  Reason = "startup"
	ReasonInterval Reason = "interval"
	ReasonOnline   Reason = "online"
	ReasonManual   Reason = "manual"
)

// Default timings.
const (
	DefaultInterval      = 15 * time.Minute
	DefaultProbeInterval = 30 * time.Second
	DefaultIdleAfter     = 5 * time.Second
)

// Cycler runs one sync cycle. *engine.Syncer implements it.
type Cycler interface {
	RunCycle(ctx context.Context, notify model.StatusFunc) model.CycleResult
}

// Config sets the trigger timings. Zero values select the defaults; a
// negative Interval or ProbeInterval disables that trigger.
type Config struct {
	Interval      time.Duration
	ProbeInterval time.Duration
	IdleAfter     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = DefaultProbeInterval
	}
	if c.IdleAfter <= 0 {
		c.IdleAfter = DefaultIdleAfter
	}
	return c
}

// Runner schedules cycles on a single worker goroutine.
type Runner struct {
	cycler  Cycler
	session engine.Session
	probe   engine.Probe
	cfg     Config
	logger  *slog.Logger
	notify  model.StatusFunc
	results func(Reason, model.CycleResult)

	// pending holds at most one queued request.
	pending chan Reason

	mu      sync.Mutex
	status  model.Status
	last    model.CycleResult
	online  bool
	idle    *time.Timer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithSession sets the session consulted before the startup cycle.
func WithSession(s engine.Session) Option { return func(r *Runner) { r.session = s } }

// WithProbe sets the connectivity probe polled for online transitions.
func WithProbe(p engine.Probe) Option { return func(r *Runner) { r.probe = p } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithStatus sets the status callback. It receives syncing, then success or
// error, then idle once IdleAfter has passed without another cycle.
func WithStatus(fn model.StatusFunc) Option { return func(r *Runner) { r.notify = fn } }

// WithResults registers fn to receive every finished cycle.
func WithResults(fn func(Reason, model.CycleResult)) Option {
	return func(r *Runner) { r.results = fn }
}

// New returns a Runner for c.
func New(c Cycler, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		cycler:  c,
		cfg:     cfg.withDefaults(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		notify:  func(model.Status) {},
		results: func(Reason, model.CycleResult) {},
		pending: make(chan Reason, 1),
		status:  model.StatusIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the worker and the automatic triggers. Cycles run under
// ctx; Stop or cancelling ctx ends them.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.wg.Add(1)
	go r.work(ctx)

	if r.session == nil {
		r.Trigger(ReasonStartup)
	} else if _, err := r.session.Scope(ctx); err == nil {
		r.Trigger(ReasonStartup)
	} else {
		r.logger.Info("startup sync skipped", "error", err)
	}

	if r.cfg.Interval > 0 {
		r.wg.Add(1)
		go r.every(ctx, r.cfg.Interval, func() { r.Trigger(ReasonInterval) })
	}
	if r.probe != nil && r.cfg.ProbeInterval > 0 {
		r.setOnline(r.probe.Online(ctx))
		r.wg.Add(1)
		go r.every(ctx, r.cfg.ProbeInterval, func() {
			if r.setOnline(r.probe.Online(ctx)) {
				r.Trigger(ReasonOnline)
			}
		})
	}
}

// Stop cancels any running cycle and waits for the goroutines to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	if r.idle != nil {
		r.idle.Stop()
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Trigger requests a cycle. It reports false when the request was folded
// into one already pending.
func (r *Runner) Trigger(reason Reason) bool {
	select {
	case r.pending <- reason:
		r.logger.Debug("sync requested", "reason", reason)
		return true
	default:
		r.logger.Debug("sync request coalesced", "reason", reason)
		return false
	}
}

// NotifyOnline reports a connectivity event from the host and requests a
// cycle.
func (r *Runner) NotifyOnline() bool {
	r.setOnline(true)
	return r.Trigger(ReasonOnline)
}

// Status returns the current aggregate status.
func (r *Runner) Status() model.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Last returns the result of the most recent cycle.
func (r *Runner) Last() model.CycleResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-r.pending:
			r.logger.Debug("sync cycle triggered", "reason", reason)
			res := r.cycler.RunCycle(ctx, r.setStatus)
			r.mu.Lock()
			r.last = res
			r.mu.Unlock()
			r.results(reason, res)
		}
	}
}

func (r *Runner) every(ctx context.Context, d time.Duration, fn func()) {
	defer r.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// setOnline records connectivity and reports an offline to online change.
func (r *Runner) setOnline(online bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := online && !r.online
	r.online = online
	return changed
}

func (r *Runner) setStatus(s model.Status) {
	r.mu.Lock()
	r.status = s
	if r.idle != nil {
		r.idle.Stop()
		r.idle = nil
	}
	if s == model.StatusSuccess || s == model.StatusError {
		r.idle = time.AfterFunc(r.cfg.IdleAfter, r.resetIdle)
	}
	r.mu.Unlock()
	r.notify(s)
}

func (r *Runner) resetIdle() {
	r.mu.Lock()
	if r.status == model.StatusSyncing || r.status == model.StatusIdle {
		r.mu.Unlock()
		return
	}
	r.status = model.StatusIdle
	r.idle = nil
	r.mu.Unlock()
	r.notify(model.StatusIdle)
}
