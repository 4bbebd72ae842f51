package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	engine "github.com/hyperengineering/gatelog/internal/sync"
	"github.com/hyperengineering/gatelog/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCycler blocks each cycle until released when gate is non-nil.
type fakeCycler struct {
	runs    atomic.Int32
	started chan struct{}
	gate    chan struct{}
	status  model.Status
}

func (f *fakeCycler) RunCycle(ctx context.Context, notify model.StatusFunc) model.CycleResult {
	f.runs.Add(1)
	notify(model.StatusSyncing)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			notify(model.StatusError)
			return model.CycleResult{Status: model.StatusError, Err: ctx.Err()}
		}
	}
	status := f.status
	if status == "" {
		status = model.StatusSuccess
	}
	notify(status)
	return model.CycleResult{Status: status}
}

type resultLog struct {
	mu   sync.Mutex
	got  []Reason
	done chan Reason
}

func newResultLog() *resultLog { return &resultLog{done: make(chan Reason, 16)} }

func (l *resultLog) record(reason Reason, _ model.CycleResult) {
	l.mu.Lock()
	l.got = append(l.got, reason)
	l.mu.Unlock()
	l.done <- reason
}

func (l *resultLog) wait(t *testing.T) Reason {
	t.Helper()
	select {
	case r := <-l.done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a cycle")
		return ""
	}
}

var noSession = engine.SessionFunc(func(context.Context) (string, error) {
	return "", engine.ErrSessionInvalid
})

// quiet disables the automatic triggers.
var quiet = Config{Interval: -1, ProbeInterval: -1}

func TestStart_RunsStartupCycleWithSession(t *testing.T) {
	c := &fakeCycler{}
	log := newResultLog()
	r := New(c, quiet, WithSession(engine.StaticSession{Owner: "u1"}), WithResults(log.record))
	r.Start(context.Background())
	defer r.Stop()

	assert.Equal(t, ReasonStartup, log.wait(t))
	assert.Equal(t, model.StatusSuccess, r.Last().Status)
}

func TestStart_SkipsStartupWithoutSession(t *testing.T) {
	c := &fakeCycler{}
	r := New(c, quiet, WithSession(noSession))
	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	assert.Zero(t, c.runs.Load())
}

func TestTrigger_CoalescesWhileRunning(t *testing.T) {
	c := &fakeCycler{started: make(chan struct{}, 4), gate: make(chan struct{})}
	log := newResultLog()
	r := New(c, quiet, WithSession(noSession), WithResults(log.record))
	r.Start(context.Background())
	defer r.Stop()

	require.True(t, r.Trigger(ReasonManual))
	<-c.started

	// One follow-up is queued; the rest fold into it.
	assert.True(t, r.Trigger(ReasonInterval))
	assert.False(t, r.Trigger(ReasonManual))
	assert.False(t, r.NotifyOnline())

	c.gate <- struct{}{}
	assert.Equal(t, ReasonManual, log.wait(t))
	<-c.started
	c.gate <- struct{}{}
	assert.Equal(t, ReasonInterval, log.wait(t))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), c.runs.Load())
}

func TestStart_IntervalTriggersCycles(t *testing.T) {
	c := &fakeCycler{}
	log := newResultLog()
	r := New(c, Config{Interval: 20 * time.Millisecond, ProbeInterval: -1}, WithSession(noSession), WithResults(log.record))
	r.Start(context.Background())
	defer r.Stop()

	assert.Equal(t, ReasonInterval, log.wait(t))
	assert.Equal(t, ReasonInterval, log.wait(t))
}

func TestStart_OnlineTransitionTriggersCycle(t *testing.T) {
	var online atomic.Bool
	probe := engine.ProbeFunc(func(context.Context) bool { return online.Load() })

	c := &fakeCycler{}
	log := newResultLog()
	r := New(c, Config{Interval: -1, ProbeInterval: 10 * time.Millisecond},
		WithSession(noSession), WithProbe(probe), WithResults(log.record))
	r.Start(context.Background())
	defer r.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, c.runs.Load(), "no cycle while offline")

	online.Store(true)
	assert.Equal(t, ReasonOnline, log.wait(t))

	// Staying online does not trigger again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), c.runs.Load())
}

func TestNotifyOnline(t *testing.T) {
	c := &fakeCycler{}
	log := newResultLog()
	r := New(c, quiet, WithSession(noSession), WithResults(log.record))
	r.Start(context.Background())
	defer r.Stop()

	assert.True(t, r.NotifyOnline())
	assert.Equal(t, ReasonOnline, log.wait(t))
}

func TestStatus_ResetsToIdle(t *testing.T) {
	var (
		mu  sync.Mutex
		got []model.Status
	)
	idle := make(chan struct{}, 1)
	notify := func(s model.Status) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		if s == model.StatusIdle {
			idle <- struct{}{}
		}
	}

	c := &fakeCycler{status: model.StatusError}
	r := New(c, Config{Interval: -1, ProbeInterval: -1, IdleAfter: 20 * time.Millisecond},
		WithSession(noSession), WithStatus(notify))
	r.Start(context.Background())
	defer r.Stop()

	r.Trigger(ReasonManual)
	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatal("status never returned to idle")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.Status{model.StatusSyncing, model.StatusError, model.StatusIdle}, got)
	assert.Equal(t, model.StatusIdle, r.Status())
}

func TestStop_CancelsRunningCycle(t *testing.T) {
	c := &fakeCycler{started: make(chan struct{}, 1), gate: make(chan struct{})}
	log := newResultLog()
	r := New(c, quiet, WithSession(noSession), WithResults(log.record))
	r.Start(context.Background())

	r.Trigger(ReasonManual)
	<-c.started

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, errors.Is(r.Last().Err, context.Canceled))
}
