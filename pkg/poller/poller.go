// Package poller runs an async callback on an adaptive recurring interval.
//
// The scheduler is visibility-aware: while the host reports hidden it either
// pauses entirely or falls back to a slower hidden interval. Overlapping
// executions are bounded by an in-flight token set, and callback errors are
// swallowed after logging so polling itself is never fatal. Backoff, when
// wanted, is the callback's concern, not the scheduler's.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clipforge/vidsync/pkg/transport"
)

// Callback is the unit of work invoked on each tick.
type Callback func(ctx context.Context) error

// Config configures scheduler behavior.
type Config struct {
	// Interval is the base delay between invocations while visible.
	// Default: 5s.
	Interval time.Duration

	// EnableWhenHidden keeps polling while the host is hidden, using
	// HiddenInterval. When false, polling pauses while hidden and resumes
	// on the base interval once visible again.
	EnableWhenHidden bool

	// HiddenInterval is the delay used while hidden when EnableWhenHidden
	// is set. Default: 4x Interval.
	HiddenInterval time.Duration

	// MaxConcurrent bounds simultaneous in-flight invocations. A tick that
	// finds the limit reached is skipped without disturbing the cadence.
	// Default: 1.
	MaxConcurrent int

	// Visibility supplies foreground state. Default: AlwaysVisible.
	Visibility Visibility

	// Logger receives swallowed callback errors. Default: zap.NewNop().
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.HiddenInterval <= 0 {
		c.HiddenInterval = 4 * c.Interval
	}
	if c.MaxConcurrent < 1 {
		c.MaxConcurrent = 1
	}
	if c.Visibility == nil {
		c.Visibility = AlwaysVisible()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Poller schedules recurring invocations of a callback. Safe for concurrent
// use. Create with New; the zero value is not usable.
type Poller struct {
	cfg Config
	cb  Callback

	mu        sync.Mutex
	active    bool
	destroyed bool
	paused    bool // hidden with EnableWhenHidden unset
	timer     *time.Timer
	inflight  map[string]struct{}
	unsub     func()
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a poller for the callback. The poller holds a visibility
// subscription until Destroy.
func New(cb Callback, cfg Config) *Poller {
	p := &Poller{
		cfg:      cfg.withDefaults(),
		cb:       cb,
		inflight: make(map[string]struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.unsub = p.cfg.Visibility.Subscribe(p.onVisibilityChange)
	return p
}

// IsActive reports whether the scheduler is currently running.
func (p *Poller) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// InFlight returns the number of currently executing invocations.
func (p *Poller) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Start begins recurring invocation: one immediate call, then one per
// effective interval. Starting an active or destroyed poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.active || p.destroyed {
		p.mu.Unlock()
		return
	}
	p.active = true
	p.paused = false
	p.mu.Unlock()

	p.tick()
}

// Stop halts scheduling without releasing the visibility subscription.
// In-flight invocations run to completion.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.active = false
	p.paused = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Destroy stops the scheduler, cancels in-flight contexts and releases the
// visibility subscription. Idempotent and safe from teardown paths: no
// queued invocation fires after Destroy returns.
func (p *Poller) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	p.stopLocked()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()

	p.cancel()
	if unsub != nil {
		unsub()
	}
}

// Refresh forces one immediate out-of-band invocation without disturbing
// the schedule. The concurrency limit still applies.
func (p *Poller) Refresh() {
	p.invoke()
}

// tick runs one scheduling step: invoke if permitted, then arm the next one.
func (p *Poller) tick() {
	p.mu.Lock()
	if !p.active || p.destroyed {
		p.mu.Unlock()
		return
	}
	visible := p.cfg.Visibility.Visible()
	if !visible && !p.cfg.EnableWhenHidden {
		// Pause: no invocation, no next tick. The visibility listener
		// resumes scheduling when the host becomes visible again.
		p.paused = true
		p.timer = nil
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.invoke()
	p.scheduleNext()
}

// scheduleNext arms the timer for the next tick at the effective interval.
func (p *Poller) scheduleNext() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.destroyed {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.effectiveIntervalLocked(), p.tick)
}

func (p *Poller) effectiveIntervalLocked() time.Duration {
	if !p.cfg.Visibility.Visible() && p.cfg.EnableWhenHidden {
		return p.cfg.HiddenInterval
	}
	return p.cfg.Interval
}

// onVisibilityChange reschedules immediately on the new effective interval
// without losing whether the scheduler is active.
func (p *Poller) onVisibilityChange(visible bool) {
	p.mu.Lock()
	if !p.active || p.destroyed {
		p.mu.Unlock()
		return
	}
	if !visible && !p.cfg.EnableWhenHidden {
		// Entering the paused state: cancel the pending tick.
		p.paused = true
		if p.timer != nil {
			p.timer.Stop()
			p.timer = nil
		}
		p.mu.Unlock()
		return
	}
	resuming := p.paused
	p.paused = false
	p.mu.Unlock()

	if resuming {
		// Coming back from the paused state: invoke now, then resume the
		// normal cadence.
		p.tick()
		return
	}
	p.scheduleNext()
}

// invoke runs the callback once, tracked by a unique execution token that is
// always released, so the in-flight set never leaks on error or abort.
func (p *Poller) invoke() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	if len(p.inflight) >= p.cfg.MaxConcurrent {
		p.mu.Unlock()
		p.cfg.Logger.Debug("poll tick skipped: concurrency limit reached",
			zap.Int("max_concurrent", p.cfg.MaxConcurrent))
		return
	}
	token := uuid.New().String()
	p.inflight[token] = struct{}{}
	ctx := p.ctx
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.inflight, token)
			p.mu.Unlock()
		}()

		if err := p.cb(ctx); err != nil {
			if transport.IsAuth(err) {
				// Auth failures are not transient: stop retrying and let
				// the caller's own error surface handle session teardown.
				p.cfg.Logger.Warn("poll callback hit auth failure, stopping scheduler",
					zap.String("execution", token),
					zap.Error(err))
				p.Stop()
				return
			}
			p.cfg.Logger.Warn("poll callback failed",
				zap.String("execution", token),
				zap.Error(err))
		}
	}()
}
