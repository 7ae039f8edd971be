// Package controller implements the per-pair enforcement controller. It merges
// source events, presence changes, the periodic resync timer and manual
// commands into serialized enforcement decisions, guarded by one mutex per
// pair.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hoveln/framesync/internal/configuration"
	"github.com/hoveln/framesync/internal/decision"
	"github.com/hoveln/framesync/internal/device"
	"github.com/hoveln/framesync/pkg/pubsub"
	"github.com/hoveln/framesync/pkg/scheduler"
)

const manualRateLimit = 2 * time.Second

// Notifier receives human-readable event notifications. The controller only
// ever calls into it; a Notifier must never hold a reference back into the
// controller.
type Notifier interface {
	Notify(message string)
}

// Controller enforces the desired mode on one display/source pair.
type Controller struct {
	cfg       configuration.PairConfiguration
	device    device.Client
	notifier  Notifier
	statusPub *pubsub.Publisher[Status]
	logger    *slog.Logger

	// SourceConnected reports whether the source feed is up. Set by the owner
	// before Setup.
	SourceConnected func() bool
	// now is the time source. Overridden in tests.
	now func() time.Time

	mu        sync.Mutex
	baseCtx   context.Context
	startedAt time.Time

	sourceActive bool
	playback     string
	presence     decision.Presence

	phase   Phase
	health  Health
	desired device.Mode
	actual  device.Mode

	cooldownUntil time.Time
	backoffUntil  time.Time
	breakerUntil  time.Time
	overrideUntil time.Time
	backoff       time.Duration
	backoffLogged bool

	lastManual      time.Time
	lastDegradedLog time.Time

	commandTimes      []time.Time
	driftTimes        []time.Time
	consecutiveDrifts []time.Time
	driftCorrections  []time.Time

	connectFailures int
	commandFailures int
	verifyFailures  int

	events    eventLog
	returnJob *scheduler.Job
	jobDone   chan struct{}

	statusLock sync.RWMutex
	status     Status
}

// New creates a controller for the given pair. statusPub and notifier may be
// nil.
func New(cfg configuration.PairConfiguration, client device.Client, notifier Notifier, statusPub *pubsub.Publisher[Status], logger *slog.Logger) *Controller {
	return &Controller{
		cfg:       cfg,
		device:    client,
		notifier:  notifier,
		statusPub: statusPub,
		logger:    logger.With(slog.String("pair", cfg.Name)),
		now:       time.Now,
		baseCtx:   context.Background(),
		jobDone:   make(chan struct{}, 1),
	}
}

// Setup connects to the target device (best-effort; the device may be off)
// and starts the startup grace period.
func (c *Controller) Setup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = c.now()
	if !c.cfg.Enforcement.Enabled {
		c.phase = PhaseDisabled
	}
	if err := c.device.Connect(ctx); err != nil {
		c.logger.Warn("target device not reachable at setup", "err", err)
	}
	c.publishStatusLocked()
	return nil
}

// Close cancels the pending return-to-idle job and closes the device
// connection. Called outside any lock by the pair's teardown.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.cancelReturnJobLocked()
	c.mu.Unlock()
	return c.device.Disconnect()
}

// Run drives the periodic resync timer until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.logger.Debug("controller starting")
	defer c.logger.Debug("controller stopping")

	ticker := time.NewTicker(c.cfg.Enforcement.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.mu.Lock()
			c.resyncLocked(ctx, c.now())
			c.mu.Unlock()
		case <-c.jobDone:
			c.reapReturnJob()
		}
	}
}

// OnSourceStateChange is the tracker's debounced callback. A transition to
// active clears any inferred override and cancels a pending return-to-idle.
// A transition to inactive schedules the delayed return to idle.
func (c *Controller) OnSourceStateChange(active bool, playback string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wasActive := c.sourceActive
	c.sourceActive = active
	c.playback = playback
	now := c.now()

	if active && !wasActive {
		if !c.overrideUntil.IsZero() {
			c.overrideUntil = time.Time{}
			c.addEventLocked(now, "override", "cleared", "source became active")
		}
		c.cancelReturnJobLocked()
	}

	if !active && wasActive && c.cfg.Enforcement.ReturnDelay > 0 && c.inActiveHours(now) {
		c.scheduleReturnToIdleLocked()
		c.publishStatusLocked()
		return
	}

	c.computeAndEnforceLocked(c.baseCtx, "source", now)
}

// OnPresenceChange is the occupancy watcher's callback.
func (c *Controller) OnPresenceChange(p decision.Presence) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presence = p
	c.computeAndEnforceLocked(c.baseCtx, "presence", c.now())
}

// ForceMode is the manual entrypoint. It bypasses the breaker and cooldown
// but not the manual rate limit, and is bounded by an overall timeout.
func (c *Controller) ForceMode(ctx context.Context, mode device.Mode) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Enforcement.ManualTimeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastManual.IsZero() && now.Sub(c.lastManual) < manualRateLimit {
		c.logger.Warn("manual command rate-limited", "mode", mode)
		c.addEventLocked(now, "manual", "dropped", "rate-limited")
		c.publishStatusLocked()
		return nil
	}
	c.lastManual = now
	c.cancelReturnJobLocked()

	err := c.enforceLocked(ctx, mode, true, "manual", now)
	c.publishStatusLocked()
	return err
}

// Resync triggers the drift-correction path out of schedule.
func (c *Controller) Resync(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resyncLocked(ctx, c.now())
}

// ClearOverride ends a manual-override window.
func (c *Controller) ClearOverride() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.overrideUntil.IsZero() {
		c.overrideUntil = time.Time{}
		c.consecutiveDrifts = c.consecutiveDrifts[:0]
		c.addEventLocked(now, "override", "cleared", "explicit clear")
	}
	c.publishStatusLocked()
}

// ClearBreaker closes the circuit breaker without waiting for expiry.
func (c *Controller) ClearBreaker() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.breakerUntil.IsZero() {
		c.breakerUntil = time.Time{}
		c.commandTimes = c.commandTimes[:0]
		if c.health == HealthBreakerOpen {
			c.health = HealthOK
		}
		c.addEventLocked(now, "breaker", "closed", "explicit clear")
	}
	c.publishStatusLocked()
}

// inActiveHours reports whether now is inside the configured window. Without
// a configured window every hour is active.
func (c *Controller) inActiveHours(now time.Time) bool {
	if !c.cfg.ActiveHours.Start.Set {
		return true
	}
	return decision.InWindow(now, c.cfg.ActiveHours.Start.TimeOfDay, c.cfg.ActiveHours.End.TimeOfDay)
}

// addEventLocked appends to the bounded event log and logs the entry.
func (c *Controller) addEventLocked(now time.Time, eventType, result, message string) {
	c.events.add(Event{Time: now.Round(0), Type: eventType, Result: result, Message: message})
	c.logger.Info("event", "type", eventType, "result", result, "msg", message)
}

func (c *Controller) notify(format string, args ...any) {
	if c.notifier != nil {
		c.notifier.Notify(fmt.Sprintf("%s: %s", c.cfg.Name, fmt.Sprintf(format, args...)))
	}
}

// scheduleReturnToIdleLocked schedules the delayed enforcement of idle mode
// after the source goes inactive. An already pending job is cancelled first.
func (c *Controller) scheduleReturnToIdleLocked() {
	c.cancelReturnJobLocked()
	c.returnJob = scheduler.Schedule(c.baseCtx, scheduler.RunFunc(func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		now := c.now()
		if c.sourceActive {
			return nil
		}
		err := c.enforceLocked(ctx, device.ModeIdle, false, "return-to-idle", now)
		c.publishStatusLocked()
		return err
	}), c.cfg.Enforcement.ReturnDelay, c.jobDone)
	c.addEventLocked(c.now(), "schedule", "pending", "return to idle in "+c.cfg.Enforcement.ReturnDelay.String())
}

// cancelReturnJobLocked cancels without awaiting: the job needs this mutex to
// run, so awaiting it here would deadlock.
func (c *Controller) cancelReturnJobLocked() {
	if c.returnJob != nil {
		c.returnJob.Cancel()
		c.returnJob = nil
	}
}

func (c *Controller) reapReturnJob() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.returnJob == nil {
		return
	}
	if done, err := c.returnJob.Result(); done {
		if err != nil && !errors.Is(err, scheduler.ErrCanceled) {
			c.logger.Error("return to idle failed", "err", err)
		}
		c.returnJob = nil
	}
}
