package controller

import (
	"context"
	"errors"
	"time"

	"github.com/hoveln/framesync/internal/decision"
	"github.com/hoveln/framesync/internal/device"
)

const degradedLogInterval = 5 * time.Minute

// errUnreachable is returned when the device stayed unreachable after wake
// escalation.
var errUnreachable = errors.New("target device unreachable")

// InputSelector is implemented by device clients that can switch the display
// input. Input selection is best-effort: a failure never fails enforcement.
type InputSelector interface {
	SelectInput(ctx context.Context, input string) error
}

// computeAndEnforceLocked recomputes the desired mode from current inputs and
// enforces it. This is the automatic path: cooldown and override apply.
// Mutex must be held.
func (c *Controller) computeAndEnforceLocked(ctx context.Context, trigger string, now time.Time) {
	defer c.publishStatusLocked()

	desired, binding := decision.DesiredMode(decision.Input{
		SourceActive:    c.sourceActive,
		InActiveHours:   c.inActiveHours(now),
		NightBehavior:   c.cfg.ActiveHours.NightBehavior,
		PresenceEnabled: c.cfg.Presence.Enabled,
		Presence:        c.presence,
		AwayPolicy:      c.cfg.Presence.AwayPolicy,
		UnknownBehavior: c.cfg.Presence.UnknownBehavior,
	})
	c.desired = desired
	if !binding {
		c.phase = PhaseIdle
		c.addEventLocked(now, trigger, "skipped", "no opinion outside active hours")
		return
	}

	if now.Before(c.overrideUntil) {
		c.phase = PhaseOverrideActive
		c.addEventLocked(now, trigger, "blocked", "manual override active")
		return
	}
	if now.Before(c.cooldownUntil) {
		c.addEventLocked(now, trigger, "blocked", "cooldown active")
		return
	}

	_ = c.enforceLocked(ctx, desired, false, trigger, now)
}

// enforceLocked performs one enforcement sequence for mode. It assumes the
// mutex is held and never re-acquires it. It short-circuits with a logged
// reason at every guard.
func (c *Controller) enforceLocked(ctx context.Context, mode device.Mode, manual bool, trigger string, now time.Time) error {
	c.desired = mode

	if !c.cfg.Enforcement.Enabled {
		c.phase = PhaseDisabled
		c.addEventLocked(now, trigger, "blocked", "enforcement disabled")
		return nil
	}

	if now.Before(c.breakerUntil) && !manual {
		c.phase = PhaseBreakerOpen
		c.addEventLocked(now, trigger, "blocked", "breaker open")
		return nil
	}

	if c.cfg.Enforcement.DryRun {
		c.phase = PhaseDryRun
		c.addEventLocked(now, trigger, "dry-run", "would set "+mode.String())
		return nil
	}

	if now.Before(c.backoffUntil) {
		if !c.backoffLogged {
			c.backoffLogged = true
			c.addEventLocked(now, trigger, "blocked", "connection backoff active")
		}
		return nil
	}

	if !c.reachable(ctx) && !c.wake(ctx) {
		c.connectFailures++
		c.raiseBackoffLocked(now)
		if now.Sub(c.startedAt) >= c.cfg.Enforcement.StartupGrace {
			c.markDegradedLocked(now, "device unreachable after wake escalation")
		} else {
			c.addEventLocked(now, trigger, "failed", "unreachable during startup grace")
		}
		return errUnreachable
	}

	actual, err := c.device.ReadMode(ctx)
	if err != nil {
		c.connectFailures++
		c.raiseBackoffLocked(now)
		c.markDegradedLocked(now, "mode read failed: "+err.Error())
		return err
	}
	c.actual = actual

	if actual == mode {
		c.recordCommandLocked(now)
		c.succeedLocked(now, manual)
		c.addEventLocked(now, trigger, "ok", "already in "+mode.String())
		return nil
	}

	if err = c.device.SetMode(ctx, mode); err != nil {
		c.commandFailures++
		c.raiseBackoffLocked(now)
		c.markDegradedLocked(now, "set mode failed: "+err.Error())
		return err
	}
	if err = c.device.VerifyMode(ctx, mode, c.cfg.Enforcement.VerifyTimeout); err != nil {
		c.verifyFailures++
		c.raiseBackoffLocked(now)
		c.markDegradedLocked(now, "mode verification failed: "+err.Error())
		return err
	}
	c.actual = mode

	if mode == device.ModeMedia && c.cfg.InputSource != "" {
		if selector, ok := c.device.(InputSelector); ok {
			if err = selector.SelectInput(ctx, c.cfg.InputSource); err != nil {
				c.logger.Warn("input selection failed", "input", c.cfg.InputSource, "err", err)
			}
		}
	}

	c.recordCommandLocked(now)
	c.succeedLocked(now, manual)
	c.addEventLocked(now, trigger, "ok", "set "+mode.String())
	c.notify("display set to %s", mode)
	return nil
}

// reachable reports whether the device responds. An "off" display still
// answers the probe; only a genuinely absent device does not.
func (c *Controller) reachable(ctx context.Context) bool {
	return c.device.Probe(ctx)
}

// wake runs the escalation ladder: the remote power key with bounded retries,
// re-checking reachability after each attempt, then wake-on-LAN broadcasts as
// the last resort. Returns true once the device answers.
func (c *Controller) wake(ctx context.Context) bool {
	w := c.cfg.Wake
	if w.RemoteEnabled {
		for attempt := 0; attempt < w.RemoteRetries; attempt++ {
			if err := c.device.SendWake(ctx, device.WakeRemote); err != nil {
				c.logger.Debug("remote wake failed", "attempt", attempt+1, "err", err)
			}
			if c.sleep(ctx, w.RemoteDelay) {
				return false
			}
			if c.reachable(ctx) {
				return true
			}
		}
	}
	if w.BroadcastEnabled {
		for attempt := 0; attempt < w.BroadcastRetries; attempt++ {
			if err := c.device.SendWake(ctx, device.WakeBroadcast); err != nil {
				c.logger.Debug("wake broadcast failed", "attempt", attempt+1, "err", err)
			}
			if c.sleep(ctx, w.BroadcastDelay) {
				return false
			}
			if c.reachable(ctx) {
				return true
			}
		}
	}
	return false
}

// sleep waits for d, reporting true when ctx was cancelled first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return true
	case <-time.After(d):
		return false
	}
}

// recordCommandLocked adds a command timestamp to the sliding window and
// opens the breaker when the window exceeds the threshold.
func (c *Controller) recordCommandLocked(now time.Time) {
	c.commandTimes = append(c.commandTimes, now)
	c.commandTimes = pruneWindow(c.commandTimes, now, 5*time.Minute)
	if len(c.commandTimes) > c.cfg.Enforcement.MaxCommandsPer5Min {
		c.breakerUntil = now.Add(c.cfg.Enforcement.BreakerDuration)
		c.health = HealthBreakerOpen
		c.addEventLocked(now, "breaker", "opened", "command rate exceeded")
		c.notify("circuit breaker opened: too many commands in 5 minutes")
	}
}

// succeedLocked resets the failure state after a successful enforcement and,
// for automatic triggers, starts the cooldown window.
func (c *Controller) succeedLocked(now time.Time, manual bool) {
	c.backoff = 0
	c.backoffUntil = time.Time{}
	c.backoffLogged = false
	if c.health == HealthDegraded {
		c.health = HealthOK
	}
	if c.phase != PhaseBreakerOpen {
		c.phase = PhaseEnforcing
	}
	if !manual && c.cfg.Enforcement.Cooldown > 0 {
		c.cooldownUntil = now.Add(c.cfg.Enforcement.Cooldown)
	}
}

// raiseBackoffLocked doubles the connection backoff up to the configured cap.
func (c *Controller) raiseBackoffLocked(now time.Time) {
	if c.backoff == 0 {
		c.backoff = c.cfg.Enforcement.BackoffInitial
	} else {
		c.backoff *= 2
		if c.backoff > c.cfg.Enforcement.BackoffMax {
			c.backoff = c.cfg.Enforcement.BackoffMax
		}
	}
	c.backoffUntil = now.Add(c.backoff)
	c.backoffLogged = false
}

// markDegradedLocked sets DEGRADED health. The event is rate-limited so a
// persistently absent device does not flood the log.
func (c *Controller) markDegradedLocked(now time.Time, reason string) {
	if c.health != HealthBreakerOpen {
		c.health = HealthDegraded
	}
	if c.lastDegradedLog.IsZero() || now.Sub(c.lastDegradedLog) >= degradedLogInterval {
		c.lastDegradedLog = now
		c.addEventLocked(now, "health", "degraded", reason)
		c.notify("degraded: %s", reason)
	}
}

// pruneWindow drops timestamps older than span before now.
func pruneWindow(times []time.Time, now time.Time, span time.Duration) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if now.Sub(t) < span {
			kept = append(kept, t)
		}
	}
	return kept
}
