package controller

import (
	"context"
	"time"

	"github.com/hoveln/framesync/internal/decision"
)

const (
	driftWindow            = time.Hour
	consecutiveDriftWindow = 5 * time.Minute
	consecutiveDriftLimit  = 3
)

// resyncLocked is the periodic housekeeping and drift-correction pass. It
// prunes all sliding windows unconditionally, auto-closes an expired breaker,
// expires the override window, then re-reads the actual mode and corrects
// drift within the configured budget. Mutex must be held.
func (c *Controller) resyncLocked(ctx context.Context, now time.Time) {
	defer c.publishStatusLocked()

	c.commandTimes = pruneWindow(c.commandTimes, now, 5*time.Minute)
	c.driftTimes = pruneWindow(c.driftTimes, now, driftWindow)
	c.consecutiveDrifts = pruneWindow(c.consecutiveDrifts, now, consecutiveDriftWindow)
	c.driftCorrections = pruneWindow(c.driftCorrections, now, driftWindow)

	if !c.breakerUntil.IsZero() && !now.Before(c.breakerUntil) {
		c.breakerUntil = time.Time{}
		if c.health == HealthBreakerOpen {
			c.health = HealthOK
		}
		c.addEventLocked(now, "breaker", "closed", "open period expired")
		c.notify("circuit breaker closed")
	}

	if !c.overrideUntil.IsZero() && !now.Before(c.overrideUntil) {
		c.overrideUntil = time.Time{}
		c.consecutiveDrifts = c.consecutiveDrifts[:0]
		c.addEventLocked(now, "override", "cleared", "override period expired")
	}

	if !c.cfg.Enforcement.Enabled {
		c.phase = PhaseDisabled
		return
	}

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
		return
	}

	actual, err := c.device.ReadMode(ctx)
	if err != nil {
		c.connectFailures++
		if now.Sub(c.startedAt) >= c.cfg.Enforcement.StartupGrace {
			c.markDegradedLocked(now, "resync read failed: "+err.Error())
		}
		return
	}
	c.actual = actual

	if actual == desired {
		c.consecutiveDrifts = c.consecutiveDrifts[:0]
		if c.health == HealthDegraded {
			c.health = HealthOK
		}
		return
	}

	// drift: the device is not where the rules say it should be
	c.driftTimes = append(c.driftTimes, now)
	c.consecutiveDrifts = append(c.consecutiveDrifts, now)
	c.addEventLocked(now, "drift", "detected", "actual "+actual.String()+", desired "+desired.String())

	if now.Before(c.overrideUntil) {
		c.phase = PhaseOverrideActive
		return
	}

	if len(c.consecutiveDrifts) >= consecutiveDriftLimit {
		c.overrideUntil = now.Add(c.cfg.Enforcement.OverrideDuration)
		c.phase = PhaseOverrideActive
		c.addEventLocked(now, "override", "inferred", "repeated drift suggests manual intervention")
		c.notify("manual override inferred, enforcement suspended for %s", c.cfg.Enforcement.OverrideDuration)
		return
	}

	if len(c.driftCorrections) >= c.cfg.Enforcement.DriftBudgetPerHour {
		c.addEventLocked(now, "drift", "suppressed", "hourly correction budget spent")
		return
	}
	if len(c.driftCorrections) > 0 {
		last := c.driftCorrections[len(c.driftCorrections)-1]
		if now.Sub(last) < c.cfg.Enforcement.DriftCooldown {
			c.addEventLocked(now, "drift", "suppressed", "correction cooldown active")
			return
		}
	}

	if err = c.enforceLocked(ctx, desired, false, "resync", now); err == nil && c.phase == PhaseEnforcing {
		c.driftCorrections = append(c.driftCorrections, now)
		c.addEventLocked(now, "drift", "corrected", "restored "+desired.String())
	}
}
