package controller

import "time"

// Status is a read-only snapshot of a pair's state. It is advisory telemetry:
// callers must never feed it back into control decisions.
type Status struct {
	Name             string    `json:"name"`
	Phase            string    `json:"phase"`
	Health           string    `json:"health"`
	DesiredMode      string    `json:"desiredMode"`
	ActualMode       string    `json:"actualMode"`
	SourceActive     bool      `json:"sourceActive"`
	SourceConnected  bool      `json:"sourceConnected"`
	Presence         string    `json:"presence"`
	OverrideUntil    time.Time `json:"overrideUntil,omitempty"`
	BreakerUntil     time.Time `json:"breakerUntil,omitempty"`
	CooldownUntil    time.Time `json:"cooldownUntil,omitempty"`
	BackoffUntil     time.Time `json:"backoffUntil,omitempty"`
	CommandsInWindow int       `json:"commandsInWindow"`
	ConnectFailures  int       `json:"connectFailures"`
	CommandFailures  int       `json:"commandFailures"`
	VerifyFailures   int       `json:"verifyFailures"`
	RecentEvents     []Event   `json:"recentEvents"`
}

// statusLocked builds a snapshot from the current state. Must be called with
// the controller mutex held.
func (c *Controller) statusLocked() Status {
	sourceConnected := false
	if c.SourceConnected != nil {
		sourceConnected = c.SourceConnected()
	}
	return Status{
		Name:             c.cfg.Name,
		Phase:            c.phase.String(),
		Health:           c.health.String(),
		DesiredMode:      c.desired.String(),
		ActualMode:       c.actual.String(),
		SourceActive:     c.sourceActive,
		SourceConnected:  sourceConnected,
		Presence:         c.presence.String(),
		OverrideUntil:    wallClock(c.overrideUntil),
		BreakerUntil:     wallClock(c.breakerUntil),
		CooldownUntil:    wallClock(c.cooldownUntil),
		BackoffUntil:     wallClock(c.backoffUntil),
		CommandsInWindow: len(c.commandTimes),
		ConnectFailures:  c.connectFailures,
		CommandFailures:  c.commandFailures,
		VerifyFailures:   c.verifyFailures,
		RecentEvents:     c.events.list(),
	}
}

// wallClock strips the monotonic reading so the snapshot carries a plain
// wall-clock timestamp for display.
func wallClock(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Round(0)
}

// publishStatusLocked refreshes the snapshot guarded by its own lock and
// fans it out to subscribers.
func (c *Controller) publishStatusLocked() {
	s := c.statusLocked()
	c.statusLock.Lock()
	c.status = s
	c.statusLock.Unlock()
	if c.statusPub != nil {
		c.statusPub.Publish(s)
	}
}

// StatusSnapshot returns the most recent status. Safe to call concurrently
// with enforcement; it never takes the controller mutex.
func (c *Controller) StatusSnapshot() Status {
	c.statusLock.RLock()
	defer c.statusLock.RUnlock()
	return c.status
}
