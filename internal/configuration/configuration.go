// Package configuration loads and validates the framesync configuration file.
package configuration

import (
	"fmt"
	"io"
	"time"

	"github.com/hoveln/framesync/internal/decision"
	"gopkg.in/yaml.v3"
)

type Configuration struct {
	Pairs []PairConfiguration `yaml:"pairs"`
}

// PairConfiguration describes one display/source pair under management.
type PairConfiguration struct {
	Name        string                   `yaml:"name"`
	Target      TargetConfiguration      `yaml:"target"`
	Source      SourceConfiguration      `yaml:"source"`
	Presence    PresenceConfiguration    `yaml:"presence"`
	ActiveHours ActiveHoursConfiguration `yaml:"activeHours"`
	Enforcement EnforcementConfiguration `yaml:"enforcement"`
	Wake        WakeConfiguration        `yaml:"wake"`
	InputSource string                   `yaml:"inputSource"`
}

type TargetConfiguration struct {
	URL       string `yaml:"url"`
	MAC       string `yaml:"mac"`
	Broadcast string `yaml:"broadcast"`
}

type SourceConfiguration struct {
	URL        string        `yaml:"url"`
	Debounce   time.Duration `yaml:"debounce"`
	Grace      time.Duration `yaml:"grace"`
	ActiveMode string        `yaml:"activeMode"`
}

type PresenceConfiguration struct {
	Enabled         bool                     `yaml:"enabled"`
	Broker          string                   `yaml:"broker"`
	Topic           string                   `yaml:"topic"`
	HomeStates      []string                 `yaml:"homeStates"`
	AwayStates      []string                 `yaml:"awayStates"`
	AwayPolicy      decision.AwayPolicy      `yaml:"awayPolicy"`
	UnknownBehavior decision.UnknownBehavior `yaml:"unknownBehavior"`
}

type ActiveHoursConfiguration struct {
	Start         TimeOfDay              `yaml:"start"`
	End           TimeOfDay              `yaml:"end"`
	NightBehavior decision.NightBehavior `yaml:"nightBehavior"`
}

type EnforcementConfiguration struct {
	Enabled            bool          `yaml:"enabled"`
	DryRun             bool          `yaml:"dryRun"`
	Cooldown           time.Duration `yaml:"cooldown"`
	ReturnDelay        time.Duration `yaml:"returnDelay"`
	ResyncInterval     time.Duration `yaml:"resyncInterval"`
	StartupGrace       time.Duration `yaml:"startupGrace"`
	OverrideDuration   time.Duration `yaml:"overrideDuration"`
	MaxCommandsPer5Min int           `yaml:"maxCommandsPer5Min"`
	BreakerDuration    time.Duration `yaml:"breakerDuration"`
	BackoffInitial     time.Duration `yaml:"backoffInitial"`
	BackoffMax         time.Duration `yaml:"backoffMax"`
	VerifyTimeout      time.Duration `yaml:"verifyTimeout"`
	VerifyInterval     time.Duration `yaml:"verifyInterval"`
	ManualTimeout      time.Duration `yaml:"manualTimeout"`
	DriftBudgetPerHour int           `yaml:"driftBudgetPerHour"`
	DriftCooldown      time.Duration `yaml:"driftCooldown"`
}

type WakeConfiguration struct {
	RemoteEnabled    bool          `yaml:"remoteEnabled"`
	RemoteRetries    int           `yaml:"remoteRetries"`
	RemoteDelay      time.Duration `yaml:"remoteDelay"`
	BroadcastEnabled bool          `yaml:"broadcastEnabled"`
	BroadcastRetries int           `yaml:"broadcastRetries"`
	BroadcastDelay   time.Duration `yaml:"broadcastDelay"`
}

// TimeOfDay wraps decision.TimeOfDay with YAML support for "HH:MM[:SS]".
type TimeOfDay struct {
	decision.TimeOfDay
	Set bool
}

func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	tod, err := decision.ParseTimeOfDay(value.Value)
	if err != nil {
		return err
	}
	*t = TimeOfDay{TimeOfDay: tod, Set: true}
	return nil
}

func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// ConfigurationError marks a configuration file that loaded but failed validation.
type ConfigurationError struct {
	Pair  string
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Pair == "" {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Err.Error())
	}
	return fmt.Sprintf("configuration: pair %q: %s: %s", e.Pair, e.Field, e.Err.Error())
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads a pair configuration, applies defaults and validates it.
func Load(r io.Reader) (Configuration, error) {
	var c Configuration
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return Configuration{}, fmt.Errorf("invalid configuration file: %w", err)
	}
	for i := range c.Pairs {
		c.Pairs[i].setDefaults()
		if err := c.Pairs[i].validate(); err != nil {
			return Configuration{}, err
		}
	}
	return c, nil
}

func (p *PairConfiguration) setDefaults() {
	if p.Source.Debounce == 0 {
		p.Source.Debounce = 2 * time.Second
	}
	if p.Source.ActiveMode == "" {
		p.Source.ActiveMode = "playing_or_paused"
	}
	if p.Presence.AwayPolicy == "" {
		p.Presence.AwayPolicy = decision.AwayDisabled
	}
	if p.Presence.UnknownBehavior == "" {
		p.Presence.UnknownBehavior = decision.UnknownIgnore
	}
	if p.ActiveHours.NightBehavior == "" {
		p.ActiveHours.NightBehavior = decision.NightNothing
	}
	e := &p.Enforcement
	if e.ResyncInterval == 0 {
		e.ResyncInterval = 5 * time.Minute
	}
	if e.StartupGrace == 0 {
		e.StartupGrace = time.Minute
	}
	if e.OverrideDuration == 0 {
		e.OverrideDuration = time.Hour
	}
	if e.MaxCommandsPer5Min == 0 {
		e.MaxCommandsPer5Min = 10
	}
	if e.BreakerDuration == 0 {
		e.BreakerDuration = 10 * time.Minute
	}
	if e.BackoffInitial == 0 {
		e.BackoffInitial = 10 * time.Second
	}
	if e.BackoffMax == 0 {
		e.BackoffMax = 5 * time.Minute
	}
	if e.VerifyTimeout == 0 {
		e.VerifyTimeout = 8 * time.Second
	}
	if e.VerifyInterval == 0 {
		e.VerifyInterval = 800 * time.Millisecond
	}
	if e.ManualTimeout == 0 {
		e.ManualTimeout = 30 * time.Second
	}
	if e.DriftBudgetPerHour == 0 {
		e.DriftBudgetPerHour = 6
	}
	if e.DriftCooldown == 0 {
		e.DriftCooldown = 5 * time.Minute
	}
	w := &p.Wake
	if w.RemoteRetries == 0 {
		w.RemoteRetries = 3
	}
	if w.RemoteDelay == 0 {
		w.RemoteDelay = 2 * time.Second
	}
	if w.BroadcastRetries == 0 {
		w.BroadcastRetries = 3
	}
	if w.BroadcastDelay == 0 {
		w.BroadcastDelay = 2 * time.Second
	}
}

func (p *PairConfiguration) validate() error {
	fail := func(field string, format string, args ...any) error {
		return &ConfigurationError{Pair: p.Name, Field: field, Err: fmt.Errorf(format, args...)}
	}
	if p.Name == "" {
		return &ConfigurationError{Field: "name", Err: fmt.Errorf("missing pair name")}
	}
	if p.Target.URL == "" {
		return fail("target.url", "missing")
	}
	if p.Source.URL == "" {
		return fail("source.url", "missing")
	}
	switch p.Source.ActiveMode {
	case "playing_or_paused", "playing_only", "power_on":
	default:
		return fail("source.activeMode", "invalid value %q", p.Source.ActiveMode)
	}
	switch p.Presence.AwayPolicy {
	case decision.AwayDisabled, decision.AwayTurnOff, decision.AwayKeepIdle:
	default:
		return fail("presence.awayPolicy", "invalid value %q", p.Presence.AwayPolicy)
	}
	switch p.Presence.UnknownBehavior {
	case decision.UnknownIgnore, decision.UnknownTreatHome, decision.UnknownTreatAway:
	default:
		return fail("presence.unknownBehavior", "invalid value %q", p.Presence.UnknownBehavior)
	}
	if p.Presence.Enabled && p.Presence.Broker == "" {
		return fail("presence.broker", "missing")
	}
	if p.Presence.Enabled && p.Presence.Topic == "" {
		return fail("presence.topic", "missing")
	}
	switch p.ActiveHours.NightBehavior {
	case decision.NightNothing, decision.NightForceOff, decision.NightForceIdle:
	default:
		return fail("activeHours.nightBehavior", "invalid value %q", p.ActiveHours.NightBehavior)
	}
	if p.ActiveHours.Start.Set != p.ActiveHours.End.Set {
		return fail("activeHours", "start and end must both be set")
	}
	if p.Wake.BroadcastEnabled && p.Target.MAC == "" {
		return fail("target.mac", "missing (required for wake broadcasts)")
	}
	if p.InputSource != "" {
		switch p.InputSource {
		case "hdmi1", "hdmi2", "hdmi3":
		default:
			return fail("inputSource", "invalid value %q", p.InputSource)
		}
	}
	e := p.Enforcement
	durations := []struct {
		field string
		value time.Duration
	}{
		{"source.debounce", p.Source.Debounce},
		{"source.grace", p.Source.Grace},
		{"enforcement.cooldown", e.Cooldown},
		{"enforcement.returnDelay", e.ReturnDelay},
		{"enforcement.resyncInterval", e.ResyncInterval},
		{"enforcement.startupGrace", e.StartupGrace},
		{"enforcement.overrideDuration", e.OverrideDuration},
		{"enforcement.breakerDuration", e.BreakerDuration},
		{"enforcement.backoffInitial", e.BackoffInitial},
		{"enforcement.backoffMax", e.BackoffMax},
		{"enforcement.verifyTimeout", e.VerifyTimeout},
		{"enforcement.verifyInterval", e.VerifyInterval},
		{"enforcement.manualTimeout", e.ManualTimeout},
		{"enforcement.driftCooldown", e.DriftCooldown},
		{"wake.remoteDelay", p.Wake.RemoteDelay},
		{"wake.broadcastDelay", p.Wake.BroadcastDelay},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fail(d.field, "must not be negative")
		}
	}
	if e.MaxCommandsPer5Min < 1 {
		return fail("enforcement.maxCommandsPer5Min", "must be positive")
	}
	if e.DriftBudgetPerHour < 1 {
		return fail("enforcement.driftBudgetPerHour", "must be positive")
	}
	if p.Wake.RemoteRetries < 0 {
		return fail("wake.remoteRetries", "must not be negative")
	}
	if p.Wake.BroadcastRetries < 0 {
		return fail("wake.broadcastRetries", "must not be negative")
	}
	return nil
}
