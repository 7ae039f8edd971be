// Package decision determines the mode a display should be in, given the
// state of its media source, the time of day and room occupancy. It is pure:
// all inputs are passed in and the answer is deterministic.
package decision

import (
	"fmt"
	"time"

	"github.com/hoveln/framesync/internal/device"
)

// NightBehavior selects what happens outside the active hours window.
type NightBehavior string

const (
	NightNothing   NightBehavior = "nothing"
	NightForceOff  NightBehavior = "force_off"
	NightForceIdle NightBehavior = "force_idle"
)

// AwayPolicy selects what happens when the room is unoccupied.
type AwayPolicy string

const (
	AwayDisabled AwayPolicy = "disabled"
	AwayTurnOff  AwayPolicy = "turn_off"
	AwayKeepIdle AwayPolicy = "keep_idle"
)

// UnknownBehavior selects how an unknown presence state is resolved.
type UnknownBehavior string

const (
	UnknownIgnore    UnknownBehavior = "ignore"
	UnknownTreatHome UnknownBehavior = "treat_home"
	UnknownTreatAway UnknownBehavior = "treat_away"
)

// Presence is the occupancy state of the room the display is in.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresenceHome
	PresenceAway
)

func (p Presence) String() string {
	switch p {
	case PresenceHome:
		return "home"
	case PresenceAway:
		return "away"
	default:
		return "unknown"
	}
}

// Input carries everything DesiredMode needs to answer.
type Input struct {
	SourceActive    bool
	InActiveHours   bool
	NightBehavior   NightBehavior
	PresenceEnabled bool
	Presence        Presence
	AwayPolicy      AwayPolicy
	UnknownBehavior UnknownBehavior
}

// DesiredMode returns the mode the display should be in, and whether the
// answer is binding. A false second return means the rules have nothing to
// say (outside active hours with NightBehavior "nothing") and the display
// should be left alone.
//
// An active source always wins: a playing media source keeps the display in
// media mode even when the away policy would otherwise switch it off.
func DesiredMode(in Input) (device.Mode, bool) {
	base := device.ModeIdle
	if in.SourceActive {
		base = device.ModeMedia
	}

	if !in.InActiveHours {
		switch in.NightBehavior {
		case NightForceOff:
			base = device.ModeOff
		case NightForceIdle:
			base = device.ModeIdle
		default:
			return base, false
		}
	}

	if in.PresenceEnabled && in.AwayPolicy != AwayDisabled && !in.SourceActive {
		p := in.Presence
		if p == PresenceUnknown {
			switch in.UnknownBehavior {
			case UnknownTreatHome:
				p = PresenceHome
			case UnknownTreatAway:
				p = PresenceAway
			}
		}
		if p == PresenceAway {
			switch in.AwayPolicy {
			case AwayTurnOff:
				base = device.ModeOff
			case AwayKeepIdle:
				base = device.ModeIdle
			}
		}
	}

	return base, true
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		t.Second = 0
		if _, err = fmt.Sscanf(s, "%d:%d", &t.Hour, &t.Minute); err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
		}
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}
	return t, nil
}

// InWindow reports whether now falls in the half-open window [start, end).
// A window whose end precedes its start wraps past midnight; an empty window
// (start == end) never matches.
func InWindow(now time.Time, start, end TimeOfDay) bool {
	if start == end {
		return false
	}
	n := now.Hour()*3600 + now.Minute()*60 + now.Second()
	s, e := start.seconds(), end.seconds()
	if s < e {
		return n >= s && n < e
	}
	return n >= s || n < e
}
