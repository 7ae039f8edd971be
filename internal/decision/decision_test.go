package decision

import (
	"testing"
	"time"

	"github.com/hoveln/framesync/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestDesiredMode(t *testing.T) {
	tests := []struct {
		name        string
		input       Input
		want        device.Mode
		wantBinding assert.BoolAssertionFunc
	}{
		{
			name:        "source active",
			input:       Input{SourceActive: true, InActiveHours: true},
			want:        device.ModeMedia,
			wantBinding: assert.True,
		},
		{
			name:        "source inactive",
			input:       Input{SourceActive: false, InActiveHours: true},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name:        "night, do nothing",
			input:       Input{SourceActive: true, InActiveHours: false, NightBehavior: NightNothing},
			want:        device.ModeMedia,
			wantBinding: assert.False,
		},
		{
			name:        "night, force off",
			input:       Input{SourceActive: true, InActiveHours: false, NightBehavior: NightForceOff},
			want:        device.ModeOff,
			wantBinding: assert.True,
		},
		{
			name:        "night, force idle",
			input:       Input{SourceActive: false, InActiveHours: false, NightBehavior: NightForceIdle},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name:        "night, force idle overrides active source",
			input:       Input{SourceActive: true, InActiveHours: false, NightBehavior: NightForceIdle},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name: "away, turn off",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceAway, AwayPolicy: AwayTurnOff,
			},
			want:        device.ModeOff,
			wantBinding: assert.True,
		},
		{
			name: "away, keep idle",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceAway, AwayPolicy: AwayKeepIdle,
			},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name: "active source beats away policy",
			input: Input{
				SourceActive: true, InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceAway, AwayPolicy: AwayTurnOff,
			},
			want:        device.ModeMedia,
			wantBinding: assert.True,
		},
		{
			name: "home keeps idle",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceHome, AwayPolicy: AwayTurnOff,
			},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name: "unknown presence treated as away",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceUnknown, AwayPolicy: AwayTurnOff, UnknownBehavior: UnknownTreatAway,
			},
			want:        device.ModeOff,
			wantBinding: assert.True,
		},
		{
			name: "unknown presence ignored",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceUnknown, AwayPolicy: AwayTurnOff, UnknownBehavior: UnknownIgnore,
			},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name: "away policy disabled",
			input: Input{
				InActiveHours: true, PresenceEnabled: true,
				Presence: PresenceAway, AwayPolicy: AwayDisabled,
			},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
		{
			name: "presence not enabled",
			input: Input{
				InActiveHours: true,
				Presence:      PresenceAway, AwayPolicy: AwayTurnOff,
			},
			want:        device.ModeIdle,
			wantBinding: assert.True,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, binding := DesiredMode(tt.input)
			assert.Equal(t, tt.want, mode)
			tt.wantBinding(t, binding)
		})
	}
}

func TestInWindow(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2024, time.March, 15, hour, minute, 0, 0, time.Local)
	}
	tests := []struct {
		name       string
		start, end string
		now        time.Time
		want       assert.BoolAssertionFunc
	}{
		{"inside", "07:00", "23:00", at(12, 0), assert.True},
		{"before start", "07:00", "23:00", at(6, 59), assert.False},
		{"at start", "07:00", "23:00", at(7, 0), assert.True},
		{"at end", "07:00", "23:00", at(23, 0), assert.False},
		{"wrap, evening", "22:00", "06:00", at(23, 0), assert.True},
		{"wrap, after midnight", "22:00", "06:00", at(3, 0), assert.True},
		{"wrap, daytime", "22:00", "06:00", at(12, 0), assert.False},
		{"wrap, at end", "22:00", "06:00", at(6, 0), assert.False},
		{"empty window", "08:00", "08:00", at(8, 0), assert.False},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseTimeOfDay(tt.start)
			assert.NoError(t, err)
			end, err := ParseTimeOfDay(tt.end)
			assert.NoError(t, err)
			tt.want(t, InWindow(tt.now, start, end))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("07:30")
	assert.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 30}, got)
	assert.Equal(t, "07:30:00", got.String())

	got, err = ParseTimeOfDay("23:59:59")
	assert.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59, Second: 59}, got)

	for _, invalid := range []string{"24:00", "12:60", "noon", ""} {
		_, err = ParseTimeOfDay(invalid)
		assert.Error(t, err, invalid)
	}
}
