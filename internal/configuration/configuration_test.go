package configuration

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hoveln/framesync/internal/decision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const validConfig = `
pairs:
  - name: living-room
    target:
      url: ws://10.0.0.5:8002/control
      mac: aa:bb:cc:dd:ee:ff
    source:
      url: ws://10.0.0.6:9090/events
      activeMode: playing_only
    presence:
      enabled: true
      broker: tcp://10.0.0.2:1883
      topic: home/living-room/occupancy
      homeStates: [ "home", "on" ]
      awayStates: [ "away", "off" ]
      awayPolicy: turn_off
    activeHours:
      start: "07:00"
      end: "23:00"
      nightBehavior: force_off
    enforcement:
      enabled: true
      cooldown: 30s
      returnDelay: 5m
    wake:
      remoteEnabled: true
      broadcastEnabled: true
`

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(validConfig))
	require.NoError(t, err)

	require.Len(t, c.Pairs, 1)

	p := c.Pairs[0]
	assert.Equal(t, "living-room", p.Name)
	assert.Equal(t, "ws://10.0.0.5:8002/control", p.Target.URL)
	assert.Equal(t, "playing_only", p.Source.ActiveMode)
	assert.Equal(t, 2*time.Second, p.Source.Debounce)
	assert.Equal(t, decision.AwayTurnOff, p.Presence.AwayPolicy)
	assert.Equal(t, decision.UnknownIgnore, p.Presence.UnknownBehavior)
	assert.Equal(t, decision.TimeOfDay{Hour: 7}, p.ActiveHours.Start.TimeOfDay)
	assert.Equal(t, decision.TimeOfDay{Hour: 23}, p.ActiveHours.End.TimeOfDay)
	assert.True(t, p.ActiveHours.Start.Set)
	assert.Equal(t, decision.NightForceOff, p.ActiveHours.NightBehavior)
	assert.Equal(t, 30*time.Second, p.Enforcement.Cooldown)
	assert.Equal(t, 5*time.Minute, p.Enforcement.ResyncInterval)
	assert.Equal(t, time.Minute, p.Enforcement.StartupGrace)
	assert.Equal(t, time.Hour, p.Enforcement.OverrideDuration)
	assert.Equal(t, 10, p.Enforcement.MaxCommandsPer5Min)
	assert.Equal(t, 10*time.Minute, p.Enforcement.BreakerDuration)
	assert.Equal(t, 10*time.Second, p.Enforcement.BackoffInitial)
	assert.Equal(t, 5*time.Minute, p.Enforcement.BackoffMax)
	assert.Equal(t, 8*time.Second, p.Enforcement.VerifyTimeout)
	assert.Equal(t, 3, p.Wake.RemoteRetries)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(*PairConfiguration)
		field  string
	}{
		{"missing name", func(p *PairConfiguration) { p.Name = "" }, "name"},
		{"missing target url", func(p *PairConfiguration) { p.Target.URL = "" }, "target.url"},
		{"missing source url", func(p *PairConfiguration) { p.Source.URL = "" }, "source.url"},
		{"bad active mode", func(p *PairConfiguration) { p.Source.ActiveMode = "always" }, "source.activeMode"},
		{"bad away policy", func(p *PairConfiguration) { p.Presence.AwayPolicy = "sleep" }, "presence.awayPolicy"},
		{"presence without broker", func(p *PairConfiguration) { p.Presence.Broker = "" }, "presence.broker"},
		{"bad night behavior", func(p *PairConfiguration) { p.ActiveHours.NightBehavior = "panic" }, "activeHours.nightBehavior"},
		{"broadcast without mac", func(p *PairConfiguration) { p.Target.MAC = "" }, "target.mac"},
		{"bad input source", func(p *PairConfiguration) { p.InputSource = "vga" }, "inputSource"},
		{"negative debounce", func(p *PairConfiguration) { p.Source.Debounce = -time.Second }, "source.debounce"},
		{"negative cooldown", func(p *PairConfiguration) { p.Enforcement.Cooldown = -30 * time.Second }, "enforcement.cooldown"},
		{"negative resync interval", func(p *PairConfiguration) { p.Enforcement.ResyncInterval = -5 * time.Minute }, "enforcement.resyncInterval"},
		{"negative backoff", func(p *PairConfiguration) { p.Enforcement.BackoffInitial = -time.Second }, "enforcement.backoffInitial"},
		{"negative command threshold", func(p *PairConfiguration) { p.Enforcement.MaxCommandsPer5Min = -1 }, "enforcement.maxCommandsPer5Min"},
		{"negative drift budget", func(p *PairConfiguration) { p.Enforcement.DriftBudgetPerHour = -1 }, "enforcement.driftBudgetPerHour"},
		{"negative wake retries", func(p *PairConfiguration) { p.Wake.RemoteRetries = -1 }, "wake.remoteRetries"},
		{"negative wake delay", func(p *PairConfiguration) { p.Wake.BroadcastDelay = -time.Second }, "wake.broadcastDelay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(strings.NewReader(validConfig))
			require.NoError(t, err)
			tt.mangle(&c.Pairs[0])

			var buf bytes.Buffer
			require.NoError(t, yaml.NewEncoder(&buf).Encode(c))
			_, err = Load(&buf)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(strings.NewReader("pairs: {"))
	assert.Error(t, err)

	_, err = Load(strings.NewReader("pairs:\n  - name: x\n    activeHours:\n      start: \"25:00\"\n"))
	assert.Error(t, err)
}
