package presence

import (
	"testing"

	"github.com/hoveln/framesync/internal/decision"
	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	homeStates := []string{"home", "on"}
	awayStates := []string{"away", "off", "not_home"}

	tests := []struct {
		payload string
		want    decision.Presence
	}{
		{"home", decision.PresenceHome},
		{"ON", decision.PresenceHome},
		{" home ", decision.PresenceHome},
		{"away", decision.PresenceAway},
		{"not_home", decision.PresenceAway},
		{"unavailable", decision.PresenceUnknown},
		{"", decision.PresenceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			assert.Equal(t, tt.want, Map(tt.payload, homeStates, awayStates))
		})
	}
}
