package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMode(t *testing.T) {
	for _, mode := range []Mode{ModeMedia, ModeIdle, ModeOff} {
		parsed, err := ParseMode(mode.String())
		assert.NoError(t, err)
		assert.Equal(t, mode, parsed)
	}
	_, err := ParseMode("artsy")
	assert.Error(t, err)
	assert.Equal(t, "unknown", ModeUnknown.String())
}
