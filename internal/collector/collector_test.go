package collector

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hoveln/framesync/internal/controller"
	"github.com/hoveln/framesync/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	pub := pubsub.New[controller.Status](slog.Default())
	c := New(pub, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	assert.Eventually(t, func() bool { return pub.Subscribers() > 0 }, time.Second, 10*time.Millisecond)
	pub.Publish(controller.Status{
		Name:             "living-room",
		Health:           "ok",
		DesiredMode:      "media",
		ActualMode:       "media",
		SourceActive:     true,
		SourceConnected:  true,
		CommandsInWindow: 2,
		ConnectFailures:  1,
	})

	assert.Eventually(t, func() bool {
		return testutil.CollectAndCount(c, "framesync_pair_healthy") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP framesync_pair_healthy 1 if the pair's health is ok
# TYPE framesync_pair_healthy gauge
framesync_pair_healthy{pair="living-room"} 1

# HELP framesync_pair_source_active 1 if the media source is active
# TYPE framesync_pair_source_active gauge
framesync_pair_source_active{pair="living-room"} 1

# HELP framesync_pair_commands_in_window Number of commands in the 5-minute sliding window
# TYPE framesync_pair_commands_in_window gauge
framesync_pair_commands_in_window{pair="living-room"} 2

# HELP framesync_pair_connect_failures_total Total number of device connect/probe failures
# TYPE framesync_pair_connect_failures_total counter
framesync_pair_connect_failures_total{pair="living-room"} 1

# HELP framesync_pair_mode Desired and actual display mode. Always one. See labels 'desired' and 'actual'
# TYPE framesync_pair_mode gauge
framesync_pair_mode{actual="media",desired="media",pair="living-room"} 1
`), "framesync_pair_healthy", "framesync_pair_source_active", "framesync_pair_commands_in_window", "framesync_pair_connect_failures_total", "framesync_pair_mode"))
}
