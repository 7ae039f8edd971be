package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hoveln/framesync/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePair struct {
	forced    []device.Mode
	resyncs   int
	overrides int
	breakers  int
}

func (f *fakePair) ForceMode(_ context.Context, mode device.Mode) error {
	f.forced = append(f.forced, mode)
	return nil
}
func (f *fakePair) Resync(context.Context) { f.resyncs++ }
func (f *fakePair) ClearOverride()         { f.overrides++ }
func (f *fakePair) ClearBreaker()          { f.breakers++ }

func TestServer(t *testing.T) {
	registry := &Registry{}
	registry.Acquire()
	defer registry.Release()

	pair := &fakePair{}
	registry.Add("living-room", pair)

	mux := http.NewServeMux()
	NewServer(registry, slog.Default()).Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	tests := []struct {
		op       string
		wantCode int
	}{
		{"force-media", http.StatusNoContent},
		{"force-idle", http.StatusNoContent},
		{"force-off", http.StatusNoContent},
		{"resync", http.StatusNoContent},
		{"clear-override", http.StatusNoContent},
		{"clear-breaker", http.StatusNoContent},
		{"self-destruct", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			resp, err := http.Post(server.URL+"/api/pair/living-room/"+tt.op, "", nil)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}

	assert.Equal(t, []device.Mode{device.ModeMedia, device.ModeIdle, device.ModeOff}, pair.forced)
	assert.Equal(t, 1, pair.resyncs)
	assert.Equal(t, 1, pair.overrides)
	assert.Equal(t, 1, pair.breakers)

	resp, err := http.Post(server.URL+"/api/pair/kitchen/resync", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/pair/living-room/resync")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRegistry_RefCount(t *testing.T) {
	registry := &Registry{}

	// not acquired: Add is a no-op
	registry.Add("x", &fakePair{})
	_, ok := registry.Get("x")
	assert.False(t, ok)

	registry.Acquire()
	registry.Acquire()
	registry.Add("x", &fakePair{})

	registry.Release()
	_, ok = registry.Get("x")
	assert.True(t, ok, "registry survives while a reference remains")

	registry.Release()
	_, ok = registry.Get("x")
	assert.False(t, ok, "registry torn down at zero references")
}
