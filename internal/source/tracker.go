// Package source tracks a media source's activity over its websocket push
// feed. Raw events are debounced into a stable activity signal; a reconnect
// loop with capped backoff keeps the feed alive.
package source

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// reconnect backoff steps
var reconnectDelays = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}

// Config holds the tracker's connection and debounce parameters.
type Config struct {
	// URL of the source's websocket event feed.
	URL string
	// Debounce is the delay during which raw events are coalesced.
	Debounce time.Duration
	// Grace is the period after a disconnect during which the last known
	// state is retained before the source is considered inactive.
	Grace time.Duration
	// ActiveMode selects which playback states count as active:
	// playing_or_paused, playing_only or power_on.
	ActiveMode string
}

// event is the tagged union carried by the push feed. Playback updates carry
// a playback state; power updates carry an on/off state.
type event struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// Tracker owns the source connection. OnStateChange is invoked exactly once
// per coalesced activity transition.
type Tracker struct {
	cfg           Config
	OnStateChange func(active bool, playback string)
	logger        *slog.Logger

	mu              sync.Mutex
	conn            *websocket.Conn
	connected       bool
	shouldReconnect bool
	disconnectedAt  time.Time

	playback    string
	powerOn     bool
	activeSent  bool
	activeKnown bool
	debounce    *time.Timer

	wg sync.WaitGroup
}

// New creates a tracker. onStateChange must be safe to call from the
// tracker's goroutines.
func New(cfg Config, onStateChange func(active bool, playback string), logger *slog.Logger) *Tracker {
	return &Tracker{
		cfg:           cfg,
		OnStateChange: onStateChange,
		logger:        logger,
	}
}

// IsConnected reports whether the push feed is currently up, tolerating the
// post-disconnect grace period during which the last state is retained.
func (t *Tracker) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return true
	}
	return !t.disconnectedAt.IsZero() && time.Since(t.disconnectedAt) < t.cfg.Grace
}

// Run connects to the source and keeps the feed alive until ctx is
// cancelled, reconnecting with capped backoff.
func (t *Tracker) Run(ctx context.Context) error {
	t.mu.Lock()
	t.shouldReconnect = true
	t.mu.Unlock()

	t.logger.Debug("tracker starting")
	defer t.logger.Debug("tracker stopping")

	var failures int
	for {
		if err := t.connect(ctx); err != nil {
			t.logger.Warn("source connection failed", "err", err)
			delay := reconnectDelays[min(failures, len(reconnectDelays)-1)]
			failures++
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		failures = 0

		err := t.readLoop(ctx)
		t.markDisconnected()
		if ctx.Err() != nil {
			return nil
		}
		t.mu.Lock()
		again := t.shouldReconnect
		t.mu.Unlock()
		if !again {
			return nil
		}
		t.logger.Warn("source feed lost, reconnecting", "err", err)
	}
}

// Close stops reconnecting, closes the connection and waits for all pending
// debounce tasks. Never called with the mutex held.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.shouldReconnect = false
	if t.debounce != nil {
		if t.debounce.Stop() {
			t.wg.Done()
		}
		t.debounce = nil
	}
	conn := t.conn
	t.conn = nil
	t.connected = false
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	t.wg.Wait()
	return err
}

func (t *Tracker) connect(ctx context.Context) error {
	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := d.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.disconnectedAt = time.Time{}
	t.mu.Unlock()
	t.logger.Debug("connected to source", "url", t.cfg.URL)
	return nil
}

func (t *Tracker) readLoop(ctx context.Context) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev event
		if err = json.Unmarshal(payload, &ev); err != nil {
			t.logger.Warn("invalid source event", "err", err)
			continue
		}
		t.handleEvent(ev)
	}
}

// handleEvent updates the raw state and (re)arms the debounce timer: any
// pending timer is cancelled first so intermediate values inside a debounce
// window never reach the callback.
func (t *Tracker) handleEvent(ev event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case "playback":
		t.playback = ev.State
	case "power":
		t.powerOn = ev.State == "on"
	default:
		return
	}

	if t.debounce != nil && t.debounce.Stop() {
		t.wg.Done()
	}
	t.wg.Add(1)
	t.debounce = time.AfterFunc(t.cfg.Debounce, func() {
		defer t.wg.Done()
		t.fireDebounced()
	})
}

// fireDebounced delivers the coalesced state. A stale invocation during the
// post-disconnect grace period retains the last delivered state.
func (t *Tracker) fireDebounced() {
	t.mu.Lock()
	if !t.connected {
		if !t.disconnectedAt.IsZero() && time.Since(t.disconnectedAt) < t.cfg.Grace {
			t.mu.Unlock()
			return
		}
	}
	active := t.isActiveLocked()
	changed := !t.activeKnown || active != t.activeSent
	t.activeSent = active
	t.activeKnown = true
	playback := t.playback
	callback := t.OnStateChange
	t.mu.Unlock()

	if changed && callback != nil {
		callback(active, playback)
	}
}

func (t *Tracker) isActiveLocked() bool {
	switch t.cfg.ActiveMode {
	case "power_on":
		return t.powerOn
	case "playing_only":
		return t.playback == "playing"
	default: // playing_or_paused
		return t.playback == "playing" || t.playback == "paused"
	}
}

func (t *Tracker) markDisconnected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.conn = nil
	t.disconnectedAt = time.Now()
}
