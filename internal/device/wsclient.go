package device

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config holds the connection parameters for a WSClient.
type Config struct {
	// URL of the device's websocket control channel, e.g. ws://10.0.0.5:8002/control.
	URL string
	// MACAddress is used for wake-on-LAN. Optional.
	MACAddress string
	// BroadcastAddr is the wake-on-LAN destination. Defaults to 255.255.255.255:9.
	BroadcastAddr string
	// Timeout bounds a single request/response exchange.
	Timeout time.Duration
	// PollInterval is the wait between reads while verifying a mode change.
	PollInterval time.Duration
}

// WSClient implements Client over a websocket control channel. A single
// connection is shared by all calls; the mutex serializes exchanges.
type WSClient struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ Client = &WSClient{}

// NewWSClient returns a WSClient for the given device.
func NewWSClient(cfg Config, logger *slog.Logger) *WSClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 800 * time.Millisecond
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = "255.255.255.255:9"
	}
	return &WSClient{cfg: cfg, logger: logger}
}

type request struct {
	Request string `json:"request"`
	Mode    string `json:"mode,omitempty"`
	Key     string `json:"key,omitempty"`
	Input   string `json:"input,omitempty"`
}

type response struct {
	Result string `json:"result"`
	Mode   string `json:"mode,omitempty"`
}

func (c *WSClient) Connect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *WSClient) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	d := websocket.Dialer{HandshakeTimeout: c.cfg.Timeout}
	conn, _, err := d.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	c.conn = conn
	c.logger.Debug("connected", slog.String("url", c.cfg.URL))
	return nil
}

func (c *WSClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *WSClient) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends req and reads one response. On any transport error the
// connection is dropped so the next call redials.
func (c *WSClient) roundTrip(ctx context.Context, req request) (response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var resp response
	if err := c.connectLocked(); err != nil {
		return resp, err
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		_ = c.closeLocked()
		return resp, fmt.Errorf("%w: write: %w", ErrUnreachable, err)
	}
	_ = c.conn.SetReadDeadline(deadline)
	if err := c.conn.ReadJSON(&resp); err != nil {
		_ = c.closeLocked()
		return resp, fmt.Errorf("%w: read: %w", ErrUnreachable, err)
	}
	return resp, nil
}

func (c *WSClient) ReadMode(ctx context.Context) (Mode, error) {
	resp, err := c.roundTrip(ctx, request{Request: "get-mode"})
	if err != nil {
		return ModeUnknown, err
	}
	mode, err := ParseMode(resp.Mode)
	if err != nil {
		return ModeUnknown, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return mode, nil
}

func (c *WSClient) SetMode(ctx context.Context, mode Mode) error {
	resp, err := c.roundTrip(ctx, request{Request: "set-mode", Mode: mode.String()})
	if err != nil {
		return err
	}
	if resp.Result != "ok" {
		return fmt.Errorf("set-mode rejected: %s", resp.Result)
	}
	return nil
}

// VerifyMode polls the device until it reports expected. The elapsed-time check
// runs before each sleep, so the total wait never exceeds maxWait by more than
// the cost of one poll.
func (c *WSClient) VerifyMode(ctx context.Context, expected Mode, maxWait time.Duration) error {
	start := time.Now()
	for {
		mode, err := c.ReadMode(ctx)
		if err == nil && mode == expected {
			return nil
		}
		if time.Since(start) >= maxWait {
			return ErrVerifyTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *WSClient) SendWake(ctx context.Context, method WakeMethod) error {
	switch method {
	case WakeBroadcast:
		if c.cfg.MACAddress == "" {
			return fmt.Errorf("no MAC address configured for wake-on-LAN")
		}
		return sendMagicPacket(c.cfg.MACAddress, c.cfg.BroadcastAddr)
	default:
		resp, err := c.roundTrip(ctx, request{Request: "key", Key: "POWER"})
		if err != nil {
			return err
		}
		if resp.Result != "ok" {
			return fmt.Errorf("wake key rejected: %s", resp.Result)
		}
		return nil
	}
}

// SelectInput switches the display to the given input.
func (c *WSClient) SelectInput(ctx context.Context, input string) error {
	resp, err := c.roundTrip(ctx, request{Request: "set-input", Input: input})
	if err != nil {
		return err
	}
	if resp.Result != "ok" {
		return fmt.Errorf("set-input rejected: %s", resp.Result)
	}
	return nil
}

// Probe attempts a plain TCP connection to the device's control port.
func (c *WSClient) Probe(_ context.Context) bool {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}
	conn, err := net.DialTimeout("tcp", host, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
