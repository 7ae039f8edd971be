// Package device defines the contract with the target display device and an
// adapter implementing it over the device's websocket control channel.
package device

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnreachable indicates the device could not be read or commanded.
	ErrUnreachable = errors.New("device unreachable")
	// ErrVerifyTimeout indicates the device did not reach the expected mode in time.
	ErrVerifyTimeout = errors.New("mode verification timed out")
)

// Client is the set of primitives the enforcement controller needs from a
// target device. Implementations must not block beyond the deadline of the
// provided context.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	// ReadMode returns the device's current mode, or ErrUnreachable.
	ReadMode(ctx context.Context) (Mode, error)
	SetMode(ctx context.Context, mode Mode) error
	// VerifyMode polls the device until it reports expected, or maxWait elapses.
	VerifyMode(ctx context.Context, expected Mode, maxWait time.Duration) error
	SendWake(ctx context.Context, method WakeMethod) error
	// Probe reports low-level network connectivity, without a full protocol exchange.
	Probe(ctx context.Context) bool
}
