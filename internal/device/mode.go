package device

import "fmt"

// Mode is the display state of the target device.
type Mode int

const (
	ModeUnknown Mode = iota
	// ModeMedia shows the attached media source.
	ModeMedia
	// ModeIdle shows the device's idle/ambient display.
	ModeIdle
	// ModeOff turns the display off.
	ModeOff
)

func (m Mode) String() string {
	switch m {
	case ModeMedia:
		return "media"
	case ModeIdle:
		return "idle"
	case ModeOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseMode converts the wire/API representation of a mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "media":
		return ModeMedia, nil
	case "idle":
		return ModeIdle, nil
	case "off":
		return ModeOff, nil
	default:
		return ModeUnknown, fmt.Errorf("invalid mode %q", s)
	}
}

// WakeMethod selects how an unreachable device is woken.
type WakeMethod int

const (
	// WakeRemote sends a power key over the device's control channel.
	WakeRemote WakeMethod = iota
	// WakeBroadcast sends a wake-on-LAN magic packet.
	WakeBroadcast
)

func (w WakeMethod) String() string {
	if w == WakeBroadcast {
		return "broadcast"
	}
	return "remote"
}
