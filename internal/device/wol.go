package device

import (
	"fmt"
	"net"
)

// sendMagicPacket sends a wake-on-LAN magic packet (six 0xff bytes followed by
// sixteen repetitions of the MAC) to the given UDP broadcast address.
func sendMagicPacket(mac, broadcastAddr string) error {
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return fmt.Errorf("invalid MAC address %q: need 48-bit address", mac)
	}

	packet := make([]byte, 0, 102)
	for range 6 {
		packet = append(packet, 0xff)
	}
	for range 16 {
		packet = append(packet, hw...)
	}

	conn, err := net.Dial("udp", broadcastAddr)
	if err != nil {
		return fmt.Errorf("wake-on-LAN: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err = conn.Write(packet); err != nil {
		return fmt.Errorf("wake-on-LAN: %w", err)
	}
	return nil
}
