package discovery

import (
	"fmt"
	"net"
	"time"
)

// Device represents a cast receiver discovered on the local network
type Device struct {
	// ID is the receiver's unique identifier from the "id" TXT record.
	// Falls back to the mDNS instance name when the record is absent.
	ID string

	// Name is the friendly name from the "fn" TXT record (e.g., "Living Room TV")
	Name string

	// Model is the device model from the "md" TXT record (e.g., "Chromecast Ultra")
	Model string

	// Hostname is the mDNS hostname (e.g., "abc123.local.")
	Hostname string

	// IP is the resolved address, IPv4 preferred
	IP string

	// Port is the protocol TLS port (typically 8009)
	Port int

	// Metadata holds the remaining TXT record fields
	Metadata map[string]string

	// LastSeen is when an advertisement for this device last arrived
	LastSeen time.Time
}

// String returns a human-readable description of the device
func (d *Device) String() string {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return fmt.Sprintf("%s (%s) at %s:%d", name, d.Model, d.IP, d.Port)
}

// Addr returns the host:port address for connecting to the device
func (d *Device) Addr() string {
	return net.JoinHostPort(d.IP, fmt.Sprintf("%d", d.Port))
}

// GetMetadata retrieves a TXT record value by key, or empty string
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
