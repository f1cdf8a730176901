package discovery

import (
	"fmt"
	"time"
)

// Controller represents a discovered Hidromotic controller on the network.
type Controller struct {
	// Serial is the controller serial number (e.g., "20417")
	Serial string

	// Hostname is the mDNS hostname (e.g., "hidromotic20417.local")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.74")
	IP string

	// Port is the WebSocket port (typically 80)
	Port int

	// Metadata contains additional mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the controller was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the controller.
func (c *Controller) String() string {
	return fmt.Sprintf("Hidromotic %s (%s) at %s:%d", c.Serial, c.Hostname, c.IP, c.Port)
}

// WebSocketURL returns the ws:// URL the controller listens on.
func (c *Controller) WebSocketURL() string {
	return fmt.Sprintf("ws://%s:%d/", c.IP, c.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found.
func (c *Controller) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}
