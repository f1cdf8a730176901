package config

import "time"

// Registry represents the entire user configuration file. It stores
// user-defined metadata for controllers and application preferences; nothing
// in here is authoritative device state, which always comes from the device
// itself.
type Registry struct {
	Version     int                    `yaml:"version"`
	Controllers map[string]*Controller `yaml:"controllers,omitempty"` // keyed by serial
	Preferences *Preferences           `yaml:"preferences,omitempty"`
}

// Controller is user-defined metadata for a single Hidromotic controller,
// keyed by serial number in the Registry.
type Controller struct {
	Nickname string            `yaml:"nickname,omitempty"`  // user-friendly name
	Host     string            `yaml:"host,omitempty"`      // last known address
	Port     int               `yaml:"port,omitempty"`      // WebSocket port
	LastSeen time.Time         `yaml:"last_seen,omitempty"` // last discovery/connection time
	Zones    map[int]*ZoneMeta `yaml:"zones,omitempty"`     // keyed by zone index
	Tanks    map[int]*TankMeta `yaml:"tanks,omitempty"`     // keyed by tank index
}

// ZoneMeta is client-side zone metadata. The controller carries its own
// labels; these override them for display only.
type ZoneMeta struct {
	Label string `yaml:"label"`
	Icon  string `yaml:"icon,omitempty"`
}

// TankMeta is client-side tank metadata.
type TankMeta struct {
	Label string `yaml:"label"`
	Icon  string `yaml:"icon,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool      `yaml:"auto_discover"`    // mDNS discovery on startup
	DiscoverTimeout int       `yaml:"discover_timeout"` // discovery timeout in seconds
	MQTT            *MQTTPref `yaml:"mqtt,omitempty"`   // bridge defaults
}

// MQTTPref holds default settings for the MQTT bridge. The password is never
// stored; pass it via flag or environment when starting the bridge.
type MQTTPref struct {
	Broker      string `yaml:"broker,omitempty"`
	Username    string `yaml:"username,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Controllers: make(map[string]*Controller),
		Preferences: &Preferences{
			AutoDiscover:    true,
			DiscoverTimeout: 10,
		},
	}
}

// GetController retrieves controller metadata by serial number. Returns nil
// if the controller is not in the registry.
func (r *Registry) GetController(serial string) *Controller {
	return r.Controllers[serial]
}

// EnsureController returns the entry for serial, creating it if needed.
func (r *Registry) EnsureController(serial string) *Controller {
	if r.Controllers == nil {
		r.Controllers = make(map[string]*Controller)
	}
	if c, exists := r.Controllers[serial]; exists {
		return c
	}
	c := &Controller{
		Zones: make(map[int]*ZoneMeta),
		Tanks: make(map[int]*TankMeta),
	}
	r.Controllers[serial] = c
	return c
}

// UpdateLastSeen records the address a controller was last reached at.
func (r *Registry) UpdateLastSeen(serial, host string, port int) {
	c := r.EnsureController(serial)
	c.LastSeen = time.Now()
	c.Host = host
	c.Port = port
}

// SetZoneLabel sets or updates zone metadata for a controller.
func (r *Registry) SetZoneLabel(serial string, zone int, label, icon string) {
	c := r.EnsureController(serial)
	if c.Zones == nil {
		c.Zones = make(map[int]*ZoneMeta)
	}
	c.Zones[zone] = &ZoneMeta{Label: label, Icon: icon}
}

// SetTankLabel sets or updates tank metadata for a controller.
func (r *Registry) SetTankLabel(serial string, tank int, label, icon string) {
	c := r.EnsureController(serial)
	if c.Tanks == nil {
		c.Tanks = make(map[int]*TankMeta)
	}
	c.Tanks[tank] = &TankMeta{Label: label, Icon: icon}
}

// SetNickname sets a user-friendly nickname for a controller.
func (r *Registry) SetNickname(serial, nickname string) {
	r.EnsureController(serial).Nickname = nickname
}
