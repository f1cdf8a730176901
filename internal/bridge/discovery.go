package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/muurk/hidroctl/internal/protocol"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/switch/hidromotic_20417/zone_0/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery. All entities of one
// controller share it so Home Assistant groups them together.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery is a generic HA discovery payload.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	ValueTemplate     string   `json:"value_template,omitempty"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Device            haDevice `json:"device"`
}

// buildDiscovery generates HA discovery messages for one controller based on
// its configured outputs. Zones become switches, tanks become binary sensors
// plus a level sensor, the pump a binary sensor, and auto irrigation a switch.
func buildDiscovery(serial string, snap *protocol.Snapshot, prefix string) []discoveryMsg {
	nodeID := "hidromotic_" + serial
	avail := prefix + "/bridge/state"
	stateTopic := prefix + "/" + serial

	model := "Hidromotic"
	if snap.IsMini {
		model = "Hidromotic Mini"
	}
	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: "Hidromotic",
		Model:        model,
		Name:         "Hidromotic " + serial,
	}

	var msgs []discoveryMsg
	add := func(component, object string, payload haDiscovery) {
		payload.Device = haDev
		payload.AvailabilityTopic = avail
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("homeassistant/%s/%s/%s/config", component, nodeID, object),
			Payload: data,
		})
	}

	for _, id := range sortedKeys(snap.Zones) {
		zone := snap.Zones[id]
		name := zone.Label
		if name == "" {
			name = fmt.Sprintf("Zone %d", id+1)
		}
		object := fmt.Sprintf("zone_%d", id)
		add("switch", object, haDiscovery{
			Name:          name,
			UniqueID:      fmt.Sprintf("%s_zone_%d", nodeID, id),
			StateTopic:    stateTopic,
			CommandTopic:  fmt.Sprintf("%s/%s/zone/%d/set", prefix, serial, id),
			ValueTemplate: fmt.Sprintf("{{ value_json.zone_%d }}", id),
			PayloadOn:     "ON",
			PayloadOff:    "OFF",
		})
	}

	for _, id := range sortedKeys(snap.Tanks) {
		tank := snap.Tanks[id]
		name := tank.Label
		if name == "" {
			name = fmt.Sprintf("Tank %d", id+1)
		}
		add("binary_sensor", fmt.Sprintf("tank_%d", id), haDiscovery{
			Name:          name + " Filling",
			UniqueID:      fmt.Sprintf("%s_tank_%d", nodeID, id),
			StateTopic:    stateTopic,
			ValueTemplate: fmt.Sprintf("{{ value_json.tank_%d }}", id),
			DeviceClass:   "running",
			PayloadOn:     "ON",
			PayloadOff:    "OFF",
		})
		// Level is a 0-4 probe step, not a percentage.
		add("sensor", fmt.Sprintf("tank_%d_level", id), haDiscovery{
			Name:          name + " Level",
			UniqueID:      fmt.Sprintf("%s_tank_%d_level", nodeID, id),
			StateTopic:    stateTopic,
			ValueTemplate: fmt.Sprintf("{{ value_json.tank_%d_level }}", id),
			StateClass:    "measurement",
		})
	}

	if snap.Pump != nil {
		add("binary_sensor", "pump", haDiscovery{
			Name:          "Pump",
			UniqueID:      nodeID + "_pump",
			StateTopic:    stateTopic,
			ValueTemplate: "{{ value_json.pump }}",
			DeviceClass:   "running",
			PayloadOn:     "ON",
			PayloadOff:    "OFF",
		})
	}

	add("switch", "auto", haDiscovery{
		Name:          "Auto Irrigation",
		UniqueID:      nodeID + "_auto",
		StateTopic:    stateTopic,
		CommandTopic:  fmt.Sprintf("%s/%s/auto/set", prefix, serial),
		ValueTemplate: "{{ value_json.auto }}",
		PayloadOn:     "ON",
		PayloadOff:    "OFF",
	})

	return msgs
}
