package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/hidroctl/internal/protocol"
)

func configuredSnapshot() *protocol.Snapshot {
	snap := protocol.NewSnapshot()
	snap.Zones[0] = &protocol.ZoneState{Index: 0, OutputID: 0, On: true, Label: "Front lawn"}
	snap.Zones[1] = &protocol.ZoneState{Index: 1, OutputID: 1, Label: ""}
	snap.Tanks[0] = &protocol.TankState{Index: 0, OutputID: 2, Label: "Cistern", Level: 3}
	snap.Tanks[1] = &protocol.TankState{Index: 1, OutputID: 3, Level: protocol.LevelUnknown}
	snap.Pump = &protocol.PumpState{State: protocol.StateOn}
	return snap
}

func TestBuildStatePayload(t *testing.T) {
	payload, err := buildStatePayload(configuredSnapshot())
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal(payload, &state))

	assert.Equal(t, "ON", state["zone_0"])
	assert.Equal(t, "OFF", state["zone_1"])
	assert.Equal(t, "OFF", state["tank_0"])
	assert.Equal(t, float64(3), state["tank_0_level"])
	assert.Equal(t, "ON", state["pump"])
	assert.Equal(t, "ON", state["auto"])

	// A tank without a working probe must not report a level at all.
	_, hasLevel := state["tank_1_level"]
	assert.False(t, hasLevel, "unknown tank level leaked into the payload")
}

func TestBuildDiscovery(t *testing.T) {
	msgs := buildDiscovery("20417", configuredSnapshot(), "hidromotic")
	require.NotEmpty(t, msgs)

	byTopic := make(map[string]haDiscovery, len(msgs))
	for _, msg := range msgs {
		var payload haDiscovery
		require.NoError(t, json.Unmarshal(msg.Payload, &payload), "topic %s", msg.Topic)
		byTopic[msg.Topic] = payload
	}

	zone, ok := byTopic["homeassistant/switch/hidromotic_20417/zone_0/config"]
	require.True(t, ok, "zone 0 switch discovery missing")
	assert.Equal(t, "Front lawn", zone.Name)
	assert.Equal(t, "hidromotic_20417_zone_0", zone.UniqueID)
	assert.Equal(t, "hidromotic/20417", zone.StateTopic)
	assert.Equal(t, "hidromotic/20417/zone/0/set", zone.CommandTopic)
	assert.Equal(t, "{{ value_json.zone_0 }}", zone.ValueTemplate)
	assert.Equal(t, "hidromotic/bridge/state", zone.AvailabilityTopic)
	assert.Contains(t, zone.Device.Identifiers, "hidromotic_20417")

	// Zones without a wire label fall back to a positional name.
	unnamed := byTopic["homeassistant/switch/hidromotic_20417/zone_1/config"]
	assert.Equal(t, "Zone 2", unnamed.Name)

	tank, ok := byTopic["homeassistant/binary_sensor/hidromotic_20417/tank_0/config"]
	require.True(t, ok, "tank 0 binary sensor discovery missing")
	assert.Equal(t, "Cistern Filling", tank.Name)
	assert.Empty(t, tank.CommandTopic, "tanks are read-only")

	level, ok := byTopic["homeassistant/sensor/hidromotic_20417/tank_0_level/config"]
	require.True(t, ok, "tank 0 level sensor discovery missing")
	assert.Equal(t, "{{ value_json.tank_0_level }}", level.ValueTemplate)

	_, ok = byTopic["homeassistant/binary_sensor/hidromotic_20417/pump/config"]
	assert.True(t, ok, "pump discovery missing")

	auto, ok := byTopic["homeassistant/switch/hidromotic_20417/auto/config"]
	require.True(t, ok, "auto irrigation discovery missing")
	assert.Equal(t, "hidromotic/20417/auto/set", auto.CommandTopic)
}

func TestBuildDiscoveryMiniModel(t *testing.T) {
	snap := protocol.NewSnapshot()
	snap.IsMini = true
	snap.Zones[0] = &protocol.ZoneState{Index: 0}

	msgs := buildDiscovery("7", snap, "hidromotic")
	require.NotEmpty(t, msgs)

	var payload haDiscovery
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "Hidromotic Mini", payload.Device.Model)
}

func TestZoneFromCommandTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantZone int
		wantOK   bool
	}{
		{"hidromotic/20417/zone/0/set", 0, true},
		{"hidromotic/20417/zone/11/set", 11, true},
		{"custom/prefix/20417/zone/3/set", 3, true},
		{"hidromotic/20417/zone/x/set", 0, false},
		{"hidromotic/20417/zone/-1/set", 0, false},
		{"hidromotic/20417/auto/set", 0, false},
		{"hidromotic/20417/zone/0", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			zone, ok := zoneFromCommandTopic(tt.topic)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantZone, zone)
			}
		})
	}
}

func TestParseOnOff(t *testing.T) {
	tests := []struct {
		payload string
		wantOn  bool
		wantOK  bool
	}{
		{"ON", true, true},
		{"on", true, true},
		{" On \n", true, true},
		{"1", true, true},
		{"OFF", false, true},
		{"0", false, true},
		{"false", false, true},
		{"toggle", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		on, ok := parseOnOff([]byte(tt.payload))
		assert.Equal(t, tt.wantOK, ok, "payload %q", tt.payload)
		if tt.wantOK {
			assert.Equal(t, tt.wantOn, on, "payload %q", tt.payload)
		}
	}
}

// fakeHidro records the commands the bridge forwards.
type fakeHidro struct {
	zoneCalls []struct {
		zone int
		on   bool
	}
	autoCalls []bool
}

func (f *fakeHidro) Subscribe(func(*protocol.Snapshot)) func() { return func() {} }
func (f *fakeHidro) Snapshot() *protocol.Snapshot              { return protocol.NewSnapshot() }
func (f *fakeHidro) SetZoneState(zone int, on bool) error {
	f.zoneCalls = append(f.zoneCalls, struct {
		zone int
		on   bool
	}{zone, on})
	return nil
}
func (f *fakeHidro) SetAutoIrrigation(on bool) error {
	f.autoCalls = append(f.autoCalls, on)
	return nil
}

func TestHandleZoneCommand(t *testing.T) {
	fake := &fakeHidro{}
	b := &Bridge{hidro: fake, serial: "20417", prefix: "hidromotic"}

	b.handleZoneCommand("hidromotic/20417/zone/4/set", []byte("ON"))
	require.Len(t, fake.zoneCalls, 1)
	assert.Equal(t, 4, fake.zoneCalls[0].zone)
	assert.True(t, fake.zoneCalls[0].on)

	// Malformed payloads and topics are dropped, not forwarded.
	b.handleZoneCommand("hidromotic/20417/zone/4/set", []byte("sideways"))
	b.handleZoneCommand("hidromotic/20417/zone/set", []byte("ON"))
	assert.Len(t, fake.zoneCalls, 1)
}
