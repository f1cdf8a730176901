package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"go.uber.org/zap"

	"github.com/muurk/hidroctl/internal/logging"
	"github.com/muurk/hidroctl/internal/protocol"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker      string
	Username    string
	Password    string
	TopicPrefix string
}

// Controller is the subset of the WebSocket client the bridge drives.
type Controller interface {
	Subscribe(func(*protocol.Snapshot)) func()
	Snapshot() *protocol.Snapshot
	SetZoneState(zone int, on bool) error
	SetAutoIrrigation(on bool) error
}

// Bridge republishes controller state to MQTT with Home Assistant
// autodiscovery, and forwards MQTT commands back to the controller.
type Bridge struct {
	client pahomqtt.Client
	hidro  Controller
	serial string
	prefix string
	unsub  func()
}

// NewBridge creates and connects an MQTT bridge for one controller,
// identified by its serial number.
func NewBridge(hidro Controller, serial string, cfg Config) (*Bridge, error) {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "hidromotic"
	}
	b := &Bridge{
		hidro:  hidro,
		serial: serial,
		prefix: prefix,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("hidroctl-" + serial).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(b.availabilityTopic(), "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			logging.Info("MQTT connected", zap.String("broker", cfg.Broker))
			b.publish(b.availabilityTopic(), []byte("online"), true)
			b.publishDiscovery(b.hidro.Snapshot())
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logging.Warn("MQTT connection lost", zap.Error(err))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	b.client = client
	return b, nil
}

// Start subscribes to controller snapshots and begins MQTT publishing.
func (b *Bridge) Start() {
	b.unsub = b.hidro.Subscribe(b.handleSnapshot)
	logging.Info("MQTT bridge started", zap.String("prefix", b.prefix), zap.String("serial", b.serial))
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publish(b.availabilityTopic(), []byte("offline"), true)
	b.client.Disconnect(1000)
	logging.Info("MQTT bridge stopped")
}

func (b *Bridge) handleSnapshot(snap *protocol.Snapshot) {
	payload, err := buildStatePayload(snap)
	if err != nil {
		logging.Error("failed to encode controller state", zap.Error(err))
		return
	}
	b.publish(b.stateTopic(), payload, true)
}

func (b *Bridge) availabilityTopic() string {
	return b.prefix + "/bridge/state"
}

func (b *Bridge) stateTopic() string {
	return b.prefix + "/" + b.serial
}

func (b *Bridge) publish(topic string, payload []byte, retain bool) {
	token := b.client.Publish(topic, 1, retain, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			logging.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
		}
	}()
}

func (b *Bridge) publishDiscovery(snap *protocol.Snapshot) {
	if snap == nil {
		return
	}
	for _, msg := range buildDiscovery(b.serial, snap, b.prefix) {
		b.publish(msg.Topic, msg.Payload, true)
	}
	logging.Info("published HA discovery",
		zap.String("serial", b.serial),
		zap.Int("zones", len(snap.Zones)),
		zap.Int("tanks", len(snap.Tanks)))
}

func (b *Bridge) subscribeCommands() {
	zoneTopic := b.prefix + "/" + b.serial + "/zone/+/set"
	b.client.Subscribe(zoneTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleZoneCommand(msg.Topic(), msg.Payload())
	})

	autoTopic := b.prefix + "/" + b.serial + "/auto/set"
	b.client.Subscribe(autoTopic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		on, ok := parseOnOff(msg.Payload())
		if !ok {
			logging.Warn("ignoring malformed auto command", zap.ByteString("payload", msg.Payload()))
			return
		}
		if err := b.hidro.SetAutoIrrigation(on); err != nil {
			logging.Error("auto irrigation command failed", zap.Error(err))
		}
	})
}

func (b *Bridge) handleZoneCommand(topic string, payload []byte) {
	zone, ok := zoneFromCommandTopic(topic)
	if !ok {
		logging.Warn("ignoring command on malformed topic", zap.String("topic", topic))
		return
	}
	on, ok := parseOnOff(payload)
	if !ok {
		logging.Warn("ignoring malformed zone command", zap.String("topic", topic), zap.ByteString("payload", payload))
		return
	}
	if err := b.hidro.SetZoneState(zone, on); err != nil {
		logging.Error("zone command failed", zap.Int("zone", zone), zap.Error(err))
	}
}

// zoneFromCommandTopic extracts the zone index from a topic of the form
// "<prefix>/<serial>/zone/<id>/set".
func zoneFromCommandTopic(topic string) (int, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "set" || parts[len(parts)-3] != "zone" {
		return 0, false
	}
	zone, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || zone < 0 {
		return 0, false
	}
	return zone, true
}

// parseOnOff interprets a command payload. Accepts ON/OFF in any case plus
// the 1/0 shorthand.
func parseOnOff(payload []byte) (on, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "1", "TRUE":
		return true, true
	case "OFF", "0", "FALSE":
		return false, true
	}
	return false, false
}

// buildStatePayload flattens a snapshot into a single JSON object. Keys are
// stable ("zone_0", "tank_1_level") so Home Assistant value templates can
// address them directly.
func buildStatePayload(snap *protocol.Snapshot) ([]byte, error) {
	state := make(map[string]any)

	for _, id := range sortedKeys(snap.Zones) {
		state[fmt.Sprintf("zone_%d", id)] = onOff(snap.Zones[id].On)
	}
	for _, id := range sortedKeys(snap.Tanks) {
		tank := snap.Tanks[id]
		state[fmt.Sprintf("tank_%d", id)] = onOff(tank.On)
		if tank.Level != protocol.LevelUnknown {
			state[fmt.Sprintf("tank_%d_level", id)] = int(tank.Level)
		}
	}
	if snap.Pump != nil {
		state["pump"] = onOff(snap.Pump.State == protocol.StateOn)
	}
	state["auto"] = onOff(snap.AutoIrrigation)

	return json.Marshal(state)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
