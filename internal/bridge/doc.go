// Package bridge republishes Hidromotic controller state to an MQTT broker.
//
// State is flattened into a single retained JSON payload per controller on
// "<prefix>/<serial>", and Home Assistant autodiscovery configs are published
// under "homeassistant/..." so zones, tanks, and the pump show up as entities
// without manual configuration. Commands arrive on "<prefix>/<serial>/zone/<id>/set"
// and "<prefix>/<serial>/auto/set" with ON/OFF payloads and are forwarded to
// the controller over its WebSocket connection.
//
// The broker connection auto-reconnects; a last-will message marks the bridge
// offline if it dies uncleanly.
package bridge
