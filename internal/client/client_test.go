package client

import (
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/hidroctl/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeController is a WebSocket server standing in for a Hidromotic device.
// It records every dial and every text command, and hands connections to the
// test so it can push binary frames.
type fakeController struct {
	server   *httptest.Server
	conns    chan *websocket.Conn
	commands chan string
	dials    int32
}

func newFakeController(t *testing.T) *fakeController {
	fc := &fakeController{
		conns:    make(chan *websocket.Conn, 4),
		commands: make(chan string, 16),
	}
	fc.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade connection: %v", err)
			return
		}
		atomic.AddInt32(&fc.dials, 1)
		fc.conns <- conn

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.TextMessage {
				fc.commands <- string(data)
			}
		}
	}))
	t.Cleanup(fc.server.Close)
	return fc
}

func (fc *fakeController) wsURL() string {
	return "ws" + strings.TrimPrefix(fc.server.URL, "http")
}

func (fc *fakeController) dialCount() int {
	return int(atomic.LoadInt32(&fc.dials))
}

// nextCommand waits for the next text command sent by the client.
func (fc *fakeController) nextCommand(t *testing.T) string {
	t.Helper()
	select {
	case cmd := <-fc.commands:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a command")
		return ""
	}
}

// nextConn waits for the next accepted connection.
func (fc *fakeController) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fc.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

// Frame builders mirroring the controller's wire format.

func fullConfigFrame(records ...[]byte) []byte {
	frame := make([]byte, 16)
	frame[0] = protocol.CmdFullConfig
	frame[1] = 'H' // non-mini
	binary.LittleEndian.PutUint16(frame[2:4], 350)
	frame = append(frame, protocol.SectionOutputs)
	for _, rec := range records {
		frame = append(frame, rec...)
	}
	return frame
}

func zoneRecord(typeByte, state byte, label string) []byte {
	rec := []byte{typeByte, 0x00, 0x0F, 0x00, state, byte(len(label))}
	return append(rec, label...)
}

func disabledRecord() []byte {
	return []byte{0x00, 0x00, 0x00, 0x00, protocol.StateDisabled, 0x00}
}

func runningUpdateFrame(typeByte, state byte) []byte {
	frame := make([]byte, 6)
	frame[0] = protocol.CmdRunningUpdate
	return append(frame, protocol.SectionOutputs, typeByte, state)
}

// waitSnapshot waits for the next snapshot delivered to a subscription
// channel.
func waitSnapshot(t *testing.T, ch <-chan *protocol.Snapshot) *protocol.Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a snapshot")
		return nil
	}
}

func TestClient_ConnectRequestsFullConfig(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	require.NoError(t, c.Connect())
	defer c.Disconnect()

	assert.True(t, c.Connected())
	assert.Equal(t, "#@C;", fc.nextCommand(t))
}

func TestClient_FullConfigUpdatesSubscribers(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	updates := make(chan *protocol.Snapshot, 4)
	c.Subscribe(func(s *protocol.Snapshot) { updates <- s })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t) // initial #@C;

	conn := fc.nextConn(t)
	frame := fullConfigFrame(zoneRecord(0x11, protocol.StateOff, "Zone 1"))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))

	snap := waitSnapshot(t, updates)
	require.Contains(t, snap.Zones, 0)
	assert.Equal(t, "Zone 1", snap.Zones[0].Label)
	assert.False(t, snap.Zones[0].On)
	assert.True(t, snap.AutoIrrigation)

	// The client's own snapshot accessor must agree with the published copy.
	assert.Equal(t, snap.Zones[0].Label, c.Snapshot().Zones[0].Label)
}

func TestClient_RunningUpdateFollowsFullConfig(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	updates := make(chan *protocol.Snapshot, 4)
	c.Subscribe(func(s *protocol.Snapshot) { updates <- s })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)

	conn := fc.nextConn(t)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage,
		fullConfigFrame(zoneRecord(0x11, protocol.StateOff, "Zone 1"))))
	waitSnapshot(t, updates)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage,
		runningUpdateFrame(0x11, protocol.StateOn)))
	snap := waitSnapshot(t, updates)
	assert.True(t, snap.Zones[0].On)
}

func TestClient_SetZoneStateFormatsSlotDigit(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	updates := make(chan *protocol.Snapshot, 4)
	c.Subscribe(func(s *protocol.Snapshot) { updates <- s })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)

	// Ten disabled slots before the zone put it at wire output id 10,
	// which must be addressed with the slot digit 'A'.
	records := make([][]byte, 0, 11)
	for i := 0; i < 10; i++ {
		records = append(records, disabledRecord())
	}
	records = append(records, zoneRecord(0x11, protocol.StateOff, "Far zone"))

	conn := fc.nextConn(t)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, fullConfigFrame(records...)))
	snap := waitSnapshot(t, updates)
	require.Equal(t, 10, snap.Zones[0].OutputID)

	require.NoError(t, c.SetZoneState(0, true))
	assert.Equal(t, "#@SAM1;", fc.nextCommand(t))
}

func TestClient_SetZoneStateUnknownZoneIsDropped(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)

	// No full config yet, so zone 3 does not exist: no error, no command.
	require.NoError(t, c.SetZoneState(3, true))
	select {
	case cmd := <-fc.commands:
		t.Fatalf("unexpected command %q for an unknown zone", cmd)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClient_SetAutoIrrigationIsOptimistic(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	var delivered []*protocol.Snapshot
	c.Subscribe(func(s *protocol.Snapshot) { delivered = append(delivered, s) })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)

	require.NoError(t, c.SetAutoIrrigation(false))

	// The flag flips and subscribers run synchronously, before any device
	// acknowledgment could possibly arrive.
	assert.False(t, c.Snapshot().AutoIrrigation)
	require.Len(t, delivered, 1)
	assert.False(t, delivered[0].AutoIrrigation)
	assert.Equal(t, "#@RA0;", fc.nextCommand(t))
}

func TestClient_SubscriberPanicDoesNotStopDelivery(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	updates := make(chan *protocol.Snapshot, 4)
	c.Subscribe(func(*protocol.Snapshot) { panic("subscriber bug") })
	c.Subscribe(func(s *protocol.Snapshot) { updates <- s })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)

	conn := fc.nextConn(t)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage,
		fullConfigFrame(zoneRecord(0x11, protocol.StateOn, "Z"))))

	snap := waitSnapshot(t, updates)
	assert.True(t, snap.Zones[0].On)
}

func TestClient_UnsubscribeStopsDelivery(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())

	updates := make(chan *protocol.Snapshot, 4)
	unsubscribe := c.Subscribe(func(s *protocol.Snapshot) { updates <- s })

	require.NoError(t, c.Connect())
	defer c.Disconnect()
	fc.nextCommand(t)
	unsubscribe()

	require.NoError(t, c.SetAutoIrrigation(false))
	select {
	case <-updates:
		t.Fatal("unsubscribed callback still received an update")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestClient_ReconnectsAfterConnectionLoss(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())
	c.ReconnectInterval = 50 * time.Millisecond

	require.NoError(t, c.Connect())
	defer c.Disconnect()

	// Kill the connection server-side; the supervisor must dial again.
	fc.nextConn(t).Close()

	require.Eventually(t, func() bool { return fc.dialCount() >= 2 },
		2*time.Second, 20*time.Millisecond, "client never reconnected")
	require.Eventually(t, c.Connected, 2*time.Second, 20*time.Millisecond)
}

func TestClient_DisconnectSuppressesReconnect(t *testing.T) {
	fc := newFakeController(t)
	c := NewClientWithURL(fc.wsURL())
	c.ReconnectInterval = 50 * time.Millisecond

	require.NoError(t, c.Connect())
	require.Eventually(t, func() bool { return fc.dialCount() == 1 },
		time.Second, 10*time.Millisecond)

	c.Disconnect()
	assert.False(t, c.Connected())

	// Well past several reconnect intervals: no new dials may appear even
	// though the server is still reachable.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, fc.dialCount())

	// Disconnect is idempotent.
	c.Disconnect()
}
