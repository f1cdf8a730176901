package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/hidroctl/internal/logging"
	"github.com/muurk/hidroctl/internal/protocol"
)

const (
	// DefaultPort is the WebSocket port Hidromotic controllers listen on.
	DefaultPort = 80

	// DefaultReconnectInterval is the fixed wait between reconnect
	// attempts after the connection drops.
	DefaultReconnectInterval = 30 * time.Second

	// DefaultDialTimeout bounds the WebSocket handshake.
	DefaultDialTimeout = 10 * time.Second
)

// Callback receives a snapshot copy on every update. Callbacks run
// synchronously on the delivering goroutine and must not block.
type Callback = func(*protocol.Snapshot)

// subscriberEntry holds a callback with its unique subscription ID.
type subscriberEntry struct {
	subID    int
	callback Callback
}

// Client is the connection lifecycle manager for one controller.
type Client struct {
	url  string
	host string

	// ReconnectInterval is the fixed wait between reconnect attempts.
	// Change it before Connect; tests shorten it.
	ReconnectInterval time.Duration

	// DialTimeout bounds the WebSocket handshake.
	DialTimeout time.Duration

	conn      *websocket.Conn
	connected bool
	reconnect bool
	ctx       context.Context
	cancel    context.CancelFunc
	connMu    sync.RWMutex

	writeMu sync.Mutex // serializes all outbound sends

	snapshot *protocol.Snapshot
	stateMu  sync.Mutex

	subscribers []subscriberEntry
	nextSubID   int
	subsMu      sync.RWMutex
}

// NewClient creates a client for the controller at host:port. The connection
// is not opened until Connect.
func NewClient(host string, port int) *Client {
	return newClient(fmt.Sprintf("ws://%s:%d/", host, port), host)
}

// NewClientWithURL creates a client for a full WebSocket URL, e.g.
// "ws://192.168.1.40:80/". Used by tests and non-standard setups.
func NewClientWithURL(url string) *Client {
	return newClient(url, url)
}

func newClient(url, host string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:               url,
		host:              host,
		ReconnectInterval: DefaultReconnectInterval,
		DialTimeout:       DefaultDialTimeout,
		ctx:               ctx,
		cancel:            cancel,
		snapshot:          protocol.NewSnapshot(),
	}
}

// Connect opens the WebSocket connection, starts the background receive loop
// and requests a full configuration snapshot. Transport failures are logged
// and returned; the caller may retry.
func (c *Client) Connect() error {
	c.connMu.Lock()
	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected to %s", c.host)
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.DialTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		logging.Error("Connect failed",
			zap.String("host", c.host),
			zap.Error(err),
		)
		return fmt.Errorf("failed to connect to %s: %w", c.host, err)
	}

	c.resetContextLocked()
	ctx := c.ctx
	c.conn = conn
	c.connected = true
	c.reconnect = true
	c.connMu.Unlock()

	// Every connection starts from an empty snapshot and re-requests full
	// config. The auto irrigation flag survives since the device never
	// reports it.
	c.stateMu.Lock()
	auto := c.snapshot.AutoIrrigation
	c.snapshot = protocol.NewSnapshot()
	c.snapshot.AutoIrrigation = auto
	c.stateMu.Unlock()

	logging.LogConnection(c.host, "connected")
	go c.receiveLoop(ctx, conn)

	if err := c.Refresh(); err != nil {
		logging.Warn("Initial config request failed",
			zap.String("host", c.host),
			zap.Error(err),
		)
	}
	return nil
}

// resetContextLocked replaces the client context, cancelling any receive
// loop or reconnect supervisor still running from a previous connection.
// Caller holds connMu.
func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Disconnect closes the connection and suppresses any future reconnect
// attempt. Cancellation of in-flight waits is a normal outcome, not an
// error. Idempotent.
func (c *Client) Disconnect() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.connected {
		c.connected = false
		logging.LogConnection(c.host, "disconnected")
	}
}

// Connected reports whether the connection is currently up.
func (c *Client) Connected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Snapshot returns a deep copy of the last decoded state.
func (c *Client) Snapshot() *protocol.Snapshot {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.snapshot.Clone()
}

// Subscribe registers a callback invoked with a snapshot copy on every
// decoded frame and every optimistic local change. The returned function
// unregisters it.
func (c *Client) Subscribe(cb Callback) func() {
	c.subsMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriberEntry{subID: id, callback: cb})
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		for i, entry := range c.subscribers {
			if entry.subID == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Refresh asks the controller for a fresh full-config frame.
func (c *Client) Refresh() error {
	return c.sendCommand(protocol.CommandFullConfig())
}

// SetZoneState switches the given zone on or off. Unknown zones are dropped
// with a warning; the zone table only exists after the first full-config
// frame.
func (c *Client) SetZoneState(zoneID int, on bool) error {
	c.stateMu.Lock()
	zone, ok := c.snapshot.Zones[zoneID]
	c.stateMu.Unlock()
	if !ok {
		logging.Warn("Unknown zone, command dropped",
			zap.String("host", c.host),
			zap.Int("zone", zoneID),
		)
		return nil
	}

	cmd, err := protocol.CommandOutputState(zone.OutputID, on)
	if err != nil {
		return err
	}
	return c.sendCommand(cmd)
}

// SetAutoIrrigation enables or disables the automatic irrigation program.
// The local flag is updated optimistically and subscribers are notified
// before the method returns, without waiting for device acknowledgment.
func (c *Client) SetAutoIrrigation(on bool) error {
	err := c.sendCommand(protocol.CommandAutoIrrigation(on))

	c.stateMu.Lock()
	c.snapshot.AutoIrrigation = on
	clone := c.snapshot.Clone()
	c.stateMu.Unlock()
	c.dispatch(clone)

	return err
}

// sendCommand writes one ASCII command under the shared send lock. Sending
// without an open transport is a logged no-op, matching the device's
// fire-and-forget command model.
func (c *Client) sendCommand(cmd string) error {
	c.connMu.RLock()
	conn, connected := c.conn, c.connected
	c.connMu.RUnlock()

	if !connected || conn == nil {
		logging.Warn("Not connected, command dropped",
			zap.String("host", c.host),
			zap.String("command", cmd),
		)
		return nil
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, []byte(cmd))
	c.writeMu.Unlock()
	if err != nil {
		logging.Error("Command send failed",
			zap.String("host", c.host),
			zap.String("command", cmd),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send %q: %w", cmd, err)
	}

	logging.LogFrame(c.host, "sent", websocket.TextMessage, []byte(cmd))
	return nil
}

// receiveLoop drains inbound messages until the connection drops or the
// client context is cancelled.
func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				// Deliberate disconnect; cancellation is the normal exit.
				return
			}
			logging.Warn("Connection lost",
				zap.String("host", c.host),
				zap.Error(err),
			)
			c.handleDisconnect(ctx)
			return
		}

		logging.LogFrame(c.host, "received", msgType, data)
		switch msgType {
		case websocket.BinaryMessage:
			c.handleBinary(data)
		case websocket.TextMessage:
			c.handleText(data)
		}
	}
}

// handleBinary dispatches a binary frame to the decoder by its command byte
// and notifies subscribers. Decode errors are logged and absorbed so a
// malformed frame never kills the receive loop; partially applied state is
// still published, preserving the firmware's lenient framing.
func (c *Client) handleBinary(data []byte) {
	if len(data) == 0 {
		return
	}

	c.stateMu.Lock()
	var err error
	switch data[0] {
	case protocol.CmdFullConfig:
		err = protocol.DecodeFullConfig(data, c.snapshot)
	case protocol.CmdRunningUpdate:
		err = protocol.DecodeRunningUpdate(data, c.snapshot)
	default:
		c.stateMu.Unlock()
		logging.Warn("Unknown frame command",
			zap.String("host", c.host),
			zap.Uint8("command", data[0]),
			zap.Int("length", len(data)),
		)
		return
	}
	clone := c.snapshot.Clone()
	c.stateMu.Unlock()

	if err != nil {
		logging.Warn("Frame decode failed",
			zap.String("host", c.host),
			zap.Error(err),
		)
		if !protocol.IsParseError(err, protocol.ParseErrTruncated) {
			// Nothing was applied; no point waking subscribers.
			return
		}
	}

	logging.Debug("Snapshot updated",
		zap.String("host", c.host),
		zap.String("snapshot", clone.String()),
	)
	c.dispatch(clone)
}

// handleText logs text messages best-effort. The controller has no
// documented text schema; JSON payloads are logged structured, anything
// else raw.
func (c *Client) handleText(data []byte) {
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err == nil {
		logging.Info("Text message",
			zap.String("host", c.host),
			zap.Any("fields", parsed),
		)
		return
	}
	logging.Debug("Unstructured text message",
		zap.String("host", c.host),
		zap.String("content", string(data)),
	)
}

// dispatch invokes every subscriber with the snapshot copy. A panicking
// subscriber is recovered and logged so delivery to the others continues.
func (c *Client) dispatch(snap *protocol.Snapshot) {
	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error("Subscriber panicked",
						zap.String("host", c.host),
						zap.Int("subscription", entry.subID),
						zap.Any("panic", r),
					)
				}
			}()
			entry.callback(snap)
		}()
	}
}

// handleDisconnect tears down the dead connection and, unless Disconnect
// was called, hands over to the reconnect supervisor.
func (c *Client) handleDisconnect(ctx context.Context) {
	c.connMu.Lock()
	c.connected = false
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	shouldReconnect := c.reconnect
	c.connMu.Unlock()

	if !shouldReconnect {
		return
	}
	logging.LogConnection(c.host, "reconnect_scheduled")
	go c.reconnectLoop(ctx)
}

// reconnectLoop retries Connect at a fixed interval until it succeeds or the
// client context is cancelled. No backoff growth, no attempt cap: bounded
// only by Disconnect.
func (c *Client) reconnectLoop(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.ReconnectInterval):
		}

		if err := c.Connect(); err == nil {
			logging.Info("Reconnected",
				zap.String("host", c.host),
				zap.Int("attempts", attempt),
			)
			return
		}
		logging.Warn("Reconnect attempt failed",
			zap.String("host", c.host),
			zap.Int("attempt", attempt),
		)
	}
}
