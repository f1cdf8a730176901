// Package client manages the persistent WebSocket connection to one
// Hidromotic irrigation controller.
//
// A Client owns exactly one controller: it dials the device, supervises a
// background receive loop, keeps the decoded protocol.Snapshot current, and
// turns API calls into wire commands. Frame decoding itself lives in
// internal/protocol; this package is the connection lifecycle around it.
//
// # Lifecycle
//
// Connect dials the device, starts the receive loop and immediately requests
// a full configuration snapshot. If the connection later drops, a reconnect
// supervisor retries every ReconnectInterval until it succeeds or Disconnect
// is called. Disconnect suppresses the supervisor permanently and is
// idempotent. There is no backoff growth and no retry cap: the loop is
// bounded only by an explicit Disconnect, matching the device's expectation
// of an always-on monitor.
//
// # State and subscriptions
//
// The live snapshot has a single writer (the receive loop, plus the
// optimistic update in SetAutoIrrigation). Subscribers never see the live
// state: every update delivers a deep copy, so no locking leaks past this
// package. Callbacks run synchronously on the delivering goroutine and must
// not block; a panicking callback is recovered and logged without affecting
// other subscribers or the receive loop.
//
// # Outbound ordering
//
// All sends share one mutex, so commands from different goroutines are never
// interleaved mid-write on the device's single command stream.
package client
