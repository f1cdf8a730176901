// Package ui implements the interactive terminal dashboard for watching and
// driving a Hidromotic controller.
//
// The dashboard is a Bubble Tea program. It renders the zones, tanks, and
// pump from the latest controller snapshot and lets the user toggle zones and
// automatic irrigation from the keyboard. Snapshots arrive asynchronously:
// the caller subscribes to the WebSocket client and forwards each snapshot
// into the program with Program.Send(SnapshotMsg{...}).
//
// Until the first full configuration frame arrives only a spinner is shown.
package ui
