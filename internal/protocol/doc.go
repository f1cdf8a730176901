// Package protocol implements the Hidromotic controller binary protocol.
//
// This package handles decoding of the binary status frames sent by
// Hidromotic irrigation controllers and construction of the ASCII command
// strings sent back to them. It is pure data transformation: the WebSocket
// transport and connection lifecycle live in internal/client.
//
// # Inbound frames
//
// Every binary message from the controller starts with a single ASCII
// command character:
//   - 'C': full configuration snapshot (hardware variant, firmware version,
//     all outputs with labels and durations)
//   - 'D': running-data update (pump and output state deltas)
//
// Multi-byte integers are little-endian. Labels are length-prefixed UTF-8
// (one length byte). Full-config layout:
//
//	[0]     'C'            Command character
//	[1]     variant        'M' = mini hardware (6 outputs), else 12 outputs
//	[2-3]   firmware       Firmware version (little-endian uint16)
//	[6]     hardware id    Displayed as two uppercase hex digits
//	[16+]   sections       Marker-tagged sections, scanned forward
//
// Section markers inside the scan region:
//   - 'B': pump status. Two bytes follow (state, external-pause code). The
//     section stride grew across firmware revisions; see the version-gated
//     skips in DecodeFullConfig.
//   - 'S': output table. Up to 6 or 12 fixed 5-byte records (type byte,
//     pump flag, duration uint16, state) each followed by a label. Tank
//     records carry 3 extra trailing bytes (mode, level, spacer). The 'S'
//     section terminates the scan; the firmware never emits sections after
//     it and this decoder deliberately does not look for any.
//
// The type byte packs the output category in its high nibble (1 = zone,
// 2 = tank) and the one-based logical index in its low nibble. Records whose
// state equals StateDisabled describe unpopulated slots and are dropped.
//
// Running-update frames use the same marker scan starting at offset 6, with
// compact 2-byte 'S' entries (type byte, state) matched against the outputs
// learned from the last full-config frame. Updates for unknown type bytes
// are silently dropped; a 'D' frame can never create an output.
//
// # Outbound commands
//
// Commands are short ASCII strings of the form "#@<verb><args>;":
//
//	#@C;        request full configuration
//	#@S<s>M<b>; set output <s> to state <b> (0 or 1)
//	#@RA<b>;    enable/disable automatic irrigation
//
// <s> is a single slot digit using 0-9 then A, B, C for slots 10-12, a
// 13-slot addressing scheme (not full hexadecimal).
//
// # Error handling
//
// Decoding is best-effort to match the firmware's lenient framing: a record
// loop that runs out of bytes stops early rather than failing the whole
// frame. Structural problems (empty buffer, wrong command byte, a section
// header cut short) are reported as *ParseError so callers can decide to
// log-and-continue or surface them.
//
// # Thread safety
//
// Decode functions mutate the passed Snapshot and are not safe for
// concurrent use on the same Snapshot. Command builders are stateless.
package protocol
