package protocol

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muurk/hidroctl/internal/logging"
)

// Inbound command characters, the first byte of every binary frame.
const (
	CmdFullConfig    = 'C'
	CmdRunningUpdate = 'D'
)

// Section markers found while scanning a frame body.
const (
	SectionPump    = 'B'
	SectionOutputs = 'S'
)

// hardwareMini in the variant byte of a full-config frame marks the 6-output
// mini controller.
const hardwareMini = 'M'

// Scan start offsets. Bytes before these are header fields (full config) or
// an unmodeled frame header (running update).
const (
	fullConfigScanStart    = 16
	runningUpdateScanStart = 6
)

// Firmware revisions after which the pump section grew extra bytes.
const (
	pumpSectionGrewAt      = 360 // +10 bytes
	pumpSectionGrewAgainAt = 370 // +2 more
)

// DecodeFullConfig rebuilds the snapshot's outputs, zones, tanks and pump
// from a 'C' frame. AutoIrrigation is preserved across rebuilds. The output
// table ('S' section) terminates the scan; nothing after it is examined.
//
// Decoding is best-effort: an output record loop that runs out of bytes
// stops early without error, matching the firmware's lenient framing. Only
// structural problems (short header, wrong command byte, a section header
// cut off mid-field) are reported.
func DecodeFullConfig(data []byte, snap *Snapshot) error {
	if len(data) < 2 {
		return &ParseError{Kind: ParseErrEmpty, Message: fmt.Sprintf("full-config frame of %d bytes", len(data))}
	}
	if data[0] != CmdFullConfig {
		return newBadCommand(CmdFullConfig, data[0])
	}

	snap.IsMini = data[1] == hardwareMini
	if len(data) >= 4 {
		snap.FirmwareVersion = binary.LittleEndian.Uint16(data[2:4])
	}
	if len(data) >= 7 {
		snap.HardwareID = fmt.Sprintf("%02X", data[6])
	}

	// Full rebuild: every 'C' frame is authoritative for the output table.
	snap.Zones = make(map[int]*ZoneState)
	snap.Tanks = make(map[int]*TankState)
	snap.Outputs = make(map[int]*OutputRecord)
	snap.Pump = nil

	i := fullConfigScanStart
	for i < len(data) {
		switch data[i] {
		case SectionPump:
			if i+2 >= len(data) {
				return newTruncated("pump section", i+3, len(data))
			}
			snap.Pump = &PumpState{State: data[i+1], ExternalPause: data[i+2]}
			i += 6
			if snap.FirmwareVersion > pumpSectionGrewAt {
				i += 10
			}
			if snap.FirmwareVersion > pumpSectionGrewAgainAt {
				i += 2
			}
		case SectionOutputs:
			decodeOutputTable(data, i+1, snap)
			return nil
		default:
			// Unrecognized marker: walk forward one byte and keep looking.
			i++
		}
	}
	return nil
}

// decodeOutputTable reads up to MaxOutputs fixed-size records starting at
// offset i. The wire output id is the record's position in the table.
func decodeOutputTable(data []byte, i int, snap *Snapshot) {
	for slot := 0; slot < snap.MaxOutputs(); slot++ {
		if i+5 > len(data) {
			return
		}
		rec := &OutputRecord{
			OutputID:        slot,
			TypeByte:        data[i],
			PumpOutput:      data[i+1] != 0,
			DurationMinutes: int(binary.LittleEndian.Uint16(data[i+2 : i+4])),
			State:           data[i+4],
		}
		i += 5

		if i >= len(data) {
			return
		}
		labelLen := int(data[i])
		i++
		if i+labelLen > len(data) {
			labelLen = len(data) - i
		}
		if raw := data[i : i+labelLen]; utf8.Valid(raw) {
			rec.Label = string(raw)
		}
		i += labelLen

		// Tank records carry mode, level and a spacer byte after the label,
		// populated or not, so the scan stays aligned either way.
		var mode, level byte = 0, LevelUnknown
		if rec.TypeByte>>4 == CategoryTank {
			if i+3 > len(data) {
				return
			}
			mode, level = data[i], data[i+1]
			i += 3
		}

		if rec.State == StateDisabled {
			continue
		}
		snap.Outputs[rec.OutputID] = rec

		idx := int(rec.TypeByte&0x0F) - 1
		switch rec.TypeByte >> 4 {
		case CategoryZone:
			if prev, ok := snap.Zones[idx]; ok {
				logging.Warn("Duplicate zone type byte, last record wins",
					zap.Int("index", idx),
					zap.Int("previous_output", prev.OutputID),
					zap.Int("output", rec.OutputID),
				)
			}
			snap.Zones[idx] = &ZoneState{
				Index:           idx,
				OutputID:        rec.OutputID,
				On:              rec.State == StateOn,
				Label:           rec.Label,
				DurationMinutes: rec.DurationMinutes,
			}
		case CategoryTank:
			if prev, ok := snap.Tanks[idx]; ok {
				logging.Warn("Duplicate tank type byte, last record wins",
					zap.Int("index", idx),
					zap.Int("previous_output", prev.OutputID),
					zap.Int("output", rec.OutputID),
				)
			}
			snap.Tanks[idx] = &TankState{
				Index:    idx,
				OutputID: rec.OutputID,
				On:       rec.State == StateOn,
				Label:    rec.Label,
				Level:    level,
				Mode:     mode,
			}
		}
	}
}

// DecodeRunningUpdate applies a 'D' frame's deltas to the snapshot. Entries
// absent from the last full-config frame can never be created here; updates
// for unknown type bytes are dropped.
func DecodeRunningUpdate(data []byte, snap *Snapshot) error {
	if len(data) < runningUpdateScanStart {
		return &ParseError{Kind: ParseErrEmpty, Message: fmt.Sprintf("running-update frame of %d bytes", len(data))}
	}
	if data[0] != CmdRunningUpdate {
		return newBadCommand(CmdRunningUpdate, data[0])
	}

	i := runningUpdateScanStart
	for i < len(data) {
		switch data[i] {
		case SectionPump:
			if i+2 >= len(data) {
				return newTruncated("pump update", i+3, len(data))
			}
			snap.Pump = &PumpState{State: data[i+1], ExternalPause: data[i+2]}
			i += 6
		case SectionOutputs:
			if i+2 >= len(data) {
				return newTruncated("output update", i+3, len(data))
			}
			typeByte, state := data[i+1], data[i+2]
			if rec := snap.outputByType(typeByte); rec != nil {
				rec.State = state
				idx := int(typeByte&0x0F) - 1
				switch typeByte >> 4 {
				case CategoryZone:
					if z, ok := snap.Zones[idx]; ok {
						z.On = state == StateOn
					}
				case CategoryTank:
					if t, ok := snap.Tanks[idx]; ok {
						t.On = state == StateOn
						if i+3 < len(data) {
							t.Level = data[i+3]
						}
					}
				}
			}
			// Stride is fixed whether or not the type byte matched.
			i += 3
		default:
			i++
		}
	}
	return nil
}

// outputByType finds the output record with the given packed type byte,
// scanning slots in ascending order so duplicate type bytes resolve
// deterministically.
func (s *Snapshot) outputByType(typeByte byte) *OutputRecord {
	for slot := 0; slot <= MaxOutputsFull; slot++ {
		if rec, ok := s.Outputs[slot]; ok && rec.TypeByte == typeByte {
			return rec
		}
	}
	return nil
}
