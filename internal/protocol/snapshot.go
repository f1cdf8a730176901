package protocol

import "fmt"

// Output state values as they appear on the wire.
const (
	StateOff = 0x00
	StateOn  = 0x01

	// StateDisabled marks an unpopulated output slot in a full-config frame.
	// Disabled records never produce a zone or tank entry.
	StateDisabled = 0xFF

	// LevelUnknown is reported by tanks without a working level probe.
	LevelUnknown = 0xFF
)

// Output categories, encoded in the high nibble of the packed type byte.
const (
	CategoryZone = 0x1
	CategoryTank = 0x2
)

// Maximum output slots per hardware variant.
const (
	MaxOutputsMini = 6
	MaxOutputsFull = 12
)

// Snapshot is the last-known decoded state of one controller. It is owned by
// a single writer (the client's receive loop); subscribers always receive
// deep copies via Clone.
type Snapshot struct {
	IsMini          bool
	FirmwareVersion uint16
	HardwareID      string // two uppercase hex digits

	Zones   map[int]*ZoneState
	Tanks   map[int]*TankState
	Pump    *PumpState
	Outputs map[int]*OutputRecord // keyed by wire output slot

	// AutoIrrigation is not carried in the initial frame structure; it is
	// assumed enabled until an explicit disable is observed or sent.
	AutoIrrigation bool
}

// ZoneState is an irrigation zone derived from an output record.
type ZoneState struct {
	Index           int // zero-based logical index from the type byte
	OutputID        int // physical output slot on the controller
	On              bool
	Label           string
	DurationMinutes int
}

// TankState is a water tank derived from an output record.
type TankState struct {
	Index    int
	OutputID int
	On       bool
	Label    string
	Level    byte // 0-4, or LevelUnknown
	Mode     byte
}

// PumpState is the controller's single pump. It is overwritten wholesale by
// every frame that carries a pump section.
type PumpState struct {
	State         byte
	ExternalPause byte
}

// OutputRecord is a raw physical output as described by a full-config frame.
// Zones and tanks are derived views over these records.
type OutputRecord struct {
	OutputID        int
	TypeByte        byte
	PumpOutput      bool
	DurationMinutes int
	State           byte
	Label           string
}

// NewSnapshot returns an empty snapshot with automatic irrigation assumed
// enabled.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Zones:          make(map[int]*ZoneState),
		Tanks:          make(map[int]*TankState),
		Outputs:        make(map[int]*OutputRecord),
		AutoIrrigation: true,
	}
}

// MaxOutputs returns the number of output slots for the hardware variant.
func (s *Snapshot) MaxOutputs() int {
	if s.IsMini {
		return MaxOutputsMini
	}
	return MaxOutputsFull
}

// Clone returns a deep copy of the snapshot. Subscribers get clones so they
// can never observe the live state mid-decode.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		IsMini:          s.IsMini,
		FirmwareVersion: s.FirmwareVersion,
		HardwareID:      s.HardwareID,
		Zones:           make(map[int]*ZoneState, len(s.Zones)),
		Tanks:           make(map[int]*TankState, len(s.Tanks)),
		Outputs:         make(map[int]*OutputRecord, len(s.Outputs)),
		AutoIrrigation:  s.AutoIrrigation,
	}
	for k, z := range s.Zones {
		zc := *z
		c.Zones[k] = &zc
	}
	for k, t := range s.Tanks {
		tc := *t
		c.Tanks[k] = &tc
	}
	for k, o := range s.Outputs {
		oc := *o
		c.Outputs[k] = &oc
	}
	if s.Pump != nil {
		pc := *s.Pump
		c.Pump = &pc
	}
	return c
}

// String returns a compact debug representation.
func (s *Snapshot) String() string {
	variant := "full"
	if s.IsMini {
		variant = "mini"
	}
	pump := "none"
	if s.Pump != nil {
		pump = s.Pump.String()
	}
	return fmt.Sprintf("Snapshot{%s fw=%d hw=%s zones=%d tanks=%d outputs=%d pump=%s auto=%v}",
		variant, s.FirmwareVersion, s.HardwareID, len(s.Zones), len(s.Tanks), len(s.Outputs), pump, s.AutoIrrigation)
}

func (z *ZoneState) String() string {
	return fmt.Sprintf("Zone{%d out=%d on=%v label=%q dur=%dm}",
		z.Index, z.OutputID, z.On, z.Label, z.DurationMinutes)
}

func (t *TankState) String() string {
	level := "?"
	if t.Level != LevelUnknown {
		level = fmt.Sprintf("%d", t.Level)
	}
	return fmt.Sprintf("Tank{%d out=%d on=%v label=%q level=%s mode=%d}",
		t.Index, t.OutputID, t.On, t.Label, level, t.Mode)
}

func (p *PumpState) String() string {
	return fmt.Sprintf("Pump{state=0x%02x pause=0x%02x}", p.State, p.ExternalPause)
}
