package protocol

import "fmt"

// SlotCount is the number of addressable output slots. Slot digits use 0-9
// then A, B, C - a 13-slot scheme, not full hexadecimal.
const SlotCount = 13

// SlotDigit returns the single-character wire digit for an output slot.
func SlotDigit(slot int) (byte, error) {
	switch {
	case slot >= 0 && slot <= 9:
		return byte('0' + slot), nil
	case slot >= 10 && slot < SlotCount:
		return byte('A' + slot - 10), nil
	default:
		return 0, fmt.Errorf("output slot %d out of range 0-%d", slot, SlotCount-1)
	}
}

// SlotIndex is the inverse of SlotDigit.
func SlotIndex(digit byte) (int, error) {
	switch {
	case digit >= '0' && digit <= '9':
		return int(digit - '0'), nil
	case digit >= 'A' && digit <= 'C':
		return int(digit-'A') + 10, nil
	default:
		return 0, fmt.Errorf("invalid slot digit %q", digit)
	}
}

// CommandFullConfig requests a complete configuration snapshot ('C' frame).
func CommandFullConfig() string {
	return "#@C;"
}

// CommandOutputState switches a physical output on or off.
func CommandOutputState(slot int, on bool) (string, error) {
	digit, err := SlotDigit(slot)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("#@S%cM%d;", digit, boolDigit(on)), nil
}

// CommandAutoIrrigation enables or disables the automatic irrigation program.
func CommandAutoIrrigation(on bool) string {
	return fmt.Sprintf("#@RA%d;", boolDigit(on))
}

func boolDigit(on bool) int {
	if on {
		return 1
	}
	return 0
}
