package schedule

// Days and Hours define the dimensions of a weekly schedule grid.
const (
	Days  = 7
	Hours = 24
)

// DefaultMode is the mode every cell holds before any command is applied.
const DefaultMode byte = 'C'

// Grid is a full week of hourly schedule modes, day-major with Monday at
// index 0. Every cell always holds a mode byte; there is no empty state.
type Grid [Days][Hours]byte

// NewGrid returns a grid with every cell set to DefaultMode.
func NewGrid() Grid {
	var g Grid
	for d := 0; d < Days; d++ {
		for h := 0; h < Hours; h++ {
			g[d][h] = DefaultMode
		}
	}
	return g
}

// At returns the mode at the given day and hour, or (0, false) when the
// position is out of range.
func (g *Grid) At(day, hour int) (byte, bool) {
	if day < 0 || day >= Days || hour < 0 || hour >= Hours {
		return 0, false
	}
	return g[day][hour], true
}

// Set writes the mode at the given day and hour. Out-of-range positions are
// rejected so a malformed command can never clobber a neighboring cell.
func (g *Grid) Set(day, hour int, mode byte) bool {
	if day < 0 || day >= Days || hour < 0 || hour >= Hours {
		return false
	}
	g[day][hour] = mode
	return true
}

// EncodeHour maps an hour of day to its single-character wire form:
// '0'..'9' for 0-9 and 'A'..'N' for 10-23.
func EncodeHour(hour int) (byte, bool) {
	switch {
	case hour >= 0 && hour < 10:
		return byte('0' + hour), true
	case hour >= 10 && hour < Hours:
		return byte(55 + hour), true
	default:
		return 0, false
	}
}

// DecodeHour is the inverse of EncodeHour. Any character outside the valid
// domain returns ok=false; it never panics.
func DecodeHour(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'N':
		return int(c) - 55, true
	default:
		return 0, false
	}
}
