package schedule

import (
	"encoding/json"
	"strings"
)

// Entry is a single planning command as delivered by the cloud. The raw feed
// mixes two shapes: a bare command string, or an object wrapping it in a
// "command" field. Both decode to the same 3-character command.
type Entry struct {
	Command string `json:"command"`
}

// UnmarshalJSON accepts either a JSON string or an object with a "command"
// field. Anything else leaves the command empty, which Decode skips.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Command = s
		return nil
	}
	var obj struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		e.Command = ""
		return nil
	}
	e.Command = obj.Command
	return nil
}

// Decode builds a grid from a batch of planning entries. A command is the
// triple {hour}{day}{mode}: hour per DecodeHour, day a digit 0-6 with Monday
// at 0, mode taken verbatim. Malformed entries (too short, undecodable hour,
// day outside 0-6) are skipped and their cells keep the default; one bad
// entry never aborts the batch.
func Decode(entries []Entry) Grid {
	g := NewGrid()
	for _, e := range entries {
		cmd := e.Command
		if len(cmd) < 3 {
			continue
		}
		hour, ok := DecodeHour(cmd[0])
		if !ok {
			continue
		}
		if cmd[1] < '0' || cmd[1] > '6' {
			continue
		}
		day := int(cmd[1] - '0')
		g.Set(day, hour, cmd[2])
	}
	return g
}

// DecodeCommands is Decode over bare command strings.
func DecodeCommands(commands []string) Grid {
	entries := make([]Entry, len(commands))
	for i, c := range commands {
		entries[i] = Entry{Command: c}
	}
	return Decode(entries)
}

// EncodedLen is the exact length of an encoded grid: 168 fixed-width
// 3-character commands.
const EncodedLen = Days * Hours * 3

// Encode serializes the grid into the canonical command sequence consumed by
// the device: day 0 to 6 outer, hour 0 to 23 inner, each cell emitted as
// {hour}{day}{mode} with no separator. The ordering and width are a wire
// contract; the output is always exactly EncodedLen bytes.
func Encode(g Grid) string {
	var b strings.Builder
	b.Grow(EncodedLen)
	for d := 0; d < Days; d++ {
		for h := 0; h < Hours; h++ {
			c, _ := EncodeHour(h)
			b.WriteByte(c)
			b.WriteByte(byte('0' + d))
			b.WriteByte(g[d][h])
		}
	}
	return b.String()
}

// SplitCommands cuts an encoded schedule back into its 3-character commands.
// A trailing fragment shorter than a full command is dropped.
func SplitCommands(encoded string) []string {
	n := len(encoded) / 3
	cmds := make([]string, 0, n)
	for i := 0; i+3 <= len(encoded); i += 3 {
		cmds = append(cmds, encoded[i:i+3])
	}
	return cmds
}
