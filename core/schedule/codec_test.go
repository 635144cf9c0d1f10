package schedule

import (
	"encoding/json"
	"testing"
)

func TestDecodeCommands(t *testing.T) {
	g := DecodeCommands([]string{"00C", "A0B", "N6C"})
	if v, _ := g.At(0, 0); v != 'C' {
		t.Errorf("Monday 00h = %q, want 'C'", v)
	}
	if v, _ := g.At(0, 10); v != 'B' {
		t.Errorf("Monday 10h = %q, want 'B'", v)
	}
	if v, _ := g.At(6, 23); v != 'C' {
		t.Errorf("Sunday 23h = %q, want 'C'", v)
	}
}

func TestDecodeSkipsMalformed(t *testing.T) {
	g := DecodeCommands([]string{"", "X9Z", "00C", "07A", "09A", "ab"})
	// "X9Z": bad hour, "07A"/"09A": day out of range, "ab": too short.
	want := NewGrid()
	want[0][0] = 'C'
	if g != want {
		t.Errorf("malformed commands leaked into the grid")
	}
}

func TestDecodeLongerCommandUsesFirstThree(t *testing.T) {
	g := DecodeCommands([]string{"51Bxx"})
	if v, _ := g.At(1, 5); v != 'B' {
		t.Errorf("Tuesday 05h = %q, want 'B'", v)
	}
}

func TestEncodeLengthAndOrder(t *testing.T) {
	g := NewGrid()
	encoded := Encode(g)
	if len(encoded) != EncodedLen {
		t.Fatalf("encoded length = %d, want %d", len(encoded), EncodedLen)
	}
	if encoded[:3] != "00C" {
		t.Errorf("first command = %q, want 00C", encoded[:3])
	}
	// Day-major: command 24 is Tuesday 00h.
	if encoded[24*3:24*3+3] != "01C" {
		t.Errorf("command 24 = %q, want 01C", encoded[24*3:24*3+3])
	}
	if encoded[EncodedLen-3:] != "N6C" {
		t.Errorf("last command = %q, want N6C", encoded[EncodedLen-3:])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := NewGrid()
	g.Set(0, 0, 'A')
	g.Set(2, 13, 'B')
	g.Set(6, 23, 'D')
	back := DecodeCommands(SplitCommands(Encode(g)))
	if back != g {
		t.Errorf("round trip lost cells")
	}
}

func TestSplitCommandsDropsFragment(t *testing.T) {
	cmds := SplitCommands("00CA0Bxy")
	if len(cmds) != 2 || cmds[0] != "00C" || cmds[1] != "A0B" {
		t.Errorf("SplitCommands = %v", cmds)
	}
}

func TestEntryUnmarshalJSON(t *testing.T) {
	var entries []Entry
	raw := `["00C", {"command": "A0B"}, 42, {"other": true}]`
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries", len(entries))
	}
	if entries[0].Command != "00C" || entries[1].Command != "A0B" {
		t.Errorf("commands = %q, %q", entries[0].Command, entries[1].Command)
	}
	if entries[2].Command != "" || entries[3].Command != "" {
		t.Errorf("unusable entries should decode to empty commands")
	}
}
