package schedule

import "testing"

func TestNewGridDefaults(t *testing.T) {
	g := NewGrid()
	for d := 0; d < Days; d++ {
		for h := 0; h < Hours; h++ {
			if g[d][h] != DefaultMode {
				t.Fatalf("cell %d/%d = %q, want %q", d, h, g[d][h], DefaultMode)
			}
		}
	}
}

func TestGridBounds(t *testing.T) {
	g := NewGrid()
	if !g.Set(0, 0, 'A') {
		t.Errorf("Set(0,0) rejected")
	}
	if !g.Set(6, 23, 'B') {
		t.Errorf("Set(6,23) rejected")
	}
	for _, pos := range [][2]int{{-1, 0}, {7, 0}, {0, -1}, {0, 24}} {
		if g.Set(pos[0], pos[1], 'X') {
			t.Errorf("Set(%d,%d) accepted out-of-range position", pos[0], pos[1])
		}
		if _, ok := g.At(pos[0], pos[1]); ok {
			t.Errorf("At(%d,%d) accepted out-of-range position", pos[0], pos[1])
		}
	}
	if v, ok := g.At(6, 23); !ok || v != 'B' {
		t.Errorf("At(6,23) = %q, %v", v, ok)
	}
}

func TestHourCodecBijective(t *testing.T) {
	for h := 0; h < Hours; h++ {
		c, ok := EncodeHour(h)
		if !ok {
			t.Fatalf("EncodeHour(%d) rejected", h)
		}
		back, ok := DecodeHour(c)
		if !ok || back != h {
			t.Fatalf("DecodeHour(EncodeHour(%d)) = %d, %v", h, back, ok)
		}
	}
	if c, _ := EncodeHour(9); c != '9' {
		t.Errorf("EncodeHour(9) = %q, want '9'", c)
	}
	if c, _ := EncodeHour(10); c != 'A' {
		t.Errorf("EncodeHour(10) = %q, want 'A'", c)
	}
	if c, _ := EncodeHour(23); c != 'N' {
		t.Errorf("EncodeHour(23) = %q, want 'N'", c)
	}
}

func TestHourCodecRejectsOutOfDomain(t *testing.T) {
	for _, h := range []int{-1, 24, 100} {
		if _, ok := EncodeHour(h); ok {
			t.Errorf("EncodeHour(%d) accepted", h)
		}
	}
	for _, c := range []byte{'O', 'Z', 'a', ' ', '/', ':'} {
		if _, ok := DecodeHour(c); ok {
			t.Errorf("DecodeHour(%q) accepted", c)
		}
	}
}
