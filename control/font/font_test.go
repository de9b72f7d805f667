package font

import "testing"

func TestGlyph(t *testing.T) {
	testData := []struct {
		r    rune
		want uint32
	}{
		{'_', SegD},
		{'-', SegG1 | SegG2},
		{'8', SegA | SegB | SegC | SegD | SegE | SegF | SegG1 | SegG2},
		{'1', SegB | SegC | SegJ},
		{' ', 0},
		{'~', Missing},
		{'\x00', Missing},
	}
	for _, test := range testData {
		if got := Glyph(test.r); got != test.want {
			t.Errorf("glyph %q:\n  got: %014b\n want: %014b", test.r, got, test.want)
		}
	}
}

func TestDigit(t *testing.T) {
	for n := 0; n < 20; n++ {
		if got, want := Digit(n), Glyph(rune('0'+n%10)); got != want {
			t.Errorf("digit %d:\n  got: %014b\n want: %014b", n, got, want)
		}
	}
	if Missing>>Segments != 0 {
		t.Errorf("missing glyph uses more than %d bits: %b", Segments, Missing)
	}
}
