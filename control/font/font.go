// Package font maps characters to 14-segment display patterns.
//
// Segment layout, with the bit order of a pattern from most to least significant being
// A B C D E F G1 G2 H I J K L M:
//
//	 ----A----
//	|\   |   /|
//	F H  I  J B
//	|   \|/   |
//	 -G1- -G2-
//	|   /|\   |
//	E M  L  K C
//	|/   |   \|
//	 ----D----
package font

// Segments is the number of segment bits in a glyph.
const Segments = 14

// Individual segment bits.
const (
	SegM uint32 = 1 << iota
	SegL
	SegK
	SegJ
	SegI
	SegH
	SegG2
	SegG1
	SegF
	SegE
	SegD
	SegC
	SegB
	SegA
)

// Missing is shown for characters without a glyph.
const Missing uint32 = 1<<Segments - 1

var glyphs = map[rune]uint32{
	' ':  0,
	'$':  0b10110111010010,
	'\'': 0b00000000010000,
	'*':  0b00000000111111,
	'+':  0b00000011010010,
	',':  0b00000000000001,
	'-':  0b00000011000000,
	'.':  0,
	'/':  0b00000000001001,
	':':  0,
	'=':  0b00010011000000,
	'\\': 0b00000000100100,
	'_':  0b00010000000000,
	'`':  0b00000000100000,
	'{':  0b10010010100001,
	'|':  0b00000000010010,
	'}':  0b10010001001100,

	'0': 0b11111100001001,
	'1': 0b01100000001000,
	'2': 0b11011011000000,
	'3': 0b11110001000000,
	'4': 0b01100111000000,
	'5': 0b10110111000000,
	'6': 0b10111111000000,
	'7': 0b11100000000000,
	'8': 0b11111111000000,
	'9': 0b11110111000000,

	'A': 0b11101111000000,
	'B': 0b11110001010010,
	'C': 0b10011100000000,
	'D': 0b11110000010010,
	'E': 0b10011111000000,
	'F': 0b10001111000000,
	'G': 0b10111101000000,
	'H': 0b01101111000000,
	'I': 0b10010000010010,
	'J': 0b01110000000000,
	'K': 0b00001110001100,
	'L': 0b00011100000000,
	'M': 0b01101100101000,
	'N': 0b01101100100100,
	'O': 0b11111100000000,
	'P': 0b11001111000000,
	'Q': 0b11111100000100,
	'R': 0b11001111000100,
	'S': 0b10110001100000,
	'T': 0b10000000010010,
	'U': 0b01111100000000,
	'V': 0b00001100001001,
	'W': 0b01101100000101,
	'X': 0b00000000101101,
	'Y': 0b00000000101010,
	'Z': 0b10010000001001,

	'a': 0b11111011000000,
	'b': 0b00011110000100,
	'c': 0b00011011000000,
	'd': 0b01110001000001,
	'e': 0b10011110000000,
	'f': 0b10001110000000,
	'g': 0b11110001100000,
	'h': 0b00101111000000,
	'i': 0b00000000000010,
	'j': 0b01110000000000,
	'k': 0b00000000011110,
	'l': 0b00000000010010,
	'm': 0b00101011000010,
	'n': 0b00001010000100,
	'o': 0b00111011000000,
	'p': 0b10001110001000,
	'q': 0b11000111000100,
	'r': 0b00001010000000,
	's': 0b10110001100000,
	't': 0b00011110000000,
	'u': 0b00111000000000,
	'v': 0b00001000000001,
	'w': 0b00101000000101,
	'x': 0b00000000101101,
	'y': 0b01110001010000,
	'z': 0b10010000001001,
}

// Glyph returns the segment pattern for r, or Missing if there is none.
func Glyph(r rune) uint32 {
	if g, ok := glyphs[r]; ok {
		return g
	}
	return Missing
}

// Digit returns the glyph for the last decimal digit of n.
func Digit(n int) uint32 {
	if n < 0 {
		n = -n
	}
	return Glyph(rune('0' + n%10))
}
