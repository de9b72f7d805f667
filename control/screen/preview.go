package screen

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log"
	"net/http"

	"github.com/jrockway/vfd-alarm-clock/control/font"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	cellWidth     = 56
	cellHeight    = 100
	digitX        = 8 // offset of the digit inside its cell
	digitY        = 15
	stroke        = 4
	captionHeight = 20
)

var (
	unlit      = color.NRGBA{R: 0x18, G: 0x20, B: 0x20, A: 0xff}
	background = color.NRGBA{A: 0xff}
)

type segmentShape struct {
	bit    uint32
	rect   image.Rectangle // filled bar, if not empty
	x0, y0 int             // diagonal, if rect is empty
	x1, y1 int
}

// Segment positions inside a 40x70 digit.
var segmentShapes = []segmentShape{
	{bit: font.SegA, rect: image.Rect(4, 0, 36, 4)},
	{bit: font.SegB, rect: image.Rect(36, 4, 40, 33)},
	{bit: font.SegC, rect: image.Rect(36, 37, 40, 66)},
	{bit: font.SegD, rect: image.Rect(4, 66, 36, 70)},
	{bit: font.SegE, rect: image.Rect(0, 37, 4, 66)},
	{bit: font.SegF, rect: image.Rect(0, 4, 4, 33)},
	{bit: font.SegG1, rect: image.Rect(4, 33, 20, 37)},
	{bit: font.SegG2, rect: image.Rect(20, 33, 36, 37)},
	{bit: font.SegI, rect: image.Rect(18, 4, 22, 33)},
	{bit: font.SegL, rect: image.Rect(18, 37, 22, 66)},
	{bit: font.SegH, x0: 5, y0: 5, x1: 17, y1: 32},
	{bit: font.SegJ, x0: 35, y0: 5, x1: 23, y1: 32},
	{bit: font.SegM, x0: 17, y0: 38, x1: 5, y1: 65},
	{bit: font.SegK, x0: 23, y0: 38, x1: 35, y1: 65},
}

// litColor is the phosphor color at the given brightness; a dark tube still shows faintly so the
// preview is readable.
func litColor(brightness int) color.NRGBA {
	if brightness < 30 {
		brightness = 30
	}
	return color.NRGBA{
		R: uint8(0x40 * brightness / 100),
		G: uint8(0xff * brightness / 100),
		B: uint8(0xd0 * brightness / 100),
		A: 0xff,
	}
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func line(img draw.Image, x0, y0, x1, y1 int, c color.Color) {
	steps := abs(x1 - x0)
	if dy := abs(y1 - y0); dy > steps {
		steps = dy
	}
	for i := 0; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		fill(img, image.Rect(x-1, y-1, x+2, y+2), c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func renderGrid(img draw.Image, origin image.Point, g GridData, on color.Color) {
	pick := func(lit bool) color.Color {
		if lit {
			return on
		}
		return unlit
	}
	d := origin.Add(image.Pt(digitX, digitY))
	for _, s := range segmentShapes {
		c := pick(g.Segments&s.bit != 0)
		if !s.rect.Empty() {
			fill(img, s.rect.Add(d), c)
			continue
		}
		line(img, d.X+s.x0, d.Y+s.y0, d.X+s.x1, d.Y+s.y1, c)
	}
	fill(img, image.Rect(digitX, 4, digitX+40, 4+stroke).Add(origin), pick(g.UpperBar))
	fill(img, image.Rect(digitX, 92, digitX+40, 92+stroke).Add(origin), pick(g.LowerBar))
	fill(img, image.Rect(50, 35, 54, 39).Add(origin), pick(g.Dots))
	fill(img, image.Rect(50, 65, 54, 69).Add(origin), pick(g.Dots))
}

// Preview draws f as it would look on the tube, with a caption.
func Preview(f Frame, brightness int, enabled bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, Grids*cellWidth, cellHeight+captionHeight))
	fill(img, img.Bounds(), background)
	on := color.Color(litColor(brightness))
	if !enabled {
		on = unlit
	}
	for i, g := range f {
		renderGrid(img, image.Pt(i*cellWidth, 0), g, on)
	}
	caption := fmt.Sprintf("brightness %d%%", brightness)
	if !enabled {
		caption = "standby"
	}
	drawer := &xfont.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, cellHeight+captionHeight-5),
	}
	drawer.DrawString(caption)
	return img
}

// ServeHTTP serves the current frame as a PNG.
func (s *Screen) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	img := Preview(s.Current(), s.Brightness(), s.Enabled())
	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		log.Printf("encoding image: %v", err)
	}
}
