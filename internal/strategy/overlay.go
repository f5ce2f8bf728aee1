package strategy

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// DecodedTextPrefix is drawn before the decoded payload on the preview
const DecodedTextPrefix = "Decoded data: "

var (
	overlayText   = color.RGBA{0, 255, 0, 255}
	overlayShadow = color.RGBA{0, 0, 0, 255}
	textOrigin    = image.Pt(30, 40)
)

// DrawDecodedText writes the decoded payload onto a display frame
func DrawDecodedText(f models.Frame, text string) {
	if f.Empty() {
		return
	}
	label := DecodedTextPrefix + text

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: f.Image, Face: face}
	width := d.MeasureString(label).Ceil()

	bg := image.Rect(textOrigin.X-4, textOrigin.Y-face.Ascent-4, textOrigin.X+width+4, textOrigin.Y+face.Descent+4)
	draw.Draw(f.Image, bg.Intersect(f.Image.Bounds()), &image.Uniform{C: overlayShadow}, image.Point{}, draw.Src)

	d.Src = image.NewUniform(overlayText)
	d.Dot = fixed.P(textOrigin.X, textOrigin.Y)
	d.DrawString(label)
}

// DrawBox outlines r with a 2px border
func DrawBox(f models.Frame, r image.Rectangle) {
	if f.Empty() || r.Empty() {
		return
	}
	src := &image.Uniform{C: overlayText}
	bounds := f.Image.Bounds()
	const t = 2
	edges := []image.Rectangle{
		image.Rect(r.Min.X-t, r.Min.Y-t, r.Max.X+t, r.Min.Y),
		image.Rect(r.Min.X-t, r.Max.Y, r.Max.X+t, r.Max.Y+t),
		image.Rect(r.Min.X-t, r.Min.Y, r.Min.X, r.Max.Y),
		image.Rect(r.Max.X, r.Min.Y, r.Max.X+t, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(f.Image, e.Intersect(bounds), src, image.Point{}, draw.Src)
	}
}

// Rotate180 returns a copy of f turned upside down
func Rotate180(f models.Frame) models.Frame {
	if f.Empty() {
		return f
	}
	src := f.Image
	b := src.Bounds()
	dst := image.NewRGBA(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		dstRow := dst.Pix[(h-1-y)*dst.Stride : (h-1-y)*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			copy(dstRow[(w-1-x)*4:(w-x)*4], srcRow[x*4:x*4+4])
		}
	}
	return models.Frame{Image: dst, CapturedAt: f.CapturedAt, Device: f.Device}
}

func rotateRect180(r image.Rectangle, bounds image.Rectangle) image.Rectangle {
	if r.Empty() {
		return r
	}
	w, h := bounds.Dx(), bounds.Dy()
	return image.Rect(w-r.Max.X, h-r.Max.Y, w-r.Min.X, h-r.Min.Y)
}
