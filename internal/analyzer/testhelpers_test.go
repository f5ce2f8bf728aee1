package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/datamatrix"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// createTestImage creates a uniformly colored RGBA image for tests
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fillColor}, image.Point{}, draw.Src)
	return img
}

func whiteFrame(width, height int) models.Frame {
	return models.NewFrame(createTestImage(width, height, color.RGBA{255, 255, 255, 255}), "test", time.Unix(0, 0))
}

// fillRect paints a solid black rectangle onto the frame image
func fillRect(f models.Frame, r image.Rectangle) {
	draw.Draw(f.Image, r, &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
}

// drawDataMatrix encodes payload at modulePx pixels per module and draws it at origin
func drawDataMatrix(t *testing.T, f models.Frame, payload string, modulePx int, origin image.Point) image.Rectangle {
	t.Helper()

	code, err := datamatrix.Encode(payload)
	if err != nil {
		t.Fatalf("Failed to encode %q: %v", payload, err)
	}
	size := code.Bounds().Dx() * modulePx
	scaled, err := barcode.Scale(code, size, size)
	if err != nil {
		t.Fatalf("Failed to scale symbol: %v", err)
	}

	r := image.Rect(origin.X, origin.Y, origin.X+size, origin.Y+size)
	draw.Draw(f.Image, r, scaled, scaled.Bounds().Min, draw.Src)
	return r
}

// recordingDecoder records the regions it was asked to decode
type recordingDecoder struct {
	regions []image.Rectangle
	results [][]models.DecodedSymbol
	panicAt int
}

func (d *recordingDecoder) Decode(region *image.Gray) []models.DecodedSymbol {
	d.regions = append(d.regions, region.Bounds())
	call := len(d.regions)
	if d.panicAt == call {
		panic("decoder blew up")
	}
	if call-1 < len(d.results) {
		return d.results[call-1]
	}
	return nil
}
