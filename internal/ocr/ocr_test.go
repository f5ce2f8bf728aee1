package ocr

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

func TestTesseractReader(t *testing.T) {
	if os.Getenv("TEST_TESSERACT") == "" {
		t.Skip("TEST_TESSERACT not set, skipping OCR engine test")
	}

	img := image.NewRGBA(image.Rect(0, 0, 240, 60))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(20, 35),
	}
	d.DrawString("NZAC001")

	text, err := NewTesseractReader("").ReadText(context.Background(), img)
	if err != nil {
		t.Fatalf("ReadText failed: %v", err)
	}
	if m := MatchAccession("NZAC001", text); !m.Legible {
		t.Errorf("Expected accession in transcript, got %q", text)
	}
}
