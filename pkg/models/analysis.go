package models

import (
	"image"
	"image/draw"
	"time"
)

// SlotRole is the logical camera role a device is bound to
type SlotRole string

const (
	// SlotLabel feeds the images that get captured
	SlotLabel SlotRole = "label"
	// SlotBarcode feeds the Data Matrix reader
	SlotBarcode SlotRole = "barcode"
)

// Roles lists every slot role in a stable order
var Roles = []SlotRole{SlotLabel, SlotBarcode}

// Valid reports whether r is a known slot role
func (r SlotRole) Valid() bool {
	return r == SlotLabel || r == SlotBarcode
}

// Other returns the opposite slot role
func (r SlotRole) Other() SlotRole {
	if r == SlotLabel {
		return SlotBarcode
	}
	return SlotLabel
}

// Frame is one immutable color image read from a camera.
// Producers hand out Frames by value or pointer; nobody writes to Image after publication.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Device     string
}

// NewFrame copies img into a fresh RGBA buffer anchored at the origin
func NewFrame(img image.Image, device string, capturedAt time.Time) Frame {
	if img == nil {
		return Frame{CapturedAt: capturedAt, Device: device}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return Frame{Image: rgba, CapturedAt: capturedAt, Device: device}
}

// Empty reports whether the frame carries no pixels
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Bounds returns the pixel bounds, or the zero rectangle for an empty frame
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Clone returns a deep copy that can be drawn on
func (f Frame) Clone() Frame {
	if f.Image == nil {
		return f
	}
	pix := make([]uint8, len(f.Image.Pix))
	copy(pix, f.Image.Pix)
	return Frame{
		Image:      &image.RGBA{Pix: pix, Stride: f.Image.Stride, Rect: f.Image.Rect},
		CapturedAt: f.CapturedAt,
		Device:     f.Device,
	}
}

// DecodedSymbol is a single symbol returned by a barcode decoder
type DecodedSymbol struct {
	Data []byte
}

// DecodeResult is a successfully decoded Data Matrix and where it was found
type DecodeResult struct {
	Text   string          `json:"text"`
	Region image.Rectangle `json:"region"`
}

// FocusMetrics summarises sharpness and exposure of a frame
type FocusMetrics struct {
	LaplacianVar float64 `json:"laplacian_variance"`
	Brightness   float64 `json:"brightness"`
}
