package analyzer

import (
	"image"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// Localizer finds a Data Matrix in a frame and decodes it
type Localizer interface {
	// LocateAndDecode returns nil when no symbol could be decoded
	LocateAndDecode(frame models.Frame) *models.DecodeResult
}

// Decoder decodes Data Matrix symbols in a grayscale region.
// It never fails: a region without a readable symbol yields no results.
type Decoder interface {
	Decode(region *image.Gray) []models.DecodedSymbol
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(region *image.Gray) []models.DecodedSymbol

func (f DecoderFunc) Decode(region *image.Gray) []models.DecodedSymbol {
	return f(region)
}

// MetricsCalculator handles image metrics computation
type MetricsCalculator interface {
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
	// Focus computes both metrics for a color frame
	Focus(frame models.Frame) models.FocusMetrics
}
