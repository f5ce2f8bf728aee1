package strategy

import (
	"image"

	"github.com/specimen-imaging/labelstation/internal/analyzer"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// Processed is what one live view cycle publishes for a slot
type Processed struct {
	// Display is a drawable copy of the frame, or the frame itself when
	// nothing was drawn
	Display models.Frame
	Decode  *models.DecodeResult
	Focus   models.FocusMetrics
}

// SlotStrategy holds the role-specific part of a live view cycle
type SlotStrategy interface {
	Process(frame models.Frame) Processed
	GetStrategyName() string
}

// DisplayOptions control how preview frames are prepared
type DisplayOptions struct {
	// Rotate180 turns the preview upside down for cameras mounted inverted
	Rotate180 bool
}

// LabelStrategy publishes the frame with its focus metrics
type LabelStrategy struct {
	metrics analyzer.MetricsCalculator
	display DisplayOptions
}

// NewLabelStrategy creates the label slot strategy
func NewLabelStrategy(metrics analyzer.MetricsCalculator, display DisplayOptions) SlotStrategy {
	return &LabelStrategy{metrics: metrics, display: display}
}

func (s *LabelStrategy) Process(frame models.Frame) Processed {
	out := Processed{Display: frame}
	if s.metrics != nil {
		out.Focus = s.metrics.Focus(frame)
	}
	if s.display.Rotate180 && !frame.Empty() {
		out.Display = Rotate180(frame)
	}
	return out
}

func (s *LabelStrategy) GetStrategyName() string {
	return "label_preview"
}

// BarcodeStrategy localizes a Data Matrix and annotates the preview
type BarcodeStrategy struct {
	localizer analyzer.Localizer
	display   DisplayOptions
}

// NewBarcodeStrategy creates the barcode slot strategy
func NewBarcodeStrategy(localizer analyzer.Localizer, display DisplayOptions) SlotStrategy {
	return &BarcodeStrategy{localizer: localizer, display: display}
}

func (s *BarcodeStrategy) Process(frame models.Frame) Processed {
	out := Processed{Display: frame}
	if frame.Empty() {
		return out
	}

	out.Decode = s.localizer.LocateAndDecode(frame)
	if out.Decode == nil && !s.display.Rotate180 {
		return out
	}

	var region image.Rectangle
	if out.Decode != nil {
		region = out.Decode.Region
	}
	var display models.Frame
	if s.display.Rotate180 {
		display = Rotate180(frame)
		region = rotateRect180(region, frame.Bounds())
	} else {
		display = frame.Clone()
	}
	if out.Decode != nil {
		DrawBox(display, region)
		DrawDecodedText(display, out.Decode.Text)
	}
	out.Display = display
	return out
}

func (s *BarcodeStrategy) GetStrategyName() string {
	return "barcode_decode"
}

// ForRole returns the strategy a slot of the given role runs
func ForRole(role models.SlotRole, localizer analyzer.Localizer, metrics analyzer.MetricsCalculator, display DisplayOptions) SlotStrategy {
	if role == models.SlotBarcode {
		return NewBarcodeStrategy(localizer, display)
	}
	return NewLabelStrategy(metrics, display)
}
