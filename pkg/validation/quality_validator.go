package validation

import (
	"fmt"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// QualityThresholds defines configurable thresholds for capture quality checks
type QualityThresholds struct {
	// Laplacian variance below this value is reported as out of focus
	MinLaplacianVariance float64

	// Mean gray level bounds, 0..255
	MinBrightness float64
	MaxBrightness float64
}

// DefaultQualityThresholds returns the default quality thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinLaplacianVariance: 100.0,
		MinBrightness:        40.0,
		MaxBrightness:        235.0,
	}
}

// QualityValidator turns focus metrics of a captured frame into operator issues
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a new quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return &QualityValidator{thresholds: DefaultQualityThresholds()}
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{thresholds: thresholds}
}

// QualityIssue represents a quality validation issue
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	ActualValue float64 `json:"actual_value"`
	Threshold   float64 `json:"threshold"`
}

func (i QualityIssue) String() string {
	return fmt.Sprintf("%s (%.1f, threshold %.1f)", i.Message, i.ActualValue, i.Threshold)
}

// Validate returns every threshold the metrics violate
func (qv *QualityValidator) Validate(m models.FocusMetrics) []QualityIssue {
	var issues []QualityIssue

	if m.LaplacianVar < qv.thresholds.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        "blurriness",
			Message:     "label image looks out of focus",
			ActualValue: m.LaplacianVar,
			Threshold:   qv.thresholds.MinLaplacianVariance,
		})
	}

	if m.Brightness < qv.thresholds.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_dark",
			Message:     "label image is too dark",
			ActualValue: m.Brightness,
			Threshold:   qv.thresholds.MinBrightness,
		})
	} else if m.Brightness > qv.thresholds.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        "too_bright",
			Message:     "label image is overexposed",
			ActualValue: m.Brightness,
			Threshold:   qv.thresholds.MaxBrightness,
		})
	}

	return issues
}
