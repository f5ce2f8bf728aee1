package validation

import (
	"testing"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

func TestQualityValidator(t *testing.T) {
	qv := NewQualityValidator()

	tests := []struct {
		name    string
		metrics models.FocusMetrics
		want    []string
	}{
		{"sharp and well lit", models.FocusMetrics{LaplacianVar: 450, Brightness: 130}, nil},
		{"blurry", models.FocusMetrics{LaplacianVar: 20, Brightness: 130}, []string{"blurriness"}},
		{"dark and blurry", models.FocusMetrics{LaplacianVar: 5, Brightness: 10}, []string{"blurriness", "too_dark"}},
		{"overexposed", models.FocusMetrics{LaplacianVar: 300, Brightness: 250}, []string{"too_bright"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := qv.Validate(tt.metrics)
			if len(issues) != len(tt.want) {
				t.Fatalf("Expected %d issues, got %d: %+v", len(tt.want), len(issues), issues)
			}
			for i, issue := range issues {
				if issue.Type != tt.want[i] {
					t.Errorf("Expected issue %d to be %s, got %s", i, tt.want[i], issue.Type)
				}
			}
		})
	}
}

func TestCustomThresholds(t *testing.T) {
	qv := NewQualityValidatorWithThresholds(QualityThresholds{MinLaplacianVariance: 10, MinBrightness: 0, MaxBrightness: 255})
	if issues := qv.Validate(models.FocusMetrics{LaplacianVar: 20, Brightness: 250}); len(issues) != 0 {
		t.Errorf("Expected no issues, got %+v", issues)
	}
}

func TestValidatePathComponent(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		allowEmpty bool
		wantErr    bool
	}{
		{"accession", "NZAC001", false, false},
		{"with spaces inside", "beetle survey 2024", false, false},
		{"empty required", "", false, true},
		{"empty tag allowed", "", true, false},
		{"label tag", "_label", true, false},
		{"slash", "a/b", false, true},
		{"dot dot", "..", false, true},
		{"backslash", `a\b`, false, true},
		{"leading space", " NZAC", false, true},
		{"control char", "NZ\x01", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathComponent("accession", tt.value, tt.allowEmpty)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil && !apperrors.HasCode(err, apperrors.CodeInvalidSession) {
				t.Errorf("Expected INVALID_SESSION, got %v", err)
			}
		})
	}
}
