package analyzer

import "testing"

func TestDefaultLocalizerOptions(t *testing.T) {
	opts := DefaultLocalizerOptions()

	if opts.BlurKernel != 3 {
		t.Errorf("Expected blur kernel 3, got %d", opts.BlurKernel)
	}
	if opts.Threshold != 50 {
		t.Errorf("Expected threshold 50, got %f", opts.Threshold)
	}
	if opts.CloseKernel != 7 {
		t.Errorf("Expected close kernel 7, got %d", opts.CloseKernel)
	}
	if opts.MinArea != 1000 {
		t.Errorf("Expected min area 1000, got %f", opts.MinArea)
	}
	if opts.MinAspect != 0.8 || opts.MaxAspect != 1.2 {
		t.Errorf("Expected aspect range [0.8, 1.2], got [%f, %f]", opts.MinAspect, opts.MaxAspect)
	}
	if opts.CropPadding != 1 {
		t.Errorf("Expected crop padding 1, got %d", opts.CropPadding)
	}
}

func TestChainedLocalizerOptions(t *testing.T) {
	opts := DefaultLocalizerOptions().
		WithThreshold(80).
		WithMinArea(400).
		WithAspectRange(0.5, 2)

	if opts.Threshold != 80 || opts.MinArea != 400 || opts.MinAspect != 0.5 || opts.MaxAspect != 2 {
		t.Errorf("Unexpected chained options %+v", opts)
	}
	if DefaultLocalizerOptions().Threshold != 50 {
		t.Error("Expected chaining not to mutate defaults")
	}
}

func TestNormalizedOptions(t *testing.T) {
	opts := LocalizerOptions{BlurKernel: 4, CropPadding: -2}.normalized()

	if opts.BlurKernel != 5 {
		t.Errorf("Expected even blur kernel to round up to 5, got %d", opts.BlurKernel)
	}
	if opts.CloseKernel != 7 {
		t.Errorf("Expected default close kernel, got %d", opts.CloseKernel)
	}
	if opts.MaxAspect != 1.2 {
		t.Errorf("Expected default aspect range, got %f", opts.MaxAspect)
	}
	if opts.CropPadding != 0 {
		t.Errorf("Expected negative padding clamped to 0, got %d", opts.CropPadding)
	}
}
