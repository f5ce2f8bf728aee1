package analyzer

// LocalizerOptions tunes the Data Matrix candidate search
type LocalizerOptions struct {
	// Gaussian blur kernel size, odd
	BlurKernel int
	// Gray level below which a pixel counts as ink
	Threshold float32
	// Morphological close kernel size
	CloseKernel int

	// Candidate filters
	MinArea   float64
	MinAspect float64
	MaxAspect float64

	// Extra pixels around the bounding box handed to the decoder
	CropPadding int
}

// DefaultLocalizerOptions returns the thresholds tuned for printed specimen labels
func DefaultLocalizerOptions() LocalizerOptions {
	return LocalizerOptions{
		BlurKernel:  3,
		Threshold:   50,
		CloseKernel: 7,
		MinArea:     1000,
		MinAspect:   0.8,
		MaxAspect:   1.2,
		CropPadding: 1,
	}
}

// WithThreshold returns options with a different ink threshold
func (opts LocalizerOptions) WithThreshold(threshold float32) LocalizerOptions {
	opts.Threshold = threshold
	return opts
}

// WithMinArea returns options with a different minimum candidate area
func (opts LocalizerOptions) WithMinArea(area float64) LocalizerOptions {
	opts.MinArea = area
	return opts
}

// WithAspectRange returns options accepting bounding boxes with w/h in [min, max]
func (opts LocalizerOptions) WithAspectRange(min, max float64) LocalizerOptions {
	opts.MinAspect = min
	opts.MaxAspect = max
	return opts
}

// normalized fixes values the CV pipeline cannot accept
func (opts LocalizerOptions) normalized() LocalizerOptions {
	def := DefaultLocalizerOptions()
	if opts.BlurKernel <= 0 {
		opts.BlurKernel = def.BlurKernel
	}
	if opts.BlurKernel%2 == 0 {
		opts.BlurKernel++
	}
	if opts.CloseKernel <= 0 {
		opts.CloseKernel = def.CloseKernel
	}
	if opts.MaxAspect <= 0 {
		opts.MinAspect, opts.MaxAspect = def.MinAspect, def.MaxAspect
	}
	if opts.CropPadding < 0 {
		opts.CropPadding = 0
	}
	return opts
}

// DecoderOptions tunes how candidate regions are prepared for the decoder
type DecoderOptions struct {
	// Regions smaller than this on either side are upscaled
	MinRegionSize int
	// Largest integer upscale factor
	MaxUpscale int
	// White border added around the region, in pixels after upscaling
	QuietZone int
}

// DefaultDecoderOptions returns the decoder defaults
func DefaultDecoderOptions() DecoderOptions {
	return DecoderOptions{
		MinRegionSize: 100,
		MaxUpscale:    8,
		QuietZone:     12,
	}
}
