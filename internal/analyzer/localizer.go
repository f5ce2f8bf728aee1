package analyzer

import (
	"image"
	"unicode/utf8"

	"gocv.io/x/gocv"

	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// dataMatrixLocalizer isolates square ink blobs with OpenCV and hands each
// padded crop to a Decoder until one decodes.
type dataMatrixLocalizer struct {
	opts    LocalizerOptions
	decoder Decoder
}

// NewLocalizer creates a localizer using the default decoder
func NewLocalizer(opts LocalizerOptions) Localizer {
	return NewLocalizerWithDecoder(opts, NewDataMatrixDecoder(DefaultDecoderOptions()))
}

// NewLocalizerWithDecoder creates a localizer that uses the given decoder
func NewLocalizerWithDecoder(opts LocalizerOptions, decoder Decoder) Localizer {
	return &dataMatrixLocalizer{opts: opts.normalized(), decoder: decoder}
}

func (l *dataMatrixLocalizer) LocateAndDecode(frame models.Frame) *models.DecodeResult {
	if frame.Empty() {
		return nil
	}

	gray, candidates, err := l.candidates(frame.Image)
	if err != nil {
		logger.WithError(err).Debug("Data Matrix localization failed")
		return nil
	}

	bounds := gray.Bounds()
	for _, box := range candidates {
		crop := box.Inset(-l.opts.CropPadding).Intersect(bounds)
		if crop.Empty() {
			continue
		}

		text, ok := l.decodeRegion(cropGray(gray, crop))
		if !ok {
			continue
		}
		return &models.DecodeResult{Text: text, Region: crop}
	}
	return nil
}

// candidates runs the CV pipeline and returns the grayscale frame plus the
// bounding boxes of square external contours in scan order.
func (l *dataMatrixLocalizer) candidates(img *image.RGBA) (*image.Gray, []image.Rectangle, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := l.opts.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(blurred, &binary, l.opts.Threshold, 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(l.opts.CloseKernel, l.opts.CloseKernel))
	defer kernel.Close()
	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(binary, &closed, gocv.MorphClose, kernel)

	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) < l.opts.MinArea {
			continue
		}
		box := gocv.BoundingRect(contour)
		if !l.squareEnough(box) {
			continue
		}
		boxes = append(boxes, box)
	}

	grayImg, err := gray.ToImage()
	if err != nil {
		return nil, nil, err
	}
	g, ok := grayImg.(*image.Gray)
	if !ok {
		g = toGray(grayImg)
	}
	return g, boxes, nil
}

func (l *dataMatrixLocalizer) squareEnough(box image.Rectangle) bool {
	if box.Dy() == 0 {
		return false
	}
	aspect := float64(box.Dx()) / float64(box.Dy())
	return aspect >= l.opts.MinAspect && aspect <= l.opts.MaxAspect
}

// decodeRegion treats a decoder panic as no decode
func (l *dataMatrixLocalizer) decodeRegion(region *image.Gray) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Warn("Data Matrix decoder panicked, skipping region")
			text, ok = "", false
		}
	}()

	for _, sym := range l.decoder.Decode(region) {
		if len(sym.Data) == 0 || !utf8.Valid(sym.Data) {
			continue
		}
		return string(sym.Data), true
	}
	return "", false
}

// cropGray copies r out of src into a new image anchored at the origin
func cropGray(src *image.Gray, r image.Rectangle) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		srcOff := src.PixOffset(r.Min.X, r.Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+r.Dx()], src.Pix[srcOff:srcOff+r.Dx()])
	}
	return dst
}
