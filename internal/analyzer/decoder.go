package analyzer

import (
	"image"
	"image/color"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// dataMatrixDecoder wraps the gozxing Data Matrix reader
type dataMatrixDecoder struct {
	opts DecoderOptions
}

// NewDataMatrixDecoder creates the default Decoder
func NewDataMatrixDecoder(opts DecoderOptions) Decoder {
	if opts.MaxUpscale < 1 {
		opts.MaxUpscale = 1
	}
	return &dataMatrixDecoder{opts: opts}
}

var decodeAttempts = []map[gozxing.DecodeHintType]interface{}{
	{gozxing.DecodeHintType_TRY_HARDER: true},
	{gozxing.DecodeHintType_PURE_BARCODE: true},
}

func (d *dataMatrixDecoder) Decode(region *image.Gray) []models.DecodedSymbol {
	if region == nil || region.Bounds().Empty() {
		return nil
	}

	prepared := d.prepare(region)
	bmp, err := gozxing.NewBinaryBitmapFromImage(prepared)
	if err != nil {
		return nil
	}

	reader := datamatrix.NewDataMatrixReader()
	for _, hints := range decodeAttempts {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			reader.Reset()
			continue
		}
		if text := result.GetText(); text != "" {
			return []models.DecodedSymbol{{Data: []byte(text)}}
		}
	}
	return nil
}

// prepare upscales small regions with nearest neighbour sampling and
// surrounds them with a white quiet zone.
func (d *dataMatrixDecoder) prepare(region *image.Gray) *image.Gray {
	b := region.Bounds()
	w, h := b.Dx(), b.Dy()

	scale := 1
	short := w
	if h < short {
		short = h
	}
	for short*scale < d.opts.MinRegionSize && scale < d.opts.MaxUpscale {
		scale++
	}

	q := d.opts.QuietZone
	out := image.NewGray(image.Rect(0, 0, w*scale+2*q, h*scale+2*q))
	for i := range out.Pix {
		out.Pix[i] = 0xff
	}

	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			v := region.GrayAt(b.Min.X+x/scale, b.Min.Y+y/scale)
			out.SetGray(q+x, q+y, color.Gray{Y: v.Y})
		}
	}
	return out
}
