// Package ocr checks that the accession read from the barcode is also
// printed legibly on the label.
//
// Transcription uses the Tesseract engine through gosseract, so the
// tesseract library and its language data must be installed when OCR is
// enabled.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// DefaultLanguage is the Tesseract language used when none is configured
const DefaultLanguage = "eng"

// TextReader transcribes the text in an image
type TextReader interface {
	ReadText(ctx context.Context, img image.Image) (string, error)
}

// TesseractReader transcribes with a fresh gosseract client per call
type TesseractReader struct {
	language string
}

// NewTesseractReader creates a reader for language
func NewTesseractReader(language string) *TesseractReader {
	if language == "" {
		language = DefaultLanguage
	}
	return &TesseractReader{language: language}
}

// ReadText runs Tesseract over img
func (r *TesseractReader) ReadText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image for ocr: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return "", fmt.Errorf("ocr language %s: %w", r.language, err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr text: %w", err)
	}
	return text, nil
}

// Verification is the outcome of checking a captured label
type Verification struct {
	Transcript string `json:"transcript"`
	Match
}

// Verifier reads a label frame and matches the accession against it
type Verifier struct {
	reader TextReader
}

// NewVerifier creates a Verifier using reader
func NewVerifier(reader TextReader) *Verifier {
	return &Verifier{reader: reader}
}

// Verify transcribes frame and matches accession against the transcript
func (v *Verifier) Verify(ctx context.Context, frame models.Frame, accession string) (*Verification, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("ocr: empty frame")
	}
	text, err := v.reader.ReadText(ctx, frame.Image)
	if err != nil {
		return nil, err
	}
	return &Verification{
		Transcript: text,
		Match:      MatchAccession(accession, text),
	}, nil
}
