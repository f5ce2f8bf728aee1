package analyzer

import (
	"image"
	"testing"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

func TestLocateAndDecode_EmptyFrame(t *testing.T) {
	dec := &recordingDecoder{}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	if res := loc.LocateAndDecode(models.Frame{}); res != nil {
		t.Errorf("Expected nil for empty frame, got %+v", res)
	}
	if len(dec.regions) != 0 {
		t.Errorf("Expected decoder not to be called, got %d calls", len(dec.regions))
	}
}

func TestLocateAndDecode_NoContours(t *testing.T) {
	dec := &recordingDecoder{}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	if res := loc.LocateAndDecode(whiteFrame(320, 240)); res != nil {
		t.Errorf("Expected nil for blank frame, got %+v", res)
	}
	if len(dec.regions) != 0 {
		t.Errorf("Expected no candidate regions, got %d", len(dec.regions))
	}
}

func TestLocateAndDecode_SyntheticSymbol(t *testing.T) {
	frame := whiteFrame(200, 160)
	symbol := drawDataMatrix(t, frame, "NZAC001", 3, image.Pt(60, 50))

	loc := NewLocalizer(DefaultLocalizerOptions())
	res := loc.LocateAndDecode(frame)
	if res == nil {
		t.Fatal("Expected the symbol to decode")
	}
	if res.Text != "NZAC001" {
		t.Errorf("Expected NZAC001, got %q", res.Text)
	}
	if !res.Region.Overlaps(symbol) {
		t.Errorf("Expected region %v to cover symbol %v", res.Region, symbol)
	}
}

func TestLocateAndDecode_ElongatedBlobRejected(t *testing.T) {
	frame := whiteFrame(400, 200)
	fillRect(frame, image.Rect(50, 50, 350, 150))

	dec := &recordingDecoder{}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	if res := loc.LocateAndDecode(frame); res != nil {
		t.Errorf("Expected nil for a 3:1 blob, got %+v", res)
	}
	if len(dec.regions) != 0 {
		t.Errorf("Expected decoder not to be called, got %d calls", len(dec.regions))
	}
}

func TestLocateAndDecode_SmallBlobRejected(t *testing.T) {
	frame := whiteFrame(200, 200)
	fillRect(frame, image.Rect(90, 90, 110, 110))

	dec := &recordingDecoder{}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	if res := loc.LocateAndDecode(frame); res != nil {
		t.Errorf("Expected nil for a 20x20 blob, got %+v", res)
	}
	if len(dec.regions) != 0 {
		t.Error("Expected area filter to reject the blob")
	}
}

func TestLocateAndDecode_PaddedCrop(t *testing.T) {
	frame := whiteFrame(200, 200)
	fillRect(frame, image.Rect(50, 50, 100, 100))

	dec := &recordingDecoder{results: [][]models.DecodedSymbol{{{Data: []byte("NZAC042")}}}}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	res := loc.LocateAndDecode(frame)
	if res == nil || res.Text != "NZAC042" {
		t.Fatalf("Expected NZAC042, got %+v", res)
	}
	if len(dec.regions) != 1 {
		t.Fatalf("Expected 1 decode call, got %d", len(dec.regions))
	}
	// the blur erodes one pixel off every edge before thresholding, so the
	// one pixel pad lands back on the painted square
	if got := dec.regions[0]; got.Dx() != res.Region.Dx() || got.Dy() != res.Region.Dy() {
		t.Errorf("Expected crop %v to match region %v", got, res.Region)
	}
	if res.Region != image.Rect(50, 50, 100, 100) {
		t.Errorf("Expected region (50,50)-(100,100), got %v", res.Region)
	}
}

func TestLocateAndDecode_CropClampedAtEdge(t *testing.T) {
	frame := whiteFrame(120, 120)
	fillRect(frame, image.Rect(0, 0, 50, 50))

	dec := &recordingDecoder{results: [][]models.DecodedSymbol{{{Data: []byte("EDGE")}}}}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	res := loc.LocateAndDecode(frame)
	if res == nil {
		t.Fatal("Expected a decode for a blob touching the frame edge")
	}
	if res.Region.Min != image.Pt(0, 0) {
		t.Errorf("Expected crop clamped to origin, got %v", res.Region)
	}
}

func TestLocateAndDecode_FailedRegionDoesNotStopScan(t *testing.T) {
	frame := whiteFrame(400, 200)
	fillRect(frame, image.Rect(30, 50, 90, 110))
	fillRect(frame, image.Rect(250, 50, 310, 110))

	dec := &recordingDecoder{
		panicAt: 1,
		results: [][]models.DecodedSymbol{nil, {{Data: []byte("SECOND")}}},
	}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	res := loc.LocateAndDecode(frame)
	if res == nil || res.Text != "SECOND" {
		t.Fatalf("Expected the second region to decode after a panic, got %+v", res)
	}
	if len(dec.regions) != 2 {
		t.Errorf("Expected 2 decode calls, got %d", len(dec.regions))
	}
}

func TestLocateAndDecode_FirstSuccessWins(t *testing.T) {
	frame := whiteFrame(400, 200)
	fillRect(frame, image.Rect(30, 50, 90, 110))
	fillRect(frame, image.Rect(250, 50, 310, 110))

	dec := &recordingDecoder{results: [][]models.DecodedSymbol{
		{{Data: []byte("FIRST")}},
		{{Data: []byte("SECOND")}},
	}}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	res := loc.LocateAndDecode(frame)
	if res == nil {
		t.Fatal("Expected a decode")
	}
	if res.Text != "FIRST" {
		t.Errorf("Expected text of the first decoded region, got %q", res.Text)
	}
	if len(dec.regions) != 1 {
		t.Errorf("Expected scan to stop after the first success, got %d calls", len(dec.regions))
	}
}

func TestLocateAndDecode_InvalidUTF8Skipped(t *testing.T) {
	frame := whiteFrame(200, 200)
	fillRect(frame, image.Rect(50, 50, 100, 100))

	dec := &recordingDecoder{results: [][]models.DecodedSymbol{{{Data: []byte{0xff, 0xfe}}}}}
	loc := NewLocalizerWithDecoder(DefaultLocalizerOptions(), dec)

	if res := loc.LocateAndDecode(frame); res != nil {
		t.Errorf("Expected invalid UTF-8 payload to be ignored, got %+v", res)
	}
}
