package factory

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specimen-imaging/labelstation/internal/analyzer"
	"github.com/specimen-imaging/labelstation/internal/camera"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/strategy"
	"github.com/specimen-imaging/labelstation/pkg/models"
	"github.com/specimen-imaging/labelstation/pkg/validation"
)

func TestParseDeviceID(t *testing.T) {
	tests := []struct {
		id      string
		kind    DeviceKind
		index   int
		target  string
		wantErr bool
	}{
		{id: "webcam:0", kind: WebcamDevice, index: 0, target: "webcam:0"},
		{id: "2", kind: WebcamDevice, index: 2, target: "2"},
		{id: " webcam:1 ", kind: WebcamDevice, index: 1, target: "webcam:1"},
		{id: "http://10.0.0.5/snapshot.jpg", kind: NetworkDevice, target: "http://10.0.0.5/snapshot.jpg"},
		{id: "https://cam.local/still", kind: NetworkDevice, target: "https://cam.local/still"},
		{id: "file:/tmp/label.png", kind: FileDevice, target: "/tmp/label.png"},
		{id: "", wantErr: true},
		{id: "file:", wantErr: true},
		{id: "webcam:-1", wantErr: true},
		{id: "rtsp://cam/stream", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseDeviceID(tt.id)
			if tt.wantErr {
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Fatalf("Expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got.Kind != tt.kind || got.Index != tt.index || got.Target != tt.target {
				t.Errorf("Expected %s/%d/%s, got %+v", tt.kind, tt.index, tt.target, got)
			}
		})
	}
}

type fakeSource struct{ id string }

func (s *fakeSource) Read() (models.Frame, error) { return models.Frame{}, nil }
func (s *fakeSource) Release() error              { return nil }
func (s *fakeSource) Describe() string            { return s.id }

type fakeIndexOpener struct{ opened []int }

func (o *fakeIndexOpener) OpenIndex(ctx context.Context, index int) (camera.FrameSource, error) {
	o.opened = append(o.opened, index)
	return &fakeSource{id: "fake"}, nil
}

func TestDeviceFactoryOpen(t *testing.T) {
	webcams := &fakeIndexOpener{}
	f := NewDeviceFactory(webcams, nil, time.Second).WithFileInterval(0)

	src, err := f.Open(context.Background(), "webcam:3")
	if err != nil {
		t.Fatalf("Open webcam failed: %v", err)
	}
	if src.Describe() != "fake" || len(webcams.opened) != 1 || webcams.opened[0] != 3 {
		t.Errorf("Expected webcam index 3 to be opened, got %v", webcams.opened)
	}

	src, err = f.Open(context.Background(), "http://10.0.0.5/snapshot.jpg")
	if err != nil {
		t.Fatalf("Open network camera failed: %v", err)
	}
	if _, ok := src.(*camera.HTTPSource); !ok {
		t.Errorf("Expected *camera.HTTPSource, got %T", src)
	}
	src.Release()

	path := filepath.Join(t.TempDir(), "label.png")
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	png.Encode(out, image.NewRGBA(image.Rect(0, 0, 4, 4)))
	out.Close()

	src, err = f.Open(context.Background(), "file:"+path)
	if err != nil {
		t.Fatalf("Open file device failed: %v", err)
	}
	frame, err := src.Read()
	if err != nil || frame.Empty() {
		t.Errorf("Expected a frame from the file device, got %v", err)
	}
	src.Release()
}

func TestDeviceFactoryRejectsURL(t *testing.T) {
	urls := validation.NewURLValidatorWithOptions([]string{"https"}, nil)
	f := NewDeviceFactory(nil, urls, time.Second)

	_, err := f.Open(context.Background(), "http://10.0.0.5/snapshot.jpg")
	if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestDeviceFactoryWithoutWebcams(t *testing.T) {
	f := NewDeviceFactory(nil, nil, time.Second)
	if _, err := f.Open(context.Background(), "webcam:0"); err == nil {
		t.Error("Expected error when no webcam opener is configured")
	}
}

func TestStrategyFactory(t *testing.T) {
	f := NewStrategyFactory(analyzer.NewLocalizer(analyzer.DefaultLocalizerOptions()), analyzer.NewMetricsCalculator(), strategy.DisplayOptions{})
	strategies := f.CreateStrategies()

	if len(strategies) != len(models.Roles) {
		t.Fatalf("Expected %d strategies, got %d", len(models.Roles), len(strategies))
	}
	if strategies[models.SlotLabel].GetStrategyName() != "label_preview" {
		t.Errorf("Expected label_preview, got %s", strategies[models.SlotLabel].GetStrategyName())
	}
	if strategies[models.SlotBarcode].GetStrategyName() != "barcode_decode" {
		t.Errorf("Expected barcode_decode, got %s", strategies[models.SlotBarcode].GetStrategyName())
	}
}

func TestCreateStorage(t *testing.T) {
	store, err := CreateStorage(NoStorage, AzureSettings{})
	if err != nil || store != nil {
		t.Errorf("Expected no storage, got %v, %v", store, err)
	}
	if _, err := CreateStorage("ftp", AzureSettings{}); err == nil {
		t.Error("Expected error for unsupported storage")
	}
}

func TestCanonicalDeviceKeys(t *testing.T) {
	f := NewDeviceFactory(nil, nil, time.Second)
	abs, err := filepath.Abs("label.png")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		ids      []string
		expected string
	}{
		{[]string{"0", "webcam:0", "webcam:00", " 0 "}, "webcam:0"},
		{[]string{"3", "webcam:003"}, "webcam:3"},
		{[]string{"http://CAM.local/snap.jpg", "http://cam.local/./snap.jpg", "http://cam.local/snap.jpg#x"}, "http://cam.local/snap.jpg"},
		{[]string{"file:label.png", "file:./label.png", "file:" + abs}, "file:" + abs},
	}

	for _, tt := range tests {
		for _, id := range tt.ids {
			got, err := f.Canonical(id)
			if err != nil {
				t.Fatalf("Canonical(%q) failed: %v", id, err)
			}
			if got != tt.expected {
				t.Errorf("Canonical(%q): expected %q, got %q", id, tt.expected, got)
			}
		}
	}

	if _, err := f.Canonical("rtsp://cam/stream"); !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		t.Errorf("Expected validation error for unsupported id, got %v", err)
	}
	a, _ := f.Canonical("http://cam.local/snap.jpg")
	b, _ := f.Canonical("http://cam.local/other.jpg")
	if a == b {
		t.Error("Expected different snapshot paths to stay distinct")
	}
}
