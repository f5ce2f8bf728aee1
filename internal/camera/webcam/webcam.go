// Package webcam implements camera.FrameSource on top of OpenCV video capture.
package webcam

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/specimen-imaging/labelstation/internal/camera"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// Source reads frames from a local capture device
type Source struct {
	index   int
	capture *gocv.VideoCapture
	mat     gocv.Mat

	mu       sync.Mutex
	released bool
}

// Open opens capture device index and requests the given frame size
func Open(index, width, height int) (*Source, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture device %d did not open", index)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))

	logger.WithFields(map[string]interface{}{
		"device": index,
		"width":  capture.Get(gocv.VideoCaptureFrameWidth),
		"height": capture.Get(gocv.VideoCaptureFrameHeight),
	}).Info("Capture device opened")

	return &Source{index: index, capture: capture, mat: gocv.NewMat()}, nil
}

func (s *Source) Describe() string {
	return "webcam " + strconv.Itoa(s.index)
}

func (s *Source) Read() (models.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return models.Frame{}, apperrors.NewDeviceError(apperrors.CodeNoFrame, "device released", nil)
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return models.Frame{}, apperrors.NewDeviceError(apperrors.CodeNoFrame, "no frame from "+s.Describe(), nil)
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return models.Frame{}, apperrors.NewDeviceError(apperrors.CodeNoFrame, "convert frame", err)
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return models.Frame{Image: rgba, CapturedAt: time.Now(), Device: s.Describe()}, nil
	}
	return models.NewFrame(img, s.Describe(), time.Now()), nil
}

func (s *Source) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true
	s.mat.Close()
	return s.capture.Close()
}

// Opener opens "webcam:N" style identifiers already parsed to an index
type Opener struct {
	Width  int
	Height int
}

func (o Opener) OpenIndex(_ context.Context, index int) (camera.FrameSource, error) {
	src, err := Open(index, o.Width, o.Height)
	if err != nil {
		return nil, err
	}
	return src, nil
}
