package camera

import (
	"fmt"
	"image"
	"os"
	"sync/atomic"
	"time"

	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// FileSource replays a still image as a camera, one frame per interval
type FileSource struct {
	path     string
	frame    models.Frame
	interval time.Duration
	released atomic.Bool
}

// NewFileSource decodes the image once. Interval paces Read so a live
// view loop does not spin; zero disables pacing.
func NewFileSource(path string, interval time.Duration) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	src := &FileSource{path: path, interval: interval}
	src.frame = models.NewFrame(img, src.Describe(), time.Time{})
	return src, nil
}

func (s *FileSource) Describe() string {
	return "still image " + s.path
}

func (s *FileSource) Read() (models.Frame, error) {
	if s.released.Load() {
		return models.Frame{}, apperrors.NewDeviceError(apperrors.CodeNoFrame, "source released", nil)
	}
	if s.interval > 0 {
		time.Sleep(s.interval)
	}
	out := s.frame
	out.CapturedAt = time.Now()
	return out, nil
}

func (s *FileSource) Release() error {
	s.released.Store(true)
	return nil
}
