package factory

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/specimen-imaging/labelstation/internal/analyzer"
	"github.com/specimen-imaging/labelstation/internal/camera"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/storage"
	"github.com/specimen-imaging/labelstation/internal/strategy"
	"github.com/specimen-imaging/labelstation/pkg/models"
	"github.com/specimen-imaging/labelstation/pkg/validation"
)

// DeviceKind is the scheme of a device identifier
type DeviceKind string

const (
	// WebcamDevice is "webcam:N" or a bare index N
	WebcamDevice DeviceKind = "webcam"
	// NetworkDevice is an http(s) snapshot URL
	NetworkDevice DeviceKind = "network"
	// FileDevice is "file:<path>", a still image served as a camera
	FileDevice DeviceKind = "file"
)

// DefaultFileInterval paces file devices at roughly 30 frames per second
const DefaultFileInterval = 33 * time.Millisecond

// IndexOpener opens a local capture device by index
type IndexOpener interface {
	OpenIndex(ctx context.Context, index int) (camera.FrameSource, error)
}

// ParsedDevice is a device identifier split into kind and target
type ParsedDevice struct {
	Kind   DeviceKind
	Index  int
	Target string
}

// ParseDeviceID classifies a device identifier
func ParseDeviceID(deviceID string) (ParsedDevice, error) {
	id := strings.TrimSpace(deviceID)
	switch {
	case id == "":
		return ParsedDevice{}, apperrors.NewValidationError("device id must not be empty", nil)
	case strings.HasPrefix(id, "http://"), strings.HasPrefix(id, "https://"):
		return ParsedDevice{Kind: NetworkDevice, Target: id}, nil
	case strings.HasPrefix(id, "file:"):
		file := strings.TrimPrefix(id, "file:")
		if file == "" {
			return ParsedDevice{}, apperrors.NewValidationError("file device needs a path", nil)
		}
		return ParsedDevice{Kind: FileDevice, Target: file}, nil
	}

	index := strings.TrimPrefix(id, "webcam:")
	n, err := strconv.Atoi(index)
	if err != nil || n < 0 {
		return ParsedDevice{}, apperrors.NewValidationError(fmt.Sprintf("unsupported device id %q", deviceID), err)
	}
	return ParsedDevice{Kind: WebcamDevice, Index: n, Target: id}, nil
}

// Key names the physical device: webcam:N, the URL with lower-cased scheme
// and host and a cleaned path, or file: with an absolute cleaned path
func (d ParsedDevice) Key() string {
	switch d.Kind {
	case WebcamDevice:
		return "webcam:" + strconv.Itoa(d.Index)
	case NetworkDevice:
		u, err := url.Parse(d.Target)
		if err != nil {
			return d.Target
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		if u.Path != "" {
			u.Path = path.Clean(u.Path)
			u.RawPath = ""
		}
		u.Fragment = ""
		return u.String()
	case FileDevice:
		if abs, err := filepath.Abs(d.Target); err == nil {
			return "file:" + abs
		}
		return "file:" + filepath.Clean(d.Target)
	}
	return d.Target
}

// DeviceFactory opens any supported device identifier
type DeviceFactory struct {
	webcams      IndexOpener
	urls         *validation.URLValidator
	fetchTimeout time.Duration
	fileInterval time.Duration
}

// NewDeviceFactory creates a factory. webcams may be nil on hosts without
// capture devices; webcam ids then fail to open.
func NewDeviceFactory(webcams IndexOpener, urls *validation.URLValidator, fetchTimeout time.Duration) *DeviceFactory {
	if urls == nil {
		urls = validation.NewURLValidator()
	}
	return &DeviceFactory{
		webcams:      webcams,
		urls:         urls,
		fetchTimeout: fetchTimeout,
		fileInterval: DefaultFileInterval,
	}
}

// Canonical implements camera.DeviceCanonicalizer
func (f *DeviceFactory) Canonical(deviceID string) (string, error) {
	dev, err := ParseDeviceID(deviceID)
	if err != nil {
		return "", err
	}
	return dev.Key(), nil
}

// WithFileInterval overrides the pacing of file devices
func (f *DeviceFactory) WithFileInterval(d time.Duration) *DeviceFactory {
	f.fileInterval = d
	return f
}

// Open implements camera.DeviceOpener
func (f *DeviceFactory) Open(ctx context.Context, deviceID string) (camera.FrameSource, error) {
	dev, err := ParseDeviceID(deviceID)
	if err != nil {
		return nil, err
	}

	switch dev.Kind {
	case NetworkDevice:
		if err := f.urls.ValidateCameraURL(dev.Target); err != nil {
			return nil, err
		}
		return camera.NewHTTPSource(dev.Target, f.fetchTimeout), nil
	case FileDevice:
		src, err := camera.NewFileSource(dev.Target, f.fileInterval)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		if f.webcams == nil {
			return nil, fmt.Errorf("no webcam support for %s", deviceID)
		}
		return f.webcams.OpenIndex(ctx, dev.Index)
	}
}

// StrategyFactory builds the per-role live view strategies
type StrategyFactory struct {
	localizer analyzer.Localizer
	metrics   analyzer.MetricsCalculator
	display   strategy.DisplayOptions
}

// NewStrategyFactory creates a strategy factory
func NewStrategyFactory(localizer analyzer.Localizer, metrics analyzer.MetricsCalculator, display strategy.DisplayOptions) *StrategyFactory {
	return &StrategyFactory{localizer: localizer, metrics: metrics, display: display}
}

// CreateStrategies returns one strategy for every slot role
func (f *StrategyFactory) CreateStrategies() map[models.SlotRole]strategy.SlotStrategy {
	out := make(map[models.SlotRole]strategy.SlotStrategy, len(models.Roles))
	for _, role := range models.Roles {
		out[role] = strategy.ForRole(role, f.localizer, f.metrics, f.display)
	}
	return out
}

// StorageType selects the archive backend
type StorageType string

const (
	// NoStorage disables archiving
	NoStorage StorageType = "none"
	// AzureStorage archives to Azure Blob Storage
	AzureStorage StorageType = "azure"
)

// AzureSettings are the credentials of the archive account
type AzureSettings struct {
	Account   string
	Key       string
	Container string
}

// CreateStorage returns the archive backend, or nil for NoStorage
func CreateStorage(storageType StorageType, azure AzureSettings) (storage.BlobStorage, error) {
	switch storageType {
	case NoStorage, "":
		return nil, nil
	case AzureStorage:
		return storage.NewAzureStorage(azure.Account, azure.Key, azure.Container)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	Devices    *DeviceFactory
	Strategies *StrategyFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(devices *DeviceFactory, strategies *StrategyFactory) *ComponentFactory {
	return &ComponentFactory{Devices: devices, Strategies: strategies}
}
