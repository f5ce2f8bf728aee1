package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/specimen-imaging/labelstation/internal/analyzer"
	"github.com/specimen-imaging/labelstation/internal/camera/webcam"
	"github.com/specimen-imaging/labelstation/internal/capture"
	"github.com/specimen-imaging/labelstation/internal/config"
	"github.com/specimen-imaging/labelstation/internal/factory"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/metadata"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/internal/ocr"
	"github.com/specimen-imaging/labelstation/internal/repository"
	"github.com/specimen-imaging/labelstation/internal/service"
	"github.com/specimen-imaging/labelstation/internal/session"
	"github.com/specimen-imaging/labelstation/internal/storage"
	"github.com/specimen-imaging/labelstation/internal/strategy"
	"github.com/specimen-imaging/labelstation/internal/stream"
	"github.com/specimen-imaging/labelstation/internal/transport"
	"github.com/specimen-imaging/labelstation/pkg/models"
	"github.com/specimen-imaging/labelstation/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config   *config.Config
	events   *observer.EventPublisher
	mqtt     *observer.MQTTObserver
	mirror   repository.CaptureRepository
	archiver *storage.Archiver
	manager  *stream.Manager
	service  service.StationService
	handler  http.Handler
}

// NewContainer builds the dependency graph. Optional integrations that fail
// to connect are logged and left out.
func NewContainer(cfg *config.Config) (*Container, error) {
	c := &Container{config: cfg}

	c.events = observer.NewEventPublisher()
	activity := observer.NewActivityLog(cfg.ActivityLogSize)
	metrics := observer.NewMetricsObserver()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(metrics)
	c.events.Subscribe(activity)

	if cfg.MQTTBroker != "" {
		client, err := observer.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			logger.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT disabled")
		} else {
			c.mqtt = observer.NewMQTTObserver(client, cfg.MQTTTopic)
			c.events.Subscribe(c.mqtt)
		}
	}

	localizer := analyzer.NewLocalizer(analyzer.DefaultLocalizerOptions())
	metricsCalc := analyzer.NewMetricsCalculator()
	components := factory.NewComponentFactory(
		factory.NewDeviceFactory(
			webcam.Opener{Width: cfg.FrameWidth, Height: cfg.FrameHeight},
			validation.NewURLValidator(),
			cfg.DeviceFetchTimeout,
		),
		factory.NewStrategyFactory(localizer, metricsCalc, strategy.DisplayOptions{Rotate180: cfg.RotatePreview}),
	)

	state := session.NewState(session.Settings{
		OutputRoot: cfg.OutputRoot,
		Project:    cfg.Project,
		Creator:    cfg.Creator,
	})
	previews := stream.NewPreviewStore()
	c.manager = stream.NewManager(components.Devices, state, components.Strategies.CreateStrategies(), previews, c.events)

	defaults := map[models.SlotRole]string{
		models.SlotLabel:   cfg.LabelDevice,
		models.SlotBarcode: cfg.BarcodeDevice,
	}
	for _, role := range models.Roles {
		device := defaults[role]
		if device == "" {
			continue
		}
		if err := c.manager.Bind(role, device); err != nil {
			logger.WithSlot(string(role), device).WithError(err).Warn("Default device not bound")
		}
	}

	thresholds := validation.DefaultQualityThresholds()
	thresholds.MinLaplacianVariance = cfg.BlurThreshold
	captureOpts := []capture.Option{
		capture.WithQualityCheck(metricsCalc, validation.NewQualityValidatorWithThresholds(thresholds)),
	}

	if cfg.OCREnabled {
		captureOpts = append(captureOpts, capture.WithVerifier(ocr.NewVerifier(ocr.NewTesseractReader(cfg.OCRLanguage))))
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		repo, err := repository.NewPostgresCaptureRepository(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Capture mirror disabled")
		} else {
			c.mirror = repo
			captureOpts = append(captureOpts, capture.WithMirror(repo))
		}
	}

	if cfg.ArchiveEnabled() {
		store, err := factory.CreateStorage(factory.AzureStorage, factory.AzureSettings{
			Account:   cfg.AzureAccount,
			Key:       cfg.AzureKey,
			Container: cfg.AzureContainer,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create archive storage: %w", err)
		}
		c.archiver = storage.NewArchiver(store, cfg.ArchiveWorkers, c.events)
		captureOpts = append(captureOpts, capture.WithArchiver(c.archiver))
	}

	ledger := metadata.NewLedger()
	captures := capture.NewSession(state, capture.Options{
		FileFormat:  cfg.FileFormat,
		JPEGQuality: cfg.JPEGQuality,
		Copyright:   cfg.Copyright,
		UsageTerms:  cfg.UsageTerms,
	}, metadata.NewExifEmbedder(), ledger, c.events, captureOpts...)

	c.service = service.NewStationService(service.Dependencies{
		Slots:    c.manager,
		State:    state,
		Capture:  captures,
		Ledger:   ledger,
		Previews: previews,
		Activity: activity,
		Metrics:  metrics,
		Events:   c.events,
	})
	c.handler = transport.NewHandler(c.service, cfg)

	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the station service
func (c *Container) Service() service.StationService {
	return c.service
}

// Close stops every worker and releases devices, then drains background
// uploads and closes the external connections
func (c *Container) Close() {
	if c.service != nil {
		c.service.Shutdown()
	} else if c.manager != nil {
		c.manager.Shutdown()
	}
	if c.archiver != nil {
		c.archiver.Close()
	}
	c.events.Wait()
	if c.mqtt != nil {
		c.mqtt.Close()
	}
	if c.mirror != nil {
		c.mirror.Close()
	}
}
