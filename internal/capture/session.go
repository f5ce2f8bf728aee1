// Package capture turns the current label frame into a persisted,
// annotated and logged image.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/specimen-imaging/labelstation/internal/analyzer"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/metadata"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/internal/ocr"
	"github.com/specimen-imaging/labelstation/internal/repository"
	"github.com/specimen-imaging/labelstation/internal/session"
	"github.com/specimen-imaging/labelstation/pkg/models"
	"github.com/specimen-imaging/labelstation/pkg/validation"
)

// Software is written into the EXIF Software tag
const Software = "labelstation"

// LogAppender appends rows to a project ledger
type LogAppender interface {
	AppendLogRow(outputRoot, project string, row metadata.LogRow) error
}

// AccessionVerifier checks that an accession is legible on a label frame
type AccessionVerifier interface {
	Verify(ctx context.Context, frame models.Frame, accession string) (*ocr.Verification, error)
}

// Archiver queues a capture for off-station upload
type Archiver interface {
	Archive(record models.CaptureRecord) error
}

// Options are the fixed per-station capture settings
type Options struct {
	FileFormat  string
	JPEGQuality int
	Copyright   string
	UsageTerms  string
}

// DefaultOptions returns .jpg at quality 95
func DefaultOptions() Options {
	return Options{FileFormat: ".jpg", JPEGQuality: 95}
}

// Session runs capture transactions against the shared session state
type Session struct {
	state    *session.State
	opts     Options
	embedder metadata.Embedder
	ledger   LogAppender
	events   observer.Subject

	metrics  analyzer.MetricsCalculator
	quality  *validation.QualityValidator
	verifier AccessionVerifier
	mirror   repository.CaptureRepository
	archiver Archiver

	now   func() time.Time
	newID func() string
}

// Option configures the optional stages of a Session
type Option func(*Session)

// WithQualityCheck scores the captured frame and warns on poor focus or exposure
func WithQualityCheck(metrics analyzer.MetricsCalculator, quality *validation.QualityValidator) Option {
	return func(s *Session) {
		s.metrics = metrics
		s.quality = quality
	}
}

// WithVerifier enables OCR verification of the accession
func WithVerifier(v AccessionVerifier) Option {
	return func(s *Session) { s.verifier = v }
}

// WithMirror stores each record in a repository
func WithMirror(repo repository.CaptureRepository) Option {
	return func(s *Session) { s.mirror = repo }
}

// WithArchiver queues each image for archive upload
func WithArchiver(a Archiver) Option {
	return func(s *Session) { s.archiver = a }
}

// WithClock overrides the capture timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession creates a capture session. embedder and ledger are required.
func NewSession(state *session.State, opts Options, embedder metadata.Embedder, ledger LogAppender, events observer.Subject, options ...Option) *Session {
	if opts.FileFormat == "" {
		opts.FileFormat = ".jpg"
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 95
	}
	s := &Session{
		state:    state,
		opts:     opts,
		embedder: embedder,
		ledger:   ledger,
		events:   events,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Destination returns output_root/project/accession
func Destination(settings session.Settings, accession string) string {
	return filepath.Join(settings.OutputRoot, settings.Project, accession)
}

// Validate checks that the session names a safe destination
func Validate(settings session.Settings, accession, tag string) error {
	if settings.OutputRoot == "" {
		return apperrors.InvalidSession("output root is not set")
	}
	if err := validation.ValidatePathComponent("project", settings.Project, false); err != nil {
		return err
	}
	if err := validation.ValidatePathComponent("accession", accession, false); err != nil {
		return err
	}
	return validation.ValidatePathComponent("tag", tag, true)
}

// Target is the session state a capture is written for
type Target struct {
	Settings  session.Settings
	Accession string
}

// Destination returns the accession folder of the target
func (t Target) Destination() string {
	return Destination(t.Settings, t.Accession)
}

// CurrentTarget reads settings and accession once
func (s *Session) CurrentTarget() Target {
	return Target{Settings: s.state.Settings(), Accession: s.state.Accession()}
}

// PendingDestination validates the current session and returns the folder
// the next capture would write into
func (s *Session) PendingDestination(tag string) (string, error) {
	target := s.CurrentTarget()
	if err := Validate(target.Settings, target.Accession, tag); err != nil {
		return "", err
	}
	return target.Destination(), nil
}

// Capture captures for the current session state
func (s *Session) Capture(ctx context.Context, tag string) (*models.CaptureResult, error) {
	return s.CaptureFor(ctx, s.CurrentTarget(), tag)
}

// CaptureFor writes the latest label frame as accession+tag+format into the
// target's accession folder, then embeds metadata and appends the ledger
// row. Accessions decoded after target was taken do not affect it. Once the
// image is written every later failure is a warning on the result.
func (s *Session) CaptureFor(ctx context.Context, target Target, tag string) (*models.CaptureResult, error) {
	start := time.Now()
	settings := target.Settings
	accession := target.Accession

	if err := Validate(settings, accession, tag); err != nil {
		return nil, err
	}
	frame, ok := s.state.LastFrame(models.SlotLabel)
	if !ok {
		return nil, apperrors.NoFrameAvailable()
	}

	dir := Destination(settings, accession)
	filename := accession + tag + s.opts.FileFormat
	path := filepath.Join(dir, filename)
	log := logger.WithFields(logrus.Fields{
		"accession": accession,
		"project":   settings.Project,
		"path":      path,
	})

	if err := s.writeImage(dir, path, frame); err != nil {
		log.WithError(err).Error("Failed to write capture")
		s.notify(observer.StationEvent{
			EventType:    observer.CaptureFailed,
			Accession:    accession,
			Project:      settings.Project,
			Path:         path,
			Duration:     time.Since(start),
			ErrorMessage: err.Error(),
		})
		return nil, err
	}

	record := models.CaptureRecord{
		ID:                s.newID(),
		AccessionID:       accession,
		Project:           settings.Project,
		Creator:           settings.Creator,
		Tag:               tag,
		FileFormat:        s.opts.FileFormat,
		DeviceDescription: frame.Device,
		Timestamp:         s.now().Truncate(time.Second),
		OutputPath:        path,
	}
	result := &models.CaptureResult{Record: record}
	warn := func(stage models.CaptureStage, err error) {
		log.WithField("stage", stage).WithError(err).Warn("Capture step failed")
		result.Warnings = append(result.Warnings, models.CaptureWarning{Stage: stage, Message: err.Error()})
	}

	caption := fmt.Sprintf("%s: %s", settings.Project, accession)
	title := accession + tag

	if err := s.embedder.BuildAndEmbed(path, metadata.EmbedInfo{
		Copyright: s.opts.Copyright,
		Creator:   settings.Creator,
		Timestamp: record.Timestamp,
		Device:    frame.Device,
		Caption:   caption,
		Title:     title,
		Software:  Software,
	}); err != nil {
		warn(models.StageMetadata, err)
	}

	if err := s.ledger.AppendLogRow(settings.OutputRoot, settings.Project, metadata.LogRow{
		ImageFilename: filename,
		Accession:     accession,
		Project:       settings.Project,
		FileFormat:    s.opts.FileFormat,
		Copyright:     s.opts.Copyright,
		UsageTerms:    s.opts.UsageTerms,
		Creator:       settings.Creator,
		Timestamp:     record.Timestamp.Local().Format(metadata.ExifTimeLayout),
		Device:        frame.Device,
		Caption:       caption,
		Title:         title,
	}); err != nil {
		warn(models.StageLog, err)
	}

	if s.metrics != nil && s.quality != nil {
		focus := s.metrics.Focus(frame)
		result.Focus = &focus
		for _, issue := range s.quality.Validate(focus) {
			result.Warnings = append(result.Warnings, models.CaptureWarning{Stage: models.StageQuality, Message: issue.String()})
		}
	}

	if s.verifier != nil {
		v, err := s.verifier.Verify(ctx, frame, accession)
		switch {
		case err != nil:
			warn(models.StageOCR, err)
		case !v.Legible:
			warn(models.StageOCR, errors.New(ocr.IllegibleMessage))
		}
	}

	if s.mirror != nil {
		if err := s.mirror.SaveCapture(ctx, record); err != nil {
			warn(models.StageMirror, err)
		}
	}

	if s.archiver != nil {
		if err := s.archiver.Archive(record); err != nil {
			warn(models.StageArchive, err)
		}
	}

	log.WithField("warnings", len(result.Warnings)).Info("Image saved")
	s.notify(observer.StationEvent{
		EventType: observer.CaptureCompleted,
		Accession: accession,
		Project:   settings.Project,
		Path:      path,
		Device:    frame.Device,
		Duration:  time.Since(start),
		Success:   true,
		Metadata:  map[string]interface{}{"capture_id": record.ID, "warnings": len(result.Warnings)},
	})
	return result, nil
}

func (s *Session) writeImage(dir, path string, frame models.Frame) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewPersistenceError(apperrors.CodeImageWriteFailed, "cannot create "+dir, err)
	}
	err := metadata.WriteFileAtomically(path, func(f *os.File) error {
		return jpeg.Encode(f, frame.Image, &jpeg.Options{Quality: s.opts.JPEGQuality})
	})
	if err != nil {
		return apperrors.NewPersistenceError(apperrors.CodeImageWriteFailed, "cannot write "+path, err)
	}
	return nil
}

func (s *Session) notify(event observer.StationEvent) {
	if s.events != nil {
		s.events.NotifyObservers(context.Background(), event)
	}
}
