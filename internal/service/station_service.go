package service

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/specimen-imaging/labelstation/internal/capture"
	"github.com/specimen-imaging/labelstation/internal/config"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/metadata"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/internal/session"
	"github.com/specimen-imaging/labelstation/internal/stream"
	"github.com/specimen-imaging/labelstation/pkg/models"
	"github.com/specimen-imaging/labelstation/pkg/validation"
)

// StationService is the control surface of the imaging station
type StationService interface {
	// StartSlot starts live view for a slot; an empty deviceID reuses the bound device
	StartSlot(ctx context.Context, role models.SlotRole, deviceID string) (models.SlotStatus, error)
	StopSlot(role models.SlotRole) (models.SlotStatus, error)
	SlotStatus(role models.SlotRole) (models.SlotStatus, error)
	Slots() []models.SlotStatus
	Preview(role models.SlotRole) (stream.Preview, bool)

	UpdateSession(req models.SessionUpdateRequest) (models.SessionSnapshot, error)
	Session() models.SessionSnapshot

	// Capture saves the current label frame. It fails with DESTINATION_EXISTS
	// when the accession folder exists and overwrite is false.
	Capture(ctx context.Context, tag string, overwrite bool) (*models.CaptureResult, error)
	Captures(project string) ([]metadata.LogRow, error)

	LoadProjectConfig(path string) (*config.ProjectConfig, error)
	SaveProjectConfig() (string, error)

	Activity() []string
	Metrics() map[string]interface{}
	Shutdown()
}

// SlotController is the part of the stream manager the service drives
type SlotController interface {
	Start(ctx context.Context, role models.SlotRole, deviceID string) error
	Stop(role models.SlotRole) error
	Status(role models.SlotRole) (models.SlotStatus, error)
	Shutdown()
}

// LogReader reads a project ledger back
type LogReader interface {
	ReadLog(outputRoot, project string) ([]metadata.LogRow, error)
}

// Dependencies are the collaborators of the station service
type Dependencies struct {
	Slots    SlotController
	State    *session.State
	Capture  *capture.Session
	Ledger   LogReader
	Previews *stream.PreviewStore
	Activity *observer.ActivityLog
	Metrics  *observer.MetricsObserver
	Events   observer.Subject
}

type stationService struct {
	deps Dependencies

	// mu serializes control operations
	mu sync.Mutex
}

// NewStationService creates the station service
func NewStationService(deps Dependencies) StationService {
	return &stationService{deps: deps}
}

func validRole(role models.SlotRole) error {
	if !role.Valid() {
		return apperrors.NewNotFoundError("unknown slot "+string(role), nil)
	}
	return nil
}

func (s *stationService) StartSlot(ctx context.Context, role models.SlotRole, deviceID string) (models.SlotStatus, error) {
	if err := validRole(role); err != nil {
		return models.SlotStatus{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deps.Slots.Start(ctx, role, strings.TrimSpace(deviceID)); err != nil {
		return models.SlotStatus{}, err
	}
	return s.deps.Slots.Status(role)
}

// StopSlot does not take mu; the manager serializes slot control and waits
// for the worker without blocking other callers.
func (s *stationService) StopSlot(role models.SlotRole) (models.SlotStatus, error) {
	if err := validRole(role); err != nil {
		return models.SlotStatus{}, err
	}
	if err := s.deps.Slots.Stop(role); err != nil {
		return models.SlotStatus{}, err
	}
	if s.deps.Previews != nil {
		s.deps.Previews.Clear(role)
	}
	return s.deps.Slots.Status(role)
}

func (s *stationService) SlotStatus(role models.SlotRole) (models.SlotStatus, error) {
	if err := validRole(role); err != nil {
		return models.SlotStatus{}, err
	}
	return s.deps.Slots.Status(role)
}

func (s *stationService) Slots() []models.SlotStatus {
	out := make([]models.SlotStatus, 0, len(models.Roles))
	for _, role := range models.Roles {
		if st, err := s.deps.Slots.Status(role); err == nil {
			out = append(out, st)
		}
	}
	return out
}

func (s *stationService) Preview(role models.SlotRole) (stream.Preview, bool) {
	if s.deps.Previews == nil {
		return stream.Preview{}, false
	}
	return s.deps.Previews.Latest(role)
}

func (s *stationService) UpdateSession(req models.SessionUpdateRequest) (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.deps.State.Settings()
	if req.OutputRoot != nil {
		next.OutputRoot = strings.TrimSpace(*req.OutputRoot)
		if next.OutputRoot == "" {
			return models.SessionSnapshot{}, apperrors.InvalidSession("output root must not be empty")
		}
	}
	if req.Project != nil {
		if err := validation.ValidatePathComponent("project", *req.Project, false); err != nil {
			return models.SessionSnapshot{}, err
		}
		next.Project = *req.Project
	}
	if req.Creator != nil {
		next.Creator = strings.TrimSpace(*req.Creator)
	}
	if req.Accession != nil {
		if err := validation.ValidatePathComponent("accession", *req.Accession, true); err != nil {
			return models.SessionSnapshot{}, err
		}
	}

	s.deps.State.UpdateSettings(func(cur *session.Settings) { *cur = next })
	if req.Accession != nil {
		s.deps.State.SetAccession(*req.Accession)
	}
	return s.deps.State.Snapshot(), nil
}

func (s *stationService) Session() models.SessionSnapshot {
	return s.deps.State.Snapshot()
}

func (s *stationService) Capture(ctx context.Context, tag string, overwrite bool) (*models.CaptureResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.captureTarget(ctx, s.deps.Capture.CurrentTarget(), tag, overwrite)
}

// captureTarget checks and writes the same destination
func (s *stationService) captureTarget(ctx context.Context, target capture.Target, tag string, overwrite bool) (*models.CaptureResult, error) {
	if err := capture.Validate(target.Settings, target.Accession, tag); err != nil {
		return nil, err
	}
	if _, ok := s.deps.State.LastFrame(models.SlotLabel); !ok {
		return nil, apperrors.NoFrameAvailable()
	}
	dir := target.Destination()
	if !overwrite {
		if _, err := os.Stat(dir); err == nil {
			return nil, apperrors.DestinationExists(dir)
		}
	}
	return s.deps.Capture.CaptureFor(ctx, target, tag)
}

func (s *stationService) Captures(project string) ([]metadata.LogRow, error) {
	if err := validation.ValidatePathComponent("project", project, false); err != nil {
		return nil, err
	}
	settings := s.deps.State.Settings()
	rows, err := s.deps.Ledger.ReadLog(settings.OutputRoot, project)
	if err != nil {
		return nil, apperrors.NewInternalError("cannot read capture log", err)
	}
	if rows == nil {
		rows = []metadata.LogRow{}
	}
	return rows, nil
}

func (s *stationService) LoadProjectConfig(path string) (*config.ProjectConfig, error) {
	pc, err := config.LoadProject(path)
	if err != nil {
		return nil, apperrors.NewValidationError("cannot load project config", err)
	}
	if err := validation.ValidatePathComponent("project", pc.General.ProjectName, false); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deps.State.Reset(session.Settings{
		OutputRoot: pc.General.OutputFolder,
		Project:    pc.General.ProjectName,
		Creator:    pc.General.Creator,
	})
	if s.deps.Previews != nil {
		for _, role := range models.Roles {
			s.deps.Previews.Clear(role)
		}
	}

	logger.WithField("project", pc.General.ProjectName).WithField("path", path).Info("Project config loaded")
	if s.deps.Events != nil {
		s.deps.Events.NotifyObservers(context.Background(), observer.StationEvent{
			EventType: observer.ProjectLoaded,
			Project:   pc.General.ProjectName,
			Path:      path,
			Success:   true,
		})
	}
	return pc, nil
}

func (s *stationService) SaveProjectConfig() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.deps.State.Settings()
	if err := validation.ValidatePathComponent("project", settings.Project, false); err != nil {
		return "", err
	}
	if settings.OutputRoot == "" {
		return "", apperrors.InvalidSession("output root is not set")
	}

	path, err := config.SaveProject(&config.ProjectConfig{General: config.GeneralSection{
		ProjectName:  settings.Project,
		OutputFolder: settings.OutputRoot,
		Creator:      settings.Creator,
	}})
	if err != nil {
		return "", apperrors.NewPersistenceError("", "cannot save project config", err)
	}
	logger.WithField("path", path).Info("Project config saved")
	return path, nil
}

func (s *stationService) Activity() []string {
	if s.deps.Activity == nil {
		return []string{}
	}
	return s.deps.Activity.Lines()
}

func (s *stationService) Metrics() map[string]interface{} {
	if s.deps.Metrics == nil {
		return map[string]interface{}{}
	}
	return s.deps.Metrics.GetMetrics()
}

func (s *stationService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Slots.Shutdown()
}
