// Package stream runs one live view worker per camera slot.
package stream

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/specimen-imaging/labelstation/internal/camera"
	apperrors "github.com/specimen-imaging/labelstation/internal/errors"
	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/internal/session"
	"github.com/specimen-imaging/labelstation/internal/strategy"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// DefaultDegradeAfter is the number of consecutive read misses after which
// a slot is reported as degraded
const DefaultDegradeAfter = 250

type slot struct {
	role      models.SlotRole
	deviceID  string
	deviceKey string
	strategy  strategy.SlotStrategy

	source      camera.FrameSource
	description string
	cancel      context.CancelFunc
	done        chan struct{}
	stopping    bool

	frames atomic.Uint64
	misses atomic.Uint64
	focus  atomic.Pointer[models.FocusMetrics]
}

func (s *slot) running() bool {
	return s.done != nil
}

// Manager owns the camera slots. Control methods are serialized by an
// internal mutex; each running slot has exactly one worker goroutine.
type Manager struct {
	opener    camera.DeviceOpener
	state     *session.State
	presenter Presenter
	events    observer.Subject

	degradeAfter uint64

	mu    sync.Mutex
	slots map[models.SlotRole]*slot
}

// Option configures a Manager
type Option func(*Manager)

// WithDegradeAfter overrides the consecutive miss count that raises slot_degraded
func WithDegradeAfter(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.degradeAfter = uint64(n)
		}
	}
}

// NewManager creates a manager with one slot per role
func NewManager(opener camera.DeviceOpener, state *session.State, strategies map[models.SlotRole]strategy.SlotStrategy, presenter Presenter, events observer.Subject, opts ...Option) *Manager {
	m := &Manager{
		opener:       opener,
		state:        state,
		presenter:    presenter,
		events:       events,
		degradeAfter: DefaultDegradeAfter,
		slots:        make(map[models.SlotRole]*slot, len(models.Roles)),
	}
	for _, role := range models.Roles {
		m.slots[role] = &slot{role: role, strategy: strategies[role]}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// deviceKey reduces deviceID to the key of its physical device
func (m *Manager) deviceKey(deviceID string) (string, error) {
	id := strings.TrimSpace(deviceID)
	if id == "" {
		return "", apperrors.NewValidationError("device id must not be empty", nil)
	}
	if c, ok := m.opener.(camera.DeviceCanonicalizer); ok {
		return c.Canonical(id)
	}
	return id, nil
}

func (m *Manager) slot(role models.SlotRole) (*slot, error) {
	s, ok := m.slots[role]
	if !ok {
		return nil, apperrors.NewValidationError("unknown slot role "+string(role), nil)
	}
	return s, nil
}

// Bind selects the device for a slot without starting it
func (m *Manager) Bind(role models.SlotRole, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.slot(role)
	if err != nil {
		return err
	}
	return m.bindLocked(s, deviceID)
}

func (m *Manager) bindLocked(s *slot, deviceID string) error {
	key, err := m.deviceKey(deviceID)
	if err != nil {
		return err
	}
	if other := m.slots[s.role.Other()]; other.deviceKey == key {
		return apperrors.CameraInUse(deviceID)
	}
	if s.running() && s.deviceKey != key {
		return apperrors.SlotAlreadyRunning(string(s.role))
	}
	s.deviceID = deviceID
	s.deviceKey = key
	return nil
}

// Unbind clears a stopped slot's device selection
func (m *Manager) Unbind(role models.SlotRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.slot(role)
	if err != nil {
		return err
	}
	if s.running() {
		return apperrors.SlotAlreadyRunning(string(role))
	}
	s.deviceID = ""
	s.deviceKey = ""
	return nil
}

// Start opens deviceID and spawns the slot's worker. An empty deviceID
// starts the device already bound to the slot. ctx only bounds the open.
func (m *Manager) Start(ctx context.Context, role models.SlotRole, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.slot(role)
	if err != nil {
		return err
	}
	if deviceID == "" {
		deviceID = s.deviceID
	}
	if deviceID == "" {
		return apperrors.NewValidationError("no device selected for "+string(role)+" slot", nil)
	}
	key, err := m.deviceKey(deviceID)
	if err != nil {
		return err
	}
	if other := m.slots[role.Other()]; other.deviceKey == key {
		return apperrors.CameraInUse(deviceID)
	}
	if s.running() {
		return apperrors.SlotAlreadyRunning(string(role))
	}

	src, err := m.opener.Open(ctx, deviceID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return err
		}
		return apperrors.NewDeviceError(apperrors.CodeDeviceUnavailable, "cannot open camera "+deviceID, err)
	}

	s.deviceID = deviceID
	s.deviceKey = key
	s.source = src
	s.description = src.Describe()
	s.frames.Store(0)
	s.misses.Store(0)

	workerCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go m.run(workerCtx, s, src, s.done)

	m.state.SetLiveView(role, true)
	m.notify(observer.StationEvent{
		EventType: observer.SlotStarted,
		Slot:      string(role),
		Device:    s.description,
		Success:   true,
	})
	logger.WithSlot(string(role), s.description).Info("Live view started")
	return nil
}

// Stop cancels the worker, waits for its current cycle to finish and
// releases the device. The wait happens without holding the manager lock,
// so a stalled read only delays this call; the slot keeps its device and
// reports running until the worker has exited.
func (m *Manager) Stop(role models.SlotRole) error {
	m.mu.Lock()
	s, err := m.slot(role)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if !s.running() || s.stopping {
		m.mu.Unlock()
		return apperrors.SlotNotRunning(string(role))
	}
	s.stopping = true
	s.cancel()
	done := s.done
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	defer m.mu.Unlock()
	// Shutdown may have finished the slot while we waited
	if s.done == done {
		m.finishWorker(s)
		m.release(s)
	}
	return nil
}

func (m *Manager) stopWorker(s *slot) {
	s.cancel()
	<-s.done
	m.finishWorker(s)
}

func (m *Manager) finishWorker(s *slot) {
	s.cancel = nil
	s.done = nil
	s.stopping = false
	m.state.SetLiveView(s.role, false)
}

func (m *Manager) release(s *slot) {
	if s.source == nil {
		return
	}
	if err := s.source.Release(); err != nil {
		logger.WithSlot(string(s.role), s.description).WithError(err).Warn("Failed to release camera")
	}
	s.source = nil
	m.notify(observer.StationEvent{
		EventType: observer.SlotStopped,
		Slot:      string(s.role),
		Device:    s.description,
		Success:   true,
		Metadata:  map[string]interface{}{"frames": s.frames.Load(), "misses": s.misses.Load()},
	})
	logger.WithSlot(string(s.role), s.description).Info("Live view stopped")
}

// Shutdown stops every worker before releasing any device
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, role := range models.Roles {
		if s := m.slots[role]; s.running() {
			s.cancel()
		}
	}
	for _, role := range models.Roles {
		if s := m.slots[role]; s.running() {
			m.stopWorker(s)
		}
	}
	for _, role := range models.Roles {
		m.release(m.slots[role])
	}
}

// Running reports whether a slot has a live worker
func (m *Manager) Running(role models.SlotRole) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[role]
	return ok && s.running()
}

// Source returns the description of the device a running slot reads from
func (m *Manager) Source(role models.SlotRole) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[role]
	if !ok || !s.running() {
		return "", false
	}
	return s.description, true
}

// Status reports binding, run state and counters of a slot
func (m *Manager) Status(role models.SlotRole) (models.SlotStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.slot(role)
	if err != nil {
		return models.SlotStatus{}, err
	}
	st := models.SlotStatus{
		Role:     role,
		DeviceID: s.deviceID,
		Running:  s.running(),
		Frames:   s.frames.Load(),
		Misses:   s.misses.Load(),
	}
	if f := s.focus.Load(); f != nil {
		focus := *f
		st.Focus = &focus
	}
	return st, nil
}

// run is the slot worker. Cancellation is observed at the top of each cycle.
func (m *Manager) run(ctx context.Context, s *slot, src camera.FrameSource, done chan struct{}) {
	defer close(done)

	log := logger.WithSlot(string(s.role), s.description)
	var consecutive uint64

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := src.Read()
		if err != nil || frame.Empty() {
			s.misses.Add(1)
			consecutive++
			if consecutive == m.degradeAfter {
				log.WithError(err).Warn("Camera stopped delivering frames")
				m.notify(observer.StationEvent{
					EventType: observer.SlotDegraded,
					Slot:      string(s.role),
					Device:    s.description,
					Metadata:  map[string]interface{}{"consecutive_misses": consecutive},
				})
			}
			continue
		}
		consecutive = 0
		s.frames.Add(1)

		m.state.SetLastFrame(s.role, frame)

		processed := strategy.Processed{Display: frame}
		if s.strategy != nil {
			processed = s.strategy.Process(frame)
		}
		if s.role == models.SlotLabel {
			focus := processed.Focus
			s.focus.Store(&focus)
		}

		if processed.Decode != nil && m.state.SetAccession(processed.Decode.Text) {
			m.notify(observer.StationEvent{
				EventType: observer.AccessionDecoded,
				Slot:      string(s.role),
				Device:    s.description,
				Accession: processed.Decode.Text,
				Success:   true,
			})
		}

		if m.presenter != nil {
			m.presenter.PresentFrame(s.role, processed.Display, processed.Decode)
		}
	}
}

func (m *Manager) notify(event observer.StationEvent) {
	if m.events != nil {
		m.events.NotifyObservers(context.Background(), event)
	}
}
