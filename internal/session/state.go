// Package session holds the operator session shared by the control API,
// the live view workers and the capture transaction.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// Settings are the operator-entered values that name the capture destination
type Settings struct {
	OutputRoot string
	Project    string
	Creator    string
}

// State is safe for concurrent use. Workers only touch the accession and
// last frame references; settings are read as a consistent copy.
type State struct {
	mu       sync.RWMutex
	settings Settings
	liveView map[models.SlotRole]bool

	accession  atomic.Pointer[string]
	lastFrames map[models.SlotRole]*atomic.Pointer[models.Frame]
}

// NewState creates a session with the given settings and no frames
func NewState(settings Settings) *State {
	s := &State{
		settings:   settings,
		liveView:   make(map[models.SlotRole]bool, len(models.Roles)),
		lastFrames: make(map[models.SlotRole]*atomic.Pointer[models.Frame], len(models.Roles)),
	}
	for _, role := range models.Roles {
		s.lastFrames[role] = &atomic.Pointer[models.Frame]{}
	}
	empty := ""
	s.accession.Store(&empty)
	return s
}

// Settings returns a copy of the current settings
func (s *State) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings applies fn to a copy of the settings and stores the result
func (s *State) UpdateSettings(fn func(*Settings)) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	fn(&next)
	s.settings = next
	return next
}

// Accession returns the current accession identifier
func (s *State) Accession() string {
	return *s.accession.Load()
}

// SetAccession replaces the accession and reports whether it changed
func (s *State) SetAccession(accession string) bool {
	next := accession
	prev := s.accession.Swap(&next)
	return *prev != accession
}

// LastFrame returns the most recent frame published by a slot
func (s *State) LastFrame(role models.SlotRole) (models.Frame, bool) {
	p, ok := s.lastFrames[role]
	if !ok {
		return models.Frame{}, false
	}
	f := p.Load()
	if f == nil {
		return models.Frame{}, false
	}
	return *f, true
}

// SetLastFrame publishes frame as the slot's most recent frame
func (s *State) SetLastFrame(role models.SlotRole, frame models.Frame) {
	if p, ok := s.lastFrames[role]; ok {
		p.Store(&frame)
	}
}

// SetLiveView records whether a slot is streaming
func (s *State) SetLiveView(role models.SlotRole, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveView[role] = on
}

// LiveView reports whether a slot is streaming
func (s *State) LiveView(role models.SlotRole) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveView[role]
}

// Reset replaces the settings, clears the accession and drops every last
// frame. It is only called when a project config is loaded.
func (s *State) Reset(settings Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	s.SetAccession("")
	for _, p := range s.lastFrames {
		p.Store(nil)
	}
}

// Snapshot returns a consistent copy for the operator UI
func (s *State) Snapshot() models.SessionSnapshot {
	s.mu.RLock()
	settings := s.settings
	live := make(map[models.SlotRole]bool, len(models.Roles))
	for _, role := range models.Roles {
		live[role] = s.liveView[role]
	}
	s.mu.RUnlock()

	has := make(map[models.SlotRole]bool, len(models.Roles))
	for _, role := range models.Roles {
		_, has[role] = s.LastFrame(role)
	}

	return models.SessionSnapshot{
		OutputRoot: settings.OutputRoot,
		Project:    settings.Project,
		Creator:    settings.Creator,
		Accession:  s.Accession(),
		LiveView:   live,
		HasFrame:   has,
	}
}
