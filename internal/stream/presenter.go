package stream

import (
	"sync/atomic"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// Presenter receives every processed live view frame in publication order
type Presenter interface {
	PresentFrame(role models.SlotRole, frame models.Frame, decode *models.DecodeResult)
}

// Preview is the latest published frame of a slot
type Preview struct {
	Frame  models.Frame
	Decode *models.DecodeResult
	Seq    uint64
}

// PreviewStore keeps the latest preview per slot for a polling UI
type PreviewStore struct {
	previews map[models.SlotRole]*atomic.Pointer[Preview]
}

// NewPreviewStore creates an empty store
func NewPreviewStore() *PreviewStore {
	ps := &PreviewStore{previews: make(map[models.SlotRole]*atomic.Pointer[Preview])}
	for _, role := range models.Roles {
		ps.previews[role] = &atomic.Pointer[Preview]{}
	}
	return ps
}

func (ps *PreviewStore) PresentFrame(role models.SlotRole, frame models.Frame, decode *models.DecodeResult) {
	p, ok := ps.previews[role]
	if !ok {
		return
	}
	var seq uint64 = 1
	if prev := p.Load(); prev != nil {
		seq = prev.Seq + 1
	}
	p.Store(&Preview{Frame: frame, Decode: decode, Seq: seq})
}

// Latest returns the most recent preview of a slot
func (ps *PreviewStore) Latest(role models.SlotRole) (Preview, bool) {
	p, ok := ps.previews[role]
	if !ok {
		return Preview{}, false
	}
	prev := p.Load()
	if prev == nil {
		return Preview{}, false
	}
	return *prev, true
}

// Clear drops the preview of a slot
func (ps *PreviewStore) Clear(role models.SlotRole) {
	if p, ok := ps.previews[role]; ok {
		p.Store(nil)
	}
}

// MultiPresenter fans a frame out to several presenters
type MultiPresenter []Presenter

func (mp MultiPresenter) PresentFrame(role models.SlotRole, frame models.Frame, decode *models.DecodeResult) {
	for _, p := range mp {
		p.PresentFrame(role, frame, decode)
	}
}
