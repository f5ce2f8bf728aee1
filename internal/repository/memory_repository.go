package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// MemoryCaptureRepository keeps records in process memory
type MemoryCaptureRepository struct {
	mu      sync.RWMutex
	records map[string]models.CaptureRecord
	closed  bool
}

// NewMemoryCaptureRepository creates an empty in-memory repository
func NewMemoryCaptureRepository() *MemoryCaptureRepository {
	return &MemoryCaptureRepository{records: make(map[string]models.CaptureRecord)}
}

func (r *MemoryCaptureRepository) SaveCapture(ctx context.Context, record models.CaptureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRepositoryUnavailable
	}
	if _, exists := r.records[record.ID]; exists {
		return fmt.Errorf("capture %s already saved", record.ID)
	}
	r.records[record.ID] = record
	return nil
}

func (r *MemoryCaptureRepository) GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRepositoryUnavailable
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrCaptureNotFound
	}
	return &rec, nil
}

func (r *MemoryCaptureRepository) ListCaptures(ctx context.Context, project string) ([]models.CaptureRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRepositoryUnavailable
	}
	var out []models.CaptureRecord
	for _, rec := range r.records {
		if rec.Project == project {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (r *MemoryCaptureRepository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}
