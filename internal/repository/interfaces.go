package repository

import (
	"context"

	"github.com/specimen-imaging/labelstation/pkg/models"
)

// CaptureRepository mirrors capture records for querying off the station
type CaptureRepository interface {
	// SaveCapture stores a record. Saving the same id twice is an error.
	SaveCapture(ctx context.Context, record models.CaptureRecord) error

	// GetCapture retrieves one record by id
	GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error)

	// ListCaptures returns the records of a project, oldest first
	ListCaptures(ctx context.Context, project string) ([]models.CaptureRecord, error)

	Close()
}
