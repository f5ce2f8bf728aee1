package storage

import (
	"context"
	"time"

	"github.com/specimen-imaging/labelstation/internal/logger"
	"github.com/specimen-imaging/labelstation/internal/observer"
	"github.com/specimen-imaging/labelstation/pkg/models"
)

// DefaultUploadTimeout bounds a single archive upload
const DefaultUploadTimeout = 2 * time.Minute

// Archiver uploads captures in the background. Outcomes are reported as
// archive events only; a capture never waits on its upload.
type Archiver struct {
	store   BlobStorage
	pool    *WorkerPool
	events  observer.Subject
	timeout time.Duration
}

// NewArchiver creates an archiver running uploads on workers goroutines
func NewArchiver(store BlobStorage, workers int, events observer.Subject) *Archiver {
	pool := NewWorkerPool(workers)
	pool.Start()
	return &Archiver{
		store:   store,
		pool:    pool,
		events:  events,
		timeout: DefaultUploadTimeout,
	}
}

// Archive queues the upload of a capture. The error is returned only when
// the job could not be queued.
func (a *Archiver) Archive(record models.CaptureRecord) error {
	return a.pool.TrySubmit(func() {
		a.upload(record)
	})
}

func (a *Archiver) upload(record models.CaptureRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	start := time.Now()
	blob := BlobName(record.Project, record.AccessionID, record.OutputPath)
	url, err := a.store.UploadFile(ctx, blob, record.OutputPath)

	event := observer.StationEvent{
		EventType: observer.ArchiveCompleted,
		Accession: record.AccessionID,
		Project:   record.Project,
		Path:      record.OutputPath,
		Duration:  time.Since(start),
		Success:   err == nil,
		Metadata:  map[string]interface{}{"blob": blob, "capture_id": record.ID},
	}
	log := logger.WithField("path", record.OutputPath).WithField("blob", blob)
	if err != nil {
		event.EventType = observer.ArchiveFailed
		event.ErrorMessage = err.Error()
		log.WithError(err).Warn("Archive upload failed")
	} else {
		event.Metadata["url"] = url
		log.Debug("Archive upload completed")
	}
	if a.events != nil {
		a.events.NotifyObservers(context.Background(), event)
	}
}

// Wait blocks until queued uploads finish
func (a *Archiver) Wait() {
	a.pool.Wait()
}

// Close stops accepting uploads and waits for the queued ones
func (a *Archiver) Close() {
	a.pool.Close()
	a.pool.Wait()
}
