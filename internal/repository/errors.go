package repository

import "errors"

var (
	// ErrCaptureNotFound indicates no capture exists with the requested id
	ErrCaptureNotFound = errors.New("capture not found")

	// ErrRepositoryUnavailable indicates the repository has been closed
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
