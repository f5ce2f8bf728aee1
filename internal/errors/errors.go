package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypePrecondition ErrorType = "precondition"
	ErrorTypeDevice       ErrorType = "device"
	ErrorTypePersistence  ErrorType = "persistence"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInternal     ErrorType = "internal"
)

// ErrorCode identifies a specific station failure the operator UI can react to
type ErrorCode string

const (
	CodeCameraInUse        ErrorCode = "CAMERA_IN_USE"
	CodeSlotAlreadyRunning ErrorCode = "SLOT_ALREADY_RUNNING"
	CodeSlotNotRunning     ErrorCode = "SLOT_NOT_RUNNING"
	CodeNoFrameAvailable   ErrorCode = "NO_FRAME_AVAILABLE"
	CodeDestinationExists  ErrorCode = "DESTINATION_EXISTS"
	CodeInvalidSession     ErrorCode = "INVALID_SESSION"
	CodeDeviceUnavailable  ErrorCode = "DEVICE_UNAVAILABLE"
	CodeNoFrame            ErrorCode = "NO_FRAME"
	CodeImageWriteFailed   ErrorCode = "IMAGE_WRITE_FAILED"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       ErrorCode `json:"code,omitempty"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Code != "" {
		prefix = fmt.Sprintf("%s[%s]", e.Type, e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode returns a copy of e carrying the given code
func (e *AppError) WithCode(code ErrorCode) *AppError {
	out := *e
	out.Code = code
	return &out
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Cause:      cause,
	}
}

// NewPreconditionError creates an error for an operation that is not allowed in the current state
func NewPreconditionError(code ErrorCode, message string) *AppError {
	return &AppError{
		Type:       ErrorTypePrecondition,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewDeviceError creates a new camera device error
func NewDeviceError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeDevice,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// NewPersistenceError creates a new error for failed disk writes
func NewPersistenceError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypePersistence,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Cause:      cause,
	}
}

// CameraInUse is returned when a device is already bound to the other slot
func CameraInUse(deviceID string) *AppError {
	return NewPreconditionError(CodeCameraInUse, fmt.Sprintf("camera %q is already in use by the other slot", deviceID))
}

// SlotAlreadyRunning is returned when starting a slot that is streaming
func SlotAlreadyRunning(role string) *AppError {
	return NewPreconditionError(CodeSlotAlreadyRunning, fmt.Sprintf("%s slot is already running", role))
}

// SlotNotRunning is returned when stopping a slot that is idle
func SlotNotRunning(role string) *AppError {
	return NewPreconditionError(CodeSlotNotRunning, fmt.Sprintf("%s slot is not running", role))
}

// NoFrameAvailable is returned by a capture before the label camera produced a frame
func NoFrameAvailable() *AppError {
	return NewPreconditionError(CodeNoFrameAvailable, "no image to save: label camera has not produced a frame")
}

// DestinationExists is returned when the accession folder exists and overwrite was not confirmed
func DestinationExists(path string) *AppError {
	return NewPreconditionError(CodeDestinationExists, fmt.Sprintf("destination %s already exists", path))
}

// InvalidSession is returned when the session values cannot form a destination path
func InvalidSession(message string) *AppError {
	err := NewValidationError(message, nil)
	err.Code = CodeInvalidSession
	return err
}

// IsType checks if the error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// HasCode checks if the error carries a specific code
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of an AppError, or an empty code
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
