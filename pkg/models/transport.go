package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// StartSlotRequest selects the device a slot should stream from
type StartSlotRequest struct {
	DeviceID string `json:"device_id"`
}

// CaptureRequest asks for a capture of the current label frame.
// Overwrite must be true when the accession folder already exists.
type CaptureRequest struct {
	Tag       string `json:"tag"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

// SessionUpdateRequest changes operator session values; nil fields are left alone
type SessionUpdateRequest struct {
	OutputRoot *string `json:"output_root,omitempty"`
	Project    *string `json:"project,omitempty"`
	Creator    *string `json:"creator,omitempty"`
	Accession  *string `json:"accession,omitempty"`
}

// ConfigLoadRequest points at a project config document
type ConfigLoadRequest struct {
	Path string `json:"path" binding:"required"`
}
