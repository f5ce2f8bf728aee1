package models

import "time"

// CaptureRecord describes one persisted capture. It is never modified after creation.
type CaptureRecord struct {
	ID                string    `json:"id"`
	AccessionID       string    `json:"accession"`
	Project           string    `json:"project"`
	Creator           string    `json:"creator"`
	Tag               string    `json:"tag"`
	FileFormat        string    `json:"file_format"`
	DeviceDescription string    `json:"device"`
	Timestamp         time.Time `json:"timestamp"`
	OutputPath        string    `json:"output_path"`
}

// CaptureStage names the step of a capture that produced a warning
type CaptureStage string

const (
	StageMetadata CaptureStage = "metadata"
	StageLog      CaptureStage = "log"
	StageQuality  CaptureStage = "quality"
	StageOCR      CaptureStage = "ocr"
	StageMirror   CaptureStage = "mirror"
	StageArchive  CaptureStage = "archive"
)

// CaptureWarning is a non-fatal problem raised after the image was written
type CaptureWarning struct {
	Stage   CaptureStage `json:"stage"`
	Message string       `json:"message"`
}

// CaptureResult is a successful capture plus any warnings attached to it
type CaptureResult struct {
	Record   CaptureRecord    `json:"record"`
	Warnings []CaptureWarning `json:"warnings,omitempty"`
	Focus    *FocusMetrics    `json:"focus,omitempty"`
}

// Qualified reports whether the capture succeeded with warnings
func (r *CaptureResult) Qualified() bool {
	return len(r.Warnings) > 0
}

// SessionSnapshot is a consistent copy of the operator-facing session values
type SessionSnapshot struct {
	OutputRoot string            `json:"output_root"`
	Project    string            `json:"project"`
	Creator    string            `json:"creator"`
	Accession  string            `json:"accession"`
	LiveView   map[SlotRole]bool `json:"live_view"`
	HasFrame   map[SlotRole]bool `json:"has_frame"`
}

// SlotStatus reports the binding and run state of one camera slot
type SlotStatus struct {
	Role     SlotRole `json:"role"`
	DeviceID string   `json:"device_id,omitempty"`
	Running  bool     `json:"running"`
	Frames   uint64   `json:"frames"`
	Misses   uint64   `json:"misses"`
	// Focus is the latest focus score of the label slot
	Focus *FocusMetrics `json:"focus,omitempty"`
}
