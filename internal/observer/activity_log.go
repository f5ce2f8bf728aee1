package observer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ActivityEntry is one line of the operator activity log
type ActivityEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders the entry the way the operator console shows it
func (e ActivityEntry) String() string {
	return e.Time.Format("15:04:05") + " " + e.Message
}

// ActivityLog keeps the most recent operator-facing messages
type ActivityLog struct {
	mu      sync.Mutex
	entries []ActivityEntry
	limit   int
}

// NewActivityLog creates a log holding at most limit entries
func NewActivityLog(limit int) *ActivityLog {
	if limit < 1 {
		limit = 1
	}
	return &ActivityLog{limit: limit}
}

func (l *ActivityLog) OnEvent(ctx context.Context, event StationEvent) {
	msg := describe(event)
	if msg == "" {
		return
	}
	l.Add(event.Timestamp, msg)
}

func (l *ActivityLog) GetObserverName() string {
	return "activity_log"
}

// Add records a message, evicting the oldest entry when full
func (l *ActivityLog) Add(at time.Time, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, ActivityEntry{Time: at, Message: message})
	if len(l.entries) > l.limit {
		sort.SliceStable(l.entries, func(i, j int) bool { return l.entries[i].Time.Before(l.entries[j].Time) })
		l.entries = l.entries[len(l.entries)-l.limit:]
	}
}

// Entries returns the log newest first
func (l *ActivityLog) Entries() []ActivityEntry {
	l.mu.Lock()
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out
}

// Lines returns the log newest first as console lines
func (l *ActivityLog) Lines() []string {
	entries := l.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return lines
}

func describe(event StationEvent) string {
	switch event.EventType {
	case SlotStarted:
		return fmt.Sprintf("%s camera started (%s)", event.Slot, event.Device)
	case SlotStopped:
		return fmt.Sprintf("%s camera stopped", event.Slot)
	case SlotDegraded:
		return fmt.Sprintf("%s camera is not delivering frames", event.Slot)
	case AccessionDecoded:
		return "Accession decoded: " + event.Accession
	case CaptureCompleted:
		return "Image saved: " + event.Path
	case CaptureFailed:
		return "Capture failed: " + event.ErrorMessage
	case ArchiveFailed:
		return "Archive upload failed: " + event.ErrorMessage
	case ProjectLoaded:
		return "Project loaded: " + event.Project
	}
	return ""
}
