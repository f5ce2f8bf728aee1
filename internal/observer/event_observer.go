package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// StationEvent is something the operator or an outside system may care about
type StationEvent struct {
	EventType    EventType              `json:"event_type"`
	Timestamp    time.Time              `json:"timestamp"`
	Slot         string                 `json:"slot,omitempty"`
	Device       string                 `json:"device,omitempty"`
	Accession    string                 `json:"accession,omitempty"`
	Project      string                 `json:"project,omitempty"`
	Path         string                 `json:"path,omitempty"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of station event
type EventType string

const (
	SlotStarted      EventType = "slot_started"
	SlotStopped      EventType = "slot_stopped"
	SlotDegraded     EventType = "slot_degraded"
	AccessionDecoded EventType = "accession_decoded"
	CaptureCompleted EventType = "capture_completed"
	CaptureFailed    EventType = "capture_failed"
	ArchiveCompleted EventType = "archive_completed"
	ArchiveFailed    EventType = "archive_failed"
	ProjectLoaded    EventType = "project_loaded"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event StationEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event StationEvent)
}

// LoggingObserver logs station events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event StationEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	for k, v := range map[string]string{
		"slot":      event.Slot,
		"device":    event.Device,
		"accession": event.Accession,
		"project":   event.Project,
		"path":      event.Path,
		"error":     event.ErrorMessage,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SlotStarted:
		entry.Info("Live view started")
	case SlotStopped:
		entry.Info("Live view stopped")
	case SlotDegraded:
		entry.Warn("Camera stopped delivering frames")
	case AccessionDecoded:
		entry.Info("Accession decoded from Data Matrix")
	case CaptureCompleted:
		entry.Info("Capture saved")
	case CaptureFailed:
		entry.Error("Capture failed")
	case ArchiveCompleted:
		entry.Debug("Capture archived")
	case ArchiveFailed:
		entry.Error("Capture archive failed")
	default:
		entry.Info("Station event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver counts station events
type MetricsObserver struct {
	mu               sync.RWMutex
	captures         int64
	failedCaptures   int64
	decodes          int64
	degradations     int64
	archived         int64
	failedArchives   int64
	totalCaptureTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event StationEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case CaptureCompleted:
		o.captures++
		o.totalCaptureTime += event.Duration
	case CaptureFailed:
		o.failedCaptures++
	case AccessionDecoded:
		o.decodes++
	case SlotDegraded:
		o.degradations++
	case ArchiveCompleted:
		o.archived++
	case ArchiveFailed:
		o.failedArchives++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avg := time.Duration(0)
	if o.captures > 0 {
		avg = o.totalCaptureTime / time.Duration(o.captures)
	}

	return map[string]interface{}{
		"captures":          o.captures,
		"failed_captures":   o.failedCaptures,
		"accession_decodes": o.decodes,
		"slot_degradations": o.degradations,
		"archived":          o.archived,
		"failed_archives":   o.failedArchives,
		"avg_capture_time":  avg.String(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	inflight  sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer on its own goroutine.
// A zero timestamp is set to now.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event StationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.inflight.Add(1)
		go func(obs Observer) {
			defer p.inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification delivered so far has been handled
func (p *EventPublisher) Wait() {
	p.inflight.Wait()
}
