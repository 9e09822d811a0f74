package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// AnalysisEvent describes one step of processing a chart image
type AnalysisEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Lens           string                 `json:"lens,omitempty"`
	Image          string                 `json:"image"`
	Artifact       string                 `json:"artifact,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of analysis event
type EventType string

const (
	// ImageStarted when analysis of an image begins
	ImageStarted EventType = "image_started"
	// ImageCompleted when an image was analyzed and its report produced
	ImageCompleted EventType = "image_completed"
	// ImageSkipped when an image could not be read or analyzed
	ImageSkipped EventType = "image_skipped"
	// ArtifactWritten when a report, heatmap or working file was stored
	ArtifactWritten EventType = "artifact_written"
	// ArtifactFailed when storing an artifact failed
	ArtifactFailed EventType = "artifact_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event AnalysisEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event AnalysisEvent)
}

// LoggingObserver logs analysis events
type LoggingObserver struct {
	logger logrus.FieldLogger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger logrus.FieldLogger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

// OnEvent handles analysis events by logging them
func (o *LoggingObserver) OnEvent(_ context.Context, event AnalysisEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"image":      event.Image,
	}
	if event.Lens != "" {
		fields["lens"] = event.Lens
	}
	if event.Artifact != "" {
		fields["artifact"] = event.Artifact
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime.String()
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case ImageStarted:
		entry.Info("Processing image")
	case ImageCompleted:
		entry.Info("Image analysis completed")
	case ImageSkipped:
		entry.Error("Image skipped")
	case ArtifactWritten:
		entry.Debug("Artifact saved")
	case ArtifactFailed:
		entry.Error("Artifact could not be saved")
	default:
		entry.Info("Analysis event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// Metrics is a snapshot of the counters kept by MetricsObserver
type Metrics struct {
	ImagesStarted       int64         `json:"images_started"`
	ImagesProcessed     int64         `json:"images_processed"`
	ImagesSkipped       int64         `json:"images_skipped"`
	ArtifactsWritten    int64         `json:"artifacts_written"`
	ArtifactsFailed     int64         `json:"artifacts_failed"`
	TotalProcessingTime time.Duration `json:"total_processing_time"`
	AvgProcessingTime   time.Duration `json:"avg_processing_time"`
}

// MetricsObserver counts analysis events
type MetricsObserver struct {
	mu      sync.RWMutex
	metrics Metrics
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles analysis events by collecting metrics
func (o *MetricsObserver) OnEvent(_ context.Context, event AnalysisEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ImageStarted:
		o.metrics.ImagesStarted++
	case ImageCompleted:
		o.metrics.ImagesProcessed++
		o.metrics.TotalProcessingTime += event.ProcessingTime
	case ImageSkipped:
		o.metrics.ImagesSkipped++
	case ArtifactWritten:
		o.metrics.ArtifactsWritten++
	case ArtifactFailed:
		o.metrics.ArtifactsFailed++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := o.metrics
	if m.ImagesProcessed > 0 {
		m.AvgProcessingTime = m.TotalProcessingTime / time.Duration(m.ImagesProcessed)
	}
	return m
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	logger    logrus.FieldLogger
}

// NewEventPublisher creates a new event publisher. A nil logger uses the
// logrus standard logger for observer panics.
func NewEventPublisher(logger logrus.FieldLogger) *EventPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &EventPublisher{
		observers: make([]Observer, 0),
		logger:    logger,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
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

// NotifyObservers delivers event to every observer before returning, so
// counters are complete once the batch finishes. Timestamp is filled in
// when unset.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event AnalysisEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		p.notify(ctx, obs, event)
	}
}

func (p *EventPublisher) notify(ctx context.Context, obs Observer, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
