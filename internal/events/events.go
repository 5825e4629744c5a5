// Package events publishes import run notifications to the message bus.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"catalog-import-service/internal/models"
)

const (
	ImportRunCompleted = "import.run.completed"
	ImportRunFailed    = "import.run.failed"
)

// ImportEvent summarizes a finished import run
type ImportEvent struct {
	EventID    string            `json:"eventId"`
	EventType  string            `json:"eventType"`
	TenantID   string            `json:"tenantId"`
	RunID      string            `json:"runId"`
	Source     models.SourceType `json:"source"`
	Processed  int               `json:"processed"`
	Created    int               `json:"created"`
	Updated    int               `json:"updated"`
	Failed     int               `json:"failed"`
	ErrorCount int               `json:"errorCount"`
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewImportEvent builds the event for a stored run
func NewImportEvent(run *models.ImportRun, result models.ImportResult) ImportEvent {
	eventType := ImportRunCompleted
	if run.Status == models.ImportStatusFailed {
		eventType = ImportRunFailed
	}
	return ImportEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		TenantID:   run.TenantID,
		RunID:      run.ID.String(),
		Source:     run.Source,
		Processed:  result.Processed,
		Created:    result.Created,
		Updated:    result.Updated,
		Failed:     result.Failed,
		ErrorCount: len(result.Errors),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Timestamp:  time.Now().UTC(),
	}
}

// Publisher delivers import events
type Publisher interface {
	PublishImportEvent(ctx context.Context, event ImportEvent) error
	Close()
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) PublishImportEvent(context.Context, ImportEvent) error {
	return nil
}

func (NoopPublisher) Close() {}
