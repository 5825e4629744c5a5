package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNewImportEvent(t *testing.T) {
	run := &models.ImportRun{ID: uuid.New(), TenantID: "t1", Source: models.SourceAirtable, Status: models.ImportStatusCompleted}
	result := models.ImportResult{Processed: 3, Created: 1, Updated: 1, Failed: 1, Errors: []string{"Row 3: missing SKU after mapping"}, StartedAt: time.Now()}

	event := NewImportEvent(run, result)
	assert.Equal(t, ImportRunCompleted, event.EventType)
	assert.Equal(t, run.ID.String(), event.RunID)
	assert.Equal(t, 1, event.ErrorCount)
	assert.NotEmpty(t, event.EventID)

	run.Status = models.ImportStatusFailed
	assert.Equal(t, ImportRunFailed, NewImportEvent(run, result).EventType)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &recordingWriter{}
	p := &KafkaPublisher{writer: writer, logger: quietLogger()}

	event := ImportEvent{EventID: "e1", EventType: ImportRunCompleted, TenantID: "t1", Created: 2}
	require.NoError(t, p.PublishImportEvent(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, []byte("t1"), msg.Key)
	var decoded ImportEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, 2, decoded.Created)

	p.Close()
	assert.True(t, writer.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}, logger: quietLogger()}
	assert.EqualError(t, p.PublishImportEvent(context.Background(), ImportEvent{}), "broker down")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishImportEvent(context.Background(), ImportEvent{}))
	p.Close()
}
