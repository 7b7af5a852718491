// Package archive keeps an append-only copy of every follow-up lifecycle
// change in object storage. It is a best-effort event subscriber and never
// affects the operation that published the event.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"deal_followup_backend/internal/events"
	"deal_followup_backend/platform/logger"
)

const contentTypeJSON = "application/json"

// ObjectStore is the part of the object storage client the archiver uses.
type ObjectStore interface {
	EnsureBucketExists(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// Archiver writes one JSON object per lifecycle event.
type Archiver struct {
	store  ObjectStore
	bucket string
	log    *logger.Logger
}

// New creates an Archiver for bucket.
func New(store ObjectStore, bucket string, log *logger.Logger) *Archiver {
	return &Archiver{store: store, bucket: bucket, log: log}
}

// Start makes sure the bucket exists and subscribes to the lifecycle events.
func (a *Archiver) Start(ctx context.Context, bus events.Bus) error {
	if err := a.store.EnsureBucketExists(ctx, a.bucket); err != nil {
		return err
	}
	for _, name := range events.LifecycleNames() {
		bus.Subscribe(name, a)
	}
	a.log.Info("follow-up archive enabled", "bucket", a.bucket)
	return nil
}

// Handle implements events.Handler.
func (a *Archiver) Handle(ctx context.Context, event events.Event) error {
	le, ok := event.(events.LifecycleEvent)
	if !ok {
		return nil
	}

	envelope := events.NewEnvelope(le)
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode archive entry: %w", err)
	}

	key := ObjectKey(envelope)
	if err := a.store.PutObject(ctx, a.bucket, key, contentTypeJSON, data); err != nil {
		a.log.CollaboratorError("minio", "archive_follow_up", err)
		return err
	}
	a.log.WithContext(ctx).Debug("archived follow-up", "key", key)
	return nil
}

// ObjectKey places entries under the record id, ordered by time:
// followups/<id>/<unix-nanos>-<event>.json.
func ObjectKey(e events.Envelope) string {
	name := fmt.Sprintf("%020d-%s.json", e.OccurredAt.UnixNano(), e.Event)
	return path.Join("followups", e.Record.ID, name)
}
