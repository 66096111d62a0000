// Package audit emits the structured, redacted security audit trail. Writes
// are best-effort: sink failures are logged to the error logger and dropped,
// never propagated into the caller's request path.
package audit

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
)

const sinkTimeout = 5 * time.Second

// Sink is one destination for audit events (log, store, archive).
type Sink interface {
	Name() string
	Write(ctx context.Context, event *models.AuditEvent) error
}

type Trail struct {
	sinks  []Sink
	errLog *logrus.Logger

	now func() time.Time
}

func NewTrail(errLog *logrus.Logger, sinks ...Sink) *Trail {
	return &Trail{
		sinks:  sinks,
		errLog: errLog,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record emits the event without waiting for the sinks. Use when the
// response must not block on audit durability.
func (t *Trail) Record(event string, meta map[string]any) {
	e := t.buildEvent(event, meta)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		t.write(ctx, e)
	}()
}

// RecordAndWait emits the event and returns after every sink has been
// attempted once. Sink errors are still swallowed.
func (t *Trail) RecordAndWait(ctx context.Context, event string, meta map[string]any) {
	t.write(ctx, t.buildEvent(event, meta))
}

func (t *Trail) write(ctx context.Context, event *models.AuditEvent) {
	for _, sink := range t.sinks {
		if err := sink.Write(ctx, event); err != nil && t.errLog != nil {
			t.errLog.WithError(err).WithField("sink", sink.Name()).Error("audit write failed")
		}
	}
}

// buildEvent lifts the well-known identity keys out of the metadata and
// redacts anything that looks like a secret.
func (t *Trail) buildEvent(event string, meta map[string]any) *models.AuditEvent {
	e := &models.AuditEvent{
		ID:    models.NewID(),
		Ts:    t.now(),
		Event: event,
	}

	cleaned := map[string]any{}
	for key, value := range meta {
		if value == nil {
			continue
		}
		switch key {
		case "user_id":
			e.UserID, _ = value.(string)
			continue
		case "username":
			e.Username, _ = value.(string)
			continue
		case "email":
			e.Email, _ = value.(string)
			continue
		case "ip":
			e.IP, _ = value.(string)
			continue
		}
		cleaned[key] = sanitize(key, value)
	}
	if len(cleaned) > 0 {
		e.Meta = cleaned
	}
	return e
}

func sanitize(key string, value any) any {
	lower := strings.ToLower(key)
	// Never log secrets.
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
		return "[redacted]"
	}
	if err, ok := value.(error); ok {
		return err.Error()
	}
	return value
}

// LogSink writes events as structured log entries.
type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, event *models.AuditEvent) error {
	fields := logrus.Fields{"event": event.Event, "ts": event.Ts}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.Username != "" {
		fields["username"] = event.Username
	}
	if event.Email != "" {
		fields["email"] = event.Email
	}
	if event.IP != "" {
		fields["ip"] = event.IP
	}
	for k, v := range event.Meta {
		fields[k] = v
	}
	s.log.WithFields(fields).Info("audit")
	return nil
}

// StoreSink persists events through the audit repository.
type StoreSink struct {
	repo repository.AuditRepository
}

func NewStoreSink(repo repository.AuditRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Write(ctx context.Context, event *models.AuditEvent) error {
	return s.repo.Insert(ctx, event)
}
