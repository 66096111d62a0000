package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/princinho/authcore/models"
)

// GCSSink archives audit events as one JSON object each in a Cloud Storage
// bucket, for retention beyond the primary store.
type GCSSink struct {
	client *storage.Client
	bucket string
}

func NewGCSSink(ctx context.Context, bucket, credentialsPath string) (*GCSSink, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, filepath.Join(wd, credentialsPath)))
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSSink{client: client, bucket: bucket}, nil
}

func (s *GCSSink) Name() string { return "gcs" }

func (s *GCSSink) Write(ctx context.Context, event *models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	objectName := fmt.Sprintf("audit/%s/%s.json", event.Ts.Format("2006/01/02"), event.ID)
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("archive write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("archive close: %w", err)
	}
	return nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
