// Package archive keeps a JSON copy of every processed ingestion batch in
// MinIO/S3, keyed by the link the batch produced. Archived batches can be
// replayed through the pipeline.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/vaultlink/internal/apperr"
	"github.com/dharsanguruparan/vaultlink/internal/config"
	"github.com/dharsanguruparan/vaultlink/internal/model"
)

const contentType = "application/json"

// Batch is the archived document.
type Batch struct {
	ID         string        `json:"id"`
	LinkID     string        `json:"linkId"`
	ArchivedAt time.Time     `json:"archivedAt"`
	Events     []model.Event `json:"events"`
}

// Storage wraps the MinIO client and bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.ArchiveBucket, region: cfg.S3Region}, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// PutBatch stores events under linkID.
func (s *Storage) PutBatch(ctx context.Context, linkID string, events []model.Event) error {
	data, err := Encode(Batch{
		ID:         uuid.NewString(),
		LinkID:     linkID,
		ArchivedAt: time.Now().UTC(),
		Events:     events,
	})
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, ObjectKey(linkID), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("upload batch %s: %w", linkID, err)
	}
	return nil
}

// GetBatch reads the batch archived under linkID.
func (s *Storage) GetBatch(ctx context.Context, linkID string) (*Batch, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(linkID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", linkID, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, apperr.NotFoundf("no archived batch for link %s", linkID)
		}
		return nil, fmt.Errorf("read batch %s: %w", linkID, err)
	}
	return Decode(data)
}

// ObjectKey is the object name for a link's batch.
func ObjectKey(linkID string) string {
	return "batches/" + linkID + ".json"
}

// Encode renders a batch as JSON.
func Encode(b Batch) ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return data, nil
}

// Decode parses an archived batch.
func Decode(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	return &b, nil
}
