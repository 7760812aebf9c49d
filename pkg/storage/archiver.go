package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"
)

// Archived locates a stored report
type Archived struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	URLExpireAt time.Time `json:"url_expires_at"`
}

// Archiver stores report PDFs under one bucket prefix and hands out
// presigned download links
type Archiver struct {
	client S3Client
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewArchiver creates an archiver. A zero ttl means seven days.
func NewArchiver(client S3Client, bucket, prefix string, ttl time.Duration) *Archiver {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if prefix == "" {
		prefix = "reports"
	}
	return &Archiver{client: client, bucket: bucket, prefix: prefix, ttl: ttl, now: time.Now}
}

// Archive uploads pdf as <prefix>/<id>/<filename>
func (a *Archiver) Archive(ctx context.Context, id, filename string, pdf []byte) (Archived, error) {
	key := path.Join(a.prefix, id, filename)
	if err := a.client.Upload(ctx, a.bucket, key, bytes.NewReader(pdf), "application/pdf"); err != nil {
		return Archived{}, err
	}
	url, err := a.client.GetPresignedURL(ctx, a.bucket, key, a.ttl)
	if err != nil {
		return Archived{Key: key}, fmt.Errorf("archived but not presigned: %w", err)
	}
	return Archived{Key: key, URL: url, URLExpireAt: a.now().Add(a.ttl)}, nil
}
