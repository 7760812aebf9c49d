package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiver_Archive(t *testing.T) {
	client := NewMemoryS3Client()
	a := NewArchiver(client, "leads", "", time.Hour)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	got, err := a.Archive(context.Background(), "r-1", "acme.pdf", []byte("%PDF-1.4"))

	require.NoError(t, err)
	assert.Equal(t, "reports/r-1/acme.pdf", got.Key)
	assert.True(t, strings.HasPrefix(got.URL, "memory://leads/reports/r-1/acme.pdf?expires="))
	assert.Equal(t, fixed.Add(time.Hour), got.URLExpireAt)
	assert.Equal(t, "application/pdf", client.ContentType("leads", got.Key))

	rc, err := client.Download(context.Background(), "leads", got.Key)
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestMemoryS3Client_Missing(t *testing.T) {
	client := NewMemoryS3Client()
	_, err := client.Download(context.Background(), "b", "nope")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = client.GetPresignedURL(context.Background(), "b", "nope", time.Minute)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, client.Upload(context.Background(), "b", "k", strings.NewReader("x"), "text/plain"))
	require.NoError(t, client.Delete(context.Background(), "b", "k"))
	_, err = client.Download(context.Background(), "b", "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewS3Client_Presigns(t *testing.T) {
	cfg := S3Config{Region: "us-east-1", AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", Endpoint: "http://localhost:9000", UsePathStyle: true}
	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)

	url, err := NewS3Client(awsCfg, cfg).GetPresignedURL(context.Background(), "leads", "reports/a.pdf", 15*time.Minute)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:9000/leads/reports/a.pdf?"), url)
	assert.Contains(t, url, "X-Amz-Expires=900")
}
