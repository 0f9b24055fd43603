package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/erp/dues/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func validStorageConfig() *config.StorageConfig {
	return &config.StorageConfig{
		Enabled:           true,
		Bucket:            "dues-reports",
		AccessKey:         "test-key",
		SecretKey:         "test-secret",
		Region:            "us-east-1",
		Endpoint:          "http://localhost:9000",
		UsePathStyle:      true,
		PresignExpiration: 10 * time.Minute,
		KeyPrefix:         "/reports/dues/",
	}
}

func TestNewS3ReportArchive_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3ReportArchive(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		cfg := validStorageConfig()
		cfg.Bucket = ""
		_, err := NewS3ReportArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		cfg := validStorageConfig()
		cfg.AccessKey = ""
		_, err := NewS3ReportArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		cfg := validStorageConfig()
		cfg.SecretKey = ""
		_, err := NewS3ReportArchive(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})

	t.Run("valid config creates archive", func(t *testing.T) {
		archive, err := NewS3ReportArchive(validStorageConfig(), WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		assert.Equal(t, "dues-reports", archive.Bucket())
		assert.Equal(t, 10*time.Minute, archive.presignExpiration)
	})

	t.Run("default presign expiration", func(t *testing.T) {
		cfg := validStorageConfig()
		cfg.PresignExpiration = 0
		archive, err := NewS3ReportArchive(cfg)
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, archive.presignExpiration)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"", false, "http://localhost:9000"},
		{"minio:9000", false, "http://minio:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.endpoint, tt.useSSL)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestS3ReportArchive_ObjectKey(t *testing.T) {
	archive, err := NewS3ReportArchive(validStorageConfig())
	require.NoError(t, err)
	assert.Equal(t, "reports/dues/2026-03/dues-all-all.json", archive.ObjectKey("2026-03/dues-all-all.json"))

	cfg := validStorageConfig()
	cfg.KeyPrefix = ""
	archive, err = NewS3ReportArchive(cfg)
	require.NoError(t, err)
	assert.Equal(t, "2026-03/dues-all-all.json", archive.ObjectKey("2026-03/dues-all-all.json"))
}

func TestS3ReportArchive_DownloadURL(t *testing.T) {
	archive, err := NewS3ReportArchive(validStorageConfig(), WithPresignExpiration(5*time.Minute))
	require.NoError(t, err)

	u, err := archive.DownloadURL(context.Background(), "2026-03/dues-sale-unpaid.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost:9000/dues-reports/reports/dues/2026-03/dues-sale-unpaid.json"))
	assert.Contains(t, u, "X-Amz-Expires=300")

	_, err = archive.DownloadURL(context.Background(), "")
	require.Error(t, err)
}

func TestS3ReportArchive_Put_ValidationOnly(t *testing.T) {
	archive, err := NewS3ReportArchive(validStorageConfig())
	require.NoError(t, err)

	err = archive.Put(context.Background(), "", []byte("{}"), "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report key is required")
}
