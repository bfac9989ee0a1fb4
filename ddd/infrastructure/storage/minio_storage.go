package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"transcode-orchestrator/ddd/domain/gateway"
	"transcode-orchestrator/internal/resource"
	"transcode-orchestrator/pkg/logger"
)

// playlistCacheControl playlists are rewritten when a rendition is added
const playlistCacheControl = "no-cache"

// MinioStorage uploads published video files to the configured bucket.
type MinioStorage struct {
	res *resource.MinioResource
}

func NewMinioStorage(res *resource.MinioResource) gateway.ExternalStorage {
	return &MinioStorage{res: res}
}

func (s *MinioStorage) Upload(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if strings.HasSuffix(objectKey, ".m3u8") {
		opts.CacheControl = playlistCacheControl
	}

	info, err := s.res.Client().PutObject(ctx, s.res.Bucket(), objectKey, r, size, opts)
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectKey, err)
	}
	logger.Debug("object uploaded", map[string]interface{}{
		"bucket":     info.Bucket,
		"object_key": info.Key,
		"size":       info.Size,
		"etag":       info.ETag,
	})
	return objectKey, nil
}
