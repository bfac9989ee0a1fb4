package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"transcode-orchestrator/pkg/assert"
	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
	"transcode-orchestrator/pkg/manager"
)

// bucketCheckTimeout 启动时检查桶的超时
const bucketCheckTimeout = 10 * time.Second

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource 外部对象存储客户端，object_storage 关闭时保持为空
type MinioResource struct {
	client *minio.Client
	bucket string
}

func DefaultMinioResource() *MinioResource {
	assert.NotCircular()
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	assert.NotNil(singletonMinioResource)
	return singletonMinioResource
}

// MustOpen 只有启用迁移到外部存储时才连接 MinIO
func (r *MinioResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	if !cfg.ObjectStorage.Enabled {
		logger.Infof("object storage disabled, videos are published from local storage")
		return
	}

	minioCfg := cfg.Minio
	if minioCfg.Endpoint == "" || minioCfg.BucketName == "" {
		panic("minio endpoint and bucket_name are required when object_storage is enabled")
	}
	client, err := minio.New(minioCfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioCfg.AccessKeyID, minioCfg.SecretAccessKey, ""),
		Secure: minioCfg.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create minio client: %v", err))
	}
	r.client = client
	r.bucket = minioCfg.BucketName

	ctx, cancel := context.WithTimeout(context.Background(), bucketCheckTimeout)
	defer cancel()
	if err := r.ensureBucket(ctx); err != nil {
		panic(err.Error())
	}
	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint":   minioCfg.Endpoint,
		"bucket":     r.bucket,
		"key_prefix": cfg.ObjectStorage.KeyPrefix,
	})
}

func (r *MinioResource) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return fmt.Errorf("check minio bucket %s: %w", r.bucket, err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create minio bucket %s: %w", r.bucket, err)
	}
	logger.Infof("minio bucket created bucket=%s", r.bucket)
	return nil
}

// Enabled 是否启用外部存储
func (r *MinioResource) Enabled() bool {
	return r.client != nil
}

func (r *MinioResource) Client() *minio.Client {
	return r.client
}

func (r *MinioResource) Bucket() string {
	return r.bucket
}

// Ping 供健康检查使用，桶不存在同样视为不可用
func (r *MinioResource) Ping(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s is gone", r.bucket)
	}
	return nil
}

// Close minio-go 没有需要释放的连接
func (r *MinioResource) Close() {}

type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string {
	return "minioResource"
}

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMinioResource()
}
