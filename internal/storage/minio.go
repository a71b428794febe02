package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-screen-go/internal/config"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/tracing"
)

var minioTracer = otel.Tracer("resume-screen-go/storage/minio")

// MinIO 候选人照片的对象存储
type MinIO struct {
	client      *minio.Client
	cfg         *config.MinIOConfig
	photoBucket string
	logger      *log.Logger
}

// NewMinIO 创建MinIO客户端并确保照片存储桶就绪
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	photoBucket := cfg.PhotoBucket
	if photoBucket == "" {
		photoBucket = "talent-photos"
	}

	m := &MinIO{
		client:      client,
		cfg:         cfg,
		photoBucket: photoBucket,
		logger:      logger,
	}

	if err := m.ensureBucketExists(photoBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保照片存储桶 %s 存在失败: %w", photoBucket, err)
	}

	if cfg.PhotoExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), photoBucket, "expire-photos", cfg.PhotoExpireDays); err != nil {
			// 生命周期规则失败不影响上传能力
			logger.Printf("[MinIO] 设置照片生命周期规则失败: %v", err)
		}
	}

	logger.Printf("[MinIO] 客户端初始化成功, endpoint=%s, photoBucket=%s", cfg.Endpoint, photoBucket)
	return m, nil
}

func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] 存储桶 %s 创建成功", bucketName)
	}
	return nil
}

func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lcCfg := lifecycle.NewConfiguration()
	lcCfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lcCfg)
}

// UploadPhoto 上传照片到照片存储桶，返回对象名
func (m *MinIO) UploadPhoto(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.photoBucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.photoBucket, objectName, err)
	}
	return objectName, nil
}

// GetPhotoURL 生成照片的预签名访问URL
func (m *MinIO) GetPhotoURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	presigned, err := m.client.PresignedGetObject(ctx, m.photoBucket, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return presigned.String(), nil
}

// PhotoStorage 照片存储实现。MinIO不可用或上传失败时，
// 按配置降级写入本地目录，保证筛选流程不被照片阻断。
type PhotoStorage struct {
	minio       *MinIO
	fallbackDir string
	logger      *log.Logger
}

// NewPhotoStorage 创建照片存储。minioClient可以为nil，此时全部走本地降级。
func NewPhotoStorage(minioClient *MinIO, fallbackDir string, logger *log.Logger) *PhotoStorage {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PhotoStorage{
		minio:       minioClient,
		fallbackDir: fallbackDir,
		logger:      logger,
	}
}

var _ pipeline.PhotoStore = (*PhotoStorage)(nil)

// UploadTalentPhoto 上传候选人照片，返回可访问的URL或降级后的本地路径
func (p *PhotoStorage) UploadTalentPhoto(ctx context.Context, talentID string, index int, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("照片内容为空")
	}

	ctx, span := minioTracer.Start(ctx, "PhotoStorage.UploadTalentPhoto",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("talent_id", talentID),
			attribute.Int("photo.index", index),
		))
	defer span.End()

	contentType := http.DetectContentType(data)
	ext := extensionForContentType(contentType)
	objectName := fmt.Sprintf("talents/%s/photo_%d%s", talentID, index, ext)

	if p.minio != nil {
		if _, err := p.minio.UploadPhoto(ctx, objectName, data, contentType); err == nil {
			photoURL, urlErr := p.minio.GetPhotoURL(ctx, objectName, 0)
			if urlErr == nil {
				return photoURL, nil
			}
			p.logger.Printf("[PhotoStorage] 生成照片URL失败, 退回对象名: %v", urlErr)
			return objectName, nil
		} else {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeExternal,
				attribute.String("minio.bucket", p.minio.photoBucket),
				attribute.String("minio.object", objectName))
			if p.fallbackDir == "" {
				return "", err
			}
			p.logger.Printf("[PhotoStorage] MinIO上传失败, 降级写入本地: %v", err)
		}
	}

	if p.fallbackDir == "" {
		return "", fmt.Errorf("MinIO未配置且未设置本地降级目录")
	}
	return p.saveToLocalDisk(talentID, index, ext, data)
}

func (p *PhotoStorage) saveToLocalDisk(talentID string, index int, ext string, data []byte) (string, error) {
	dir := filepath.Join(p.fallbackDir, talentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建照片降级目录失败: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("photo_%d%s", index, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入本地照片失败: %w", err)
	}
	return "file://" + path, nil
}

func extensionForContentType(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
