package oss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"nursemate/internal/pkg/storage"
)

const listPageSize = 1000

// OSSStorage 阿里云OSS存储
type OSSStorage struct {
	bucket     *oss.Bucket
	bucketName string
}

// NewOSSStorage 创建阿里云OSS存储
func NewOSSStorage(endpoint, bucketName, accessKeyID, accessKeySecret string) (*OSSStorage, error) {
	// 创建OSS客户端
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	// 获取Bucket
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSStorage{
		bucket:     bucket,
		bucketName: bucketName,
	}, nil
}

// Open 下载对象
func (s *OSSStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	return body, nil
}

// List 分页列出前缀下的对象
func (s *OSSStorage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var (
		out   []storage.FileInfo
		token string
	)
	for {
		opts := []oss.Option{oss.Prefix(prefix), oss.MaxKeys(listPageSize), oss.WithContext(ctx)}
		if token != "" {
			opts = append(opts, oss.ContinuationToken(token))
		}
		result, err := s.bucket.ListObjectsV2(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range result.Objects {
			out = append(out, storage.FileInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ContentType:  storage.ContentType(obj.Key),
				LastModified: obj.LastModified,
			})
		}
		if !result.IsTruncated {
			return out, nil
		}
		token = result.NextContinuationToken
	}
}

// Stat 获取对象信息
func (s *OSSStorage) Stat(ctx context.Context, key string) (*storage.FileInfo, error) {
	props, err := s.bucket.GetObjectDetailedMeta(key, oss.WithContext(ctx))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get object meta: %w", err)
	}

	size, _ := strconv.ParseInt(props.Get("Content-Length"), 10, 64)
	contentType := props.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentType(key)
	}
	lastModified, _ := time.Parse(http.TimeFormat, props.Get("Last-Modified"))

	return &storage.FileInfo{
		Key:          key,
		Size:         size,
		ContentType:  contentType,
		LastModified: lastModified,
	}, nil
}

// Type 获取存储类型
func (s *OSSStorage) Type() string {
	return string(storage.StorageTypeOSS)
}

func isNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	return false
}
