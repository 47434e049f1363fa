package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("storage: object not found")

// Storage 学习资料存储接口
// ingest 命令通过它读取待导入的文档，本地目录和 OSS bucket 行为一致
type Storage interface {
	// Open 读取对象内容
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// List 列出前缀下的对象，按 key 排序
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Stat 获取对象信息
	Stat(ctx context.Context, key string) (*FileInfo, error)

	// Type 存储类型
	Type() string
}

// FileInfo 文件信息
type FileInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// 可导入的文本格式
var textExts = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// IsText 是否为可导入的文本文件
func IsText(key string) bool {
	_, ok := textExts[strings.ToLower(path.Ext(key))]
	return ok
}

// ContentType 根据扩展名推断 Content-Type
func ContentType(key string) string {
	if ct, ok := textExts[strings.ToLower(path.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}
