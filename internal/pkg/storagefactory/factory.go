package storagefactory

import (
	"fmt"

	"nursemate/internal/config"
	"nursemate/internal/pkg/storage"
	"nursemate/internal/pkg/storage/local"
	"nursemate/internal/pkg/storage/oss"
)

// NewStorage 根据配置创建学习资料存储
func NewStorage(cfg *config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", "local":
		if cfg.Local == nil || cfg.Local.BasePath == "" {
			return nil, fmt.Errorf("materials.local.base_path is required")
		}
		return local.NewLocalStorage(cfg.Local.BasePath)
	case "oss":
		if cfg.OSS == nil {
			return nil, fmt.Errorf("OSS storage config is required")
		}
		return oss.NewOSSStorage(
			cfg.OSS.Endpoint,
			cfg.OSS.Bucket,
			cfg.OSS.AccessKeyID,
			cfg.OSS.AccessKeySecret,
		)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
