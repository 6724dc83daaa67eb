// internal/services/cache_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/storage"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// cachedBundle 缓存中存放的条目
type cachedBundle struct {
	SchemaVersion string                                `json:"schema_version"`
	Quality       float64                               `json:"quality"`
	Bundle        *models.GeneratedContentBundle        `json:"bundle"`
	Report        *models.ComprehensiveValidationReport `json:"report,omitempty"`
	CreatedAt     time.Time                             `json:"created_at"`
}

// QualityCacheService 带质量门槛的结果缓存：
// 低于存储门槛的结果不落盘，低于检索门槛的命中按未命中处理
type QualityCacheService struct {
	backend        storage.CacheBackend
	schemaVersion  string
	storageFloor   float64
	retrievalFloor float64
	ttl            time.Duration
}

// NewQualityCacheService 创建质量门控缓存服务
func NewQualityCacheService(backend storage.CacheBackend, schemaVersion string, storageFloor, retrievalFloor float64, ttl time.Duration) *QualityCacheService {
	if schemaVersion == "" {
		schemaVersion = "v1"
	}
	return &QualityCacheService{
		backend:        backend,
		schemaVersion:  schemaVersion,
		storageFloor:   storageFloor,
		retrievalFloor: retrievalFloor,
		ttl:            ttl,
	}
}

// Fingerprint 计算请求的缓存键：
// 对全部生成参数与schema版本做sha256，任一参数变化即产生新键，
// schema版本升级自然孤立旧条目
func (c *QualityCacheService) Fingerprint(req models.GenerationRequest) string {
	payload := fmt.Sprintf("%s|%s|%d|%d|%s",
		req.SyllabusText, req.TargetFormat, req.TargetDuration, req.TargetPages, c.schemaVersion)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Get 查询缓存，返回内容包、质量报告与是否命中
// 解码失败或质量低于检索门槛时按未命中处理
func (c *QualityCacheService) Get(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContentBundle, *models.ComprehensiveValidationReport, bool) {
	if c.backend == nil {
		return nil, nil, false
	}

	key := c.Fingerprint(req)
	data, found, err := c.backend.Get(ctx, key)
	if err != nil {
		utils.GetLogger().Warn("缓存读取失败", map[string]interface{}{"error": err.Error()})
		return nil, nil, false
	}
	if !found {
		return nil, nil, false
	}

	var entry cachedBundle
	if err := json.Unmarshal(data, &entry); err != nil {
		// 损坏的条目直接删除
		_ = c.backend.Delete(ctx, key)
		return nil, nil, false
	}

	if entry.SchemaVersion != c.schemaVersion || entry.Bundle == nil {
		return nil, nil, false
	}

	if entry.Quality < c.retrievalFloor {
		utils.GetLogger().Info("缓存命中但质量低于检索门槛", map[string]interface{}{
			"quality": entry.Quality,
			"floor":   c.retrievalFloor,
		})
		return nil, nil, false
	}

	return entry.Bundle, entry.Report, true
}

// Set 写入缓存，质量低于存储门槛时跳过
func (c *QualityCacheService) Set(ctx context.Context, req models.GenerationRequest, bundle *models.GeneratedContentBundle, report *models.ComprehensiveValidationReport, quality float64) error {
	if c.backend == nil || bundle == nil {
		return nil
	}

	if quality < c.storageFloor {
		utils.GetLogger().Info("结果质量低于存储门槛，跳过缓存", map[string]interface{}{
			"quality": quality,
			"floor":   c.storageFloor,
		})
		return nil
	}

	entry := cachedBundle{
		SchemaVersion: c.schemaVersion,
		Quality:       quality,
		Bundle:        bundle,
		Report:        report,
		CreatedAt:     time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return c.backend.Set(ctx, c.Fingerprint(req), data, c.ttl)
}

// Invalidate 删除指定请求的缓存条目
func (c *QualityCacheService) Invalidate(ctx context.Context, req models.GenerationRequest) error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Delete(ctx, c.Fingerprint(req))
}
