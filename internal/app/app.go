// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	"github.com/Corphon/CourseForgeMCP/internal/di"
	"github.com/Corphon/CourseForgeMCP/internal/llm"
	"github.com/Corphon/CourseForgeMCP/internal/services"
	"github.com/Corphon/CourseForgeMCP/internal/storage"
	"github.com/Corphon/CourseForgeMCP/internal/utils"

	// 注册LLM提供商
	_ "github.com/Corphon/CourseForgeMCP/internal/llm/providers/openai"
	_ "github.com/Corphon/CourseForgeMCP/internal/llm/providers/openrouter"
)

// 缓存条目的默认保留时长
const defaultCacheTTL = 7 * 24 * time.Hour

// InitServices 按依赖顺序初始化全部服务并注册到容器
// 顺序：指标 → 缓存后端 → 一致性/校验 → LLM提供商 → 结构化调用 → 进度 → 编排 → 任务
func InitServices(container *di.Container) error {
	cfg := config.GetCurrentConfig()
	gen := cfg.Generation
	logger := utils.GetLogger()

	metrics := utils.NewMetricsCollector()
	container.Register("metrics", metrics)

	backend, err := buildCacheBackend(cfg)
	if err != nil {
		return fmt.Errorf("初始化缓存后端失败: %w", err)
	}
	cacheService := services.NewQualityCacheService(
		backend, gen.CacheSchemaVersion, gen.CacheStorageFloor, gen.CacheRetrievalFloor, defaultCacheTTL)
	container.Register("cache", cacheService)

	consistency := services.NewConsistencyService()
	container.Register("consistency", consistency)

	validator := services.NewValidatorService(consistency)
	container.Register("validator", validator)

	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		// 无提供商时服务仍可启动，生成接口在配置密钥后可用
		logger.Warn("LLM提供商初始化失败，生成功能暂不可用", map[string]interface{}{
			"provider": cfg.LLMProvider,
			"error":    err.Error(),
		})
		provider = nil
	}

	model := cfg.LLMConfig["default_model"]
	retryDelay := time.Duration(gen.RetryDelaySeconds * float64(time.Second))
	structured := services.NewStructuredCallService(provider, model, retryDelay, metrics)
	container.Register("structured", structured)

	progress := services.NewProgressService()
	container.Register("progress", progress)

	providerName := ""
	if provider != nil {
		providerName = provider.GetName()
	}
	generator := services.NewGeneratorService(
		structured, validator, consistency, cacheService, progress, metrics,
		gen, providerName, model)
	container.Register("generator", generator)

	taskService := services.NewTaskService(generator, 0)
	container.Register("task", taskService)

	// 后台清理已结束的运行与进度跟踪器
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			taskService.CleanupRuns(24 * time.Hour)
			progress.CleanupCompletedRuns(24 * time.Hour)
		}
	}()

	logger.Info("服务初始化完成", map[string]interface{}{
		"services": container.GetNames(),
		"provider": providerName,
	})
	return nil
}

// buildCacheBackend 按配置选择缓存后端实现
func buildCacheBackend(cfg *config.AppConfig) (storage.CacheBackend, error) {
	switch cfg.Generation.CacheBackend {
	case "", "memory":
		return storage.NewMemoryBackend(1000, defaultCacheTTL), nil
	case "file":
		return storage.NewFileBackend(filepath.Join(cfg.DataDir, "cache"))
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return storage.NewRedisBackend(ctx, cfg.Generation.RedisAddr, "", 0, "")
	default:
		return nil, fmt.Errorf("未知的缓存后端: %s", cfg.Generation.CacheBackend)
	}
}
