// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	"github.com/Corphon/CourseForgeMCP/internal/di"
	"github.com/Corphon/CourseForgeMCP/internal/services"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// SetupRouter 配置HTTP路由
// 只从容器获取服务，不创建新实例
func SetupRouter(container *di.Container) (*gin.Engine, error) {
	cfg := config.GetCurrentConfig()

	taskService, ok := container.Get("task").(*services.TaskService)
	if !ok {
		return nil, fmt.Errorf("任务服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	generatorService, ok := container.Get("generator").(*services.GeneratorService)
	if !ok {
		return nil, fmt.Errorf("生成服务未正确初始化")
	}

	metrics, ok := container.Get("metrics").(*utils.MetricsCollector)
	if !ok {
		return nil, fmt.Errorf("指标收集器未正确初始化")
	}

	handler := NewHandler(taskService, progressService, generatorService, metrics)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	// WebSocket 支持
	r.GET("/ws/generation/:id", handler.GenerationProgressWebSocket)

	// ===============================
	// API路由
	// ===============================
	apiGroup := r.Group("/api")
	apiGroup.Use(DefaultRateLimit())
	{
		apiGroup.POST("/generate", GenerateRateLimit(), handler.GenerateContent)
		apiGroup.GET("/generate", handler.ListRuns)
		apiGroup.GET("/generate/:id", handler.GetRun)
		apiGroup.GET("/generate/:id/progress", handler.GetProgress)

		apiGroup.GET("/settings", handler.GetSettings)
		apiGroup.PUT("/settings/llm", handler.UpdateLLMSettings)
		apiGroup.PUT("/settings/generation", handler.UpdateGenerationSettings)

		apiGroup.GET("/health", handler.Health)
		apiGroup.GET("/metrics", handler.Metrics)
	}

	return r, nil
}
