// internal/api/handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/services"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// Handler API处理器，持有从容器获取的服务
type Handler struct {
	taskService     *services.TaskService
	progressService *services.ProgressService
	generator       *services.GeneratorService
	metrics         *utils.MetricsCollector
	responses       *ResponseHelper
}

// NewHandler 创建API处理器
func NewHandler(
	taskService *services.TaskService,
	progressService *services.ProgressService,
	generator *services.GeneratorService,
	metrics *utils.MetricsCollector,
) *Handler {
	return &Handler{
		taskService:     taskService,
		progressService: progressService,
		generator:       generator,
		metrics:         metrics,
		responses:       NewResponseHelper(),
	}
}

// generateRequestBody POST /api/generate 的请求体
type generateRequestBody struct {
	SyllabusText   string `json:"syllabus_text" binding:"required"`
	TargetFormat   string `json:"target_format"`
	TargetDuration int    `json:"target_duration"`
	TargetPages    int    `json:"target_pages"`
	Wait           bool   `json:"wait"` // true时同步等待结果返回
}

// GenerateContent 提交一次生成运行
// 默认异步：立即返回run_id，结果通过查询接口或WebSocket获取
func (h *Handler) GenerateContent(c *gin.Context) {
	var body generateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.responses.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	req := models.GenerationRequest{
		SyllabusText:   body.SyllabusText,
		TargetFormat:   body.TargetFormat,
		TargetDuration: body.TargetDuration,
		TargetPages:    body.TargetPages,
	}

	if body.Wait {
		result, err := h.generator.Generate(c.Request.Context(), req, "")
		if err != nil {
			h.responses.AppError(c, err)
			return
		}
		h.responses.Success(c, result)
		return
	}

	runID := h.taskService.StartRun(req)
	h.responses.Accepted(c, gin.H{"run_id": runID})
}

// GetRun 查询运行状态与结果
func (h *Handler) GetRun(c *gin.Context) {
	runID := c.Param("id")

	run, err := h.taskService.GetRun(runID)
	if err != nil {
		h.responses.NotFound(c, "运行", runID)
		return
	}

	h.responses.Success(c, run)
}

// ListRuns 列出全部已登记的运行
func (h *Handler) ListRuns(c *gin.Context) {
	h.responses.Success(c, h.taskService.ListRuns())
}

// GetProgress 查询运行的进度快照
func (h *Handler) GetProgress(c *gin.Context) {
	runID := c.Param("id")

	tracker, exists := h.progressService.GetTracker(runID)
	if !exists {
		h.responses.NotFound(c, "进度跟踪器", runID)
		return
	}

	h.responses.Success(c, gin.H{
		"run_id":   tracker.RunID,
		"stage":    tracker.Stage,
		"progress": tracker.Progress,
		"message":  tracker.Message,
		"status":   tracker.Status,
	})
}

// GetSettings 返回当前配置，API密钥脱敏
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()

	llmConfig := make(map[string]string, len(cfg.LLMConfig))
	for k, v := range cfg.LLMConfig {
		llmConfig[k] = v
	}
	if llmConfig["api_key"] != "" {
		llmConfig["api_key"] = "********"
	}

	h.responses.Success(c, gin.H{
		"llm_provider": cfg.LLMProvider,
		"llm_config":   llmConfig,
		"generation":   cfg.Generation,
	})
}

// llmSettingsBody PUT /api/settings/llm 的请求体
type llmSettingsBody struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
}

// UpdateLLMSettings 更新LLM提供商配置，重启后生效
func (h *Handler) UpdateLLMSettings(c *gin.Context) {
	var body llmSettingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.responses.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	if err := config.UpdateLLMConfig(body.Provider, body.Config); err != nil {
		h.responses.InternalError(c, "保存配置失败", err.Error())
		return
	}

	h.responses.Success(c, nil, "LLM配置已更新，重启后生效")
}

// UpdateGenerationSettings 更新生成管线配置
func (h *Handler) UpdateGenerationSettings(c *gin.Context) {
	var gen config.GenerationConfig
	if err := c.ShouldBindJSON(&gen); err != nil {
		h.responses.BadRequest(c, "请求体格式错误", err.Error())
		return
	}

	if err := config.UpdateGenerationConfig(gen); err != nil {
		h.responses.InternalError(c, "保存配置失败", err.Error())
		return
	}

	h.responses.Success(c, gen, "生成配置已更新")
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	h.responses.Success(c, gin.H{"status": "ok"})
}

// Metrics 返回运行指标快照
func (h *Handler) Metrics(c *gin.Context) {
	h.responses.Success(c, h.metrics.Snapshot())
}
