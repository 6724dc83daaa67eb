// internal/services/structured_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/Corphon/CourseForgeMCP/internal/errors"
	"github.com/Corphon/CourseForgeMCP/internal/llm"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// FailureKind 单次尝试的失败类别，决定下一次提示词如何变换
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureProviderCall
	FailureJSONDecode
	FailureSchemaValidation
	FailureQualityCheck
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureProviderCall:
		return "provider_call_failed"
	case FailureJSONDecode:
		return "json_decode_failed"
	case FailureSchemaValidation:
		return "schema_validation_failed"
	case FailureQualityCheck:
		return "quality_check_failed"
	default:
		return "unknown"
	}
}

// maxReportedViolations 结构校验失败时最多携带的字段/原因对数量
const maxReportedViolations = 5

// Sleeper 重试等待的抽象，测试中注入假实现避免真实延迟
type Sleeper interface {
	Sleep(d time.Duration)
}

// realSleeper 默认实现，阻塞当前工作协程
type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// attemptFailure 一次失败尝试的记录
type attemptFailure struct {
	kind       FailureKind
	err        error
	violations []models.FieldViolation
	issues     []string
}

// StructuredCallService 结构化生成调用：
// 提示词进、已解析并通过校验的内容件出，失败时带提示词变换的有界重试
type StructuredCallService struct {
	provider   llm.Provider
	model      string
	retryDelay time.Duration
	sleeper    Sleeper
	metrics    *utils.MetricsCollector
}

// NewStructuredCallService 创建结构化调用服务
func NewStructuredCallService(provider llm.Provider, model string, retryDelay time.Duration, metrics *utils.MetricsCollector) *StructuredCallService {
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}
	return &StructuredCallService{
		provider:   provider,
		model:      model,
		retryDelay: retryDelay,
		sleeper:    realSleeper{},
		metrics:    metrics,
	}
}

// SetSleeper 替换重试等待实现，测试专用
func (s *StructuredCallService) SetSleeper(sleeper Sleeper) {
	if sleeper != nil {
		s.sleeper = sleeper
	}
}

// Call 执行一次结构化生成调用
// 对attempt 0..maxRetries依次尝试：调用提供商、清洗并解析JSON、
// 构造目标结构、可选的质量检查；失败时按失败类别在提示词尾部追加
// 提醒块并等待固定延迟后重试。令牌用量跨全部尝试累加，从不重置。
// 重试耗尽时返回nil内容件与已累积的用量，由调用方决定是否致命。
func (s *StructuredCallService) Call(ctx context.Context, prompt string, ct models.ContentType, maxRetries int, enableQualityCheck bool) (models.ContentPiece, models.TokenUsage, error) {
	var usage models.TokenUsage
	var lastFailure attemptFailure

	if s.provider == nil {
		return nil, usage, apperrors.NewProviderError("LLM提供商未初始化", nil)
	}

	currentPrompt := prompt

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// 上下文取消时立即中止，不再消耗重试额度
		if err := ctx.Err(); err != nil {
			return nil, usage, apperrors.NewProcessingError("生成调用被取消", err)
		}

		piece, attemptUsage, failure := s.attemptOnce(ctx, currentPrompt, ct, enableQualityCheck)
		usage.Add(attemptUsage)

		if failure == nil {
			s.metrics.IncrementCounter("generation.call.success")
			return piece, usage, nil
		}

		lastFailure = *failure
		s.metrics.IncrementCounter("generation.retry." + failure.kind.String())
		utils.GetLogger().Warn("结构化生成尝试失败", map[string]interface{}{
			"content_type": string(ct),
			"attempt":      attempt,
			"failure_kind": failure.kind.String(),
		})

		// 还有剩余尝试时变换提示词并等待
		if attempt < maxRetries {
			currentPrompt += reminderFor(*failure)
			s.sleeper.Sleep(s.retryDelay)
		}
	}

	s.metrics.IncrementCounter("generation.call.exhausted")
	return nil, usage, apperrors.NewExhaustedError(
		fmt.Sprintf("内容类型%s在%d次尝试后仍未生成有效结果（最后失败: %s）",
			ct, maxRetries+1, lastFailure.kind.String()),
		lastFailure.err)
}

// attemptOnce 执行单次尝试：提供商调用 → 清洗 → 解析 → 校验
func (s *StructuredCallService) attemptOnce(ctx context.Context, prompt string, ct models.ContentType, enableQualityCheck bool) (models.ContentPiece, models.TokenUsage, *attemptFailure) {
	var usage models.TokenUsage

	s.metrics.IncrementCounter("generation.provider.calls")
	resp, err := s.provider.CompleteText(ctx, llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		Model:        s.model,
	})
	if err != nil {
		// 提供商错误按可重试失败处理
		return nil, usage, &attemptFailure{kind: FailureProviderCall, err: err}
	}

	usage.InputTokens += resp.PromptTokens
	usage.OutputTokens += resp.OutputTokens

	text := cleanJSONString(resp.Text)

	piece, err := models.NewPieceForType(ct)
	if err != nil {
		return nil, usage, &attemptFailure{kind: FailureJSONDecode, err: err}
	}

	if err := json.Unmarshal([]byte(text), piece); err != nil {
		return nil, usage, &attemptFailure{kind: FailureJSONDecode, err: err}
	}

	if violations := piece.Validate(); len(violations) > 0 {
		if len(violations) > maxReportedViolations {
			violations = violations[:maxReportedViolations]
		}
		return nil, usage, &attemptFailure{
			kind:       FailureSchemaValidation,
			violations: violations,
		}
	}

	if enableQualityCheck {
		if issues := piece.QualityIssues(); len(issues) > 0 {
			return nil, usage, &attemptFailure{
				kind:   FailureQualityCheck,
				issues: issues,
			}
		}
	}

	return piece, usage, nil
}

// reminderFor 按失败类别返回追加到提示词尾部的提醒块
func reminderFor(failure attemptFailure) string {
	switch failure.kind {
	case FailureJSONDecode:
		return jsonFormatReminder
	case FailureSchemaValidation:
		return buildSchemaReminder(failure.violations)
	case FailureQualityCheck:
		return buildQualityReminder(failure.issues)
	default:
		// 提供商瞬时故障不需要变换提示词
		return ""
	}
}
