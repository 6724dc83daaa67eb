// internal/services/generator_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	apperrors "github.com/Corphon/CourseForgeMCP/internal/errors"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// GeneratorService 生成编排器：
// 驱动 缓存检查 → 输入校验 → 大纲 → 派生扇出 → 综合校验 → 缓存写入 的完整流程
type GeneratorService struct {
	structured   *StructuredCallService
	validator    *ValidatorService
	consistency  *ConsistencyService
	cache        *QualityCacheService
	progress     *ProgressService
	metrics      *utils.MetricsCollector
	gen          config.GenerationConfig
	providerName string
	model        string
}

// NewGeneratorService 创建生成编排服务
// cache与progress允许为nil，对应功能自动退化为关闭
func NewGeneratorService(
	structured *StructuredCallService,
	validator *ValidatorService,
	consistency *ConsistencyService,
	cache *QualityCacheService,
	progress *ProgressService,
	metrics *utils.MetricsCollector,
	gen config.GenerationConfig,
	providerName, model string,
) *GeneratorService {
	if validator == nil {
		validator = NewValidatorService(consistency)
	}
	if consistency == nil {
		consistency = NewConsistencyService()
	}
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}
	return &GeneratorService{
		structured:   structured,
		validator:    validator,
		consistency:  consistency,
		cache:        cache,
		progress:     progress,
		metrics:      metrics,
		gen:          gen,
		providerName: providerName,
		model:        model,
	}
}

// derivativeResult 单个派生内容生成任务的产出，join后统一提交
type derivativeResult struct {
	ct    models.ContentType
	piece models.ContentPiece
	usage models.TokenUsage
	err   error
}

// Generate 执行一次完整的生成运行
// runID为空时自动分配。派生内容的失败彼此隔离，只有大纲失败是致命的。
func (g *GeneratorService) Generate(ctx context.Context, req models.GenerationRequest, runID string) (*models.GenerationResult, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	start := time.Now()
	logger := utils.GetLogger()

	var tracker *ProgressTracker
	if g.progress != nil {
		tracker = g.progress.CreateTracker(runID)
	}
	fail := func(err error) (*models.GenerationResult, error) {
		if tracker != nil {
			tracker.Fail(err.Error())
		}
		return nil, err
	}

	if strings.TrimSpace(req.SyllabusText) == "" {
		return fail(apperrors.NewValidationError("syllabus_text不能为空", nil))
	}

	metadata := &models.GenerationMetadata{
		RunID:     runID,
		Provider:  g.providerName,
		Model:     g.model,
		CreatedAt: start,
	}

	// 阶段1：缓存检查。命中时整个运行零次提供商调用
	if tracker != nil {
		tracker.EnterStage(StageCacheCheck, 2, "检查结果缓存")
	}
	if g.cache != nil {
		if bundle, report, hit := g.cache.Get(ctx, req); hit {
			g.metrics.IncrementCounter("generation.cache.hit")
			metadata.CacheHit = true
			metadata.ElapsedMS = time.Since(start).Milliseconds()
			if report == nil {
				report = g.validator.ValidateBundle(bundle, g.gen.QualityThreshold)
			}
			if tracker != nil {
				tracker.Complete("缓存命中")
			}
			logger.Info("生成运行缓存命中", map[string]interface{}{"run_id": runID})
			return &models.GenerationResult{Bundle: bundle, Metadata: metadata, Quality: report}, nil
		}
		g.metrics.IncrementCounter("generation.cache.miss")
	}

	// 阶段2：输入质量评估。硬下限直接失败，软下限仅告警
	if tracker != nil {
		tracker.EnterStage(StageInputValidation, 5, "评估输入质量")
	}
	inputQuality := g.assessInputQuality(req.SyllabusText)
	metadata.InputQuality = inputQuality
	if inputQuality < g.gen.InputHardFloor {
		g.metrics.IncrementCounter("generation.input.rejected")
		return fail(apperrors.NewInputQualityError(
			fmt.Sprintf("输入质量评分%.2f低于硬下限%.2f", inputQuality, g.gen.InputHardFloor), nil))
	}
	if inputQuality < g.gen.InputSoftFloor {
		logger.Warn("输入质量低于软下限，继续生成", map[string]interface{}{
			"run_id":  runID,
			"quality": inputQuality,
			"floor":   g.gen.InputSoftFloor,
		})
	}

	// 阶段3：大纲生成。大纲是所有派生内容的根依赖，失败即终止
	if tracker != nil {
		tracker.EnterStage(StageOutline, 10, "生成课程大纲")
	}
	var usage models.TokenUsage
	outlinePiece, outlineUsage, err := g.structured.Call(
		ctx, BuildOutlinePrompt(req), models.ContentTypeOutline, g.gen.MaxRetries, true)
	usage.Add(outlineUsage)
	if err != nil {
		metadata.TokenUsage = usage
		return fail(apperrors.WrapError(err, "大纲生成失败", apperrors.ErrorTypeExhausted))
	}
	outline := outlinePiece.(*models.Outline)

	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(outline)

	// 阶段4：派生内容扇出。每个任务独立失败，join后统一提交结果与用量
	if tracker != nil {
		tracker.EnterStage(StageDerivatives, 25, "生成派生内容")
	}
	results := g.runDerivatives(ctx, outline, req, tracker)

	failedTypes := make([]string, 0)
	for _, r := range results {
		usage.Add(r.usage)
		if r.err != nil {
			failedTypes = append(failedTypes, string(r.ct))
			logger.Warn("派生内容生成失败", map[string]interface{}{
				"run_id":       runID,
				"content_type": string(r.ct),
				"error":        r.err.Error(),
			})
			continue
		}
		bundle.SetPiece(r.piece)
	}
	metadata.TokenUsage = usage

	// 阶段5：综合校验
	if tracker != nil {
		tracker.EnterStage(StageValidation, 85, "执行综合校验")
	}
	report := g.validator.ValidateBundle(bundle, g.gen.QualityThreshold)
	for _, ft := range failedTypes {
		report.ActionableFeedback = append(report.ActionableFeedback,
			"["+ft+"] 生成失败，重试已耗尽")
	}

	// 质量门：默认软门（仅告警并照常返回），严格模式下按失败处理
	if !report.OverallPassed {
		g.metrics.IncrementCounter("generation.quality.below_threshold")
		if g.gen.StrictQualityGate {
			metadata.ElapsedMS = time.Since(start).Milliseconds()
			return fail(apperrors.NewProcessingError(
				fmt.Sprintf("综合质量评分%.2f低于门槛%.2f", report.OverallScore, g.gen.QualityThreshold), nil))
		}
		logger.Warn("综合质量低于门槛，按软门放行", map[string]interface{}{
			"run_id":    runID,
			"score":     report.OverallScore,
			"threshold": g.gen.QualityThreshold,
		})
	}

	// 阶段6：缓存写入。存储门槛由缓存服务执行
	if tracker != nil {
		tracker.EnterStage(StageCacheWrite, 95, "写入结果缓存")
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, req, bundle, report, report.OverallScore); err != nil {
			logger.Warn("缓存写入失败", map[string]interface{}{"run_id": runID, "error": err.Error()})
		}
	}

	metadata.ElapsedMS = time.Since(start).Milliseconds()
	g.metrics.IncrementCounter("generation.run.completed")
	g.metrics.ObserveDuration("generation.run.elapsed", time.Since(start))

	if tracker != nil {
		tracker.Complete("")
	}
	logger.Info("生成运行完成", map[string]interface{}{
		"run_id":      runID,
		"derivatives": len(bundle.PresentDerivatives()),
		"score":       report.OverallScore,
		"tokens":      usage.Total(),
		"elapsed_ms":  metadata.ElapsedMS,
	})

	return &models.GenerationResult{Bundle: bundle, Metadata: metadata, Quality: report}, nil
}

// runDerivatives 按注册表顺序生成全部派生内容
// 并发模式下用有界工作组扇出，顺序模式逐个执行；返回值下标与注册表对齐
func (g *GeneratorService) runDerivatives(ctx context.Context, outline *models.Outline, req models.GenerationRequest, tracker *ProgressTracker) []derivativeResult {
	results := make([]derivativeResult, len(models.DerivativeTypes))

	// 进度按完成数推进，与任务的完成顺序无关；派生阶段占进度条的25%-85%区间
	var progressMu sync.Mutex
	completed := 0
	runOne := func(callCtx context.Context, i int, ct models.ContentType) {
		piece, taskUsage, err := g.structured.Call(
			callCtx, BuildDerivativePrompt(ct, outline, req), ct, g.gen.MaxRetries, true)
		results[i] = derivativeResult{ct: ct, piece: piece, usage: taskUsage, err: err}
		if tracker != nil {
			progressMu.Lock()
			completed++
			tracker.UpdateProgress(25+completed*60/len(models.DerivativeTypes),
				fmt.Sprintf("已完成%s", ct))
			progressMu.Unlock()
		}
	}

	if g.gen.SequentialMode {
		for i, ct := range models.DerivativeTypes {
			runOne(ctx, i, ct)
		}
		return results
	}

	workers := g.gen.ParallelWorkers
	if workers <= 0 {
		workers = 4
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for i, ct := range models.DerivativeTypes {
		i, ct := i, ct
		group.Go(func() error {
			// 每个槽位只由本协程写入，无需额外同步；单任务错误不取消其余任务
			runOne(groupCtx, i, ct)
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// assessInputQuality 启发式评估输入教学大纲的质量，取值[0,1]
// 综合文本量、结构线索与可读性三项
func (g *GeneratorService) assessInputQuality(syllabus string) float64 {
	words := tokenizeWords(syllabus)
	if len(words) == 0 {
		return 0
	}

	// 文本量：100词以上视为充分
	volumeScore := clamp01(float64(len(words)) / 100.0)

	// 结构线索：多行、列表符号、编号等表明这是结构化大纲而非随意文本
	structureHits := 0
	lines := strings.Split(syllabus, "\n")
	if len(lines) >= 3 {
		structureHits++
	}
	for _, marker := range []string{"-", "*", "1.", "2.", ":"} {
		if strings.Contains(syllabus, marker) {
			structureHits++
		}
	}
	structureScore := clamp01(float64(structureHits) / 4.0)

	// 可读性：极端难读的文本多半是乱码或无关内容
	readability := g.consistency.AnalyzeReadability(syllabus, AgeGroupAdults)
	readabilityScore := clamp01(readability.FleschScore / 100.0)
	if readability.FleschScore <= 0 {
		readabilityScore = 0
	}

	return clamp01(0.45*volumeScore + 0.35*structureScore + 0.2*readabilityScore)
}
