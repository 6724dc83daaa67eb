// internal/services/generator_service_test.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	apperrors "github.com/Corphon/CourseForgeMCP/internal/errors"
	"github.com/Corphon/CourseForgeMCP/internal/llm"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/storage"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// fixturePara 生成围绕固定主题词的文本，长度不低于minLen
// 刻意避开否定词与数字，避免触发矛盾检测
func fixturePara(minLen int) string {
	sentences := []string{
		"Photosynthesis converts light energy into chemical energy inside chloroplasts.",
		"The light reactions capture photons and produce energy carriers for the cell.",
		"The calvin cycle fixes carbon dioxide into glucose molecules for the plant.",
		"For example, leaves adjust their output when light intensity changes.",
	}
	var b strings.Builder
	for i := 0; b.Len() < minLen; i++ {
		b.WriteString(sentences[i%len(sentences)])
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

// fixturePiece 构造满足全部结构与质量窗口的内容件
func fixturePiece(ct models.ContentType) interface{} {
	switch ct {
	case models.ContentTypeOutline:
		return &models.Outline{
			Title:     "Introduction to Photosynthesis",
			MainTopic: "photosynthesis",
			LearningObjectives: []string{
				"Explain how plants convert light energy into chemical energy.",
				"Describe the light reactions inside chloroplasts.",
				"Trace carbon through the calvin cycle to glucose.",
			},
			Subtopics: []models.OutlineSection{
				{Title: "Light reactions", Summary: fixturePara(60)},
				{Title: "Calvin cycle", Summary: fixturePara(60)},
			},
			Summary: fixturePara(120),
		}
	case models.ContentTypePodcastScript:
		return &models.PodcastScript{
			Title:        "Photosynthesis Explained",
			Introduction: fixturePara(150),
			MainContent:  fixturePara(900),
			Conclusion:   fixturePara(120),
		}
	case models.ContentTypeStudyGuide:
		guide := &models.StudyGuide{
			Title:    "Photosynthesis Study Guide",
			Overview: fixturePara(150),
			ReviewQuestions: []string{
				"What are the inputs of photosynthesis?",
				"Where do the light reactions take place?",
				"How does the calvin cycle fix carbon?",
			},
		}
		for _, heading := range []string{"Light reactions", "Calvin cycle"} {
			guide.Sections = append(guide.Sections, models.StudyGuideSection{
				Heading: heading, Content: fixturePara(150),
			})
		}
		for _, term := range []string{"chloroplast", "photon", "glucose", "carbon", "stomata"} {
			guide.KeyTerms = append(guide.KeyTerms, models.KeyTerm{
				Term: term, Definition: fixturePara(40),
			})
		}
		return guide
	case models.ContentTypeOnePager:
		return &models.OnePager{
			Title:   "Photosynthesis at a Glance",
			Summary: fixturePara(250),
			KeyTakeaways: []string{
				"Photosynthesis converts light energy into chemical energy.",
				"The light reactions produce energy carriers inside chloroplasts.",
				"The calvin cycle fixes carbon dioxide into glucose.",
			},
		}
	case models.ContentTypeDetailedReading:
		reading := &models.DetailedReading{
			Title:        "A Detailed Look at Photosynthesis",
			Introduction: fixturePara(150),
			Conclusion:   fixturePara(120),
		}
		for _, heading := range []string{"Light reactions", "Calvin cycle", "Limiting factors"} {
			reading.Sections = append(reading.Sections, models.ReadingSection{
				Heading: heading, Body: fixturePara(550),
			})
		}
		return reading
	case models.ContentTypeFAQCollection:
		faq := &models.FAQCollection{Title: "Photosynthesis FAQ"}
		for _, topic := range []string{"light reactions", "calvin cycle", "chloroplasts", "glucose", "carbon dioxide"} {
			faq.Items = append(faq.Items, models.FAQItem{
				Question: "What role does " + topic + " play in photosynthesis?",
				Answer:   fixturePara(60),
			})
		}
		return faq
	case models.ContentTypeFlashcards:
		deck := &models.Flashcards{Title: "Photosynthesis Flashcards"}
		fronts := []string{
			"Define the role of light reactions in photosynthesis",
			"Explain what the calvin cycle produces",
			"Name the organelle where photosynthesis happens",
			"Describe how glucose stores chemical energy",
		}
		for i := 0; i < 8; i++ {
			deck.Cards = append(deck.Cards, models.Flashcard{
				Front: fronts[i%len(fronts)],
				Back:  fixturePara(30),
			})
		}
		return deck
	case models.ContentTypeReadingQuestions:
		guide := &models.ReadingGuideQuestions{Title: "Reading Guide: Photosynthesis"}
		for _, topic := range []string{"light reactions", "calvin cycle", "chloroplasts", "glucose", "limiting factors"} {
			guide.Questions = append(guide.Questions, models.GuideQuestion{
				Question: "How does " + topic + " connect to photosynthesis overall?",
				Purpose:  fixturePara(25),
			})
		}
		return guide
	}
	return nil
}

// detectContentType 按提示词中的schema线索推断内容类型
// 派生提示词中嵌有大纲JSON，因此大纲的线索放最后匹配
func detectContentType(prompt string) models.ContentType {
	switch {
	case strings.Contains(prompt, `"main_content"`):
		return models.ContentTypePodcastScript
	case strings.Contains(prompt, `"review_questions"`):
		return models.ContentTypeStudyGuide
	case strings.Contains(prompt, `"key_takeaways"`):
		return models.ContentTypeOnePager
	case strings.Contains(prompt, `"body"`):
		return models.ContentTypeDetailedReading
	case strings.Contains(prompt, `"answer"`):
		return models.ContentTypeFAQCollection
	case strings.Contains(prompt, `"front"`):
		return models.ContentTypeFlashcards
	case strings.Contains(prompt, `"purpose"`):
		return models.ContentTypeReadingQuestions
	default:
		return models.ContentTypeOutline
	}
}

// pipelineProvider 按内容类型返回合法JSON的测试提供商，可指定故障类型
type pipelineProvider struct {
	mu        sync.Mutex
	calls     int
	failTypes map[models.ContentType]bool
}

func (p *pipelineProvider) Initialize(config map[string]string) error { return nil }
func (p *pipelineProvider) GetName() string                          { return "pipeline-mock" }
func (p *pipelineProvider) GetSupportedModels() []string             { return []string{"test-model"} }

func (p *pipelineProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ct := detectContentType(req.Prompt)

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.failTypes[ct] {
		return nil, errors.New("模拟提供商故障")
	}

	data, err := json.Marshal(fixturePiece(ct))
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{
		Text:         string(data),
		PromptTokens: 10,
		OutputTokens: 20,
	}, nil
}

func (p *pipelineProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

const testSyllabus = `Introduction to Photosynthesis

- What photosynthesis is and why it matters
- Light reactions: capturing photons inside chloroplasts
- Calvin cycle: fixing carbon dioxide into glucose
- Limiting factors: light intensity, carbon dioxide and temperature`

func newTestGenerator(provider llm.Provider, gen config.GenerationConfig, withCache bool) (*GeneratorService, *QualityCacheService) {
	metrics := utils.NewMetricsCollector()
	structured := NewStructuredCallService(provider, "test-model", 0, metrics)
	structured.SetSleeper(&noopSleeper{})
	consistency := NewConsistencyService()
	validator := NewValidatorService(consistency)

	var cache *QualityCacheService
	if withCache {
		backend := storage.NewMemoryBackend(100, time.Hour)
		cache = NewQualityCacheService(backend, gen.CacheSchemaVersion,
			gen.CacheStorageFloor, gen.CacheRetrievalFloor, time.Hour)
	}

	generator := NewGeneratorService(structured, validator, consistency, cache, nil, metrics,
		gen, "pipeline-mock", "test-model")
	return generator, cache
}

func TestGenerateFullRun(t *testing.T) {
	provider := &pipelineProvider{}
	generator, _ := newTestGenerator(provider, config.DefaultGenerationConfig(), false)

	result, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "run-1")
	require.NoError(t, err)

	require.Equal(t, "run-1", result.Metadata.RunID)
	require.False(t, result.Metadata.CacheHit)
	require.NotNil(t, result.Bundle.Outline)
	require.Len(t, result.Bundle.PresentDerivatives(), len(models.DerivativeTypes))

	// 大纲1次 + 派生7次
	require.Equal(t, 8, provider.callCount())
	require.Equal(t, 8*30, result.Metadata.TokenUsage.Total())

	require.NotNil(t, result.Quality)
	require.GreaterOrEqual(t, result.Quality.OverallScore, 0.0)
	require.LessOrEqual(t, result.Quality.OverallScore, 1.0)
}

func TestGenerateSequentialMode(t *testing.T) {
	provider := &pipelineProvider{}
	gen := config.DefaultGenerationConfig()
	gen.SequentialMode = true
	generator, _ := newTestGenerator(provider, gen, false)

	result, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "")
	require.NoError(t, err)
	require.NotEmpty(t, result.Metadata.RunID, "未指定时应自动分配运行ID")
	require.Len(t, result.Bundle.PresentDerivatives(), len(models.DerivativeTypes))
}

func TestGenerateCacheHitSkipsProvider(t *testing.T) {
	provider := &pipelineProvider{}
	generator, _ := newTestGenerator(provider, config.DefaultGenerationConfig(), true)
	req := models.GenerationRequest{SyllabusText: testSyllabus}

	first, err := generator.Generate(context.Background(), req, "")
	require.NoError(t, err)
	require.False(t, first.Metadata.CacheHit)
	require.GreaterOrEqual(t, first.Quality.OverallScore, 0.6,
		"固定内容的评分应超过存储门槛，否则缓存测试无效")

	callsAfterFirst := provider.callCount()

	second, err := generator.Generate(context.Background(), req, "")
	require.NoError(t, err)
	require.True(t, second.Metadata.CacheHit, "相同请求应命中缓存")
	require.Equal(t, callsAfterFirst, provider.callCount(), "缓存命中时不应调用提供商")
	require.Zero(t, second.Metadata.TokenUsage.Total(), "缓存命中不产生令牌消耗")
	require.NotNil(t, second.Bundle.Outline)
}

func TestGenerateOutlineFailureIsFatal(t *testing.T) {
	provider := &pipelineProvider{
		failTypes: map[models.ContentType]bool{models.ContentTypeOutline: true},
	}
	generator, _ := newTestGenerator(provider, config.DefaultGenerationConfig(), false)

	_, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "")
	require.Error(t, err, "大纲失败应终止整个运行")
	require.True(t, apperrors.IsExhaustedError(err))
	// 仅大纲的重试消耗了调用额度，未进入派生阶段
	require.Equal(t, 3, provider.callCount())
}

func TestGeneratePartialFailureIsolated(t *testing.T) {
	provider := &pipelineProvider{
		failTypes: map[models.ContentType]bool{models.ContentTypeFlashcards: true},
	}
	generator, _ := newTestGenerator(provider, config.DefaultGenerationConfig(), false)

	result, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "")
	require.NoError(t, err, "单个派生内容失败不应终止运行")
	require.Len(t, result.Bundle.PresentDerivatives(), len(models.DerivativeTypes)-1)
	require.Nil(t, result.Bundle.Flashcards)

	found := false
	for _, feedback := range result.Quality.ActionableFeedback {
		if strings.Contains(feedback, "flashcards") {
			found = true
		}
	}
	require.True(t, found, "失败的内容类型应出现在反馈中")
}

func TestGenerateEmptySyllabusRejected(t *testing.T) {
	provider := &pipelineProvider{}
	generator, _ := newTestGenerator(provider, config.DefaultGenerationConfig(), false)

	_, err := generator.Generate(context.Background(), models.GenerationRequest{}, "")
	require.Error(t, err)
	require.True(t, apperrors.IsValidationError(err))
	require.Zero(t, provider.callCount())
}

func TestGenerateInputHardFloorRejected(t *testing.T) {
	provider := &pipelineProvider{}
	gen := config.DefaultGenerationConfig()
	gen.InputHardFloor = 0.5
	generator, _ := newTestGenerator(provider, gen, false)

	_, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: "x x x",
	}, "")
	require.Error(t, err)
	require.True(t, apperrors.IsInputQualityError(err))
	require.Zero(t, provider.callCount(), "硬下限拒绝不消耗提供商调用")
}

func TestGenerateSoftQualityGateReturnsResult(t *testing.T) {
	provider := &pipelineProvider{}
	gen := config.DefaultGenerationConfig()
	gen.QualityThreshold = 0.99 // 几乎不可能达到
	generator, _ := newTestGenerator(provider, gen, false)

	result, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "")
	require.NoError(t, err, "默认软门下低分结果照常返回")
	require.False(t, result.Quality.OverallPassed)
	require.NotNil(t, result.Bundle.Outline)
}

func TestGenerateStrictQualityGateFails(t *testing.T) {
	provider := &pipelineProvider{}
	gen := config.DefaultGenerationConfig()
	gen.QualityThreshold = 0.99
	gen.StrictQualityGate = true
	generator, _ := newTestGenerator(provider, gen, false)

	_, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "")
	require.Error(t, err, "严格门下低分结果按失败处理")
}

func TestGenerateLowQualityNotCached(t *testing.T) {
	provider := &pipelineProvider{
		failTypes: map[models.ContentType]bool{
			models.ContentTypePodcastScript:   true,
			models.ContentTypeStudyGuide:      true,
			models.ContentTypeOnePager:        true,
			models.ContentTypeDetailedReading: true,
			models.ContentTypeFAQCollection:   true,
			models.ContentTypeFlashcards:      true,
			models.ContentTypeReadingQuestions: true,
		},
	}
	gen := config.DefaultGenerationConfig()
	gen.CacheStorageFloor = 0.99 // 抬高存储门槛，确保本次结果不落盘
	generator, cache := newTestGenerator(provider, gen, true)
	req := models.GenerationRequest{SyllabusText: testSyllabus}

	result, err := generator.Generate(context.Background(), req, "")
	require.NoError(t, err)
	require.Empty(t, result.Bundle.PresentDerivatives())

	_, _, hit := cache.Get(context.Background(), req)
	require.False(t, hit, "低于存储门槛的结果不应写入缓存")
}

// gatedProvider 控制完成顺序：注册表末位的派生内容最先返回，其余类型等待其完成
type gatedProvider struct {
	pipelineProvider
	release chan struct{}
	once    sync.Once
}

func (p *gatedProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	switch ct := detectContentType(req.Prompt); ct {
	case models.DerivativeTypes[len(models.DerivativeTypes)-1]:
		defer p.once.Do(func() { close(p.release) })
	case models.ContentTypeOutline:
	default:
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.pipelineProvider.CompleteText(ctx, req)
}

func TestGenerateParallelProgressByCompletionCount(t *testing.T) {
	provider := &gatedProvider{release: make(chan struct{})}
	gen := config.DefaultGenerationConfig()
	gen.ParallelWorkers = len(models.DerivativeTypes) // 全部派生任务同时入场
	generator, _ := newTestGenerator(provider, gen, false)

	progress := NewProgressService()
	tracker := progress.CreateTracker("parallel-progress")
	updates := tracker.Subscribe()
	<-updates // 丢弃订阅时的初始快照

	outline := fixturePiece(models.ContentTypeOutline).(*models.Outline)
	generator.runDerivatives(context.Background(), outline,
		models.GenerationRequest{SyllabusText: testSyllabus}, tracker)

	got := make([]int, 0, len(models.DerivativeTypes))
	for i := 0; i < len(models.DerivativeTypes); i++ {
		got = append(got, (<-updates).Progress)
	}
	require.Equal(t, []int{33, 42, 50, 59, 67, 76, 85}, got,
		"进度应按完成数单调推进，与任务完成顺序无关")
}

func TestGenerateProgressTracked(t *testing.T) {
	provider := &pipelineProvider{}
	gen := config.DefaultGenerationConfig()
	metrics := utils.NewMetricsCollector()
	structured := NewStructuredCallService(provider, "test-model", 0, metrics)
	structured.SetSleeper(&noopSleeper{})
	consistency := NewConsistencyService()
	progress := NewProgressService()

	generator := NewGeneratorService(structured, NewValidatorService(consistency),
		consistency, nil, progress, metrics, gen, "pipeline-mock", "test-model")

	_, err := generator.Generate(context.Background(), models.GenerationRequest{
		SyllabusText: testSyllabus,
	}, "tracked-run")
	require.NoError(t, err)

	tracker, exists := progress.GetTracker("tracked-run")
	require.True(t, exists)
	require.Equal(t, "completed", tracker.Status)
	require.Equal(t, 100, tracker.Progress)
}
