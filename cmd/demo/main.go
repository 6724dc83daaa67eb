// cmd/demo/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Corphon/CourseForgeMCP/internal/config"
	"github.com/Corphon/CourseForgeMCP/internal/llm"
	"github.com/Corphon/CourseForgeMCP/internal/models"
	"github.com/Corphon/CourseForgeMCP/internal/services"
	"github.com/Corphon/CourseForgeMCP/internal/storage"
	"github.com/Corphon/CourseForgeMCP/internal/utils"
)

// 演示用教学大纲
const demoSyllabus = `Introduction to Photosynthesis

1. What is photosynthesis: the process plants use to convert light energy into chemical energy
2. Light-dependent reactions: how chloroplasts capture photons and produce ATP
3. The Calvin cycle: carbon fixation and the synthesis of glucose
4. Factors affecting photosynthesis: light intensity, carbon dioxide, temperature
5. Why photosynthesis matters: the foundation of food chains and the oxygen we breathe`

func main() {
	fmt.Println("🚀 CourseForgeMCP 离线演示")
	fmt.Println("=================================")
	fmt.Println("使用脚本化提供商执行一次完整的生成运行，不访问任何外部API")
	fmt.Println()

	metrics := utils.NewMetricsCollector()
	gen := config.DefaultGenerationConfig()

	backend := storage.NewMemoryBackend(100, time.Hour)
	cache := services.NewQualityCacheService(backend, gen.CacheSchemaVersion,
		gen.CacheStorageFloor, gen.CacheRetrievalFloor, time.Hour)

	consistency := services.NewConsistencyService()
	validator := services.NewValidatorService(consistency)

	provider := &scriptedProvider{}
	structured := services.NewStructuredCallService(provider, "demo-model", 0, metrics)

	generator := services.NewGeneratorService(
		structured, validator, consistency, cache, nil, metrics,
		gen, provider.GetName(), "demo-model")

	req := models.GenerationRequest{
		SyllabusText:   demoSyllabus,
		TargetFormat:   "podcast",
		TargetDuration: 15,
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fmt.Println("▶ 第一次运行（冷缓存）...")
	result, err := generator.Generate(ctx, req, "")
	if err != nil {
		log.Fatalf("❌ 生成失败: %v", err)
	}
	printResult(result)

	fmt.Println("▶ 第二次运行（相同请求，应命中缓存）...")
	result2, err := generator.Generate(ctx, req, "")
	if err != nil {
		log.Fatalf("❌ 生成失败: %v", err)
	}
	printResult(result2)

	fmt.Printf("📊 提供商总调用次数: %d\n", metrics.CounterValue("generation.provider.calls"))
}

func printResult(result *models.GenerationResult) {
	fmt.Printf("  运行ID: %s\n", result.Metadata.RunID)
	fmt.Printf("  缓存命中: %v\n", result.Metadata.CacheHit)
	fmt.Printf("  令牌用量: %d\n", result.Metadata.TokenUsage.Total())
	fmt.Printf("  综合评分: %.2f (通过: %v)\n", result.Quality.OverallScore, result.Quality.OverallPassed)
	fmt.Printf("  派生内容: %d/%d\n", len(result.Bundle.PresentDerivatives()), len(models.DerivativeTypes))
	fmt.Println()
}

// ---------------------------------------------------------------
// scriptedProvider 离线演示提供商：按提示词推断内容类型并返回定制的JSON

type scriptedProvider struct{}

func (p *scriptedProvider) Initialize(config map[string]string) error { return nil }
func (p *scriptedProvider) GetName() string                          { return "scripted" }
func (p *scriptedProvider) GetSupportedModels() []string             { return []string{"demo-model"} }

func (p *scriptedProvider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	piece := pieceForPrompt(req.Prompt)
	data, err := json.Marshal(piece)
	if err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		Text:         "```json\n" + string(data) + "\n```",
		PromptTokens: len(req.Prompt) / 4,
		OutputTokens: len(data) / 4,
		ModelName:    "demo-model",
		ProviderName: "scripted",
	}, nil
}

var demoTopics = []string{
	"What Is Photosynthesis",
	"Light-Dependent Reactions",
	"The Calvin Cycle",
	"Factors Affecting Photosynthesis",
	"Why Photosynthesis Matters",
}

// prose 生成指定长度区间的演示文本，围绕给定主题展开
func prose(topic string, minLen int) string {
	sentences := []string{
		"In this part we explore %s and why it sits at the heart of plant biology.",
		"Understanding %s helps learners connect light energy to the chemical energy stored in glucose.",
		"For example, %s can be observed directly in a classroom experiment with aquatic plants.",
		"Note that %s interacts closely with the other stages of the overall process.",
		"In summary, %s gives us a window into how plants sustain nearly all life on Earth.",
	}
	var b strings.Builder
	for i := 0; b.Len() < minLen; i++ {
		fmt.Fprintf(&b, sentences[i%len(sentences)]+" ", strings.ToLower(topic))
	}
	return strings.TrimSpace(b.String())
}

// pieceForPrompt 按提示词中的schema线索构造对应内容件
// 派生提示词中嵌有大纲JSON，因此先匹配派生专属的schema字段，大纲放最后
func pieceForPrompt(prompt string) interface{} {
	switch {
	case strings.Contains(prompt, `"main_content"`):
		return &models.PodcastScript{
			Title:        "Photosynthesis, Explained",
			Introduction: prose("today's episode on photosynthesis", 200),
			MainContent:  prose("each stage of photosynthesis from light capture to glucose", 1200),
			Conclusion:   prose("what we learned about photosynthesis", 150),
		}

	case strings.Contains(prompt, `"review_questions"`):
		guide := &models.StudyGuide{
			Title:    "Photosynthesis Study Guide",
			Overview: prose("the study guide for photosynthesis", 200),
			ReviewQuestions: []string{
				"What are the inputs and outputs of photosynthesis?",
				"Where do the light-dependent reactions take place?",
				"How does the Calvin cycle fix carbon dioxide?",
			},
		}
		for _, topic := range demoTopics[:4] {
			guide.Sections = append(guide.Sections, models.StudyGuideSection{
				Heading: topic,
				Content: prose(topic, 150),
			})
		}
		for i, term := range []string{"chloroplast", "ATP", "Calvin cycle", "carbon fixation", "stomata"} {
			guide.KeyTerms = append(guide.KeyTerms, models.KeyTerm{
				Term:       term,
				Definition: prose(term, 40+i),
			})
		}
		return guide

	case strings.Contains(prompt, `"key_takeaways"`):
		return &models.OnePager{
			Title:   "Photosynthesis at a Glance",
			Summary: prose("the essential story of photosynthesis", 300),
			KeyTakeaways: []string{
				"Plants convert light energy into chemical energy stored as glucose.",
				"The light-dependent reactions produce the ATP the Calvin cycle consumes.",
				"Light, carbon dioxide and temperature all limit the overall rate.",
			},
		}

	case strings.Contains(prompt, `"body"`):
		reading := &models.DetailedReading{
			Title:        "A Detailed Look at Photosynthesis",
			Introduction: prose("this detailed reading on photosynthesis", 200),
			Conclusion:   prose("the conclusions of our reading", 150),
		}
		for _, topic := range demoTopics {
			reading.Sections = append(reading.Sections, models.ReadingSection{
				Heading: topic,
				Body:    prose(topic, 350),
			})
		}
		return reading

	case strings.Contains(prompt, `"answer"`):
		faq := &models.FAQCollection{Title: "Photosynthesis FAQ"}
		for _, topic := range demoTopics {
			faq.Items = append(faq.Items, models.FAQItem{
				Question: fmt.Sprintf("What should I know about %s?", strings.ToLower(topic)),
				Answer:   prose(topic, 60),
			})
		}
		return faq

	case strings.Contains(prompt, `"front"`):
		deck := &models.Flashcards{Title: "Photosynthesis Flashcards"}
		for i := 0; i < 10; i++ {
			topic := demoTopics[i%len(demoTopics)]
			deck.Cards = append(deck.Cards, models.Flashcard{
				Front: fmt.Sprintf("Card %d: define the key idea behind %s", i+1, strings.ToLower(topic)),
				Back:  prose(topic, 30),
			})
		}
		return deck

	case strings.Contains(prompt, `"purpose"`):
		guide := &models.ReadingGuideQuestions{Title: "Reading Guide: Photosynthesis"}
		for _, topic := range demoTopics {
			guide.Questions = append(guide.Questions, models.GuideQuestion{
				Question: fmt.Sprintf("How does %s connect to the overall process of photosynthesis?", strings.ToLower(topic)),
				Purpose:  prose(topic, 20),
			})
		}
		return guide

	case strings.Contains(prompt, `"learning_objectives"`):
		outline := &models.Outline{
			Title:     "Introduction to Photosynthesis",
			MainTopic: "photosynthesis",
			LearningObjectives: []string{
				"Explain how plants convert light energy into chemical energy.",
				"Describe the light-dependent reactions inside chloroplasts.",
				"Trace carbon through the Calvin cycle to glucose.",
				"Identify the environmental factors that limit photosynthesis.",
			},
			Summary: prose("the whole course", 300),
		}
		for _, topic := range demoTopics {
			outline.Subtopics = append(outline.Subtopics, models.OutlineSection{
				Title:   topic,
				Summary: prose(topic, 80),
			})
		}
		return outline
	}

	return map[string]string{}
}
