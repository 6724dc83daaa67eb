// internal/models/content_test.go
package models

import (
	"strings"
	"testing"
)

func validOutline() *Outline {
	return &Outline{
		Title:     "光合作用入门",
		MainTopic: "photosynthesis",
		LearningObjectives: []string{
			"Explain how plants convert light energy into chemical energy.",
			"Describe the light-dependent reactions inside chloroplasts.",
			"Trace carbon through the Calvin cycle to glucose.",
		},
		Subtopics: []OutlineSection{
			{Title: "Light reactions", Summary: strings.Repeat("light reaction summary ", 3)},
			{Title: "Calvin cycle", Summary: strings.Repeat("calvin cycle summary ", 3)},
		},
		Summary: strings.Repeat("A complete overview of photosynthesis. ", 3),
	}
}

func TestOutlineValidate(t *testing.T) {
	outline := validOutline()
	if violations := outline.Validate(); len(violations) != 0 {
		t.Fatalf("合法大纲不应有结构违规，实际: %v", violations)
	}

	outline.MainTopic = ""
	outline.Subtopics[1].Title = " "
	violations := outline.Validate()
	if len(violations) != 2 {
		t.Fatalf("期望2条违规，实际%d条: %v", len(violations), violations)
	}
	if violations[0].Field != "main_topic" {
		t.Errorf("第一条违规字段应为main_topic，实际: %s", violations[0].Field)
	}
	if violations[1].Field != "subtopics[1].title" {
		t.Errorf("第二条违规字段应为subtopics[1].title，实际: %s", violations[1].Field)
	}
}

func TestOutlineQualityIssues(t *testing.T) {
	outline := validOutline()
	if issues := outline.QualityIssues(); len(issues) != 0 {
		t.Fatalf("合法大纲不应有质量问题，实际: %v", issues)
	}

	// 目标数量低于下限
	outline.LearningObjectives = outline.LearningObjectives[:2]
	// 摘要过短
	outline.Summary = "too short"
	issues := outline.QualityIssues()
	if len(issues) != 2 {
		t.Fatalf("期望2条质量问题，实际%d条: %v", len(issues), issues)
	}
}

func TestPodcastScriptBounds(t *testing.T) {
	script := &PodcastScript{
		Title:        "Episode 1",
		Introduction: strings.Repeat("intro ", 30),  // 180
		MainContent:  strings.Repeat("body ", 200),  // 1000
		Conclusion:   strings.Repeat("recap ", 25),  // 150
	}
	if violations := script.Validate(); len(violations) != 0 {
		t.Fatalf("合法脚本不应有结构违规: %v", violations)
	}
	if issues := script.QualityIssues(); len(issues) != 0 {
		t.Fatalf("合法脚本不应有质量问题: %v", issues)
	}

	script.MainContent = "too short"
	issues := script.QualityIssues()
	if len(issues) == 0 {
		t.Fatal("主体内容过短时应报告质量问题")
	}
}

func TestRequireFieldsOrderStable(t *testing.T) {
	script := &PodcastScript{}
	violations := script.Validate()
	expected := []string{"title", "introduction", "main_content", "conclusion"}
	if len(violations) != len(expected) {
		t.Fatalf("期望%d条违规，实际%d条", len(expected), len(violations))
	}
	for i, field := range expected {
		if violations[i].Field != field {
			t.Errorf("第%d条违规字段应为%s，实际: %s", i, field, violations[i].Field)
		}
	}
}

func TestNewPieceForType(t *testing.T) {
	for _, ct := range append([]ContentType{ContentTypeOutline}, DerivativeTypes...) {
		piece, err := NewPieceForType(ct)
		if err != nil {
			t.Fatalf("构造%s失败: %v", ct, err)
		}
		if piece.ContentType() != ct {
			t.Errorf("内容类型不匹配: 期望%s，实际%s", ct, piece.ContentType())
		}
	}

	if _, err := NewPieceForType("nonsense"); err == nil {
		t.Fatal("未知内容类型应返回错误")
	}
}

func TestBundleSetAndPiece(t *testing.T) {
	bundle := &GeneratedContentBundle{}
	bundle.SetPiece(validOutline())
	bundle.SetPiece(&FAQCollection{Title: "FAQ"})

	if bundle.Outline == nil {
		t.Fatal("大纲应已写入内容包")
	}
	if bundle.Piece(ContentTypeFAQCollection) == nil {
		t.Fatal("按类型读取FAQ失败")
	}
	if bundle.Piece(ContentTypeFlashcards) != nil {
		t.Fatal("未写入的内容类型应返回nil")
	}

	derivatives := bundle.PresentDerivatives()
	if len(derivatives) != 1 {
		t.Fatalf("期望1个派生内容，实际%d个", len(derivatives))
	}
}

func TestTokenUsageAdd(t *testing.T) {
	var usage TokenUsage
	usage.Add(TokenUsage{InputTokens: 100, OutputTokens: 50})
	usage.Add(TokenUsage{InputTokens: 30, OutputTokens: 20})

	if usage.InputTokens != 130 || usage.OutputTokens != 70 {
		t.Fatalf("用量累加错误: %+v", usage)
	}
	if usage.Total() != 200 {
		t.Fatalf("总量应为200，实际%d", usage.Total())
	}
}

func TestOutlineTopicTerms(t *testing.T) {
	outline := validOutline()
	terms := outline.TopicTerms()
	if len(terms) != 3 {
		t.Fatalf("期望3个主题词，实际%d个: %v", len(terms), terms)
	}
	if terms[0] != "photosynthesis" {
		t.Errorf("首个主题词应为主话题，实际: %s", terms[0])
	}
}
