// internal/models/bundle.go
package models

import (
	"time"
)

// GenerationRequest 一次生成运行的输入参数
type GenerationRequest struct {
	SyllabusText   string `json:"syllabus_text"`
	TargetFormat   string `json:"target_format"`
	TargetDuration int    `json:"target_duration"` // 目标时长（分钟），用于播客脚本
	TargetPages    int    `json:"target_pages"`    // 目标页数，用于阅读材料
}

// TokenUsage 令牌用量统计，跨重试与并发扇出单调累加，从不重置
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add 累加另一份用量
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
}

// Total 返回输入输出令牌总和
func (t TokenUsage) Total() int {
	return t.InputTokens + t.OutputTokens
}

// GeneratedContentBundle 一次运行产出的内容包
// 每个字段由至多一个生产者写入，写入后不再修改；
// 大纲在任何派生内容开始生成之前提交
type GeneratedContentBundle struct {
	Outline          *Outline               `json:"outline,omitempty"`
	PodcastScript    *PodcastScript         `json:"podcast_script,omitempty"`
	StudyGuide       *StudyGuide            `json:"study_guide,omitempty"`
	OnePager         *OnePager              `json:"one_pager,omitempty"`
	DetailedReading  *DetailedReading       `json:"detailed_reading,omitempty"`
	FAQCollection    *FAQCollection         `json:"faq_collection,omitempty"`
	Flashcards       *Flashcards            `json:"flashcards,omitempty"`
	ReadingQuestions *ReadingGuideQuestions `json:"reading_guide_questions,omitempty"`
}

// SetPiece 按类型写入内容件
func (b *GeneratedContentBundle) SetPiece(piece ContentPiece) {
	if piece == nil {
		return
	}
	switch p := piece.(type) {
	case *Outline:
		b.Outline = p
	case *PodcastScript:
		b.PodcastScript = p
	case *StudyGuide:
		b.StudyGuide = p
	case *OnePager:
		b.OnePager = p
	case *DetailedReading:
		b.DetailedReading = p
	case *FAQCollection:
		b.FAQCollection = p
	case *Flashcards:
		b.Flashcards = p
	case *ReadingGuideQuestions:
		b.ReadingQuestions = p
	}
}

// Piece 按类型读取内容件，缺失时返回nil
func (b *GeneratedContentBundle) Piece(ct ContentType) ContentPiece {
	switch ct {
	case ContentTypeOutline:
		if b.Outline != nil {
			return b.Outline
		}
	case ContentTypePodcastScript:
		if b.PodcastScript != nil {
			return b.PodcastScript
		}
	case ContentTypeStudyGuide:
		if b.StudyGuide != nil {
			return b.StudyGuide
		}
	case ContentTypeOnePager:
		if b.OnePager != nil {
			return b.OnePager
		}
	case ContentTypeDetailedReading:
		if b.DetailedReading != nil {
			return b.DetailedReading
		}
	case ContentTypeFAQCollection:
		if b.FAQCollection != nil {
			return b.FAQCollection
		}
	case ContentTypeFlashcards:
		if b.Flashcards != nil {
			return b.Flashcards
		}
	case ContentTypeReadingQuestions:
		if b.ReadingQuestions != nil {
			return b.ReadingQuestions
		}
	}
	return nil
}

// PresentDerivatives 返回已生成的派生内容件，按注册表顺序
func (b *GeneratedContentBundle) PresentDerivatives() []ContentPiece {
	var pieces []ContentPiece
	for _, ct := range DerivativeTypes {
		if piece := b.Piece(ct); piece != nil {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

// GenerationMetadata 一次运行的元数据
type GenerationMetadata struct {
	RunID        string     `json:"run_id"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ElapsedMS    int64      `json:"elapsed_ms"`
	TokenUsage   TokenUsage `json:"token_usage"`
	CacheHit     bool       `json:"cache_hit"`
	InputQuality float64    `json:"input_quality"`
}

// GenerationResult 顶层generate调用的完整返回值
type GenerationResult struct {
	Bundle   *GeneratedContentBundle        `json:"bundle"`
	Metadata *GenerationMetadata            `json:"metadata"`
	Quality  *ComprehensiveValidationReport `json:"quality"`
}
