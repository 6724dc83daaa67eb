// internal/models/content.go
package models

import (
	"fmt"
	"strings"
)

// ContentType 内容类型标签，用于按类型分发校验规则与提示词
type ContentType string

const (
	ContentTypeOutline          ContentType = "outline"
	ContentTypePodcastScript    ContentType = "podcast_script"
	ContentTypeStudyGuide       ContentType = "study_guide"
	ContentTypeOnePager         ContentType = "one_pager"
	ContentTypeDetailedReading  ContentType = "detailed_reading"
	ContentTypeFAQCollection    ContentType = "faq_collection"
	ContentTypeFlashcards       ContentType = "flashcards"
	ContentTypeReadingQuestions ContentType = "reading_guide_questions"
)

// DerivativeTypes 固定的7种派生内容类型注册表，生成顺序即注册顺序
var DerivativeTypes = []ContentType{
	ContentTypePodcastScript,
	ContentTypeStudyGuide,
	ContentTypeOnePager,
	ContentTypeDetailedReading,
	ContentTypeFAQCollection,
	ContentTypeFlashcards,
	ContentTypeReadingQuestions,
}

// FieldViolation 结构校验失败时携带的字段/原因对
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ContentPiece 所有内容件的统一接口
type ContentPiece interface {
	// ContentType 返回内容类型标签
	ContentType() ContentType

	// Validate 结构级校验：必填字段是否齐全
	Validate() []FieldViolation

	// QualityIssues 按固定数值窗口检查字段长度与条目数
	QualityIssues() []string

	// PlainText 拼接全部文本字段，供一致性与连贯性评分使用
	PlainText() string
}

// NewPieceForType 按内容类型构造空白内容件，JSON解析的目标对象
func NewPieceForType(ct ContentType) (ContentPiece, error) {
	switch ct {
	case ContentTypeOutline:
		return &Outline{}, nil
	case ContentTypePodcastScript:
		return &PodcastScript{}, nil
	case ContentTypeStudyGuide:
		return &StudyGuide{}, nil
	case ContentTypeOnePager:
		return &OnePager{}, nil
	case ContentTypeDetailedReading:
		return &DetailedReading{}, nil
	case ContentTypeFAQCollection:
		return &FAQCollection{}, nil
	case ContentTypeFlashcards:
		return &Flashcards{}, nil
	case ContentTypeReadingQuestions:
		return &ReadingGuideQuestions{}, nil
	default:
		return nil, fmt.Errorf("未知的内容类型: %s", ct)
	}
}

// ---------------------------------------------------------------
// Outline 大纲：所有派生内容的根依赖
type Outline struct {
	Title              string           `json:"title"`
	MainTopic          string           `json:"main_topic"`
	LearningObjectives []string         `json:"learning_objectives"`
	Subtopics          []OutlineSection `json:"subtopics"`
	Summary            string           `json:"summary"`
}

// OutlineSection 大纲中的子主题
type OutlineSection struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points,omitempty"`
}

func (o *Outline) ContentType() ContentType { return ContentTypeOutline }

func (o *Outline) Validate() []FieldViolation {
	var violations []FieldViolation
	if strings.TrimSpace(o.Title) == "" {
		violations = append(violations, FieldViolation{"title", "缺少标题"})
	}
	if strings.TrimSpace(o.MainTopic) == "" {
		violations = append(violations, FieldViolation{"main_topic", "缺少主题"})
	}
	if len(o.LearningObjectives) == 0 {
		violations = append(violations, FieldViolation{"learning_objectives", "缺少学习目标"})
	}
	if len(o.Subtopics) == 0 {
		violations = append(violations, FieldViolation{"subtopics", "缺少子主题"})
	}
	for i, sub := range o.Subtopics {
		if strings.TrimSpace(sub.Title) == "" {
			violations = append(violations, FieldViolation{
				fmt.Sprintf("subtopics[%d].title", i), "子主题缺少标题"})
		}
	}
	return violations
}

func (o *Outline) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkCount("learning_objectives", len(o.LearningObjectives), 3, 10)...)
	for i, obj := range o.LearningObjectives {
		if len(obj) < 15 {
			issues = append(issues, fmt.Sprintf("learning_objectives[%d]长度%d，至少需要15字符", i, len(obj)))
		}
	}
	issues = append(issues, checkCount("subtopics", len(o.Subtopics), 2, 12)...)
	for i, sub := range o.Subtopics {
		if len(sub.Summary) < 30 {
			issues = append(issues, fmt.Sprintf("subtopics[%d].summary长度%d，至少需要30字符", i, len(sub.Summary)))
		}
	}
	issues = append(issues, checkLength("summary", len(o.Summary), 50, 2000)...)
	return issues
}

func (o *Outline) PlainText() string {
	var b strings.Builder
	b.WriteString(o.Title)
	b.WriteString("\n")
	b.WriteString(o.MainTopic)
	b.WriteString("\n")
	for _, obj := range o.LearningObjectives {
		b.WriteString(obj)
		b.WriteString("\n")
	}
	for _, sub := range o.Subtopics {
		b.WriteString(sub.Title)
		b.WriteString("\n")
		b.WriteString(sub.Summary)
		b.WriteString("\n")
		for _, kp := range sub.KeyPoints {
			b.WriteString(kp)
			b.WriteString("\n")
		}
	}
	b.WriteString(o.Summary)
	return b.String()
}

// TopicTerms 提取主题词：主话题与各子主题标题，供连贯性评分使用
func (o *Outline) TopicTerms() []string {
	terms := make([]string, 0, len(o.Subtopics)+1)
	if strings.TrimSpace(o.MainTopic) != "" {
		terms = append(terms, o.MainTopic)
	}
	for _, sub := range o.Subtopics {
		if strings.TrimSpace(sub.Title) != "" {
			terms = append(terms, sub.Title)
		}
	}
	return terms
}

// ---------------------------------------------------------------
// PodcastScript 播客脚本
type PodcastScript struct {
	Title        string `json:"title"`
	Introduction string `json:"introduction"`
	MainContent  string `json:"main_content"`
	Conclusion   string `json:"conclusion"`
}

func (p *PodcastScript) ContentType() ContentType { return ContentTypePodcastScript }

func (p *PodcastScript) Validate() []FieldViolation {
	return requireFields([]requiredField{
		{"title", p.Title},
		{"introduction", p.Introduction},
		{"main_content", p.MainContent},
		{"conclusion", p.Conclusion},
	})
}

func (p *PodcastScript) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkLength("introduction", len(p.Introduction), 100, 2000)...)
	issues = append(issues, checkLength("main_content", len(p.MainContent), 800, 10000)...)
	issues = append(issues, checkLength("conclusion", len(p.Conclusion), 100, 1000)...)
	total := len(p.Introduction) + len(p.MainContent) + len(p.Conclusion)
	issues = append(issues, checkLength("total", total, 1000, 12000)...)
	return issues
}

func (p *PodcastScript) PlainText() string {
	return strings.Join([]string{p.Title, p.Introduction, p.MainContent, p.Conclusion}, "\n")
}

// ---------------------------------------------------------------
// StudyGuide 学习指南
type StudyGuide struct {
	Title           string              `json:"title"`
	Overview        string              `json:"overview"`
	Sections        []StudyGuideSection `json:"sections"`
	KeyTerms        []KeyTerm           `json:"key_terms"`
	ReviewQuestions []string            `json:"review_questions"`
}

type StudyGuideSection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

type KeyTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

func (g *StudyGuide) ContentType() ContentType { return ContentTypeStudyGuide }

func (g *StudyGuide) Validate() []FieldViolation {
	violations := requireFields([]requiredField{
		{"title", g.Title},
		{"overview", g.Overview},
	})
	if len(g.Sections) == 0 {
		violations = append(violations, FieldViolation{"sections", "缺少章节"})
	}
	if len(g.KeyTerms) == 0 {
		violations = append(violations, FieldViolation{"key_terms", "缺少关键术语"})
	}
	return violations
}

func (g *StudyGuide) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkLength("overview", len(g.Overview), 100, 2000)...)
	issues = append(issues, checkCount("sections", len(g.Sections), 2, 10)...)
	for i, sec := range g.Sections {
		if len(sec.Content) < 100 {
			issues = append(issues, fmt.Sprintf("sections[%d].content长度%d，至少需要100字符", i, len(sec.Content)))
		}
	}
	issues = append(issues, checkCount("key_terms", len(g.KeyTerms), 5, 20)...)
	issues = append(issues, checkCount("review_questions", len(g.ReviewQuestions), 3, 15)...)
	return issues
}

func (g *StudyGuide) PlainText() string {
	var b strings.Builder
	b.WriteString(g.Title)
	b.WriteString("\n")
	b.WriteString(g.Overview)
	b.WriteString("\n")
	for _, sec := range g.Sections {
		b.WriteString(sec.Heading)
		b.WriteString("\n")
		b.WriteString(sec.Content)
		b.WriteString("\n")
	}
	for _, kt := range g.KeyTerms {
		b.WriteString(kt.Term)
		b.WriteString(": ")
		b.WriteString(kt.Definition)
		b.WriteString("\n")
	}
	for _, q := range g.ReviewQuestions {
		b.WriteString(q)
		b.WriteString("\n")
	}
	return b.String()
}

// ---------------------------------------------------------------
// OnePager 单页摘要
type OnePager struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	KeyTakeaways []string `json:"key_takeaways"`
}

func (o *OnePager) ContentType() ContentType { return ContentTypeOnePager }

func (o *OnePager) Validate() []FieldViolation {
	violations := requireFields([]requiredField{
		{"title", o.Title},
		{"summary", o.Summary},
	})
	if len(o.KeyTakeaways) == 0 {
		violations = append(violations, FieldViolation{"key_takeaways", "缺少要点"})
	}
	return violations
}

func (o *OnePager) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkLength("summary", len(o.Summary), 200, 2500)...)
	issues = append(issues, checkCount("key_takeaways", len(o.KeyTakeaways), 3, 8)...)
	for i, kt := range o.KeyTakeaways {
		if len(kt) < 20 {
			issues = append(issues, fmt.Sprintf("key_takeaways[%d]长度%d，至少需要20字符", i, len(kt)))
		}
	}
	return issues
}

func (o *OnePager) PlainText() string {
	return o.Title + "\n" + o.Summary + "\n" + strings.Join(o.KeyTakeaways, "\n")
}

// ---------------------------------------------------------------
// DetailedReading 详细阅读材料
type DetailedReading struct {
	Title        string           `json:"title"`
	Introduction string           `json:"introduction"`
	Sections     []ReadingSection `json:"sections"`
	Conclusion   string           `json:"conclusion"`
}

type ReadingSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

func (d *DetailedReading) ContentType() ContentType { return ContentTypeDetailedReading }

func (d *DetailedReading) Validate() []FieldViolation {
	violations := requireFields([]requiredField{
		{"title", d.Title},
		{"introduction", d.Introduction},
		{"conclusion", d.Conclusion},
	})
	if len(d.Sections) == 0 {
		violations = append(violations, FieldViolation{"sections", "缺少正文章节"})
	}
	return violations
}

func (d *DetailedReading) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkLength("introduction", len(d.Introduction), 100, 2000)...)
	issues = append(issues, checkCount("sections", len(d.Sections), 3, 12)...)
	totalBody := 0
	for i, sec := range d.Sections {
		totalBody += len(sec.Body)
		if len(sec.Body) < 200 {
			issues = append(issues, fmt.Sprintf("sections[%d].body长度%d，至少需要200字符", i, len(sec.Body)))
		}
	}
	issues = append(issues, checkLength("sections_total", totalBody, 1500, 20000)...)
	issues = append(issues, checkLength("conclusion", len(d.Conclusion), 100, 2000)...)
	return issues
}

func (d *DetailedReading) PlainText() string {
	var b strings.Builder
	b.WriteString(d.Title)
	b.WriteString("\n")
	b.WriteString(d.Introduction)
	b.WriteString("\n")
	for _, sec := range d.Sections {
		b.WriteString(sec.Heading)
		b.WriteString("\n")
		b.WriteString(sec.Body)
		b.WriteString("\n")
	}
	b.WriteString(d.Conclusion)
	return b.String()
}

// ---------------------------------------------------------------
// FAQCollection 常见问题集
type FAQCollection struct {
	Title string    `json:"title"`
	Items []FAQItem `json:"items"`
}

type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (f *FAQCollection) ContentType() ContentType { return ContentTypeFAQCollection }

func (f *FAQCollection) Validate() []FieldViolation {
	violations := requireFields([]requiredField{{"title", f.Title}})
	if len(f.Items) == 0 {
		violations = append(violations, FieldViolation{"items", "缺少问答条目"})
	}
	for i, item := range f.Items {
		if strings.TrimSpace(item.Question) == "" {
			violations = append(violations, FieldViolation{
				fmt.Sprintf("items[%d].question", i), "问题为空"})
		}
		if strings.TrimSpace(item.Answer) == "" {
			violations = append(violations, FieldViolation{
				fmt.Sprintf("items[%d].answer", i), "回答为空"})
		}
	}
	return violations
}

func (f *FAQCollection) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkCount("items", len(f.Items), 5, 15)...)
	for i, item := range f.Items {
		if len(item.Question) < 10 {
			issues = append(issues, fmt.Sprintf("items[%d].question长度%d，至少需要10字符", i, len(item.Question)))
		}
		if len(item.Answer) < 20 {
			issues = append(issues, fmt.Sprintf("items[%d].answer长度%d，至少需要20字符", i, len(item.Answer)))
		}
	}
	return issues
}

func (f *FAQCollection) PlainText() string {
	var b strings.Builder
	b.WriteString(f.Title)
	b.WriteString("\n")
	for _, item := range f.Items {
		b.WriteString(item.Question)
		b.WriteString("\n")
		b.WriteString(item.Answer)
		b.WriteString("\n")
	}
	return b.String()
}

// ---------------------------------------------------------------
// Flashcards 记忆卡片
type Flashcards struct {
	Title string      `json:"title"`
	Cards []Flashcard `json:"cards"`
}

type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

func (f *Flashcards) ContentType() ContentType { return ContentTypeFlashcards }

func (f *Flashcards) Validate() []FieldViolation {
	violations := requireFields([]requiredField{{"title", f.Title}})
	if len(f.Cards) == 0 {
		violations = append(violations, FieldViolation{"cards", "缺少卡片"})
	}
	return violations
}

func (f *Flashcards) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkCount("cards", len(f.Cards), 8, 25)...)
	for i, card := range f.Cards {
		issues = append(issues, prefixIssues(fmt.Sprintf("cards[%d].front", i),
			checkLength("", len(card.Front), 5, 200))...)
		issues = append(issues, prefixIssues(fmt.Sprintf("cards[%d].back", i),
			checkLength("", len(card.Back), 10, 500))...)
	}
	return issues
}

func (f *Flashcards) PlainText() string {
	var b strings.Builder
	b.WriteString(f.Title)
	b.WriteString("\n")
	for _, card := range f.Cards {
		b.WriteString(card.Front)
		b.WriteString("\n")
		b.WriteString(card.Back)
		b.WriteString("\n")
	}
	return b.String()
}

// ---------------------------------------------------------------
// ReadingGuideQuestions 阅读引导问题
type ReadingGuideQuestions struct {
	Title     string          `json:"title"`
	Questions []GuideQuestion `json:"questions"`
}

type GuideQuestion struct {
	Question string `json:"question"`
	Purpose  string `json:"purpose"`
}

func (r *ReadingGuideQuestions) ContentType() ContentType { return ContentTypeReadingQuestions }

func (r *ReadingGuideQuestions) Validate() []FieldViolation {
	violations := requireFields([]requiredField{{"title", r.Title}})
	if len(r.Questions) == 0 {
		violations = append(violations, FieldViolation{"questions", "缺少问题"})
	}
	return violations
}

func (r *ReadingGuideQuestions) QualityIssues() []string {
	var issues []string
	issues = append(issues, checkCount("questions", len(r.Questions), 5, 12)...)
	for i, q := range r.Questions {
		if len(q.Question) < 15 {
			issues = append(issues, fmt.Sprintf("questions[%d].question长度%d，至少需要15字符", i, len(q.Question)))
		}
		if len(q.Purpose) < 10 {
			issues = append(issues, fmt.Sprintf("questions[%d].purpose长度%d，至少需要10字符", i, len(q.Purpose)))
		}
	}
	return issues
}

func (r *ReadingGuideQuestions) PlainText() string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\n")
	for _, q := range r.Questions {
		b.WriteString(q.Question)
		b.WriteString("\n")
		b.WriteString(q.Purpose)
		b.WriteString("\n")
	}
	return b.String()
}

// ---------------------------------------------------------------
// 校验辅助函数

type requiredField struct {
	name  string
	value string
}

// requireFields 按声明顺序检查必填字段，保证违规列表顺序稳定
func requireFields(fields []requiredField) []FieldViolation {
	var violations []FieldViolation
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			violations = append(violations, FieldViolation{f.name, "字段为空"})
		}
	}
	return violations
}

func checkLength(field string, length, min, max int) []string {
	if length < min {
		return []string{fmt.Sprintf("%s长度%d，低于下限%d", field, length, min)}
	}
	if length > max {
		return []string{fmt.Sprintf("%s长度%d，超过上限%d", field, length, max)}
	}
	return nil
}

func checkCount(field string, count, min, max int) []string {
	if count < min {
		return []string{fmt.Sprintf("%s条目数%d，低于下限%d", field, count, min)}
	}
	if count > max {
		return []string{fmt.Sprintf("%s条目数%d，超过上限%d", field, count, max)}
	}
	return nil
}

func prefixIssues(prefix string, issues []string) []string {
	if len(issues) == 0 {
		return nil
	}
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, prefix+issue)
	}
	return out
}
