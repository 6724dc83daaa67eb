// internal/services/prompts.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Corphon/CourseForgeMCP/internal/models"
)

// structuredSystemPrompt 所有结构化生成调用共用的系统提示
const structuredSystemPrompt = `You are an expert instructional designer who produces high-quality educational materials.
Return your response in valid JSON format, following the provided output schema exactly, without adding explanations or preambles.`

// BuildOutlinePrompt 根据教学大纲文本构建大纲生成提示词
func BuildOutlinePrompt(req models.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("Create a structured course outline for the following topic or syllabus:\n\n")
	b.WriteString(req.SyllabusText)
	b.WriteString("\n\n")
	if req.TargetFormat != "" {
		fmt.Fprintf(&b, "Target delivery format: %s\n", req.TargetFormat)
	}
	if req.TargetDuration > 0 {
		fmt.Fprintf(&b, "Target duration: %d minutes\n", req.TargetDuration)
	}
	if req.TargetPages > 0 {
		fmt.Fprintf(&b, "Target length: %d pages\n", req.TargetPages)
	}
	b.WriteString(`
Return a JSON object with this schema:
{
  "title": "course title",
  "main_topic": "the central topic",
  "learning_objectives": ["3-10 objectives, each a full sentence of at least 15 characters"],
  "subtopics": [
    {"title": "subtopic title", "summary": "at least 30 characters", "key_points": ["optional key points"]}
  ],
  "summary": "50-2000 character overview of the course"
}
Include 2-12 subtopics covering the topic comprehensively.`)
	return b.String()
}

// derivativeSchemas 每种派生内容的输出schema说明
var derivativeSchemas = map[models.ContentType]string{
	models.ContentTypePodcastScript: `{
  "title": "episode title",
  "introduction": "100-2000 characters hooking the listener",
  "main_content": "800-10000 characters covering every subtopic conversationally",
  "conclusion": "100-1000 characters recapping key points"
}`,
	models.ContentTypeStudyGuide: `{
  "title": "study guide title",
  "overview": "100-2000 character overview",
  "sections": [{"heading": "...", "content": "at least 100 characters"}],
  "key_terms": [{"term": "...", "definition": "at least 20 characters"}],
  "review_questions": ["3-15 questions"]
}
Include 2-10 sections and 5-20 key terms.`,
	models.ContentTypeOnePager: `{
  "title": "one-pager title",
  "summary": "200-2500 character condensed summary",
  "key_takeaways": ["3-8 takeaways, each at least 20 characters"]
}`,
	models.ContentTypeDetailedReading: `{
  "title": "reading title",
  "introduction": "100-2000 characters",
  "sections": [{"heading": "...", "body": "at least 200 characters"}],
  "conclusion": "100-2000 characters"
}
Include 3-12 sections with combined body length of 1500-20000 characters.`,
	models.ContentTypeFAQCollection: `{
  "title": "FAQ title",
  "items": [{"question": "at least 10 characters", "answer": "at least 20 characters"}]
}
Include 5-15 question/answer pairs covering common points of confusion.`,
	models.ContentTypeFlashcards: `{
  "title": "deck title",
  "cards": [{"front": "5-200 character prompt", "back": "10-500 character answer"}]
}
Include 8-25 cards covering the key facts and terms.`,
	models.ContentTypeReadingQuestions: `{
  "title": "reading guide title",
  "questions": [{"question": "at least 15 characters", "purpose": "why this question matters, at least 10 characters"}]
}
Include 5-12 questions that guide active reading.`,
}

// derivativeInstructions 每种派生内容的生成指令
var derivativeInstructions = map[models.ContentType]string{
	models.ContentTypePodcastScript:    "Write an engaging podcast episode script based on the course outline below. Cover every subtopic in a conversational tone.",
	models.ContentTypeStudyGuide:       "Write a thorough study guide based on the course outline below. Organize it by subtopic with key terms and review questions.",
	models.ContentTypeOnePager:         "Write a one-page summary of the course outline below, distilling it to the essential takeaways.",
	models.ContentTypeDetailedReading:  "Write a detailed reading on the course outline below, developing each subtopic into a full prose section.",
	models.ContentTypeFAQCollection:    "Write a set of frequently asked questions and answers for the course outline below, anticipating learner confusion.",
	models.ContentTypeFlashcards:       "Write a flashcard deck for the course outline below, turning key facts and terms into front/back card pairs.",
	models.ContentTypeReadingQuestions: "Write reading guide questions for the course outline below, each with the purpose it serves for the reader.",
}

// BuildDerivativePrompt 根据大纲构建派生内容生成提示词
func BuildDerivativePrompt(ct models.ContentType, outline *models.Outline, req models.GenerationRequest) string {
	outlineJSON, _ := json.MarshalIndent(outline, "", "  ")

	var b strings.Builder
	b.WriteString(derivativeInstructions[ct])
	b.WriteString("\n\n")
	if ct == models.ContentTypePodcastScript && req.TargetDuration > 0 {
		fmt.Fprintf(&b, "Target episode duration: %d minutes.\n\n", req.TargetDuration)
	}
	if ct == models.ContentTypeDetailedReading && req.TargetPages > 0 {
		fmt.Fprintf(&b, "Target length: about %d pages.\n\n", req.TargetPages)
	}
	b.WriteString("Course outline:\n")
	b.Write(outlineJSON)
	b.WriteString("\n\nReturn a JSON object with this schema:\n")
	b.WriteString(derivativeSchemas[ct])
	return b.String()
}

// jsonFormatReminder JSON解析失败后追加的格式提醒块
const jsonFormatReminder = `

REMINDER: The previous response could not be parsed as JSON.
Return ONLY a valid JSON object. Do not wrap it in markdown code fences.
Do not add any text before or after the JSON object.`

// buildSchemaReminder 结构校验失败后追加的提醒块，枚举违规字段
func buildSchemaReminder(violations []models.FieldViolation) string {
	var b strings.Builder
	b.WriteString("\n\nREMINDER: The previous response was missing required fields:\n")
	for _, v := range violations {
		fmt.Fprintf(&b, "- %s: %s\n", v.Field, v.Reason)
	}
	b.WriteString("Include every required field with meaningful content.")
	return b.String()
}

// buildQualityReminder 质量检查失败后追加的提醒块，列出具体的长度/数量要求
func buildQualityReminder(issues []string) string {
	var b strings.Builder
	b.WriteString("\n\nREMINDER: The previous response did not meet the length and count requirements:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("Regenerate the content satisfying every requirement above.")
	return b.String()
}
