// internal/services/validator_service.go
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Corphon/CourseForgeMCP/internal/models"
)

// 各阶段族在总分中的权重，缺席的族不参与并按剩余权重归一化
const (
	weightStructural   = 0.3
	weightCompleteness = 0.2
	weightCoherence    = 0.3
	weightEducational  = 0.2
)

// coherencePassThreshold 连贯性阶段的通过线
const coherencePassThreshold = 0.7

// ValidatorService 多阶段加权校验器：
// 对内容包逐件执行结构、完整性、连贯性、教育价值四族检查并汇总
type ValidatorService struct {
	consistency *ConsistencyService
}

// NewValidatorService 创建校验服务
func NewValidatorService(consistency *ConsistencyService) *ValidatorService {
	if consistency == nil {
		consistency = NewConsistencyService()
	}
	return &ValidatorService{consistency: consistency}
}

// ValidateBundle 对内容包执行全部校验阶段并汇总报告
// 大纲缺失时直接短路：总分0、不通过，不再运行任何阶段
func (v *ValidatorService) ValidateBundle(bundle *models.GeneratedContentBundle, overallThreshold float64) *models.ComprehensiveValidationReport {
	report := &models.ComprehensiveValidationReport{}

	if bundle == nil || bundle.Outline == nil {
		report.OverallPassed = false
		report.OverallScore = 0
		report.ActionableFeedback = []string{"缺少大纲，无法评估内容包"}
		return report
	}

	pieces := append([]models.ContentPiece{bundle.Outline}, bundle.PresentDerivatives()...)

	var weightedSum, weightTotal float64
	addFamily := func(weight float64, results []models.ValidationStageResult) {
		if len(results) == 0 {
			return
		}
		sum := 0.0
		for _, r := range results {
			sum += r.Score
		}
		weightedSum += weight * sum / float64(len(results))
		weightTotal += weight
		report.StageResults = append(report.StageResults, results...)
	}

	addFamily(weightStructural, v.structuralStages(pieces))
	addFamily(weightCompleteness, v.completenessStages(pieces))
	addFamily(weightCoherence, v.coherenceStages(bundle))
	addFamily(weightEducational, v.educationalStages(pieces))

	if weightTotal > 0 {
		report.OverallScore = weightedSum / weightTotal
	}
	report.OverallPassed = report.OverallScore >= overallThreshold

	report.ActionableFeedback = collectFeedback(report.StageResults)
	if !report.OverallPassed {
		report.RefinementPrompts = buildRefinementPrompt(report.StageResults)
	}
	return report
}

// structuralStages 结构阶段：必填字段齐全性，每件一个阶段结果
func (v *ValidatorService) structuralStages(pieces []models.ContentPiece) []models.ValidationStageResult {
	var results []models.ValidationStageResult
	for _, piece := range pieces {
		violations := piece.Validate()
		result := models.ValidationStageResult{
			StageName: "structural:" + string(piece.ContentType()),
			Passed:    len(violations) == 0,
			Score:     1.0,
		}
		if len(violations) > 0 {
			// 每条违规扣0.2分，下限为0
			result.Score = clamp01(1.0 - 0.2*float64(len(violations)))
			for _, viol := range violations {
				result.Issues = append(result.Issues, viol.Field+": "+viol.Reason)
			}
			result.ImprovementSuggestion = "补全全部必填字段"
		}
		results = append(results, result)
	}
	return results
}

// completenessStages 完整性阶段：长度与数量窗口，二值评分
// 全部满足记1.0，任一不满足记0.5
func (v *ValidatorService) completenessStages(pieces []models.ContentPiece) []models.ValidationStageResult {
	var results []models.ValidationStageResult
	for _, piece := range pieces {
		issues := piece.QualityIssues()
		result := models.ValidationStageResult{
			StageName: "completeness:" + string(piece.ContentType()),
			Passed:    len(issues) == 0,
			Score:     1.0,
		}
		if len(issues) > 0 {
			result.Score = 0.5
			result.Issues = issues
			result.ImprovementSuggestion = "调整内容长度与条目数至要求范围"
		}
		results = append(results, result)
	}
	return results
}

// coherenceStages 连贯性阶段：每件派生内容对大纲的主题覆盖与词面重叠，
// 外加一个整包阶段比对合并文本与大纲并检查跨内容矛盾
func (v *ValidatorService) coherenceStages(bundle *models.GeneratedContentBundle) []models.ValidationStageResult {
	var results []models.ValidationStageResult
	outline := bundle.Outline
	topicTerms := outline.TopicTerms()
	outlineText := outline.PlainText()

	for _, piece := range bundle.PresentDerivatives() {
		text := piece.PlainText()
		coverage := topicCoverage(topicTerms, text)
		overlap := wordSetOverlap(outlineText, text)
		score := clamp01(0.6*coverage + 0.4*overlap)

		result := models.ValidationStageResult{
			StageName: "coherence:" + string(piece.ContentType()),
			Passed:    score >= coherencePassThreshold,
			Score:     score,
		}
		if !result.Passed {
			result.Issues = append(result.Issues,
				fmt.Sprintf("对大纲的主题覆盖不足（覆盖率%.2f，词面重叠%.2f）", coverage, overlap))
			result.ImprovementSuggestion = "确保内容覆盖大纲中的全部子主题"
		}
		results = append(results, result)
	}

	results = append(results, v.bundleCoherenceStage(bundle))
	return results
}

// bundleCoherenceStage 整包连贯性：合并全部派生内容与大纲比对，再检查跨内容矛盾
func (v *ValidatorService) bundleCoherenceStage(bundle *models.GeneratedContentBundle) models.ValidationStageResult {
	result := models.ValidationStageResult{StageName: "coherence:bundle", Score: 1.0}

	pieces := bundle.PresentDerivatives()
	var facts []SourcedFact
	var combined strings.Builder
	for _, piece := range pieces {
		text := piece.PlainText()
		combined.WriteString(text)
		combined.WriteString("\n")
		source := string(piece.ContentType())
		for _, sentence := range splitSentences(text) {
			facts = append(facts, SourcedFact{Source: source, Text: sentence})
		}
	}

	// 无派生内容时不施加合并文本的重叠要求
	if len(pieces) > 0 {
		outline := bundle.Outline
		coverage := topicCoverage(outline.TopicTerms(), combined.String())
		overlap := wordSetOverlap(outline.PlainText(), combined.String())
		result.Score = clamp01(0.6*coverage + 0.4*overlap)
		if result.Score < coherencePassThreshold {
			result.Issues = append(result.Issues,
				fmt.Sprintf("合并后的派生内容对大纲覆盖不足（覆盖率%.2f，词面重叠%.2f）", coverage, overlap))
		}
	}

	contradictions := v.consistency.DetectContradictions(facts)
	if len(contradictions) > 0 {
		// 每处矛盾扣0.15分
		result.Score = clamp01(result.Score - 0.15*float64(len(contradictions)))
		for _, c := range contradictions {
			result.Issues = append(result.Issues,
				fmt.Sprintf("%s与%s陈述矛盾（%s）: %q / %q", c.SourceA, c.SourceB, c.Reason, c.TextA, c.TextB))
		}
	}

	result.Passed = len(result.Issues) == 0
	if !result.Passed {
		result.ImprovementSuggestion = "统一各内容件中的事实陈述并覆盖大纲主题"
	}
	return result
}

// educationalStages 教育价值阶段：可读性与认知负荷的粗评
func (v *ValidatorService) educationalStages(pieces []models.ContentPiece) []models.ValidationStageResult {
	var results []models.ValidationStageResult
	for _, piece := range pieces {
		text := piece.PlainText()
		readability := v.consistency.AnalyzeReadability(text, AgeGroupAdults)
		load := v.consistency.AnalyzeCognitiveLoad(text, AgeGroupAdults)

		score := 1.0
		var issues []string
		if !readability.Suitable {
			score -= 0.3
			issues = append(issues, fmt.Sprintf("可读性偏低（Flesch %.1f）", readability.FleschScore))
		}
		if !load.Acceptable {
			score -= 0.3
			issues = append(issues, fmt.Sprintf("认知负荷过高（%.2f）", load.Total))
		}

		result := models.ValidationStageResult{
			StageName: "educational:" + string(piece.ContentType()),
			Passed:    len(issues) == 0,
			Score:     clamp01(score),
			Issues:    issues,
		}
		if len(issues) > 0 {
			result.ImprovementSuggestion = "简化句式并分解复杂概念"
		}
		results = append(results, result)
	}
	return results
}

// topicCoverage 主题词以不区分大小写的子串形式在文本中出现的比例
// 多词主题必须整体出现，仅共享单个词不构成覆盖
func topicCoverage(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 1.0
	}
	lower := strings.ToLower(text)
	covered := 0
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			covered++
		}
	}
	return float64(covered) / float64(len(terms))
}

// collectFeedback 汇总各阶段问题为去重后的反馈列表，按内容类型前缀标注
func collectFeedback(results []models.ValidationStageResult) []string {
	seen := make(map[string]struct{})
	var feedback []string
	for _, r := range results {
		if r.Passed {
			continue
		}
		prefix := r.StageName
		if idx := strings.Index(prefix, ":"); idx != -1 {
			prefix = prefix[idx+1:]
		}
		for _, issue := range r.Issues {
			line := "[" + prefix + "] " + issue
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			feedback = append(feedback, line)
		}
	}
	return feedback
}

// buildRefinementPrompt 从失败阶段合成至多一条重生成指令
func buildRefinementPrompt(results []models.ValidationStageResult) []string {
	suggestions := make(map[string]struct{})
	for _, r := range results {
		if !r.Passed && r.ImprovementSuggestion != "" {
			suggestions[r.ImprovementSuggestion] = struct{}{}
		}
	}
	if len(suggestions) == 0 {
		return nil
	}

	lines := make([]string, 0, len(suggestions))
	for s := range suggestions {
		lines = append(lines, s)
	}
	sort.Strings(lines)

	return []string{"重新生成时请注意: " + strings.Join(lines, "；")}
}
