// internal/services/validator_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Corphon/CourseForgeMCP/internal/models"
)

func testOutline() *models.Outline {
	return &models.Outline{
		Title:     "Introduction to Photosynthesis",
		MainTopic: "photosynthesis",
		LearningObjectives: []string{
			"Explain how plants convert light energy into chemical energy.",
			"Describe the light reactions inside chloroplasts.",
			"Trace carbon through the calvin cycle to glucose.",
		},
		Subtopics: []models.OutlineSection{
			{Title: "Light reactions", Summary: "How chloroplasts capture light energy and produce ATP."},
			{Title: "Calvin cycle", Summary: "How carbon dioxide is fixed into glucose molecules."},
		},
		Summary: "This course explains how photosynthesis converts light energy into chemical energy through light reactions and the calvin cycle.",
	}
}

// testOnePager 与大纲高度连贯的单页摘要
func testOnePager() *models.OnePager {
	return &models.OnePager{
		Title: "Photosynthesis at a Glance",
		Summary: "Photosynthesis converts light energy into chemical energy. The light reactions " +
			"inside chloroplasts capture light and produce ATP, and the calvin cycle fixes carbon " +
			"dioxide into glucose molecules. Plants use this chemical energy to grow and sustain life.",
		KeyTakeaways: []string{
			"Photosynthesis converts light energy into chemical energy.",
			"The light reactions produce ATP inside chloroplasts.",
			"The calvin cycle fixes carbon dioxide into glucose.",
		},
	}
}

func findStage(report *models.ComprehensiveValidationReport, name string) *models.ValidationStageResult {
	for i := range report.StageResults {
		if report.StageResults[i].StageName == name {
			return &report.StageResults[i]
		}
	}
	return nil
}

func TestValidateBundleAbsentOutlineShortCircuits(t *testing.T) {
	v := NewValidatorService(nil)

	report := v.ValidateBundle(&models.GeneratedContentBundle{}, 0.7)
	require.False(t, report.OverallPassed, "缺少大纲时不应通过")
	require.Zero(t, report.OverallScore, "缺少大纲时总分应为0")
	require.Empty(t, report.StageResults, "短路时不应运行任何阶段")

	report = v.ValidateBundle(nil, 0.7)
	require.False(t, report.OverallPassed)
}

func TestValidateBundleOutlineOnly(t *testing.T) {
	v := NewValidatorService(nil)

	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(testOutline())

	report := v.ValidateBundle(bundle, 0.7)
	require.GreaterOrEqual(t, report.OverallScore, 0.0)
	require.LessOrEqual(t, report.OverallScore, 1.0)
	require.Greater(t, report.OverallScore, 0.8, "合法大纲的总分应较高")
	require.True(t, report.OverallPassed)

	require.NotNil(t, findStage(report, "structural:outline"))
	require.NotNil(t, findStage(report, "completeness:outline"))
	require.NotNil(t, findStage(report, "coherence:bundle"))
}

func TestValidateBundleCompletenessBinary(t *testing.T) {
	v := NewValidatorService(nil)

	outline := testOutline()
	outline.Summary = "too short" // 触发长度窗口问题
	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(outline)

	report := v.ValidateBundle(bundle, 0.7)
	stage := findStage(report, "completeness:outline")
	require.NotNil(t, stage)
	require.False(t, stage.Passed)
	require.Equal(t, 0.5, stage.Score, "完整性评分为二值: 1.0或0.5")
}

func TestValidateBundleCoherentDerivative(t *testing.T) {
	v := NewValidatorService(nil)

	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(testOutline())
	bundle.SetPiece(testOnePager())

	report := v.ValidateBundle(bundle, 0.7)
	stage := findStage(report, "coherence:one_pager")
	require.NotNil(t, stage)
	require.True(t, stage.Passed, "覆盖全部主题词的派生内容应通过连贯性阶段，评分%.2f", stage.Score)
}

func TestTopicCoverageRequiresWholePhrase(t *testing.T) {
	terms := []string{"photosynthesis", "Calvin cycle"}

	// 仅共享"cycle"一词，短语整体未出现
	shared := "The water cycle moves moisture between oceans and clouds."
	require.Zero(t, topicCoverage(terms, shared), "共享单个词不构成主题覆盖")

	covered := "Photosynthesis relies on the calvin cycle to fix carbon."
	require.Equal(t, 1.0, topicCoverage(terms, covered), "不区分大小写的整体子串应计为覆盖")

	partial := "The calvin cycle fixes carbon dioxide into sugar."
	require.Equal(t, 0.5, topicCoverage(terms, partial))

	require.Equal(t, 1.0, topicCoverage(nil, shared), "无主题词时覆盖率记满")
}

func TestValidateBundleOffTopicDerivativeFails(t *testing.T) {
	v := NewValidatorService(nil)

	offTopic := &models.OnePager{
		Title:   "Medieval Castle Architecture",
		Summary: "Castles were fortified structures built during the middle ages across Europe.",
		KeyTakeaways: []string{
			"Stone walls replaced wooden palisades over several centuries.",
			"Moats and drawbridges protected the main gate.",
			"Towers provided archers with elevated firing positions.",
		},
	}
	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(testOutline())
	bundle.SetPiece(offTopic)

	report := v.ValidateBundle(bundle, 0.7)
	stage := findStage(report, "coherence:one_pager")
	require.NotNil(t, stage)
	require.False(t, stage.Passed, "偏题的派生内容不应通过连贯性阶段")
	require.NotEmpty(t, report.ActionableFeedback)
	require.LessOrEqual(t, len(report.RefinementPrompts), 1, "至多合成1条重生成指令")
}

func TestValidateBundleStageComparesCombinedTextToOutline(t *testing.T) {
	v := NewValidatorService(nil)

	offTopic := &models.OnePager{
		Title:   "Medieval Castle Architecture",
		Summary: "Castles were fortified structures built during the middle ages across Europe.",
		KeyTakeaways: []string{
			"Stone walls replaced wooden palisades over several centuries.",
			"Moats and drawbridges protected the main gate.",
			"Towers provided archers with elevated firing positions.",
		},
	}
	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(testOutline())
	bundle.SetPiece(offTopic)

	report := v.ValidateBundle(bundle, 0.7)
	stage := findStage(report, "coherence:bundle")
	require.NotNil(t, stage)
	require.False(t, stage.Passed, "合并文本偏离大纲时整包连贯性阶段应失败，即使没有矛盾")
	require.Less(t, stage.Score, coherencePassThreshold)

	// 无派生内容时整包阶段不施加重叠要求
	onlyOutline := &models.GeneratedContentBundle{}
	onlyOutline.SetPiece(testOutline())
	report = v.ValidateBundle(onlyOutline, 0.7)
	stage = findStage(report, "coherence:bundle")
	require.NotNil(t, stage)
	require.True(t, stage.Passed)
	require.Equal(t, 1.0, stage.Score)
}

func TestValidateBundleContradictionLowersScore(t *testing.T) {
	v := NewValidatorService(nil)

	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(testOutline())
	bundle.SetPiece(testOnePager())

	faq := &models.FAQCollection{
		Title: "Photosynthesis FAQ",
		Items: []models.FAQItem{
			{
				Question: "Do the light reactions produce ATP inside chloroplasts for photosynthesis?",
				Answer:   "The light reactions do not produce ATP inside chloroplasts.",
			},
		},
	}
	bundle.SetPiece(faq)

	report := v.ValidateBundle(bundle, 0.7)
	stage := findStage(report, "coherence:bundle")
	require.NotNil(t, stage)
	require.False(t, stage.Passed, "跨内容矛盾应导致整包连贯性阶段失败")
	require.Less(t, stage.Score, 1.0)

	found := false
	for _, issue := range stage.Issues {
		if strings.Contains(issue, "faq_collection") {
			found = true
		}
	}
	require.True(t, found, "矛盾问题应标注来源内容类型")
}

func TestValidateBundleFeedbackDeduplicated(t *testing.T) {
	v := NewValidatorService(nil)

	outline := testOutline()
	outline.Summary = "x"
	bundle := &models.GeneratedContentBundle{}
	bundle.SetPiece(outline)

	report := v.ValidateBundle(bundle, 0.99)
	seen := make(map[string]int)
	for _, line := range report.ActionableFeedback {
		seen[line]++
		require.Equal(t, 1, seen[line], "反馈不应重复: %s", line)
	}
}
