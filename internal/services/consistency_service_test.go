// internal/services/consistency_service_test.go
package services

import (
	"strings"
	"testing"
)

func TestDetectRedundancyFlagsIdenticalSegments(t *testing.T) {
	svc := NewConsistencyService()

	segment := "Photosynthesis is the process by which green plants convert light energy " +
		"into chemical energy that is stored in glucose molecules for later use by the plant."
	report := svc.DetectRedundancy([]string{segment, segment})

	if len(report.RepeatedPairs) != 1 {
		t.Fatalf("完全相同的长段落应被标记为重复，实际标记%d对", len(report.RepeatedPairs))
	}
	pair := report.RepeatedPairs[0]
	if pair.IndexA != 0 || pair.IndexB != 1 {
		t.Fatalf("重复对下标不正确: %+v", pair)
	}
	if pair.Similarity < 0.99 {
		t.Fatalf("相同段落的相似度应接近1，实际%.2f", pair.Similarity)
	}
}

func TestDetectRedundancyIgnoresUnrelatedSegments(t *testing.T) {
	svc := NewConsistencyService()

	a := "Photosynthesis converts light energy into chemical energy stored inside glucose molecules " +
		"within chloroplasts located in leaf cells throughout the growing season every year."
	b := "Mitochondria perform cellular respiration breaking down sugars releasing usable power " +
		"for muscles brains organs during exercise sleep digestion and countless other activities."
	report := svc.DetectRedundancy([]string{a, b})

	if len(report.RepeatedPairs) != 0 {
		t.Fatalf("无共享词汇的段落不应被标记，实际标记%d对", len(report.RepeatedPairs))
	}
}

func TestDetectRedundancyIgnoresShortSegments(t *testing.T) {
	svc := NewConsistencyService()

	short := "The cycle repeats."
	report := svc.DetectRedundancy([]string{short, short})

	// 20词以下的段落不参与重复判定
	if len(report.RepeatedPairs) != 0 {
		t.Fatalf("短段落不应被标记，实际标记%d对", len(report.RepeatedPairs))
	}
}

func TestVerbosityScoreOrdering(t *testing.T) {
	svc := NewConsistencyService()

	terse := "Plants absorb light. Chlorophyll captures photons. ATP powers the cycle."
	verbose := "Basically, in order to really understand this, it is actually very important, " +
		"for all intents and purposes, to just simply consider each and every single one of the " +
		"various quite interesting aspects that are essentially involved in this really rather " +
		"complicated process that we are literally discussing at this point in time right now."

	report := svc.DetectRedundancy([]string{terse, verbose})
	if report.VerbosityScores[0] >= report.VerbosityScores[1] {
		t.Fatalf("冗长文本的评分应更高: 简洁%.2f 冗长%.2f",
			report.VerbosityScores[0], report.VerbosityScores[1])
	}
}

func TestConsolidationClusters(t *testing.T) {
	svc := NewConsistencyService()

	segments := []string{
		"Chloroplast structure determines how chloroplast membranes capture light for the chloroplast.",
		"The chloroplast contains thylakoids where the chloroplast pigments absorb photons chloroplast.",
		"Ocean currents redistribute heat between tropical equatorial waters and polar regions globally.",
	}
	clusters := svc.consolidationClusters(segments)

	found := false
	for _, cluster := range clusters {
		if len(cluster) == 2 && cluster[0] == 0 && cluster[1] == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("共享高频词的段落应聚为一簇: %v", clusters)
	}
}

func TestDetectContradictionsNegation(t *testing.T) {
	svc := NewConsistencyService()

	facts := []SourcedFact{
		{Source: "study_guide", Text: "The system is fast."},
		{Source: "faq_collection", Text: "The system is not fast."},
	}
	contradictions := svc.DetectContradictions(facts)

	if len(contradictions) != 1 {
		t.Fatalf("否定对陈述应被标记为矛盾，实际%d处", len(contradictions))
	}
	if contradictions[0].SourceA != "study_guide" || contradictions[0].SourceB != "faq_collection" {
		t.Fatalf("矛盾来源不正确: %+v", contradictions[0])
	}
}

func TestDetectContradictionsUnrelatedStatements(t *testing.T) {
	svc := NewConsistencyService()

	facts := []SourcedFact{
		{Source: "a", Text: "The sky is blue."},
		{Source: "b", Text: "The grass is green."},
	}
	if contradictions := svc.DetectContradictions(facts); len(contradictions) != 0 {
		t.Fatalf("不相关的陈述不应被标记，实际%d处", len(contradictions))
	}
}

func TestDetectContradictionsNumericMismatch(t *testing.T) {
	svc := NewConsistencyService()

	facts := []SourcedFact{
		{Source: "study_guide", Text: "The Calvin cycle fixes carbon in 3 major steps."},
		{Source: "one_pager", Text: "The Calvin cycle fixes carbon in 6 major steps."},
	}
	contradictions := svc.DetectContradictions(facts)

	if len(contradictions) != 1 {
		t.Fatalf("数值不一致应被标记，实际%d处", len(contradictions))
	}
}

func TestDetectContradictionsSameSourceSkipped(t *testing.T) {
	svc := NewConsistencyService()

	facts := []SourcedFact{
		{Source: "faq", Text: "The system is fast."},
		{Source: "faq", Text: "The system is not fast."},
	}
	if contradictions := svc.DetectContradictions(facts); len(contradictions) != 0 {
		t.Fatal("同一来源内的陈述不参与矛盾检测")
	}
}

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"cat":        1,
		"water":      2,
		"make":       1, // 静音e
		"table":      2, // le结尾不回退
		"biology":    3, // "io"计为单个元音组
		"a":          1,
	}
	for word, expected := range cases {
		if got := countSyllables(word); got != expected {
			t.Errorf("%s音节数期望%d，实际%d", word, expected, got)
		}
	}
}

func TestFleschScoreOrdering(t *testing.T) {
	simple := "The cat sat. The dog ran. We like pets. They are fun."
	complex := "Notwithstanding multifarious considerations, interdisciplinary methodological " +
		"approaches necessitate comprehensive epistemological reorientation."

	simpleScore, _, _ := fleschScore(simple)
	complexScore, _, _ := fleschScore(complex)

	if simpleScore <= complexScore {
		t.Fatalf("简单文本的可读性分数应更高: 简单%.1f 复杂%.1f", simpleScore, complexScore)
	}
}

func TestAnalyzeReadabilityAgeThresholds(t *testing.T) {
	svc := NewConsistencyService()

	text := "Notwithstanding multifarious considerations, interdisciplinary methodological " +
		"approaches necessitate comprehensive epistemological reorientation of contemporary " +
		"pedagogical infrastructures."

	if svc.AnalyzeReadability(text, AgeGroupChildren).Suitable {
		t.Fatal("晦涩文本不应适合儿童读者")
	}
	if !svc.AnalyzeReadability(text, AgeGroupExperts).Suitable {
		t.Fatal("专家读者不设可读性下限")
	}
}

func TestAnalyzeCognitiveLoad(t *testing.T) {
	svc := NewConsistencyService()

	simple := "Plants need light. Light makes food. Food helps plants grow. For example, a leaf uses sun."
	dense := strings.Repeat("Photophosphorylation thylakoid chemiosmotic oxidoreductase "+
		"ribulose bisphosphate carboxylase oxygenase intermediates ", 10)

	simpleLoad := svc.AnalyzeCognitiveLoad(simple, AgeGroupChildren)
	denseLoad := svc.AnalyzeCognitiveLoad(dense, AgeGroupChildren)

	if simpleLoad.Total >= denseLoad.Total {
		t.Fatalf("术语密集文本的认知负荷应更高: 简单%.2f 密集%.2f", simpleLoad.Total, denseLoad.Total)
	}
	if simpleLoad.Total < 0 || simpleLoad.Total > 1 || denseLoad.Total < 0 || denseLoad.Total > 1 {
		t.Fatal("认知负荷应在[0,1]区间内")
	}
	if !simpleLoad.Acceptable {
		t.Fatalf("简单文本对儿童应可接受，负荷%.2f", simpleLoad.Total)
	}
}

func TestEmptyInputs(t *testing.T) {
	svc := NewConsistencyService()

	if report := svc.DetectRedundancy(nil); len(report.RepeatedPairs) != 0 {
		t.Fatal("空输入不应产生重复对")
	}
	if contradictions := svc.DetectContradictions(nil); len(contradictions) != 0 {
		t.Fatal("空输入不应产生矛盾")
	}
	if report := svc.AnalyzeCognitiveLoad("", AgeGroupAdults); !report.Acceptable {
		t.Fatal("空文本的认知负荷应可接受")
	}
}
