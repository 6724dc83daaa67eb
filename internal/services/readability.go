// internal/services/readability.go
package services

import (
	"regexp"
	"strings"
)

// AgeGroup 目标受众年龄段，决定可读性与认知负荷的判定阈值
type AgeGroup string

const (
	AgeGroupChildren AgeGroup = "children"  // 约8-12岁
	AgeGroupTeens    AgeGroup = "teens"     // 约13-17岁
	AgeGroupAdults   AgeGroup = "adults"    // 18岁以上
	AgeGroupExperts  AgeGroup = "experts"   // 领域从业者
)

// ReadabilityReport 可读性分析结果
type ReadabilityReport struct {
	FleschScore      float64 `json:"flesch_score"`
	AvgSentenceWords float64 `json:"avg_sentence_words"`
	AvgWordSyllables float64 `json:"avg_word_syllables"`
	Suitable         bool    `json:"suitable"`
}

// CognitiveLoadReport 认知负荷分析结果，各分量取值[0,1]
type CognitiveLoadReport struct {
	Intrinsic  float64 `json:"intrinsic"`  // 内在负荷：术语与长词密度
	Extraneous float64 `json:"extraneous"` // 外在负荷：句长与段落结构
	Germane    float64 `json:"germane"`    // 有益负荷：学习引导语密度
	Total      float64 `json:"total"`
	Acceptable bool    `json:"acceptable"`
}

var sentenceSplitPattern = regexp.MustCompile(`[.!?]+`)

// splitSentences 按句末标点切分，丢弃空片段
func splitSentences(text string) []string {
	parts := sentenceSplitPattern.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, strings.TrimSpace(p))
		}
	}
	return sentences
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// countSyllables 估算英文单词音节数：
// 连续元音计为一组，词尾静音e回退一个音节，下限为1
func countSyllables(word string) int {
	word = strings.ToLower(word)
	if len(word) == 0 {
		return 0
	}

	count := 0
	prevVowel := false
	for i := 0; i < len(word); i++ {
		v := isVowel(word[i])
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	// 静音e修正：以e结尾且不止一个音节组时不计入
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}

	if count < 1 {
		count = 1
	}
	return count
}

// fleschScore Flesch阅读容易度公式：206.835 - 1.015·ASL - 84.6·ASW
func fleschScore(text string) (score, avgSentenceWords, avgWordSyllables float64) {
	sentences := splitSentences(text)
	words := tokenizeWords(text)

	if len(sentences) == 0 || len(words) == 0 {
		return 0, 0, 0
	}

	totalSyllables := 0
	for _, w := range words {
		totalSyllables += countSyllables(w)
	}

	avgSentenceWords = float64(len(words)) / float64(len(sentences))
	avgWordSyllables = float64(totalSyllables) / float64(len(words))
	score = 206.835 - 1.015*avgSentenceWords - 84.6*avgWordSyllables
	return score, avgSentenceWords, avgWordSyllables
}

// 各年龄段可接受的Flesch分数下限，专家读者不设下限
var fleschFloorByAge = map[AgeGroup]float64{
	AgeGroupChildren: 80,
	AgeGroupTeens:    60,
	AgeGroupAdults:   40,
}

// AnalyzeReadability 计算Flesch可读性并按年龄段判定是否合适
func (s *ConsistencyService) AnalyzeReadability(text string, age AgeGroup) *ReadabilityReport {
	score, asl, asw := fleschScore(text)

	suitable := true
	if age != AgeGroupExperts {
		floor, ok := fleschFloorByAge[age]
		if !ok {
			floor = fleschFloorByAge[AgeGroupAdults]
		}
		suitable = score >= floor
	}

	return &ReadabilityReport{
		FleschScore:      score,
		AvgSentenceWords: asl,
		AvgWordSyllables: asw,
		Suitable:         suitable,
	}
}

// 学习引导语：出现频率越高，有益认知负荷越高
var learningIndicators = []string{
	"for example", "in other words", "this means", "note that",
	"remember", "recall", "compare", "in summary", "to summarize",
	"key point", "important", "consider",
}

// 各年龄段可接受的总认知负荷上限
var loadCeilingByAge = map[AgeGroup]float64{
	AgeGroupChildren: 0.45,
	AgeGroupTeens:    0.55,
	AgeGroupAdults:   0.70,
	AgeGroupExperts:  0.85,
}

// AnalyzeCognitiveLoad 估算文本的认知负荷三分量
// 内在负荷看长词密度，外在负荷看句长与段落划分，有益负荷看学习引导语
func (s *ConsistencyService) AnalyzeCognitiveLoad(text string, age AgeGroup) *CognitiveLoadReport {
	words := tokenizeWords(text)
	sentences := splitSentences(text)
	report := &CognitiveLoadReport{}

	if len(words) == 0 || len(sentences) == 0 {
		report.Acceptable = true
		return report
	}

	// 内在负荷：3音节以上或9字符以上的词占比
	technicalCount := 0
	for _, w := range words {
		if countSyllables(w) >= 3 || len(w) >= 9 {
			technicalCount++
		}
	}
	report.Intrinsic = clamp01(float64(technicalCount) / float64(len(words)) * 2.5)

	// 外在负荷：平均句长偏离与段落缺失
	avgSentenceWords := float64(len(words)) / float64(len(sentences))
	sentencePenalty := clamp01((avgSentenceWords - 15) / 25)
	paragraphs := strings.Count(text, "\n\n") + 1
	wordsPerParagraph := float64(len(words)) / float64(paragraphs)
	paragraphPenalty := clamp01((wordsPerParagraph - 150) / 300)
	report.Extraneous = clamp01(0.6*sentencePenalty + 0.4*paragraphPenalty)

	// 有益负荷：每百词的学习引导语出现次数
	lower := strings.ToLower(text)
	indicatorCount := 0
	for _, ind := range learningIndicators {
		indicatorCount += strings.Count(lower, ind)
	}
	report.Germane = clamp01(float64(indicatorCount) / (float64(len(words)) / 100.0) / 3.0)

	// 有益负荷抵消部分总负荷
	report.Total = clamp01(0.5*report.Intrinsic + 0.35*report.Extraneous + 0.15*(1-report.Germane))

	ceiling, ok := loadCeilingByAge[age]
	if !ok {
		ceiling = loadCeilingByAge[AgeGroupAdults]
	}
	report.Acceptable = report.Total <= ceiling
	return report
}
