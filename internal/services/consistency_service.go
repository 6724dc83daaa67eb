// internal/services/consistency_service.go
package services

import (
	"regexp"
	"sort"
	"strings"
)

// ConsistencyService 提供冗余、矛盾与可读性三类文本启发式分析
// 校验服务在整包连贯性阶段使用它，编排服务用它评估输入质量
type ConsistencyService struct{}

// NewConsistencyService 创建一致性分析服务
func NewConsistencyService() *ConsistencyService {
	return &ConsistencyService{}
}

// ---------------------------------------------------------------
// 相似度基元

// editSimilarity 基于编辑距离的相似度，取值[0,1]
func editSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	// 单行滚动的编辑距离DP
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	distance := prev[len(rb)]
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// wordSetOverlap 词集合的Jaccard重叠度，取值[0,1]
func wordSetOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// blendedSimilarity 编辑相似度与词集合重叠度各占一半
func blendedSimilarity(a, b string) float64 {
	return 0.5*editSimilarity(a, b) + 0.5*wordSetOverlap(a, b)
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range tokenizeWords(text) {
		set[w] = struct{}{}
	}
	return set
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9']+`)

func tokenizeWords(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// ---------------------------------------------------------------
// 冗余检测

// RedundantPair 被判定为重复的文本段对
type RedundantPair struct {
	IndexA     int     `json:"index_a"`
	IndexB     int     `json:"index_b"`
	Similarity float64 `json:"similarity"`
}

// RedundancyReport 冗余分析结果
type RedundancyReport struct {
	RepeatedPairs   []RedundantPair `json:"repeated_pairs"`
	VerbosityScores []float64       `json:"verbosity_scores"`
	Clusters        [][]int         `json:"clusters"` // 可合并段落的下标簇
}

// 重复判定阈值：相似度>0.8且两段均超过20词
const (
	redundancySimilarityThreshold = 0.8
	redundancyMinWords            = 20
)

// DetectRedundancy 对文本段做两两冗余比较并给出合并建议
func (s *ConsistencyService) DetectRedundancy(segments []string) *RedundancyReport {
	report := &RedundancyReport{
		VerbosityScores: make([]float64, len(segments)),
	}

	wordCounts := make([]int, len(segments))
	for i, seg := range segments {
		wordCounts[i] = len(tokenizeWords(seg))
		report.VerbosityScores[i] = s.verbosityScore(seg)
	}

	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			if wordCounts[i] <= redundancyMinWords || wordCounts[j] <= redundancyMinWords {
				continue
			}
			sim := blendedSimilarity(segments[i], segments[j])
			if sim > redundancySimilarityThreshold {
				report.RepeatedPairs = append(report.RepeatedPairs, RedundantPair{
					IndexA:     i,
					IndexB:     j,
					Similarity: sim,
				})
			}
		}
	}

	report.Clusters = s.consolidationClusters(segments)
	return report
}

// 填充词表与冗余短语模式
var fillerWords = map[string]struct{}{
	"very": {}, "really": {}, "quite": {}, "basically": {}, "actually": {},
	"just": {}, "simply": {}, "essentially": {}, "literally": {}, "totally": {},
	"somewhat": {}, "rather": {}, "fairly": {}, "pretty": {},
}

var redundantPhrasePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bin order to\b`),
	regexp.MustCompile(`(?i)\bdue to the fact that\b`),
	regexp.MustCompile(`(?i)\bat this point in time\b`),
	regexp.MustCompile(`(?i)\bfor all intents and purposes\b`),
	regexp.MustCompile(`(?i)\beach and every\b`),
	regexp.MustCompile(`(?i)\bfirst and foremost\b`),
	regexp.MustCompile(`(?i)\bas a matter of fact\b`),
}

// 长句判定阈值（词数）
const longSentenceWords = 30

// verbosityScore 冗长度评分：填充词占比、冗余短语命中、长句惩罚的加权混合
func (s *ConsistencyService) verbosityScore(segment string) float64 {
	words := tokenizeWords(segment)
	if len(words) == 0 {
		return 0.0
	}

	fillerCount := 0
	for _, w := range words {
		if _, ok := fillerWords[w]; ok {
			fillerCount++
		}
	}
	fillerRatio := float64(fillerCount) / float64(len(words))

	phraseHits := 0
	for _, pattern := range redundantPhrasePatterns {
		phraseHits += len(pattern.FindAllString(segment, -1))
	}
	// 每100词允许1个冗余短语，超出部分计入评分
	phraseScore := clamp01(float64(phraseHits) / (float64(len(words))/100.0 + 1.0))

	sentences := splitSentences(segment)
	longCount := 0
	for _, sentence := range sentences {
		if len(tokenizeWords(sentence)) > longSentenceWords {
			longCount++
		}
	}
	longPenalty := 0.0
	if len(sentences) > 0 {
		longPenalty = float64(longCount) / float64(len(sentences))
	}

	return clamp01(0.4*clamp01(fillerRatio*10) + 0.3*phraseScore + 0.3*longPenalty)
}

// consolidationClusters 基于高频非停用词的段落聚类：
// 每段取前5个高频词作为簇键，出现在≥2段中的词形成候选簇，重叠簇传递合并
func (s *ConsistencyService) consolidationClusters(segments []string) [][]int {
	termToSegments := make(map[string]map[int]struct{})

	for i, seg := range segments {
		for _, term := range topFrequentTerms(seg, 5) {
			if termToSegments[term] == nil {
				termToSegments[term] = make(map[int]struct{})
			}
			termToSegments[term][i] = struct{}{}
		}
	}

	// 并查集按簇键合并段落
	parent := make([]int, len(segments))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, segSet := range termToSegments {
		if len(segSet) < 2 {
			continue
		}
		indices := make([]int, 0, len(segSet))
		for idx := range segSet {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices[1:] {
			union(indices[0], idx)
		}
	}

	clusterMap := make(map[int][]int)
	for i := range segments {
		root := find(i)
		clusterMap[root] = append(clusterMap[root], i)
	}

	var clusters [][]int
	for _, members := range clusterMap {
		if len(members) >= 2 {
			sort.Ints(members)
			clusters = append(clusters, members)
		}
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

// 停用词表，聚类时跳过
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"as": {}, "from": {}, "not": {}, "no": {}, "can": {}, "will": {}, "would": {},
	"has": {}, "have": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"they": {}, "their": {}, "we": {}, "our": {}, "you": {}, "your": {},
}

// topFrequentTerms 返回文本中出现频率最高的count个非停用词
func topFrequentTerms(text string, count int) []string {
	freq := make(map[string]int)
	for _, w := range tokenizeWords(text) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if len(w) < 3 {
			continue
		}
		freq[w]++
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	// 频率降序，同频按字典序保证稳定
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > count {
		terms = terms[:count]
	}
	return terms
}

// ---------------------------------------------------------------
// 矛盾检测

// SourcedFact 带来源标识的事实陈述
type SourcedFact struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Contradiction 被标记的矛盾对
type Contradiction struct {
	SourceA string `json:"source_a"`
	SourceB string `json:"source_b"`
	TextA   string `json:"text_a"`
	TextB   string `json:"text_b"`
	Reason  string `json:"reason"`
}

// 否定词对表：键出现在一侧时，另一侧出现对应值（空值表示缺失该词）即构成极性冲突
var negationPairs = map[string]string{
	"not":      "",
	"never":    "always",
	"no":       "yes",
	"cannot":   "can",
	"increase": "decrease",
	"faster":   "slower",
	"more":     "less",
	"true":     "false",
}

const (
	polaritySimilarityThreshold = 0.6
	numericSimilarityThreshold  = 0.8
)

// DetectContradictions 对跨来源的事实两两比较，标记极性冲突与数值不一致
func (s *ConsistencyService) DetectContradictions(facts []SourcedFact) []Contradiction {
	var contradictions []Contradiction

	for i := 0; i < len(facts); i++ {
		for j := i + 1; j < len(facts); j++ {
			if facts[i].Source == facts[j].Source {
				continue
			}

			if reason, found := s.checkPolarityConflict(facts[i].Text, facts[j].Text); found {
				contradictions = append(contradictions, Contradiction{
					SourceA: facts[i].Source,
					SourceB: facts[j].Source,
					TextA:   facts[i].Text,
					TextB:   facts[j].Text,
					Reason:  reason,
				})
				continue
			}

			if reason, found := s.checkNumericConflict(facts[i].Text, facts[j].Text); found {
				contradictions = append(contradictions, Contradiction{
					SourceA: facts[i].Source,
					SourceB: facts[j].Source,
					TextA:   facts[i].Text,
					TextB:   facts[j].Text,
					Reason:  reason,
				})
			}
		}
	}

	return contradictions
}

// checkPolarityConflict 检查极性冲突：
// 一侧含否定词而另一侧含其反义（或缺失该词），去除极性词后相似度>0.6
func (s *ConsistencyService) checkPolarityConflict(textA, textB string) (string, bool) {
	wordsA := wordSet(textA)
	wordsB := wordSet(textB)

	for word, opposite := range negationPairs {
		_, aHas := wordsA[word]
		_, bHas := wordsB[word]

		conflict := false
		switch {
		case opposite == "":
			// 单侧否定：一侧含该词另一侧不含
			conflict = aHas != bHas
		default:
			_, aOpp := wordsA[opposite]
			_, bOpp := wordsB[opposite]
			conflict = (aHas && bOpp) || (bHas && aOpp)
		}

		if !conflict {
			continue
		}

		strippedA := removeWords(textA, word, opposite)
		strippedB := removeWords(textB, word, opposite)
		if blendedSimilarity(strippedA, strippedB) > polaritySimilarityThreshold {
			return "极性冲突: " + word, true
		}
	}

	return "", false
}

var digitPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// checkNumericConflict 检查数值不一致：
// 双方都含数字、数字序列不同且数字掩码后的相似度>0.8
func (s *ConsistencyService) checkNumericConflict(textA, textB string) (string, bool) {
	digitsA := digitPattern.FindAllString(textA, -1)
	digitsB := digitPattern.FindAllString(textB, -1)

	if len(digitsA) == 0 || len(digitsB) == 0 {
		return "", false
	}

	if strings.Join(digitsA, ",") == strings.Join(digitsB, ",") {
		return "", false
	}

	maskedA := digitPattern.ReplaceAllString(textA, "#")
	maskedB := digitPattern.ReplaceAllString(textB, "#")
	if blendedSimilarity(maskedA, maskedB) > numericSimilarityThreshold {
		return "数值不一致", true
	}

	return "", false
}

// removeWords 从文本中移除指定词（大小写不敏感）
func removeWords(text string, words ...string) string {
	tokens := tokenizeWords(text)
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		skip := false
		for _, w := range words {
			if w != "" && t == w {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
