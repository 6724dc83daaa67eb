// internal/models/validation.go
package models

// ValidationStageResult 单个校验阶段的结果
type ValidationStageResult struct {
	StageName             string   `json:"stage_name"`
	Passed                bool     `json:"passed"`
	Score                 float64  `json:"score"` // 取值范围[0,1]
	Issues                []string `json:"issues,omitempty"`
	ImprovementSuggestion string   `json:"improvement_suggestion,omitempty"`
}

// ComprehensiveValidationReport 多阶段校验的汇总报告
type ComprehensiveValidationReport struct {
	OverallPassed      bool                    `json:"overall_passed"`
	OverallScore       float64                 `json:"overall_score"` // 仅按存在的阶段族加权
	StageResults       []ValidationStageResult `json:"stage_results"`
	ActionableFeedback []string                `json:"actionable_feedback,omitempty"`
	RefinementPrompts  []string                `json:"refinement_prompts,omitempty"` // 至多1条合成的重生成指令
}
