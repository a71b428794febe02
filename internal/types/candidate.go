package types

import "encoding/json"

// CandidateInfo 从简历文本中抽取的结构化候选人信息。
// 字段缺失时保持零值，筛选时按"字段缺失"处理。
type CandidateInfo struct {
	Name           string   `json:"name,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	EducationLevel string   `json:"education_level,omitempty"` // 例如 "bachelor"、"硕士"
	School         string   `json:"school,omitempty"`
	Major          string   `json:"major,omitempty"`
	GraduationDate string   `json:"graduation_date,omitempty"`
	WorkYears      int      `json:"work_years,omitempty"`
	Skills         []string `json:"skills,omitempty"`
	SelfEvaluation string   `json:"self_evaluation,omitempty"`
}

// FilterResult 规则评估/LLM评估产出的筛选结论
type FilterResult struct {
	// 是否通过筛选
	Qualified bool `json:"qualified"`
	// 匹配分数 (0-100)
	Score int `json:"score"`
	// 人类可读的结论说明
	Reason string `json:"reason"`
	// 命中的条件描述
	Matched []string `json:"matched,omitempty"`
	// 未命中的条件描述
	Unmatched []string `json:"unmatched,omitempty"`
}

// ScreenResult 单份简历跑完流水线后的对外结果快照
type ScreenResult struct {
	RunID          string `json:"run_id"`
	FilePath       string `json:"file_path"`
	TalentID       string `json:"talent_id,omitempty"`
	ConditionSetID string `json:"condition_set_id,omitempty"`
	Qualified      bool   `json:"qualified"`
	Score          int    `json:"score"`
	Reason         string `json:"reason,omitempty"`
	Status         string `json:"status"` // completed / failed
	ErrorNode      string `json:"error_node,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ProcessingMS   int64  `json:"processing_ms"`
	// 命中的缓存结果直接返回时为 true
	FromCache bool `json:"from_cache,omitempty"`
}

// JudgeVerdict LLM资格评估器的裁决
type JudgeVerdict struct {
	Qualified bool   `json:"qualified"`
	Score     int    `json:"score"`
	Reason    string `json:"reason"`
}

// ScreenStats 条件集维度的通过/淘汰计数，缓存为JSON
type ScreenStats struct {
	Total        int64 `json:"total"`
	Qualified    int64 `json:"qualified"`
	Disqualified int64 `json:"disqualified"`
}

// MarshalBinary 供go-redis直接写入使用
func (s ScreenStats) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}
