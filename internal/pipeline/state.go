package pipeline

import (
	"encoding/json"
	"time"

	"resume-screen-go/internal/types"
)

// 流水线节点名，也是失败结果里 error_node 的取值
const (
	NodeParseExtract = "parse_extract"
	NodeFilter       = "filter"
	NodeStore        = "store"
	NodeCache        = "cache"
	nodeEnd          = "end"
)

// WorkflowStatus 单次运行在内存中的流程状态
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusParsing   WorkflowStatus = "parsing"
	StatusFiltering WorkflowStatus = "filtering"
	StatusStoring   WorkflowStatus = "storing"
	StatusCaching   WorkflowStatus = "caching"
	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
)

// ResumeState 单份简历的流水线状态。
// 由编排器独占持有，各阶段只写自己负责的字段。
type ResumeState struct {
	RunID    string
	FilePath string
	FileType string

	// parse_extract 阶段产出
	TextContent string
	Images      [][]byte
	Candidate   *types.CandidateInfo

	// 筛选条件：ConditionConfig 优先，为空时按 ConditionSetID 从库里加载
	ConditionSetID  string
	ConditionConfig json.RawMessage

	// filter 阶段产出
	Filter *types.FilterResult

	// store 阶段产出
	TalentID  string
	PhotoURLs []string

	// 失败信息，非空表示流程终止
	ErrorNode    string
	ErrorMessage string

	Status    WorkflowStatus
	StartedAt time.Time
}

// Failed 判断流程是否已带错终止
func (s *ResumeState) Failed() bool {
	return s.ErrorMessage != ""
}

// fail 记录失败信息并把状态置为 failed
func (s *ResumeState) fail(node string, err error) {
	s.ErrorNode = node
	s.ErrorMessage = err.Error()
	s.Status = StatusFailed
}

// Snapshot 生成对外的结果快照
func (s *ResumeState) Snapshot() *types.ScreenResult {
	result := &types.ScreenResult{
		RunID:          s.RunID,
		FilePath:       s.FilePath,
		TalentID:       s.TalentID,
		ConditionSetID: s.ConditionSetID,
		Status:         string(s.Status),
		ErrorNode:      s.ErrorNode,
		ErrorMessage:   s.ErrorMessage,
		ProcessingMS:   time.Since(s.StartedAt).Milliseconds(),
	}
	if s.Filter != nil {
		result.Qualified = s.Filter.Qualified
		result.Score = s.Filter.Score
		result.Reason = s.Filter.Reason
	}
	return result
}
