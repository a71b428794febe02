package constants

import "time"

const (
	// 筛选结果与统计缓存的默认过期时间
	DefaultResultCacheTTL = 72 * time.Hour

	// Talent 表的流程状态（落库用，区别于内存中的节点状态）
	TalentWorkflowStoring   = "STORING"
	TalentWorkflowCompleted = "COMPLETED"
	TalentWorkflowFailed    = "FAILED"

	// 筛选结论
	ScreeningQualified    = "QUALIFIED"
	ScreeningDisqualified = "DISQUALIFIED"

	// 筛选条件集状态
	ConditionSetActive   = "ACTIVE"
	ConditionSetInactive = "INACTIVE"
	ConditionSetDeleted  = "DELETED"

	// 不合格原因最多保留的条目数
	DefaultMaxReasonItems = 5
)

// AcceptedFileExtensions 允许进入流水线的简历文件扩展名（小写），值为归一化的文件类型
var AcceptedFileExtensions = map[string]string{
	".pdf":  "pdf",
	".doc":  "doc",
	".docx": "docx",
	".png":  "png",
	".jpg":  "jpg",
	".jpeg": "jpg",
}
