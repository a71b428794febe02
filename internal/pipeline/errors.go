package pipeline

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrParseFailed      = errors.New("解析简历文件失败")
	ErrLLMFailed        = errors.New("调用大模型失败")
	ErrValidationFailed = errors.New("入参校验失败")
	ErrWorkflowFailed   = errors.New("流程编排失败")
	ErrDatabaseFailed   = errors.New("数据库操作失败")
	ErrStorageFailed    = errors.New("对象/向量存储操作失败")
)

// ScreenError 包含详细错误信息的自定义错误
type ScreenError struct {
	RunID   string
	Op      string
	BaseErr error
	Detail  string
}

func (e *ScreenError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, RunID:%s): %s", e.BaseErr, e.Op, e.RunID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, RunID:%s)", e.BaseErr, e.Op, e.RunID)
}

func (e *ScreenError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ScreenError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewParseError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "parse", BaseErr: ErrParseFailed, Detail: detail}
}

func NewLLMError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "llm", BaseErr: ErrLLMFailed, Detail: detail}
}

func NewValidationError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "validate", BaseErr: ErrValidationFailed, Detail: detail}
}

func NewWorkflowError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "workflow", BaseErr: ErrWorkflowFailed, Detail: detail}
}

func NewDatabaseError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "database", BaseErr: ErrDatabaseFailed, Detail: detail}
}

func NewStorageError(runID, detail string) error {
	return &ScreenError{RunID: runID, Op: "storage", BaseErr: ErrStorageFailed, Detail: detail}
}
