// Package pipeline 实现简历筛选流水线：
// parse_extract → filter → store → cache 的顺序状态机。
// 阶段通过返回错误上报失败，编排器统一把错误和panic转成failed结果，
// 任何异常都不会越过 Run 的边界。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-screen-go/internal/logger"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/internal/types"
)

var tracer = otel.Tracer("resume-screen-go/pipeline")

type stageFunc func(ctx context.Context, st *ResumeState) error

// Orchestrator 流水线编排器。并发安全，可被多个请求共享。
type Orchestrator struct {
	comps    *Components
	settings Settings
}

// NewOrchestrator 创建编排器。comps 中 Parser/Extractor/Repo/Photos/Cipher 必填。
func NewOrchestrator(comps *Components, settings Settings) (*Orchestrator, error) {
	if comps == nil {
		return nil, fmt.Errorf("components不能为空")
	}
	if comps.Parser == nil || comps.Extractor == nil {
		return nil, fmt.Errorf("缺少文档解析器或信息抽取器")
	}
	if comps.Repo == nil {
		return nil, fmt.Errorf("缺少关系型存储")
	}
	if comps.Photos == nil {
		return nil, fmt.Errorf("缺少照片存储")
	}
	if comps.Cipher == nil {
		return nil, fmt.Errorf("缺少联系方式加密器")
	}
	if settings.MaxReasonItems <= 0 {
		settings.MaxReasonItems = 5
	}
	if settings.BatchConcurrency <= 0 {
		settings.BatchConcurrency = 4
	}
	return &Orchestrator{comps: comps, settings: settings}, nil
}

// Run 对单份简历执行完整筛选流程，总是返回结果快照，不抛错。
// conditionConfig 非空时为内联条件树JSON，否则按 conditionSetID 从库里加载。
func (o *Orchestrator) Run(ctx context.Context, filePath, conditionSetID string, conditionConfig json.RawMessage) *types.ScreenResult {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.file_path", tracing.SafeAttributeValue("resume.file_path", filePath, tracing.DefaultMaxLength)),
		attribute.String("screen.condition_set_id", conditionSetID),
	)

	// 同一文件已有缓存结果时直接短路返回
	if o.settings.DedupShortCircuit && o.comps.Cache != nil {
		if cached, err := o.comps.Cache.GetScreenResult(ctx, filePath); err == nil && cached != nil {
			cached.FromCache = true
			span.SetAttributes(attribute.Bool("screen.from_cache", true))
			return cached
		}
	}

	st := o.newState(filePath, conditionSetID, conditionConfig)
	span.SetAttributes(attribute.String("screen.run_id", st.RunID))

	node := NodeParseExtract
	for node != nodeEnd {
		o.runStage(ctx, node, st)
		node = nextNode(node, st)
	}

	result := st.Snapshot()
	logger.Ctx(ctx).Info().
		Str("run_id", st.RunID).
		Str("status", result.Status).
		Str("error_node", result.ErrorNode).
		Int64("processing_ms", result.ProcessingMS).
		Msg("筛选流程结束")
	return result
}

// RunBatch 并发筛选多份简历，结果顺序与输入一致。
func (o *Orchestrator) RunBatch(ctx context.Context, filePaths []string, conditionSetID string, conditionConfig json.RawMessage) []*types.ScreenResult {
	ctx, span := tracer.Start(ctx, "pipeline.run_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("screen.batch_size", len(filePaths)))

	results := make([]*types.ScreenResult, len(filePaths))
	sem := make(chan struct{}, o.settings.BatchConcurrency)
	var wg sync.WaitGroup

	for i, filePath := range filePaths {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, path string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				// 单份简历的panic不拖垮整批
				if r := recover(); r != nil {
					logger.Ctx(ctx).Error().
						Interface("panic", r).
						Str("file_path", path).
						Msg("批量筛选中单个任务panic")
					results[idx] = &types.ScreenResult{
						FilePath:     path,
						Status:       string(StatusFailed),
						ErrorNode:    NodeParseExtract,
						ErrorMessage: fmt.Sprintf("任务panic: %v", r),
					}
				}
			}()
			results[idx] = o.Run(ctx, path, conditionSetID, conditionConfig)
		}(i, filePath)
	}
	wg.Wait()
	return results
}

func (o *Orchestrator) newState(filePath, conditionSetID string, conditionConfig json.RawMessage) *ResumeState {
	runID := ""
	if id, err := uuid.NewV7(); err == nil {
		runID = id.String()
	}
	return &ResumeState{
		RunID:           runID,
		FilePath:        filePath,
		ConditionSetID:  conditionSetID,
		ConditionConfig: conditionConfig,
		Status:          StatusPending,
		StartedAt:       time.Now(),
	}
}

// runStage 执行单个阶段：开span、置阶段状态、把错误和panic
// 统一落到状态里。
func (o *Orchestrator) runStage(ctx context.Context, node string, st *ResumeState) {
	ctx, span := tracer.Start(ctx, "pipeline."+node)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err := NewWorkflowError(st.RunID, fmt.Sprintf("阶段panic: %v", r))
			tracing.RecordError(span, err, tracing.ErrorTypeInternal)
			logger.Ctx(ctx).Error().
				Interface("panic", r).
				Str("run_id", st.RunID).
				Str("node", node).
				Msg("流水线阶段panic")
			st.fail(node, err)
		}
	}()

	st.Status = activeStatus(node)
	if err := o.stageFn(node)(ctx, st); err != nil {
		tracing.RecordError(span, err, errorTypeFor(node))
		logger.Ctx(ctx).Error().
			Err(err).
			Str("run_id", st.RunID).
			Str("node", node).
			Msg("流水线阶段失败")
		st.fail(node, err)
	}
}

func (o *Orchestrator) stageFn(node string) stageFunc {
	switch node {
	case NodeParseExtract:
		return o.stageParseExtract
	case NodeFilter:
		return o.stageFilter
	case NodeStore:
		return o.stageStore
	case NodeCache:
		return o.stageCache
	default:
		return func(ctx context.Context, st *ResumeState) error {
			return NewWorkflowError(st.RunID, "未知的流水线节点: "+node)
		}
	}
}

// nextNode 状态机的路由：出错即终止，否则按固定顺序前进
func nextNode(current string, st *ResumeState) string {
	if st.Failed() {
		return nodeEnd
	}
	switch current {
	case NodeParseExtract:
		return NodeFilter
	case NodeFilter:
		return NodeStore
	case NodeStore:
		return NodeCache
	default:
		return nodeEnd
	}
}

func activeStatus(node string) WorkflowStatus {
	switch node {
	case NodeParseExtract:
		return StatusParsing
	case NodeFilter:
		return StatusFiltering
	case NodeStore:
		return StatusStoring
	case NodeCache:
		return StatusCaching
	default:
		return StatusPending
	}
}

func errorTypeFor(node string) tracing.ErrorType {
	switch node {
	case NodeParseExtract:
		return tracing.ErrorTypeLLM
	case NodeStore:
		return tracing.ErrorTypeDB
	case NodeCache:
		return tracing.ErrorTypeRedis
	default:
		return tracing.ErrorTypeInternal
	}
}
