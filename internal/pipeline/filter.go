package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/logger"
	"resume-screen-go/internal/rules"
	"resume-screen-go/internal/types"
)

// stageFilter 按条件树评估候选人是否通过筛选，产出 Filter。
// 无条件或条件不可解析时默认通过，绝不因为规则问题淘汰候选人。
func (o *Orchestrator) stageFilter(ctx context.Context, st *ResumeState) error {
	if st.Candidate == nil {
		return NewWorkflowError(st.RunID, "缺少候选人信息，无法执行筛选")
	}

	conditionJSON, err := o.loadConditionConfig(ctx, st)
	if err != nil {
		return err
	}

	if isEmptyCondition(conditionJSON) {
		st.Filter = &types.FilterResult{Qualified: true, Score: 100, Reason: "无筛选条件，默认通过"}
		return nil
	}

	node, decodeErr := rules.Decode(conditionJSON)
	if decodeErr != nil {
		// 结构化规则不可用，尝试LLM兜底评估
		if o.comps.Judge != nil {
			verdict, judgeErr := o.comps.Judge.Judge(ctx, st.Candidate, string(conditionJSON))
			if judgeErr == nil && verdict != nil {
				st.Filter = &types.FilterResult{
					Qualified: verdict.Qualified,
					Score:     verdict.Score,
					Reason:    verdict.Reason,
				}
				return nil
			}
			logger.Ctx(ctx).Warn().
				Err(judgeErr).
				Str("run_id", st.RunID).
				Msg("LLM兜底评估失败")
		}
		logger.Ctx(ctx).Warn().
			Err(decodeErr).
			Str("run_id", st.RunID).
			Msg("筛选条件解析失败，默认通过")
		st.Filter = &types.FilterResult{Qualified: true, Score: 100, Reason: "无有效筛选规则，默认通过"}
		return nil
	}

	evaluator := rules.NewEvaluator(st.Candidate, st.TextContent)
	qualified := evaluator.Evaluate(node)
	st.Filter = buildFilterResult(qualified, evaluator.Matched(), evaluator.Unmatched(), o.settings.MaxReasonItems)

	logger.Ctx(ctx).Info().
		Str("run_id", st.RunID).
		Bool("qualified", qualified).
		Int("score", st.Filter.Score).
		Msg("规则筛选完成")
	return nil
}

// loadConditionConfig 返回生效的条件JSON：内联配置优先，
// 否则按条件集ID从库里加载ACTIVE的条件集。
func (o *Orchestrator) loadConditionConfig(ctx context.Context, st *ResumeState) (json.RawMessage, error) {
	if !isEmptyCondition(st.ConditionConfig) {
		return st.ConditionConfig, nil
	}
	if st.ConditionSetID == "" || o.comps.Repo == nil {
		return nil, nil
	}

	set, err := o.comps.Repo.GetConditionSet(ctx, st.ConditionSetID)
	if err != nil {
		return nil, NewDatabaseError(st.RunID, fmt.Sprintf("加载条件集 %s 失败: %v", st.ConditionSetID, err))
	}
	if set == nil || set.Status != constants.ConditionSetActive {
		logger.Ctx(ctx).Warn().
			Str("run_id", st.RunID).
			Str("condition_set_id", st.ConditionSetID).
			Msg("条件集不存在或未启用，按无条件处理")
		return nil, nil
	}
	return json.RawMessage(set.ConfigJSON), nil
}

func isEmptyCondition(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null" || s == "{}" || s == "[]"
}

// buildFilterResult 把命中记录汇总成结论。
// 分数是命中叶子的占比，不合格原因最多保留maxItems条。
func buildFilterResult(qualified bool, matched, unmatched []string, maxItems int) *types.FilterResult {
	if maxItems <= 0 {
		maxItems = constants.DefaultMaxReasonItems
	}

	total := len(matched) + len(unmatched)
	score := 0
	if total > 0 {
		score = len(matched) * 100 / total
	} else if qualified {
		score = 100
	}

	var reason string
	if qualified {
		if len(matched) > 0 {
			reason = "满足筛选条件: " + strings.Join(capItems(matched, maxItems), "; ")
		} else {
			reason = "满足筛选条件"
		}
	} else {
		reason = "未满足筛选条件: " + strings.Join(capItems(unmatched, maxItems), "; ")
	}

	return &types.FilterResult{
		Qualified: qualified,
		Score:     score,
		Reason:    reason,
		Matched:   matched,
		Unmatched: unmatched,
	}
}

func capItems(items []string, maxItems int) []string {
	if len(items) <= maxItems {
		return items
	}
	return items[:maxItems]
}
