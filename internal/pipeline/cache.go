package pipeline

import (
	"context"
	"fmt"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/logger"
)

// stageCache 流程收尾：先把候选人行的流程状态翻到COMPLETED
// （失败则整个阶段失败），成功后再写结果/候选人/统计三类缓存
// （尽力而为），最后发布筛选完成事件（尽力而为）。
func (o *Orchestrator) stageCache(ctx context.Context, st *ResumeState) error {
	if st.TalentID == "" {
		return NewWorkflowError(st.RunID, "缺少talent_id，无法收尾")
	}

	// 行状态收尾失败是致命的，必须在写缓存之前完成：
	// 否则去重缓存里会留下一份"completed"快照，短路命中后
	// 这次失败的运行就再也无法通过正常路径重试了
	if err := o.comps.Repo.UpdateTalentWorkflowStatus(ctx, st.TalentID, constants.TalentWorkflowCompleted); err != nil {
		return NewDatabaseError(st.RunID, fmt.Sprintf("更新候选人流程状态失败: %v", err))
	}

	// 先置完成态再生成快照，缓存里存的是最终结果
	st.Status = StatusCompleted
	snapshot := st.Snapshot()

	if o.comps.Cache != nil {
		if err := o.comps.Cache.SetScreenResult(ctx, st.FilePath, snapshot); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("run_id", st.RunID).
				Msg("写筛选结果缓存失败")
		}
		if err := o.comps.Cache.SetTalentInfo(ctx, st.TalentID, st.Candidate); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("run_id", st.RunID).
				Str("talent_id", st.TalentID).
				Msg("写候选人信息缓存失败")
		}
		if st.ConditionSetID != "" {
			if err := o.comps.Cache.IncrScreenStats(ctx, st.ConditionSetID, st.Filter != nil && st.Filter.Qualified); err != nil {
				logger.Ctx(ctx).Warn().Err(err).
					Str("run_id", st.RunID).
					Str("condition_set_id", st.ConditionSetID).
					Msg("更新筛选统计失败")
			}
		}
	}

	if o.comps.Events != nil {
		if err := o.comps.Events.PublishScreeningCompleted(ctx, snapshot); err != nil {
			logger.Ctx(ctx).Warn().Err(err).
				Str("run_id", st.RunID).
				Msg("发布筛选完成事件失败")
		}
	}

	return nil
}
