package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/logger"
	"resume-screen-go/internal/rules"
	"resume-screen-go/internal/storage/models"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/pkg/utils"
)

// stageStore 持久化候选人：照片上对象存储、联系方式加密后入库、
// 简历全文进向量库。产出 TalentID / PhotoURLs。
func (o *Orchestrator) stageStore(ctx context.Context, st *ResumeState) error {
	if st.Candidate == nil || st.Filter == nil {
		return NewWorkflowError(st.RunID, "缺少候选人信息或筛选结论，无法入库")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return NewWorkflowError(st.RunID, fmt.Sprintf("生成talent_id失败: %v", err))
	}
	talentID := id.String()

	// 照片上传失败只影响单张，不中断入库
	var photoURLs []string
	for i, img := range st.Images {
		if len(img) == 0 {
			continue
		}
		url, upErr := o.comps.Photos.UploadTalentPhoto(ctx, talentID, i, img)
		if upErr != nil {
			logger.Ctx(ctx).Warn().
				Err(upErr).
				Str("run_id", st.RunID).
				Int("photo_index", i).
				Msg("候选人照片上传失败，跳过")
			continue
		}
		photoURLs = append(photoURLs, url)
	}

	encryptedPhone, err := o.comps.Cipher.Encrypt(st.Candidate.Phone)
	if err != nil {
		return NewStorageError(st.RunID, fmt.Sprintf("加密手机号失败: %v", err))
	}
	encryptedEmail, err := o.comps.Cipher.Encrypt(st.Candidate.Email)
	if err != nil {
		return NewStorageError(st.RunID, fmt.Sprintf("加密邮箱失败: %v", err))
	}

	screeningStatus := constants.ScreeningDisqualified
	if st.Filter.Qualified {
		screeningStatus = constants.ScreeningQualified
	}
	now := time.Now()

	talent := &models.Talent{
		TalentID:        talentID,
		Name:            st.Candidate.Name,
		Phone:           encryptedPhone,
		Email:           encryptedEmail,
		EducationLevel:  st.Candidate.EducationLevel,
		School:          st.Candidate.School,
		SchoolTier:      rules.ClassifySchoolTier(st.Candidate.School),
		Major:           st.Candidate.Major,
		GraduationDate:  st.Candidate.GraduationDate,
		WorkYears:       st.Candidate.WorkYears,
		SkillsJSON:      utils.ConvertArrayToJSON(st.Candidate.Skills),
		SelfEvaluation:  st.Candidate.SelfEvaluation,
		ResumeText:      st.TextContent,
		PhotoURLsJSON:   utils.ConvertArrayToJSON(photoURLs),
		ContentHash:     utils.CalculateMD5([]byte(st.TextContent)),
		ConditionSetID:  st.ConditionSetID,
		ScreeningStatus: screeningStatus,
		ScreeningScore:  st.Filter.Score,
		ScreeningReason: st.Filter.Reason,
		ScreenedAt:      &now,
		WorkflowStatus:  constants.TalentWorkflowStoring,
	}

	// 入库在单个事务作用域内完成
	err = o.comps.Repo.WithTransaction(ctx, func(repo TalentRepo) error {
		return repo.CreateTalent(ctx, talent)
	})
	if err != nil {
		return NewDatabaseError(st.RunID, fmt.Sprintf("候选人入库失败: %v", err))
	}

	st.TalentID = talentID
	st.PhotoURLs = photoURLs

	// 向量写入在事务提交之后执行：失败会让本阶段失败，
	// 但已提交的候选人记录不回滚
	if o.comps.Vectors != nil && st.TextContent != "" {
		metadata := map[string]interface{}{
			"talent_id":        talentID,
			"name":             st.Candidate.Name,
			"education_level":  st.Candidate.EducationLevel,
			"school_tier":      talent.SchoolTier,
			"work_years":       st.Candidate.WorkYears,
			"screening_status": screeningStatus,
		}
		if err := o.comps.Vectors.UpsertResume(ctx, talentID, st.TextContent, metadata); err != nil {
			return NewStorageError(st.RunID, fmt.Sprintf("简历向量写入失败: %v", err))
		}
	}

	// 联系方式只记掩码，明文不进日志
	logger.Ctx(ctx).Info().
		Str("run_id", st.RunID).
		Str("talent_id", talentID).
		Str("phone", tracing.MaskPII(st.Candidate.Phone)).
		Str("email", tracing.MaskPII(st.Candidate.Email)).
		Str("screening_status", screeningStatus).
		Int("photo_count", len(photoURLs)).
		Msg("候选人持久化完成")
	return nil
}
