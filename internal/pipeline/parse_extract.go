package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/logger"
	"resume-screen-go/internal/tracing"
	"resume-screen-go/internal/types"
)

// stageParseExtract 解析简历文件并抽取结构化候选人信息。
// 产出 FileType / TextContent / Images / Candidate。
func (o *Orchestrator) stageParseExtract(ctx context.Context, st *ResumeState) error {
	if strings.TrimSpace(st.FilePath) == "" {
		return NewValidationError(st.RunID, "文件路径不能为空")
	}

	ext := strings.ToLower(filepath.Ext(st.FilePath))
	fileType, ok := constants.AcceptedFileExtensions[ext]
	if !ok {
		return NewParseError(st.RunID, fmt.Sprintf("不支持的文件类型: %q", ext))
	}
	st.FileType = fileType

	text, images, err := o.comps.Parser.Extract(ctx, st.FilePath)
	if err != nil {
		return NewParseError(st.RunID, fmt.Sprintf("提取文本失败: %v", err))
	}
	st.TextContent = text
	st.Images = images

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("resume.file_type", fileType),
		attribute.Int("resume.text_length", len(text)),
		attribute.Int("resume.image_count", len(images)),
		attribute.String("resume.content_preview", tracing.SafeResumeContent(text)),
	)

	// 纯扫描件等无文本场景：跳过LLM抽取，带空候选人信息继续走流程
	if strings.TrimSpace(text) == "" {
		logger.Ctx(ctx).Warn().
			Str("run_id", st.RunID).
			Str("file_path", st.FilePath).
			Msg("简历无可提取文本，跳过信息抽取")
		st.Candidate = &types.CandidateInfo{}
		return nil
	}

	info, err := o.comps.Extractor.ExtractCandidate(ctx, text)
	if err != nil {
		return NewLLMError(st.RunID, fmt.Sprintf("候选人信息抽取失败: %v", err))
	}
	if info == nil {
		info = &types.CandidateInfo{}
	}
	st.Candidate = info

	logger.Ctx(ctx).Debug().
		Str("run_id", st.RunID).
		Str("candidate_name", info.Name).
		Str("education_level", info.EducationLevel).
		Int("work_years", info.WorkYears).
		Msg("候选人信息抽取完成")
	return nil
}
