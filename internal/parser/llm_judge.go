package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"

	"resume-screen-go/internal/types"
)

// LLMQualificationJudge 基于大模型判断候选人是否满足自由文本描述的筛选标准。
// 只在条件配置无法解析为规则树时作为兜底使用。
type LLMQualificationJudge struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string
	logger         *log.Logger
}

// NewLLMQualificationJudge 创建资格评估器
func NewLLMQualificationJudge(llmModel model.ToolCallingChatModel, logger *log.Logger) *LLMQualificationJudge {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	judge := &LLMQualificationJudge{
		llmModel: llmModel,
		logger:   logger,
	}
	judge.generatePromptTemplate()
	return judge
}

func (j *LLMQualificationJudge) generatePromptTemplate() {
	j.promptTemplate = `你是一位资深的招聘筛选专家。你的任务是基于下面的【筛选标准】和【候选人信息】，判断候选人是否满足标准，并严格按照指定的JSON格式输出。

**请严格遵循以下JSON输出格式规范：**
1.  **"qualified"**: 布尔值，候选人是否满足筛选标准。
2.  **"score"**: 整数 (0-100)，满足程度。
3.  **"reason"**: 字符串 (100字以内)，结论的简要依据，指出满足或不满足的关键点。

**判断原则：**
- 筛选标准中明确的硬性要求（学历、年限、必备技能）不满足时，qualified必须为false。
- 候选人信息中缺失、无法判断的项，按不满足处理。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。

【筛选标准】:
"""
%s
"""

【候选人信息】:
"""
%s
"""

请基于以上指令，输出JSON结果。`
}

// Judge 评估候选人是否满足自由文本筛选标准
func (j *LLMQualificationJudge) Judge(ctx context.Context, info *types.CandidateInfo, criteria string) (*types.JudgeVerdict, error) {
	if j.llmModel == nil {
		return nil, fmt.Errorf("LLMQualificationJudge: llmModel未初始化")
	}
	if info == nil {
		return nil, fmt.Errorf("LLMQualificationJudge: 候选人信息为空")
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("LLMQualificationJudge: 序列化候选人信息失败: %w", err)
	}

	userMsgContent := fmt.Sprintf(j.promptTemplate, criteria, string(infoJSON))
	messages := []*einoschema.Message{
		einoschema.SystemMessage("你是一位资深的招聘筛选专家，只输出合法的JSON。"),
		einoschema.UserMessage(userMsgContent),
	}

	j.logger.Printf("[LLMQualificationJudge] 筛选标准 (前200字符): %.200s", criteria)

	response, err := j.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLMQualificationJudge: LLM调用失败: %w", err)
	}
	if response == nil || response.Content == "" {
		return nil, fmt.Errorf("LLMQualificationJudge: LLM返回空响应")
	}

	processedContent := strings.TrimPrefix(response.Content, "\uFEFF")
	jsonStr := extractJSONObject(processedContent)
	if jsonStr == "" {
		return nil, fmt.Errorf("LLMQualificationJudge: 无法从LLM响应中提取JSON: %.200s", processedContent)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var verdict types.JudgeVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		fixedJSONStr := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixedJSONStr), &verdict); jsonErr != nil {
			return nil, fmt.Errorf("LLMQualificationJudge: JSON解析失败（已尝试修复）: %w; 原始JSON: %.300s", err, jsonStr)
		}
	}

	if verdict.Score < 0 || verdict.Score > 100 {
		return nil, fmt.Errorf("LLMQualificationJudge: score超出范围: %d", verdict.Score)
	}
	verdict.Reason = strings.TrimSpace(verdict.Reason)
	return &verdict, nil
}
