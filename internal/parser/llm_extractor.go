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

// LLMCandidateExtractor 基于大模型从简历文本中抽取结构化候选人信息
type LLMCandidateExtractor struct {
	llmModel        model.ToolCallingChatModel
	promptTemplate  string
	fewShotExamples string
	logger          *log.Logger
}

// LLMCandidateExtractorOption 抽取器的配置选项
type LLMCandidateExtractorOption func(*LLMCandidateExtractor)

// WithExtractorPromptTemplate 设置自定义提示词模板
func WithExtractorPromptTemplate(template string) LLMCandidateExtractorOption {
	return func(e *LLMCandidateExtractor) {
		e.promptTemplate = template
	}
}

// WithExtractorFewShotExamples 设置少样本示例
func WithExtractorFewShotExamples(examples string) LLMCandidateExtractorOption {
	return func(e *LLMCandidateExtractor) {
		e.fewShotExamples = examples
	}
}

// NewLLMCandidateExtractor 创建候选人信息抽取器
func NewLLMCandidateExtractor(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...LLMCandidateExtractorOption) *LLMCandidateExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	extractor := &LLMCandidateExtractor{
		llmModel: llmModel,
		logger:   logger,
	}

	extractor.generatePromptTemplate()

	for _, opt := range options {
		opt(extractor)
	}

	if extractor.fewShotExamples == "" {
		extractor.generateFewShotExamples()
	}

	return extractor
}

func (e *LLMCandidateExtractor) generatePromptTemplate() {
	e.promptTemplate = `你是一位专业的简历信息抽取助手。你的任务是从下面的【简历文本】中抽取候选人的结构化信息，并严格按照指定的JSON格式输出。

**请严格遵循以下JSON输出格式规范：**
1.  **"name"**: 字符串，候选人姓名。
2.  **"phone"**: 字符串，手机号，只保留数字和加号。
3.  **"email"**: 字符串，电子邮箱。
4.  **"education_level"**: 字符串，最高学历，只能取以下值之一："high_school"、"associate"、"bachelor"、"master"、"doctor"。中文学历请映射：高中→high_school，大专/专科→associate，本科/学士→bachelor，硕士/研究生→master，博士→doctor。
5.  **"school"**: 字符串，最高学历对应的毕业院校全名。
6.  **"major"**: 字符串，专业。
7.  **"graduation_date"**: 字符串，毕业时间，格式 "YYYY-MM" 或 "YYYY"。
8.  **"work_years"**: 整数，工作年限。应届生为0。简历未写明时按最早一段工作经历到现在估算。
9.  **"skills"**: 字符串数组，技能关键词列表，保留原文大小写。
10. **"self_evaluation"**: 字符串，个人评价/自我介绍的原文摘要，100字以内。

**JSON格式细节要求：**
- 完整输出必须是一个合法的JSON对象。
- 所有字段名和字符串值都必须使用双引号。
- 简历中找不到的字段，字符串填""，数字填0，数组填[]。禁止编造。
- 禁止在JSON结构之外输出任何额外文本、解释或Markdown标记。

【简历文本】:
"""
%s
"""

请基于以上指令，仔细抽取并输出JSON结果。`
}

// generateFewShotExamples 内部方法，生成抽取的少样本示例
func (e *LLMCandidateExtractor) generateFewShotExamples() {
	e.fewShotExamples = `以下是简历信息抽取的示例，请学习其中的字段映射逻辑：

示例1
【简历文本】:
"""
张伟
电话：138-0013-8000  邮箱：zhangwei@example.com
教育背景：2014.09 - 2018.06 浙江大学 软件工程 本科
工作经验：7年后端开发经验
技能：Go、Kubernetes、MySQL、Redis
自我评价：热爱技术，擅长高并发系统设计。
"""

示例输出:
{
  "name": "张伟",
  "phone": "13800138000",
  "email": "zhangwei@example.com",
  "education_level": "bachelor",
  "school": "浙江大学",
  "major": "软件工程",
  "graduation_date": "2018-06",
  "work_years": 7,
  "skills": ["Go", "Kubernetes", "MySQL", "Redis"],
  "self_evaluation": "热爱技术，擅长高并发系统设计。"
}

示例2 (字段缺失时填零值，不编造)
【简历文本】:
"""
李娜  应届毕业生
2026年毕业于北京大学 计算机科学与技术 硕士
"""

示例输出:
{
  "name": "李娜",
  "phone": "",
  "email": "",
  "education_level": "master",
  "school": "北京大学",
  "major": "计算机科学与技术",
  "graduation_date": "2026",
  "work_years": 0,
  "skills": [],
  "self_evaluation": ""
}
`
}

// ExtractCandidate 调用LLM抽取候选人信息
func (e *LLMCandidateExtractor) ExtractCandidate(ctx context.Context, resumeText string) (*types.CandidateInfo, error) {
	if e.llmModel == nil {
		return nil, fmt.Errorf("LLMCandidateExtractor: llmModel未初始化")
	}
	if strings.TrimSpace(resumeText) == "" {
		return &types.CandidateInfo{}, nil
	}

	userMsgContent := fmt.Sprintf(e.promptTemplate, resumeText)

	systemBaseMessage := "你是一位专业的简历信息抽取助手，只输出合法的JSON。"
	finalSystemMessage := systemBaseMessage
	if e.fewShotExamples != "" {
		finalSystemMessage = e.fewShotExamples + "\n\n" + systemBaseMessage
	}

	messages := []*einoschema.Message{
		einoschema.SystemMessage(finalSystemMessage),
		einoschema.UserMessage(userMsgContent),
	}

	e.logger.Printf("[LLMCandidateExtractor] 简历文本 (前300字符): %.300s", resumeText)

	response, err := e.llmModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("LLMCandidateExtractor: LLM调用失败: %w", err)
	}
	if response == nil || response.Content == "" {
		return nil, fmt.Errorf("LLMCandidateExtractor: LLM返回空响应")
	}

	processedContent := strings.TrimPrefix(response.Content, "\uFEFF")
	jsonStr := extractJSONObject(processedContent)
	if jsonStr == "" {
		return nil, fmt.Errorf("LLMCandidateExtractor: 无法从LLM响应中提取JSON: %.200s", processedContent)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var info types.CandidateInfo
	if err := json.Unmarshal([]byte(jsonStr), &info); err != nil {
		// 解析失败时自动修复再试一次
		fixedJSONStr := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixedJSONStr), &info); jsonErr != nil {
			return nil, fmt.Errorf("LLMCandidateExtractor: JSON解析失败（已尝试修复）: %w; 原始JSON: %.300s", err, jsonStr)
		}
	}

	normalizeCandidate(&info)
	return &info, nil
}

// normalizeCandidate 清理LLM输出：去空白、裁剪非法值
func normalizeCandidate(info *types.CandidateInfo) {
	info.Name = strings.TrimSpace(info.Name)
	info.Phone = strings.TrimSpace(info.Phone)
	info.Email = strings.TrimSpace(info.Email)
	info.EducationLevel = strings.ToLower(strings.TrimSpace(info.EducationLevel))
	info.School = strings.TrimSpace(info.School)
	info.Major = strings.TrimSpace(info.Major)
	info.GraduationDate = strings.TrimSpace(info.GraduationDate)
	if info.WorkYears < 0 {
		info.WorkYears = 0
	}
	cleaned := info.Skills[:0]
	for _, skill := range info.Skills {
		if s := strings.TrimSpace(skill); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	info.Skills = cleaned
}
