package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试用LLM模型模拟器
type MockLLMModel struct {
	// 模拟响应
	mockResponse string
	// 用于测试的错误
	Err error
	// 记录调用次数
	CallCount int
}

// Generate 实现model.ChatModel接口
func (m *MockLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	return &schema.Message{
		Role:    "assistant",
		Content: m.mockResponse,
	}, nil
}

// Stream 实现model.ChatModel接口
func (m *MockLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	// 测试中不需要流式响应
	return nil, nil
}

// BindTools 实现model.ChatModel接口
func (m *MockLLMModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// TestExtractCandidateBasic 测试从标准JSON响应抽取候选人信息
func TestExtractCandidateBasic(t *testing.T) {
	mockResponse := `{
		"name": "张伟",
		"phone": "13800138000",
		"email": "zhangwei@example.com",
		"education_level": "Bachelor",
		"school": "浙江大学",
		"major": "软件工程",
		"graduation_date": "2018-06",
		"work_years": 7,
		"skills": ["Go", "  Kubernetes  ", ""],
		"self_evaluation": "热爱技术"
	}`
	mockModel := &MockLLMModel{mockResponse: mockResponse}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "张伟的简历全文...")
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "张伟", info.Name)
	assert.Equal(t, "13800138000", info.Phone)
	// 学历归一化为小写
	assert.Equal(t, "bachelor", info.EducationLevel)
	assert.Equal(t, "浙江大学", info.School)
	assert.Equal(t, 7, info.WorkYears)
	// 空技能被剔除，前后空白被裁剪
	assert.Equal(t, []string{"Go", "Kubernetes"}, info.Skills)
}

// TestExtractCandidateWithMarkdownFence 测试响应裹在Markdown代码块里的情况
func TestExtractCandidateWithMarkdownFence(t *testing.T) {
	mockResponse := "好的，以下是抽取结果：\n```json\n{\"name\": \"李娜\", \"work_years\": 0, \"skills\": []}\n```"
	mockModel := &MockLLMModel{mockResponse: mockResponse}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "李娜的简历")
	require.NoError(t, err)
	assert.Equal(t, "李娜", info.Name)
	assert.Equal(t, 0, info.WorkYears)
}

// TestExtractCandidateEmptyText 空文本不调用LLM，直接返回空信息
func TestExtractCandidateEmptyText(t *testing.T) {
	mockModel := &MockLLMModel{mockResponse: "{}"}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "   \n  ")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Empty(t, info.Name)
	assert.Equal(t, 0, mockModel.CallCount)
}

// TestExtractCandidateNegativeWorkYears 负数年限被归零
func TestExtractCandidateNegativeWorkYears(t *testing.T) {
	mockModel := &MockLLMModel{mockResponse: `{"name": "王五", "work_years": -3}`}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "王五的简历")
	require.NoError(t, err)
	assert.Equal(t, 0, info.WorkYears)
}

// TestExtractCandidateLLMError LLM调用失败时向上传播错误
func TestExtractCandidateLLMError(t *testing.T) {
	mockModel := &MockLLMModel{Err: errors.New("api rate limited")}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "某简历")
	assert.Error(t, err)
	assert.Nil(t, info)
	assert.Contains(t, err.Error(), "LLM调用失败")
}

// TestExtractCandidateNoJSON 响应中没有JSON对象时报错
func TestExtractCandidateNoJSON(t *testing.T) {
	mockModel := &MockLLMModel{mockResponse: "抱歉，我无法处理这份简历。"}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	_, err := extractor.ExtractCandidate(context.Background(), "某简历")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "无法从LLM响应中提取JSON")
}

// TestExtractCandidateRepairsBrokenJSON 字符串内部未转义引号经修复后可解析
func TestExtractCandidateRepairsBrokenJSON(t *testing.T) {
	// self_evaluation 值里含有未转义的双引号
	mockResponse := `{"name": "赵六", "self_evaluation": "被同事称为"救火队长"的工程师", "work_years": 5}`
	mockModel := &MockLLMModel{mockResponse: mockResponse}
	extractor := NewLLMCandidateExtractor(mockModel, nil)

	info, err := extractor.ExtractCandidate(context.Background(), "赵六的简历")
	require.NoError(t, err)
	assert.Equal(t, "赵六", info.Name)
	assert.Contains(t, info.SelfEvaluation, "救火队长")
	assert.Equal(t, 5, info.WorkYears)
}
