package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockChatModel 返回固定响应的ChatModel，供未配置API密钥时的本地联调使用
type MockChatModel struct {
	// 每次Generate返回的内容
	Response string
	// 非nil时Generate直接返回该错误
	Err error
	// 记录收到的全部消息
	ReceivedMessages []*schema.Message
}

// NewMockChatModel 创建固定响应的模拟模型
func NewMockChatModel(response string) *MockChatModel {
	return &MockChatModel{
		Response:         response,
		ReceivedMessages: make([]*schema.Message, 0),
	}
}

// Generate 返回预设响应
func (m *MockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.ReceivedMessages = append(m.ReceivedMessages, messages...)
	if m.Err != nil {
		return nil, m.Err
	}
	return schema.AssistantMessage(m.Response, nil), nil
}

// Stream 未实现
func (m *MockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("MockChatModel的Stream方法未实现")
}

// BindTools 空实现
func (m *MockChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)
