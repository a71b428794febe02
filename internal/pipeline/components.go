package pipeline

import (
	"context"

	"resume-screen-go/internal/storage/models"
	"resume-screen-go/internal/types"
)

// DocumentParser 从简历文件中提取纯文本和内嵌图片
type DocumentParser interface {
	Extract(ctx context.Context, filePath string) (text string, images [][]byte, err error)
}

// CandidateExtractor 从简历文本中抽取结构化候选人信息
type CandidateExtractor interface {
	ExtractCandidate(ctx context.Context, resumeText string) (*types.CandidateInfo, error)
}

// QualificationJudge 条件配置无法解析为规则树时的LLM兜底评估
type QualificationJudge interface {
	Judge(ctx context.Context, info *types.CandidateInfo, criteria string) (*types.JudgeVerdict, error)
}

// TalentRepo 候选人与条件集的关系型存储
type TalentRepo interface {
	CreateTalent(ctx context.Context, talent *models.Talent) error
	UpdateTalentWorkflowStatus(ctx context.Context, talentID, status string) error
	GetConditionSet(ctx context.Context, id string) (*models.ConditionSet, error)
	// WithTransaction 在单个事务作用域内执行fn，fn返回错误则回滚
	WithTransaction(ctx context.Context, fn func(repo TalentRepo) error) error
}

// PhotoStore 候选人照片的对象存储
type PhotoStore interface {
	UploadTalentPhoto(ctx context.Context, talentID string, index int, data []byte) (url string, err error)
}

// VectorStore 简历全文的向量存储
type VectorStore interface {
	UpsertResume(ctx context.Context, talentID, resumeText string, metadata map[string]interface{}) error
}

// ResultCache 筛选结果、候选人信息与统计的缓存
type ResultCache interface {
	GetScreenResult(ctx context.Context, filePath string) (*types.ScreenResult, error)
	SetScreenResult(ctx context.Context, filePath string, result *types.ScreenResult) error
	SetTalentInfo(ctx context.Context, talentID string, info *types.CandidateInfo) error
	IncrScreenStats(ctx context.Context, conditionSetID string, qualified bool) error
}

// EventPublisher 筛选完成事件的消息发布
type EventPublisher interface {
	PublishScreeningCompleted(ctx context.Context, result *types.ScreenResult) error
}

// ContactCipher 联系方式落库前的加解密
type ContactCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Components 流水线的全部外部依赖，由调用方显式注入
type Components struct {
	Parser    DocumentParser
	Extractor CandidateExtractor
	Judge     QualificationJudge
	Repo      TalentRepo
	Photos    PhotoStore
	Vectors   VectorStore
	Cache     ResultCache
	Events    EventPublisher
	Cipher    ContactCipher
}

// Settings 流水线的行为参数
type Settings struct {
	// 不合格原因最多保留的条目数
	MaxReasonItems int
	// 批量筛选的最大并发数
	BatchConcurrency int
	// 命中结果缓存时是否直接短路返回
	DedupShortCircuit bool
}
