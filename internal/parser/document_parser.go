package parser

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// CompositeDocumentParser 按文件类型分派的简历文件解析器：
//   - .pdf      → Eino PDF Parser 提取全文
//   - .doc/.docx → Tika 服务器提取全文（未配置Tika时报错）
//   - .png/.jpg  → 无文本，文件内容作为照片字节返回
type CompositeDocumentParser struct {
	pdfParser *pdf.PDFParser
	tika      *TikaClient
	logger    *log.Logger
	timeout   time.Duration
}

// CompositeParserOption 解析器的配置选项
type CompositeParserOption func(*CompositeDocumentParser)

// WithTika 配置doc/docx解析用的Tika客户端
func WithTika(client *TikaClient) CompositeParserOption {
	return func(p *CompositeDocumentParser) {
		p.tika = client
	}
}

// WithParseTimeout 配置单个文件的解析超时
func WithParseTimeout(timeout time.Duration) CompositeParserOption {
	return func(p *CompositeDocumentParser) {
		p.timeout = timeout
	}
}

// WithParserLogger 配置自定义日志记录器
func WithParserLogger(logger *log.Logger) CompositeParserOption {
	return func(p *CompositeDocumentParser) {
		p.logger = logger
	}
}

// NewCompositeDocumentParser 初始化解析器。
// PDF解析配置为不按页面分割，获取整个文档的连续文本。
func NewCompositeDocumentParser(ctx context.Context, options ...CompositeParserOption) (*CompositeDocumentParser, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}

	parser := &CompositeDocumentParser{
		pdfParser: p,
		logger:    log.New(os.Stderr, "[简历解析器] ", log.LstdFlags),
		timeout:   30 * time.Second,
	}
	for _, option := range options {
		option(parser)
	}
	return parser, nil
}

// Extract 从简历文件中提取纯文本和内嵌图片
func (p *CompositeDocumentParser) Extract(ctx context.Context, filePath string) (string, [][]byte, error) {
	startTime := time.Now()
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		text, err := p.extractPDF(ctx, filePath)
		if err != nil {
			return "", nil, err
		}
		p.logger.Printf("PDF处理完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), time.Since(startTime).Seconds())
		return text, nil, nil

	case ".doc", ".docx":
		if p.tika == nil {
			return "", nil, fmt.Errorf("未配置Tika服务器，无法解析 %s 文件", ext)
		}
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", nil, fmt.Errorf("读取文件 %s 失败: %w", filePath, err)
		}
		text, err := p.tika.ExtractText(ctx, data)
		if err != nil {
			return "", nil, err
		}
		p.logger.Printf("Word处理完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), time.Since(startTime).Seconds())
		return text, nil, nil

	case ".png", ".jpg", ".jpeg":
		// 图片简历无可提取文本，整张图作为候选人照片交给后续阶段
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", nil, fmt.Errorf("读取图片 %s 失败: %w", filePath, err)
		}
		return "", [][]byte{data}, nil

	default:
		return "", nil, fmt.Errorf("不支持的文件类型: %q", ext)
	}
}

func (p *CompositeDocumentParser) extractPDF(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开PDF文件 %s 失败: %w", filePath, err)
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	docs, err := p.pdfParser.Parse(ctx, file,
		einoParser.WithURI(filePath),
		einoParser.WithExtraMeta(map[string]interface{}{
			"source_file_path": filePath,
		}),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF解析失败 (%s): %w", filePath, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF解析无结果 (%s)", filePath)
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var sb strings.Builder
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String(), nil
}
