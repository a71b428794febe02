// Package handler 实现简历筛选服务的HTTP处理器。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/logger"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/storage"
	"resume-screen-go/internal/storage/models"
	"resume-screen-go/internal/types"
	pkgutils "resume-screen-go/pkg/utils"
)

// ScreenRunner 筛选流水线的执行入口
type ScreenRunner interface {
	Run(ctx context.Context, filePath, conditionSetID string, conditionConfig json.RawMessage) *types.ScreenResult
	RunBatch(ctx context.Context, filePaths []string, conditionSetID string, conditionConfig json.RawMessage) []*types.ScreenResult
}

// TalentReader 候选人查询入口
type TalentReader interface {
	GetTalent(ctx context.Context, talentID string) (*models.Talent, error)
	ListTalents(ctx context.Context, status string, offset, limit int) ([]models.Talent, int64, error)
}

// ResultReader 筛选结果与统计的缓存查询入口
type ResultReader interface {
	GetScreenResult(ctx context.Context, filePath string) (*types.ScreenResult, error)
	GetScreenStats(ctx context.Context, conditionSetID string) (*types.ScreenStats, error)
}

// SimilaritySearcher 相似候选人检索入口
type SimilaritySearcher interface {
	SearchSimilarTalents(ctx context.Context, queryText string, limit int) ([]storage.SearchResult, error)
}

// ScreenHandler 筛选相关接口的处理器
type ScreenHandler struct {
	runner       ScreenRunner
	talents      TalentReader
	results      ResultReader
	searcher     SimilaritySearcher
	cipher       pipeline.ContactCipher
	uploadTmpDir string
}

// NewScreenHandler 创建筛选处理器。results/searcher按部署可为nil，对应接口返回503。
func NewScreenHandler(runner ScreenRunner, talents TalentReader, results ResultReader, searcher SimilaritySearcher, cipher pipeline.ContactCipher, uploadTmpDir string) *ScreenHandler {
	if uploadTmpDir == "" {
		uploadTmpDir = os.TempDir()
	}
	return &ScreenHandler{
		runner:       runner,
		talents:      talents,
		results:      results,
		searcher:     searcher,
		cipher:       cipher,
		uploadTmpDir: uploadTmpDir,
	}
}

// ScreenUpload 处理单份简历上传并同步执行筛选
// POST /api/v1/screen/upload
func (h *ScreenHandler) ScreenUpload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := constants.AcceptedFileExtensions[ext]; !ok {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("不支持的文件类型: %s", ext)})
		return
	}

	conditionSetID := ctx.PostForm("condition_set_id")
	conditionConfig := json.RawMessage(ctx.PostForm("condition_config"))

	filePath, err := h.saveUpload(fileHeader)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	defer os.Remove(filePath)

	result := h.runner.Run(c, filePath, conditionSetID, conditionConfig)
	ctx.JSON(consts.StatusOK, result)
}

// ScreenBatch 处理多份简历的批量筛选
// POST /api/v1/screen/batch
func (h *ScreenHandler) ScreenBatch(c context.Context, ctx *app.RequestContext) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "解析multipart表单失败"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "未上传任何文件"})
		return
	}

	conditionSetID := ""
	if v := form.Value["condition_set_id"]; len(v) > 0 {
		conditionSetID = v[0]
	}
	var conditionConfig json.RawMessage
	if v := form.Value["condition_config"]; len(v) > 0 {
		conditionConfig = json.RawMessage(v[0])
	}

	filePaths := make([]string, 0, len(files))
	defer func() {
		for _, p := range filePaths {
			os.Remove(p)
		}
	}()
	for _, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if _, ok := constants.AcceptedFileExtensions[ext]; !ok {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": fmt.Sprintf("不支持的文件类型: %s", ext)})
			return
		}
		p, saveErr := h.saveUpload(fh)
		if saveErr != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": saveErr.Error()})
			return
		}
		filePaths = append(filePaths, p)
	}

	results := h.runner.RunBatch(c, filePaths, conditionSetID, conditionConfig)
	ctx.JSON(consts.StatusOK, utils.H{
		"total":   len(results),
		"results": results,
	})
}

// GetResult 按文件路径查询已缓存的筛选结果
// GET /api/v1/screen/result?file_path=...
func (h *ScreenHandler) GetResult(c context.Context, ctx *app.RequestContext) {
	if h.results == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "结果缓存未启用"})
		return
	}
	filePath := ctx.Query("file_path")
	if filePath == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少file_path参数"})
		return
	}

	result, err := h.results.GetScreenResult(c, filePath)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if result == nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "未找到筛选结果"})
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

// GetStats 查询条件集维度的筛选统计
// GET /api/v1/screen/stats/:condition_set_id
func (h *ScreenHandler) GetStats(c context.Context, ctx *app.RequestContext) {
	if h.results == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "结果缓存未启用"})
		return
	}
	conditionSetID := ctx.Param("condition_set_id")
	stats, err := h.results.GetScreenStats(c, conditionSetID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, stats)
}

// TalentResponse 对外返回的候选人信息，联系方式已解密
type TalentResponse struct {
	TalentID        string   `json:"talent_id"`
	Name            string   `json:"name"`
	Phone           string   `json:"phone"`
	Email           string   `json:"email"`
	EducationLevel  string   `json:"education_level"`
	School          string   `json:"school"`
	SchoolTier      string   `json:"school_tier"`
	Major           string   `json:"major"`
	GraduationDate  string   `json:"graduation_date"`
	WorkYears       int      `json:"work_years"`
	Skills          []string `json:"skills"`
	PhotoURLs       []string `json:"photo_urls"`
	ScreeningStatus string   `json:"screening_status"`
	ScreeningScore  int      `json:"screening_score"`
	ScreeningReason string   `json:"screening_reason"`
	WorkflowStatus  string   `json:"workflow_status"`
}

// GetTalent 按ID查询候选人详情
// GET /api/v1/talents/:talent_id
func (h *ScreenHandler) GetTalent(c context.Context, ctx *app.RequestContext) {
	talentID := ctx.Param("talent_id")
	talent, err := h.talents.GetTalent(c, talentID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if talent == nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "候选人不存在"})
		return
	}
	ctx.JSON(consts.StatusOK, h.toTalentResponse(c, talent))
}

// ListTalents 按筛选状态分页查询候选人
// GET /api/v1/talents?status=QUALIFIED&offset=0&limit=20
func (h *ScreenHandler) ListTalents(c context.Context, ctx *app.RequestContext) {
	status := strings.ToUpper(ctx.Query("status"))
	if status != "" && status != constants.ScreeningQualified && status != constants.ScreeningDisqualified {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "status参数无效"})
		return
	}
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	talents, total, err := h.talents.ListTalents(c, status, offset, limit)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}

	items := make([]*TalentResponse, 0, len(talents))
	for i := range talents {
		items = append(items, h.toTalentResponse(c, &talents[i]))
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"total": total,
		"items": items,
	})
}

// SearchSimilarRequest 相似候选人检索请求
type SearchSimilarRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// SearchSimilar 按自由文本检索相似候选人
// POST /api/v1/talents/search
func (h *ScreenHandler) SearchSimilar(c context.Context, ctx *app.RequestContext) {
	if h.searcher == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "向量检索未启用"})
		return
	}
	var req SearchSimilarRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "query不能为空"})
		return
	}

	results, err := h.searcher.SearchSimilarTalents(c, req.Query, req.Limit)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"total":   len(results),
		"results": results,
	})
}

// saveUpload 把上传内容落到临时目录。文件名取内容MD5，
// 同一份简历的重复上传得到同一路径，去重键才会重复命中。
func (h *ScreenHandler) saveUpload(fileHeader *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if _, ok := constants.AcceptedFileExtensions[ext]; !ok {
		return "", fmt.Errorf("不支持的文件类型: %s", ext)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("读取上传文件失败: %w", err)
	}

	if err := os.MkdirAll(h.uploadTmpDir, 0o755); err != nil {
		return "", fmt.Errorf("创建上传目录失败: %w", err)
	}

	dstPath := filepath.Join(h.uploadTmpDir, pkgutils.CalculateMD5(data)+ext)
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return "", fmt.Errorf("写入临时文件失败: %w", err)
	}
	return dstPath, nil
}

func (h *ScreenHandler) toTalentResponse(ctx context.Context, t *models.Talent) *TalentResponse {
	resp := &TalentResponse{
		TalentID:        t.TalentID,
		Name:            t.Name,
		EducationLevel:  t.EducationLevel,
		School:          t.School,
		SchoolTier:      t.SchoolTier,
		Major:           t.Major,
		GraduationDate:  t.GraduationDate,
		WorkYears:       t.WorkYears,
		ScreeningStatus: t.ScreeningStatus,
		ScreeningScore:  t.ScreeningScore,
		ScreeningReason: t.ScreeningReason,
		WorkflowStatus:  t.WorkflowStatus,
	}

	if h.cipher != nil {
		if phone, err := h.cipher.Decrypt(t.Phone); err == nil {
			resp.Phone = phone
		} else {
			logger.Ctx(ctx).Warn().Err(err).Str("talent_id", t.TalentID).Msg("解密电话失败")
		}
		if email, err := h.cipher.Decrypt(t.Email); err == nil {
			resp.Email = email
		} else {
			logger.Ctx(ctx).Warn().Err(err).Str("talent_id", t.TalentID).Msg("解密邮箱失败")
		}
	}

	if len(t.SkillsJSON) > 0 {
		if err := json.Unmarshal(t.SkillsJSON, &resp.Skills); err != nil {
			resp.Skills = nil
		}
	}
	if len(t.PhotoURLsJSON) > 0 {
		if err := json.Unmarshal(t.PhotoURLsJSON, &resp.PhotoURLs); err != nil {
			resp.PhotoURLs = nil
		}
	}
	return resp
}
