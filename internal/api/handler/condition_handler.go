package handler

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"

	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/rules"
	"resume-screen-go/internal/storage/models"
)

// ConditionStore 条件集的增删改查入口
type ConditionStore interface {
	GetConditionSet(ctx context.Context, id string) (*models.ConditionSet, error)
	CreateConditionSet(ctx context.Context, set *models.ConditionSet) error
	UpdateConditionSet(ctx context.Context, set *models.ConditionSet) error
	ListConditionSets(ctx context.Context) ([]models.ConditionSet, error)
	DeleteConditionSet(ctx context.Context, id string) error
}

// ConditionHandler 条件集管理接口的处理器
type ConditionHandler struct {
	store ConditionStore
}

func NewConditionHandler(store ConditionStore) *ConditionHandler {
	return &ConditionHandler{store: store}
}

// ConditionSetRequest 创建/更新条件集的请求体
type ConditionSetRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Config      json.RawMessage `json:"config"`
	Status      string          `json:"status"`
}

// ConditionSetResponse 对外返回的条件集
type ConditionSetResponse struct {
	ConditionSetID string          `json:"condition_set_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Config         json.RawMessage `json:"config"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

func toConditionSetResponse(set *models.ConditionSet) *ConditionSetResponse {
	return &ConditionSetResponse{
		ConditionSetID: set.ConditionSetID,
		Name:           set.Name,
		Description:    set.Description,
		Config:         json.RawMessage(set.ConfigJSON),
		Status:         set.Status,
		CreatedAt:      set.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:      set.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// Create 创建条件集
// POST /api/v1/conditions
func (h *ConditionHandler) Create(c context.Context, ctx *app.RequestContext) {
	var req ConditionSetRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "name不能为空"})
		return
	}
	// 条件树必须能解码为规则树，拒绝结构非法的配置
	if _, err := rules.Decode(req.Config); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "条件配置无效: " + err.Error()})
		return
	}

	status := strings.ToUpper(req.Status)
	if status == "" {
		status = constants.ConditionSetActive
	}
	if status != constants.ConditionSetActive && status != constants.ConditionSetInactive {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "status参数无效"})
		return
	}

	uid, err := uuid.NewV7()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "生成条件集ID失败"})
		return
	}

	set := &models.ConditionSet{
		ConditionSetID: uid.String(),
		Name:           req.Name,
		Description:    req.Description,
		ConfigJSON:     models.StringToJSON(string(req.Config)),
		Status:         status,
	}
	if err := h.store.CreateConditionSet(c, set); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusCreated, toConditionSetResponse(set))
}

// Get 按ID查询条件集
// GET /api/v1/conditions/:condition_set_id
func (h *ConditionHandler) Get(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("condition_set_id")
	set, err := h.store.GetConditionSet(c, id)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if set == nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "条件集不存在"})
		return
	}
	ctx.JSON(consts.StatusOK, toConditionSetResponse(set))
}

// List 查询全部未删除的条件集
// GET /api/v1/conditions
func (h *ConditionHandler) List(c context.Context, ctx *app.RequestContext) {
	sets, err := h.store.ListConditionSets(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	items := make([]*ConditionSetResponse, 0, len(sets))
	for i := range sets {
		items = append(items, toConditionSetResponse(&sets[i]))
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"total": len(items),
		"items": items,
	})
}

// Update 更新条件集
// PUT /api/v1/conditions/:condition_set_id
func (h *ConditionHandler) Update(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("condition_set_id")
	var req ConditionSetRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "name不能为空"})
		return
	}
	if _, err := rules.Decode(req.Config); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "条件配置无效: " + err.Error()})
		return
	}

	status := strings.ToUpper(req.Status)
	if status != "" && status != constants.ConditionSetActive && status != constants.ConditionSetInactive {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "status参数无效"})
		return
	}

	existing, err := h.store.GetConditionSet(c, id)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	if existing == nil {
		ctx.JSON(consts.StatusNotFound, utils.H{"error": "条件集不存在"})
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.ConfigJSON = models.StringToJSON(string(req.Config))
	if status != "" {
		existing.Status = status
	}
	if err := h.store.UpdateConditionSet(c, existing); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, toConditionSetResponse(existing))
}

// Delete 逻辑删除条件集
// DELETE /api/v1/conditions/:condition_set_id
func (h *ConditionHandler) Delete(c context.Context, ctx *app.RequestContext) {
	id := ctx.Param("condition_set_id")
	if err := h.store.DeleteConditionSet(c, id); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": err.Error()})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"message": "已删除"})
}
