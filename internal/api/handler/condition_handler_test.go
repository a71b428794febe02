package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-screen-go/internal/api/handler"
	"resume-screen-go/internal/api/router"
	"resume-screen-go/internal/constants"
	"resume-screen-go/internal/storage/models"
)

// fakeConditionStore 条件集的内存实现
type fakeConditionStore struct {
	sets map[string]*models.ConditionSet
}

func (f *fakeConditionStore) GetConditionSet(ctx context.Context, id string) (*models.ConditionSet, error) {
	set, ok := f.sets[id]
	if !ok || set.Status == constants.ConditionSetDeleted {
		return nil, nil
	}
	return set, nil
}

func (f *fakeConditionStore) CreateConditionSet(ctx context.Context, set *models.ConditionSet) error {
	set.CreatedAt = time.Now()
	set.UpdatedAt = set.CreatedAt
	f.sets[set.ConditionSetID] = set
	return nil
}

func (f *fakeConditionStore) UpdateConditionSet(ctx context.Context, set *models.ConditionSet) error {
	if _, ok := f.sets[set.ConditionSetID]; !ok {
		return fmt.Errorf("条件集 %s 不存在", set.ConditionSetID)
	}
	set.UpdatedAt = time.Now()
	f.sets[set.ConditionSetID] = set
	return nil
}

func (f *fakeConditionStore) ListConditionSets(ctx context.Context) ([]models.ConditionSet, error) {
	var out []models.ConditionSet
	for _, set := range f.sets {
		if set.Status != constants.ConditionSetDeleted {
			out = append(out, *set)
		}
	}
	return out, nil
}

func (f *fakeConditionStore) DeleteConditionSet(ctx context.Context, id string) error {
	if set, ok := f.sets[id]; ok {
		set.Status = constants.ConditionSetDeleted
	}
	return nil
}

func newConditionTestEnv(t *testing.T) (*server.Hertz, *fakeConditionStore) {
	t.Helper()
	store := &fakeConditionStore{sets: map[string]*models.ConditionSet{}}
	sh := handler.NewScreenHandler(&fakeRunner{}, &fakeTalentReader{}, nil, nil, fakeCipher{}, t.TempDir())
	ch := handler.NewConditionHandler(store)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(engine, sh, ch, nil)
	return engine, store
}

const validConditionConfig = `{
	"operator": "and",
	"conditions": [
		{"field": "education_level", "operator": "gte", "value": "bachelor"},
		{"field": "work_years", "operator": "gte", "value": 3}
	]
}`

func performJSON(engine *server.Hertz, method, path string, payload interface{}) *ut.ResponseRecorder {
	data, _ := json.Marshal(payload)
	body := bytes.NewBuffer(data)
	return ut.PerformRequest(engine.Engine, method, path,
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func TestCreateConditionSet(t *testing.T) {
	engine, store := newConditionTestEnv(t)

	resp := performJSON(engine, "POST", "/api/v1/conditions", handler.ConditionSetRequest{
		Name:        "后端工程师初筛",
		Description: "本科及以上，三年经验",
		Config:      json.RawMessage(validConditionConfig),
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var created handler.ConditionSetResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ConditionSetID)
	assert.Equal(t, "后端工程师初筛", created.Name)
	assert.Equal(t, constants.ConditionSetActive, created.Status)

	stored := store.sets[created.ConditionSetID]
	require.NotNil(t, stored)
	assert.JSONEq(t, validConditionConfig, string(stored.ConfigJSON))
}

func TestCreateConditionSetRejectsBadConfig(t *testing.T) {
	engine, _ := newConditionTestEnv(t)

	cases := []struct {
		name   string
		config string
	}{
		{"未知算子", `{"field": "work_years", "operator": "almost_eq", "value": 3}`},
		{"叶子缺field", `{"operator": "gte", "value": 3}`},
		{"空配置", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performJSON(engine, "POST", "/api/v1/conditions", handler.ConditionSetRequest{
				Name:   "非法配置",
				Config: json.RawMessage(tc.config),
			})
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Contains(t, resp.Body.String(), "条件配置无效")
		})
	}
}

func TestCreateConditionSetRequiresName(t *testing.T) {
	engine, _ := newConditionTestEnv(t)
	resp := performJSON(engine, "POST", "/api/v1/conditions", handler.ConditionSetRequest{
		Name:   "  ",
		Config: json.RawMessage(validConditionConfig),
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetConditionSet(t *testing.T) {
	engine, store := newConditionTestEnv(t)
	store.sets["cs-001"] = &models.ConditionSet{
		ConditionSetID: "cs-001",
		Name:           "算法岗初筛",
		ConfigJSON:     models.StringToJSON(validConditionConfig),
		Status:         constants.ConditionSetActive,
	}

	resp := ut.PerformRequest(engine.Engine, "GET", "/api/v1/conditions/cs-001", &ut.Body{})
	require.Equal(t, http.StatusOK, resp.Code)

	var got handler.ConditionSetResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "算法岗初筛", got.Name)

	resp = ut.PerformRequest(engine.Engine, "GET", "/api/v1/conditions/no-such-id", &ut.Body{})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUpdateConditionSet(t *testing.T) {
	engine, store := newConditionTestEnv(t)
	store.sets["cs-001"] = &models.ConditionSet{
		ConditionSetID: "cs-001",
		Name:           "原名称",
		ConfigJSON:     models.StringToJSON(validConditionConfig),
		Status:         constants.ConditionSetActive,
	}

	resp := performJSON(engine, "PUT", "/api/v1/conditions/cs-001", handler.ConditionSetRequest{
		Name:   "新名称",
		Config: json.RawMessage(validConditionConfig),
		Status: constants.ConditionSetInactive,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Equal(t, "新名称", store.sets["cs-001"].Name)
	assert.Equal(t, constants.ConditionSetInactive, store.sets["cs-001"].Status)
}

func TestUpdateConditionSetNotFound(t *testing.T) {
	engine, _ := newConditionTestEnv(t)
	resp := performJSON(engine, "PUT", "/api/v1/conditions/no-such-id", handler.ConditionSetRequest{
		Name:   "新名称",
		Config: json.RawMessage(validConditionConfig),
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeleteConditionSet(t *testing.T) {
	engine, store := newConditionTestEnv(t)
	store.sets["cs-001"] = &models.ConditionSet{
		ConditionSetID: "cs-001",
		Name:           "待删除",
		ConfigJSON:     models.StringToJSON(validConditionConfig),
		Status:         constants.ConditionSetActive,
	}

	resp := ut.PerformRequest(engine.Engine, "DELETE", "/api/v1/conditions/cs-001", &ut.Body{})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, constants.ConditionSetDeleted, store.sets["cs-001"].Status)

	// 删除后查询应返回404
	resp = ut.PerformRequest(engine.Engine, "GET", "/api/v1/conditions/cs-001", &ut.Body{})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
