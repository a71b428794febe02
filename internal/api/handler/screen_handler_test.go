package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
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
	"resume-screen-go/internal/storage"
	"resume-screen-go/internal/storage/models"
	"resume-screen-go/internal/types"
)

// fakeRunner 记录收到的参数并返回预设结果
type fakeRunner struct {
	lastFilePath       string
	lastFilePaths      []string
	lastConditionSetID string
	lastConfig         json.RawMessage
	result             *types.ScreenResult
}

func (f *fakeRunner) Run(ctx context.Context, filePath, conditionSetID string, conditionConfig json.RawMessage) *types.ScreenResult {
	f.lastFilePath = filePath
	f.lastConditionSetID = conditionSetID
	f.lastConfig = conditionConfig
	return f.result
}

func (f *fakeRunner) RunBatch(ctx context.Context, filePaths []string, conditionSetID string, conditionConfig json.RawMessage) []*types.ScreenResult {
	f.lastFilePaths = filePaths
	f.lastConditionSetID = conditionSetID
	results := make([]*types.ScreenResult, len(filePaths))
	for i := range filePaths {
		results[i] = f.result
	}
	return results
}

type fakeTalentReader struct {
	talents map[string]*models.Talent
}

func (f *fakeTalentReader) GetTalent(ctx context.Context, talentID string) (*models.Talent, error) {
	return f.talents[talentID], nil
}

func (f *fakeTalentReader) ListTalents(ctx context.Context, status string, offset, limit int) ([]models.Talent, int64, error) {
	var out []models.Talent
	for _, t := range f.talents {
		if status == "" || t.ScreeningStatus == status {
			out = append(out, *t)
		}
	}
	return out, int64(len(out)), nil
}

type fakeResultReader struct {
	results map[string]*types.ScreenResult
	stats   *types.ScreenStats
}

func (f *fakeResultReader) GetScreenResult(ctx context.Context, filePath string) (*types.ScreenResult, error) {
	return f.results[filePath], nil
}

func (f *fakeResultReader) GetScreenStats(ctx context.Context, conditionSetID string) (*types.ScreenStats, error) {
	if f.stats == nil {
		return &types.ScreenStats{}, nil
	}
	return f.stats, nil
}

type fakeSearcher struct {
	lastQuery string
	lastLimit int
	results   []storage.SearchResult
}

func (f *fakeSearcher) SearchSimilarTalents(ctx context.Context, queryText string, limit int) ([]storage.SearchResult, error) {
	f.lastQuery = queryText
	f.lastLimit = limit
	return f.results, nil
}

// fakeCipher 用可逆前缀模拟加解密
type fakeCipher struct{}

func (fakeCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (fakeCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) > 4 && ciphertext[:4] == "enc:" {
		return ciphertext[4:], nil
	}
	return ciphertext, nil
}

type testEnv struct {
	engine   *server.Hertz
	runner   *fakeRunner
	talents  *fakeTalentReader
	results  *fakeResultReader
	searcher *fakeSearcher
}

func newTestEnv(t *testing.T, apiKeys []string) *testEnv {
	t.Helper()
	env := &testEnv{
		runner:   &fakeRunner{result: &types.ScreenResult{RunID: "run-1", Qualified: true, Score: 88, Status: "completed"}},
		talents:  &fakeTalentReader{talents: map[string]*models.Talent{}},
		results:  &fakeResultReader{results: map[string]*types.ScreenResult{}},
		searcher: &fakeSearcher{},
	}

	sh := handler.NewScreenHandler(env.runner, env.talents, env.results, env.searcher, fakeCipher{}, t.TempDir())
	ch := handler.NewConditionHandler(&fakeConditionStore{sets: map[string]*models.ConditionSet{}})

	env.engine = server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(env.engine, sh, ch, apiKeys)
	return env
}

func buildUploadForm(t *testing.T, fieldName, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestScreenUploadSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := buildUploadForm(t, "file", "resume.pdf", []byte("%PDF-1.4 dummy"), map[string]string{
		"condition_set_id": "cs-001",
	})

	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var result types.ScreenResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, "run-1", result.RunID)
	assert.True(t, result.Qualified)

	assert.Equal(t, "cs-001", env.runner.lastConditionSetID)
	assert.NotEmpty(t, env.runner.lastFilePath, "上传文件应落盘后交给流水线")
}

// TestScreenUploadSameContentSamePath 验证同一份简历重复上传落到同一路径，
// 流水线侧按路径生成的去重键才会重复命中
func TestScreenUploadSameContentSamePath(t *testing.T) {
	env := newTestEnv(t, nil)
	content := []byte("%PDF-1.4 same resume bytes")

	body1, ct1 := buildUploadForm(t, "file", "zhangsan.pdf", content, nil)
	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body1, Len: body1.Len()},
		ut.Header{Key: "Content-Type", Value: ct1},
	)
	require.Equal(t, http.StatusOK, resp.Code)
	firstPath := env.runner.lastFilePath

	// 即使上传时换了文件名，内容相同就得到同一路径
	body2, ct2 := buildUploadForm(t, "file", "copy-of-zhangsan.pdf", content, nil)
	resp = ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body2, Len: body2.Len()},
		ut.Header{Key: "Content-Type", Value: ct2},
	)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, firstPath, env.runner.lastFilePath)

	// 内容不同则路径不同
	body3, ct3 := buildUploadForm(t, "file", "zhangsan.pdf", []byte("%PDF-1.4 other resume"), nil)
	resp = ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body3, Len: body3.Len()},
		ut.Header{Key: "Content-Type", Value: ct3},
	)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotEqual(t, firstPath, env.runner.lastFilePath)
}

func TestScreenUploadMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := func() (*bytes.Buffer, string) {
		b := &bytes.Buffer{}
		w := multipart.NewWriter(b)
		require.NoError(t, w.WriteField("condition_set_id", "cs-001"))
		require.NoError(t, w.Close())
		return b, w.FormDataContentType()
	}()

	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestScreenUploadRejectsUnknownExtension(t *testing.T) {
	env := newTestEnv(t, nil)
	body, contentType := buildUploadForm(t, "file", "malware.exe", []byte("MZ"), nil)

	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "不支持的文件类型")
}

func TestScreenBatch(t *testing.T) {
	env := newTestEnv(t, nil)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"a.pdf", "b.docx"} {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("dummy content"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.WriteField("condition_set_id", "cs-batch"))
	require.NoError(t, writer.Close())

	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/batch",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: writer.FormDataContentType()},
	)
	require.Equal(t, http.StatusOK, resp.Code)

	var batchResp struct {
		Total   int                   `json:"total"`
		Results []*types.ScreenResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &batchResp))
	assert.Equal(t, 2, batchResp.Total)
	assert.Len(t, env.runner.lastFilePaths, 2)
	assert.Equal(t, "cs-batch", env.runner.lastConditionSetID)
}

func TestScreenBatchNoFiles(t *testing.T) {
	env := newTestEnv(t, nil)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("condition_set_id", "cs-batch"))
	require.NoError(t, writer.Close())

	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/screen/batch",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: writer.FormDataContentType()},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetResultHitAndMiss(t *testing.T) {
	env := newTestEnv(t, nil)
	env.results.results["/tmp/resume.pdf"] = &types.ScreenResult{RunID: "run-cached", Qualified: false, Score: 30}

	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/screen/result?file_path=%2Ftmp%2Fresume.pdf", &ut.Body{})
	require.Equal(t, http.StatusOK, resp.Code)
	var result types.ScreenResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, "run-cached", result.RunID)

	resp = ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/screen/result?file_path=%2Ftmp%2Fmissing.pdf", &ut.Body{})
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/screen/result", &ut.Body{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.results.stats = &types.ScreenStats{Total: 10, Qualified: 4, Disqualified: 6}

	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/screen/stats/cs-001", &ut.Body{})
	require.Equal(t, http.StatusOK, resp.Code)

	var stats types.ScreenStats
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Equal(t, int64(10), stats.Total)
	assert.Equal(t, int64(4), stats.Qualified)
}

func TestGetTalentDecryptsContacts(t *testing.T) {
	env := newTestEnv(t, nil)
	now := time.Now()
	env.talents.talents["talent-1"] = &models.Talent{
		TalentID:        "talent-1",
		Name:            "张三",
		Phone:           "enc:13800138000",
		Email:           "enc:zhangsan@example.com",
		EducationLevel:  "master",
		School:          "浙江大学",
		SchoolTier:      "985",
		WorkYears:       5,
		SkillsJSON:      models.StringToJSON(`["Go","Kubernetes"]`),
		ScreeningStatus: constants.ScreeningQualified,
		ScreeningScore:  90,
		WorkflowStatus:  constants.TalentWorkflowCompleted,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents/talent-1", &ut.Body{})
	require.Equal(t, http.StatusOK, resp.Code)

	var talent handler.TalentResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &talent))
	assert.Equal(t, "13800138000", talent.Phone, "电话应解密后返回")
	assert.Equal(t, "zhangsan@example.com", talent.Email, "邮箱应解密后返回")
	assert.Equal(t, []string{"Go", "Kubernetes"}, talent.Skills)
	assert.Equal(t, constants.ScreeningQualified, talent.ScreeningStatus)
}

func TestGetTalentNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents/no-such-id", &ut.Body{})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListTalentsInvalidStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents?status=bogus", &ut.Body{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSearchSimilar(t *testing.T) {
	env := newTestEnv(t, nil)
	env.searcher.results = []storage.SearchResult{
		{ID: "p-1", Score: 0.92, Payload: map[string]interface{}{"talent_id": "talent-1"}},
	}

	reqBody, _ := json.Marshal(handler.SearchSimilarRequest{Query: "五年Go后端经验", Limit: 5})
	body := bytes.NewBuffer(reqBody)
	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/talents/search",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "五年Go后端经验", env.searcher.lastQuery)
	assert.Equal(t, 5, env.searcher.lastLimit)
}

func TestSearchSimilarEmptyQuery(t *testing.T) {
	env := newTestEnv(t, nil)
	reqBody := []byte(`{"query":"   "}`)
	body := bytes.NewBuffer(reqBody)
	resp := ut.PerformRequest(env.engine.Engine, "POST", "/api/v1/talents/search",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, []string{"secret-key"})

	// 没带key应被拒绝
	resp := ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents", &ut.Body{})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// 错误的key也应被拒绝
	resp = ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents", &ut.Body{},
		ut.Header{Key: "X-API-Key", Value: "wrong-key"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	// 正确的key放行
	resp = ut.PerformRequest(env.engine.Engine, "GET", "/api/v1/talents", &ut.Body{},
		ut.Header{Key: "X-API-Key", Value: "secret-key"})
	assert.Equal(t, http.StatusOK, resp.Code)

	// 健康检查不需要key
	resp = ut.PerformRequest(env.engine.Engine, "GET", "/health", &ut.Body{})
	assert.Equal(t, http.StatusOK, resp.Code)
}
