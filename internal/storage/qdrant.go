package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-screen-go/internal/config"
	"resume-screen-go/internal/pipeline"
	"resume-screen-go/internal/tracing"
)

var qdrantTracer = otel.Tracer("resume-screen-go/storage/qdrant")

// QdrantPointIDNamespace 用于从talent_id生成确定性向量点ID的命名空间，
// 同一候选人重复入库会覆盖而不是累积。
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("9c1f6a8e-4d02-47b9-b5a3-1e2f60c47d11"))

// SearchResult 向量检索结果项
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// Qdrant 通过HTTP API访问Qdrant向量数据库
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	httpClient     *http.Client
}

// QdrantOption Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHttpTimeout 设置HTTP客户端超时
func WithHttpTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端并确保集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}
	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = "talents"
	}
	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024 // 与阿里云Embedding默认维度一致
	}

	q := &Qdrant{
		endpoint:       endpoint,
		collectionName: collectionName,
		vectorSize:     vectorSize,
		distanceMetric: "Cosine",
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(context.Background()); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collectionName, err)
	}

	log.Printf("成功连接到Qdrant服务器: %s, 集合: %s", endpoint, collectionName)
	return q, nil
}

func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.collection", q.collectionName),
			attribute.Int("db.vector_size", q.vectorSize),
		))
	defer span.End()

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, q.collectionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建检查集合请求失败: %w", err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return fmt.Errorf("发送检查集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		return q.createCollection(ctx)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("检查集合失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return fmt.Errorf("读取集合信息响应失败: %w", err)
	}
	if err := json.Unmarshal(body, &collectionInfo); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("解析集合信息失败: %w", err)
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	if existingSize != q.vectorSize {
		log.Printf("警告: 现有集合维度(%d)与配置维度(%d)不匹配", existingSize, q.vectorSize)
		span.AddEvent("collection_config_mismatch")
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collectionName), createReqBody, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("创建集合失败: %w", err)
	}
	log.Printf("Qdrant集合 '%s' 创建成功", q.collectionName)
	span.SetStatus(codes.Ok, "")
	return nil
}

// UpsertPoint 写入或覆盖一个向量点
func (q *Qdrant) UpsertPoint(ctx context.Context, pointID string, vector []float64, payload map[string]interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertPoint",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.operation", "upsert_points"),
			attribute.String("db.collection", q.collectionName),
			attribute.String("point.id", pointID),
		))
	defer span.End()

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("向量维度(%d)与集合维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	reqBody := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":      pointID,
				"vector":  vector,
				"payload": payload,
			},
		},
	}
	var result struct {
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName), reqBody, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.Float64("qdrant.response_time", result.Time))
	span.SetStatus(codes.Ok, "")
	return nil
}

// Search 按向量检索最相似的点
func (q *Qdrant) Search(ctx context.Context, queryVector []float64, limit int, filter map[string]interface{}) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Search",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.operation", "search_vectors"),
			attribute.String("db.collection", q.collectionName),
			attribute.Int("search.limit", limit),
		))
	defer span.End()

	if len(queryVector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与集合维度(%d)不匹配", len(queryVector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	searchReq := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}
	if len(filter) > 0 {
		searchReq["filter"] = filter
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	if err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), searchReq, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	searchResults := make([]SearchResult, 0, len(result.Result))
	for _, point := range result.Result {
		searchResults = append(searchResults, SearchResult{
			ID:      point.ID,
			Score:   point.Score,
			Payload: point.Payload,
		})
	}
	span.SetAttributes(attribute.Int("search.results.count", len(searchResults)))
	span.SetStatus(codes.Ok, "")
	return searchResults, nil
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("net.peer.name", q.endpoint),
			attribute.String("db.system", "qdrant"),
		))
	defer span.End()

	var req *http.Request
	var err error
	if body != nil {
		jsonBody, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			tracing.RecordError(span, marshalErr, tracing.ErrorTypeVectorDB)
			return marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API错误: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// ResumeVectorStore 简历全文的向量化入库与相似检索
type ResumeVectorStore struct {
	qdrant   *Qdrant
	embedder embedding.Embedder
}

// NewResumeVectorStore 创建简历向量存储
func NewResumeVectorStore(q *Qdrant, embedder embedding.Embedder) (*ResumeVectorStore, error) {
	if q == nil {
		return nil, fmt.Errorf("qdrant客户端不能为空")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder不能为空")
	}
	return &ResumeVectorStore{qdrant: q, embedder: embedder}, nil
}

var _ pipeline.VectorStore = (*ResumeVectorStore)(nil)

// UpsertResume 将简历全文向量化后写入Qdrant。
// 点ID由talent_id确定性生成，重复写入覆盖旧向量。
func (s *ResumeVectorStore) UpsertResume(ctx context.Context, talentID, resumeText string, metadata map[string]interface{}) error {
	if talentID == "" {
		return fmt.Errorf("talent_id不能为空")
	}
	if resumeText == "" {
		return fmt.Errorf("简历文本不能为空")
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{resumeText})
	if err != nil {
		return fmt.Errorf("简历文本向量化失败: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("向量化结果数量异常: %d", len(vectors))
	}

	pointID := uuid.NewV5(QdrantPointIDNamespace, talentID).String()
	payload := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["talent_id"] = talentID

	return s.qdrant.UpsertPoint(ctx, pointID, vectors[0], payload)
}

// SearchSimilarTalents 按自由文本检索最相似的候选人
func (s *ResumeVectorStore) SearchSimilarTalents(ctx context.Context, queryText string, limit int) ([]SearchResult, error) {
	if queryText == "" {
		return nil, fmt.Errorf("查询文本不能为空")
	}
	vectors, err := s.embedder.EmbedStrings(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("查询文本向量化失败: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("向量化结果数量异常: %d", len(vectors))
	}
	return s.qdrant.Search(ctx, vectors[0], limit, nil)
}
