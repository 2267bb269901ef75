package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lablink-go/internal/config"
)

// HTTPReranker 通过rerank端点对(query, document)对联合打分，
// 实现matching.PairScorer接口。
type HTTPReranker struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPReranker 创建新的HTTP重排客户端
func NewHTTPReranker(cfg config.RerankerConfig) (*HTTPReranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("reranker API密钥不能为空")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("reranker base_url不能为空")
	}
	model := cfg.Model
	if model == "" {
		model = "gte-rerank"
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// rerankRequest rerank请求结构
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse rerank响应结构
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Error *apiError `json:"error,omitempty"`
}

// ScorePairs 对每个文档返回相对query的原始相关性分数，顺序与docs对齐。
func (r *HTTPReranker) ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化rerank请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用rerank服务失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取rerank响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank服务返回非200状态码 %d: %s", resp.StatusCode, string(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("解析rerank响应失败: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("rerank服务API错误: %s (%s)", parsed.Error.Message, parsed.Error.Code)
	}
	if len(parsed.Results) != len(docs) {
		return nil, fmt.Errorf("rerank结果数量(%d)与文档数量(%d)不匹配", len(parsed.Results), len(docs))
	}

	out := make([]float64, len(docs))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(out) {
			return nil, fmt.Errorf("rerank响应index越界: %d", res.Index)
		}
		out[res.Index] = res.RelevanceScore
	}
	return out, nil
}
