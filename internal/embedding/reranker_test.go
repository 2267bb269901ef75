package embedding_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lablink-go/internal/config"
	"lablink-go/internal/embedding"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rerankerConfig(baseURL string) config.RerankerConfig {
	return config.RerankerConfig{
		Enabled:        true,
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "gte-rerank",
		TimeoutSeconds: 5,
	}
}

// TestNewHTTPReranker_Validation 测试初始化参数校验
func TestNewHTTPReranker_Validation(t *testing.T) {
	_, err := embedding.NewHTTPReranker(config.RerankerConfig{BaseURL: "http://localhost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API密钥不能为空")

	_, err = embedding.NewHTTPReranker(config.RerankerConfig{APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url不能为空")
}

// TestHTTPReranker_ScorePairs_Success 测试正常打分，
// 服务端通常按相关性降序返回，分数应按index对齐回文档顺序。
func TestHTTPReranker_ScorePairs_Success(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		resp := map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 2, "relevance_score": 0.95},
				{"index": 0, "relevance_score": 0.40},
				{"index": 1, "relevance_score": 0.10},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	r, err := embedding.NewHTTPReranker(rerankerConfig(srv.URL))
	require.NoError(t, err)

	scores, err := r.ScorePairs(context.Background(), "deep learning",
		[]string{"doc a", "doc b", "doc c"})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, []float64{0.40, 0.10, 0.95}, scores, "降序返回的结果应按index对齐")

	assert.Equal(t, "gte-rerank", gotBody["model"])
	assert.Equal(t, "deep learning", gotBody["query"])
	docs, ok := gotBody["documents"].([]interface{})
	require.True(t, ok)
	assert.Len(t, docs, 3)
}

// TestHTTPReranker_ScorePairs_EmptyDocs 空文档列表不应发起HTTP调用
func TestHTTPReranker_ScorePairs_EmptyDocs(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	r, err := embedding.NewHTTPReranker(rerankerConfig(srv.URL))
	require.NoError(t, err)

	scores, err := r.ScorePairs(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Nil(t, scores)
	assert.False(t, called)
}

// TestHTTPReranker_ScorePairs_Errors 测试失败路径
func TestHTTPReranker_ScorePairs_Errors(t *testing.T) {
	t.Run("非200状态码", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer srv.Close()

		r, err := embedding.NewHTTPReranker(rerankerConfig(srv.URL))
		require.NoError(t, err)

		_, err = r.ScorePairs(context.Background(), "q", []string{"d"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "非200状态码")
	})

	t.Run("结果数量不匹配", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 0, "relevance_score": 0.5},
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}))
		defer srv.Close()

		r, err := embedding.NewHTTPReranker(rerankerConfig(srv.URL))
		require.NoError(t, err)

		_, err = r.ScorePairs(context.Background(), "q", []string{"d1", "d2"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "不匹配")
	})

	t.Run("API层面错误对象", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resp := map[string]interface{}{
				"error": map[string]string{
					"message": "quota exceeded",
					"type":    "insufficient_quota",
					"code":    "quota",
				},
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}))
		defer srv.Close()

		r, err := embedding.NewHTTPReranker(rerankerConfig(srv.URL))
		require.NoError(t, err)

		_, err = r.ScorePairs(context.Background(), "q", []string{"d"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}
