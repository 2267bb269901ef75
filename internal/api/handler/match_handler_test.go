package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablink-go/internal/api/handler"
	"lablink-go/internal/config"
	"lablink-go/internal/matching"
	"lablink-go/internal/storage"
	"lablink-go/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Matcher: config.MatcherConfig{
			DefaultWInterests: 0.55,
			DefaultWSkills:    0.35,
			DefaultWPubs:      0.10,
			RerankDepth:       10,
			TopKMax:           50,
		},
	}
}

func testCandidates() []matching.CandidateRecord {
	return []matching.CandidateRecord{
		{
			ID:        1,
			Interests: "machine learning, deep learning",
			Skills:    []string{"pytorch", "python"},
			Publications: []matching.Publication{
				{Title: "Scaling laws for neural networks", Year: 2025},
			},
			Payload: &types.ProfessorOut{
				ID: 1, Name: "Jane Smith", Department: "Computer Science",
				ResearchInterests: "machine learning, deep learning",
				Skills:            []string{"pytorch", "python"},
			},
		},
		{
			ID:        2,
			Interests: "computer vision",
			Skills:    []string{"opencv", "c++"},
			Payload: &types.ProfessorOut{
				ID: 2, Name: "John Doe", Department: "Electrical Engineering",
				ResearchInterests: "computer vision",
				Skills:            []string{"opencv", "c++"},
			},
		},
	}
}

func newMatchTestServer(t *testing.T, engine handler.Matcher, cache handler.ResultCache) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	mh := handler.NewMatchHandler(testConfig(), engine, cache)
	h.POST("/api/v1/match", mh.HandleMatch)
	return h
}

func performMatch(t *testing.T, h *server.Hertz, url string, profile types.StudentProfileIn) *ut.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(profile)
	require.NoError(t, err)
	return ut.PerformRequest(h.Engine, "POST", url,
		&ut.Body{Body: bytes.NewBuffer(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

// TestHandleMatch_EmptyProfileRejected interests和skills都为空时返回400
func TestHandleMatch_EmptyProfileRejected(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	h := newMatchTestServer(t, engine, nil)

	resp := performMatch(t, h, "/api/v1/match", types.StudentProfileIn{Interests: "  ", Skills: ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

// TestHandleMatch_IndexNotReady 索引未构建时返回503而不是panic
func TestHandleMatch_IndexNotReady(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	h := newMatchTestServer(t, engine, nil)

	resp := performMatch(t, h, "/api/v1/match", types.StudentProfileIn{Interests: "ml"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

// TestHandleMatch_RankedResults 正常请求返回排好序的匹配列表
func TestHandleMatch_RankedResults(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	h := newMatchTestServer(t, engine, nil)

	resp := performMatch(t, h, "/api/v1/match", types.StudentProfileIn{
		Interests: "machine learning",
		Skills:    "torch",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out types.MatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Matches)
	assert.Equal(t, "Jane Smith", out.Matches[0].Professor.Name)
	assert.Contains(t, out.Matches[0].Why.SkillsHits, "pytorch")
	assert.InDelta(t, 0.55, out.Weights["interests"], 1e-9)

	// 分数降序
	for i := 1; i < len(out.Matches); i++ {
		assert.GreaterOrEqual(t, out.Matches[i-1].Score, out.Matches[i].Score)
	}
}

// TestHandleMatch_DepartmentFilter 按院系过滤结果
func TestHandleMatch_DepartmentFilter(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	h := newMatchTestServer(t, engine, nil)

	resp := performMatch(t, h, "/api/v1/match?department=Electrical%20Engineering", types.StudentProfileIn{
		Interests: "computer vision",
		Skills:    "opencv",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out types.MatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Matches)
	for _, m := range out.Matches {
		assert.Equal(t, "Electrical Engineering", m.Professor.Department)
	}
}

// TestHandleMatch_TopKLimit top_k参数截断结果
func TestHandleMatch_TopKLimit(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	h := newMatchTestServer(t, engine, nil)

	resp := performMatch(t, h, "/api/v1/match?top_k=1", types.StudentProfileIn{
		Interests: "machine learning computer vision",
		Skills:    "pytorch; opencv",
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out types.MatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Len(t, out.Matches, 1)
}

// TestHandleMatch_ZeroScoreStillFillsTopK 全员零分时仍按top_k返回候选，
// 而不是过滤成空列表（院系过滤叠加时同样成立）
func TestHandleMatch_ZeroScoreStillFillsTopK(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	h := newMatchTestServer(t, engine, nil)

	profile := types.StudentProfileIn{Interests: "astrophysics cosmology"}

	resp := performMatch(t, h, "/api/v1/match", profile)
	require.Equal(t, http.StatusOK, resp.Code)
	var out types.MatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Matches, 2)
	for _, m := range out.Matches {
		assert.Zero(t, m.Score)
	}

	resp = performMatch(t, h, "/api/v1/match?department=Electrical%20Engineering", profile)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "John Doe", out.Matches[0].Professor.Name)
	assert.Zero(t, out.Matches[0].Score)
}

// fakeCache 内存版ResultCache
type fakeCache struct {
	store map[string][]byte
	gets  int
	hits  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: make(map[string][]byte)}
}

func (c *fakeCache) CacheMatchResult(_ context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func (c *fakeCache) GetCachedMatchResult(_ context.Context, key string, out any) error {
	c.gets++
	data, ok := c.store[key]
	if !ok {
		return storage.ErrNotFound
	}
	c.hits++
	return json.Unmarshal(data, out)
}

func (c *fakeCache) ClearMatchCache(_ context.Context) error {
	c.store = make(map[string][]byte)
	return nil
}

// TestHandleMatch_CacheRoundTrip 第二次相同请求命中缓存且响应一致
func TestHandleMatch_CacheRoundTrip(t *testing.T) {
	engine := matching.NewEngine(matching.DefaultOptions(), nil, nil)
	engine.Rebuild(context.Background(), testCandidates())
	cache := newFakeCache()
	h := newMatchTestServer(t, engine, cache)

	profile := types.StudentProfileIn{Interests: "machine learning", Skills: "pytorch"}

	resp1 := performMatch(t, h, "/api/v1/match", profile)
	require.Equal(t, http.StatusOK, resp1.Code)
	assert.Equal(t, 0, cache.hits)

	resp2 := performMatch(t, h, "/api/v1/match", profile)
	require.Equal(t, http.StatusOK, resp2.Code)
	assert.Equal(t, 1, cache.hits)
	assert.JSONEq(t, resp1.Body.String(), resp2.Body.String())

	// 参数不同时键不同，不会串缓存
	resp3 := performMatch(t, h, "/api/v1/match?top_k=1", profile)
	require.Equal(t, http.StatusOK, resp3.Code)
	assert.Equal(t, 1, cache.hits)
}
