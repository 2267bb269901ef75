package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"lablink-go/internal/config"
	"lablink-go/internal/logger"
	"lablink-go/internal/matching"
	"lablink-go/internal/storage"
	"lablink-go/internal/storage/models"
	"lablink-go/internal/types"
)

// ProfessorStore 教授目录读写所需的持久化接口。
type ProfessorStore interface {
	ListProfessors(ctx context.Context, department string) ([]models.Professor, error)
	ListDepartments(ctx context.Context) ([]string, error)
	GetProfessor(ctx context.Context, id int64) (*models.Professor, error)
	UpsertProfessor(ctx context.Context, prof *models.Professor, skillNames []string) error
}

// ResultCache 匹配结果缓存接口。实现见 internal/storage 的Redis适配器。
type ResultCache interface {
	CacheMatchResult(ctx context.Context, key string, payload any) error
	GetCachedMatchResult(ctx context.Context, key string, out any) error
	ClearMatchCache(ctx context.Context) error
}

// Matcher 排序引擎接口，方便在测试中替换。
type Matcher interface {
	Current() *matching.Generation
	Rank(ctx context.Context, gen *matching.Generation, q matching.Query) []matching.ScoredCandidate
}

// MatchHandler 负责处理学生与教授的匹配请求。
type MatchHandler struct {
	cfg    *config.Config
	engine Matcher
	cache  ResultCache // 可为nil（Redis未配置时直接跳过缓存）
}

// NewMatchHandler 创建一个新的 MatchHandler 实例。
func NewMatchHandler(cfg *config.Config, engine Matcher, cache ResultCache) *MatchHandler {
	return &MatchHandler{
		cfg:    cfg,
		engine: engine,
		cache:  cache,
	}
}

// matchCachePayload 参与缓存键计算的全部请求参数。
// 索引代ID也参与哈希，重建后旧键自然失效。
type matchCachePayload struct {
	Generation string                 `json:"generation"`
	Profile    types.StudentProfileIn `json:"profile"`
	Department string                 `json:"department"`
	TopK       int                    `json:"top_k"`
	WInterests float64                `json:"w_interests"`
	WSkills    float64                `json:"w_skills"`
	WPubs      float64                `json:"w_pubs"`
}

// HandleMatch 处理学生画像匹配请求。
// POST /api/v1/match?top_k=10&department=&w_interests=&w_skills=&w_pubs=
func (h *MatchHandler) HandleMatch(ctx context.Context, c *app.RequestContext) {
	var profile types.StudentProfileIn
	if err := c.BindAndValidate(&profile); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败: " + err.Error()})
		return
	}
	if strings.TrimSpace(profile.Interests) == "" && strings.TrimSpace(profile.Skills) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "interests 和 skills 不能同时为空"})
		return
	}

	gen := h.engine.Current()
	if gen == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "匹配索引尚未就绪，请稍后重试"})
		return
	}

	topK := queryInt(c, "top_k", 10)
	if topK <= 0 {
		topK = 10
	}
	if max := h.cfg.Matcher.TopKMax; max > 0 && topK > max {
		topK = max
	}
	department := strings.TrimSpace(c.Query("department"))

	wInterests := queryFloat(c, "w_interests", h.cfg.Matcher.DefaultWInterests)
	wSkills := queryFloat(c, "w_skills", h.cfg.Matcher.DefaultWSkills)
	wPubs := queryFloat(c, "w_pubs", h.cfg.Matcher.DefaultWPubs)

	payload := matchCachePayload{
		Generation: gen.ID,
		Profile:    profile,
		Department: department,
		TopK:       topK,
		WInterests: wInterests,
		WSkills:    wSkills,
		WPubs:      wPubs,
	}
	cacheKey := storage.MatchCacheKey(payload)

	if h.cache != nil {
		var cached types.MatchResponse
		err := h.cache.GetCachedMatchResult(ctx, cacheKey, &cached)
		if err == nil {
			c.JSON(consts.StatusOK, cached)
			return
		}
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Str("key", cacheKey).Msg("读取匹配缓存失败，回退到实时计算")
		}
	}

	// 取全量排序（含零分候选），按院系过滤后再截断到top_k；
	// 客户端显式要求top_k时，零分候选也计入名额。
	scored := h.engine.Rank(ctx, gen, matching.Query{
		Interests:  profile.Interests,
		Skills:     profile.Skills,
		WInterests: wInterests,
		WSkills:    wSkills,
		WPubs:      wPubs,
		TopK:       len(gen.Records),
	})

	matches := make([]types.MatchItem, 0, topK)
	for _, sc := range scored {
		prof, ok := sc.Record.Payload.(*types.ProfessorOut)
		if !ok {
			continue
		}
		if department != "" && !strings.EqualFold(prof.Department, department) {
			continue
		}
		matches = append(matches, types.MatchItem{
			Score:        sc.Score,
			ScorePercent: sc.ScorePercent,
			Why: types.MatchWhy{
				InterestsHits: emptyIfNil(sc.Why.InterestHits),
				SkillsHits:    emptyIfNil(sc.Why.SkillHits),
				PubsHits:      emptyIfNil(sc.Why.PubHits),
			},
			Professor: *prof,
		})
		if len(matches) >= topK {
			break
		}
	}

	resp := types.MatchResponse{
		StudentQuery: matching.Normalize(profile.Interests + " " + profile.Skills),
		Department:   department,
		Weights: map[string]float64{
			"interests": wInterests,
			"skills":    wSkills,
			"pubs":      wPubs,
		},
		Matches: matches,
	}

	if h.cache != nil {
		if err := h.cache.CacheMatchResult(ctx, cacheKey, resp); err != nil {
			// 缓存写入失败不阻塞响应
			logger.Warn().Err(err).Str("key", cacheKey).Msg("写入匹配缓存失败")
		}
	}

	c.JSON(consts.StatusOK, resp)
}

func queryInt(c *app.RequestContext, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(c *app.RequestContext, name string, def float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
