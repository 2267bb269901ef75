package matching

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lablink-go/internal/logger"
	"lablink-go/internal/tracing"
)

var tracer = otel.Tracer("lablink-go/matching")

// Options 融合引擎的打分参数。
// 这些比例是经验常数（沿用线上验证过的取值），按配置默认值保留而不是硬编码。
type Options struct {
	LexTFIDFWeight    float64 // TF-IDF在词法融合中的权重
	LexBM25Weight     float64 // BM25在词法融合中的权重
	SemBlendLex       float64 // 语义可用时词法信号的权重
	SemBlendSem       float64 // 语义可用时语义信号的权重
	SkillF1Weight     float64 // 技能分中F1的权重
	SkillJacWeight    float64 // 技能分中Jaccard的权重
	SynergyBonus      float64 // 兴趣与技能同时走强时的乘性加成
	WeakSkillPenalty  float64 // 技能F1过低时的乘性惩罚
	WeakSkillF1       float64 // 触发惩罚的F1阈值
	StrongSignal      float64 // 触发加成的信号阈值
	RerankBlend       float64 // 重排分与融合分的混合比例
	RerankDepth       int     // 重排短名单的默认深度
	MaxWhyItems       int     // 每类解释条目的展示上限
	MaxInterestTokens int     // 参与论文命中的兴趣token上限
}

// DefaultOptions 返回默认打分参数。
func DefaultOptions() Options {
	return Options{
		LexTFIDFWeight:    0.6,
		LexBM25Weight:     0.4,
		SemBlendLex:       0.40,
		SemBlendSem:       0.60,
		SkillF1Weight:     0.7,
		SkillJacWeight:    0.3,
		SynergyBonus:      1.08,
		WeakSkillPenalty:  0.85,
		WeakSkillF1:       0.3,
		StrongSignal:      0.5,
		RerankBlend:       0.5,
		RerankDepth:       10,
		MaxWhyItems:       6,
		MaxInterestTokens: 12,
	}
}

// Generation 一次索引构建产出的不可变快照。
// 内部文档顺序固定，是把相似度分数关联回候选人的唯一途径。
// 重建总是整体替换（原子指针交换），绝不原地修改。
type Generation struct {
	ID      string
	BuiltAt time.Time

	Records []CandidateRecord
	Docs    []string

	Lexical  *LexicalIndex
	Semantic *SemanticIndex
}

// Query 一次匹配请求的瞬时值。
type Query struct {
	Interests string
	Skills    string

	// 三路权重，打分前会归一化到和为1。
	WInterests float64
	WSkills    float64
	WPubs      float64

	// TopK<=0 时返回所有final>0的候选。
	TopK int

	// RerankLimit 覆盖默认的重排短名单深度，<=0使用Options.RerankDepth。
	RerankLimit int
}

// Explanation 单个候选的命中解释。
type Explanation struct {
	InterestHits []string `json:"interests_hits"`
	SkillHits    []string `json:"skills_hits"`
	PubHits      []string `json:"pubs_hits"`
}

// ScoredCandidate 单个候选的最终得分与解释。
type ScoredCandidate struct {
	CandidateID  int64
	Score        float64
	ScorePercent float64
	Why          Explanation

	Record *CandidateRecord
}

// Engine 多信号检索与排序引擎。
// 查询路径只读当前代，无共享可变状态，任意数量的并发查询无需加锁；
// 构建在旁路进行，Publish做单次原子交换，进行中的查询继续用旧代。
type Engine struct {
	opts     Options
	embedder TextEmbedder
	reranker *Reranker

	current atomic.Pointer[Generation]

	now func() time.Time
}

// NewEngine 创建引擎。embedder与scorer都是可选能力，传nil表示关闭，
// 引擎在两者都关闭时仍然正确工作，只是精度下降。
func NewEngine(opts Options, embedder TextEmbedder, scorer PairScorer) *Engine {
	return &Engine{
		opts:     opts,
		embedder: embedder,
		reranker: NewReranker(scorer),
		now:      time.Now,
	}
}

// Build 从候选记录构建一个新的索引代，不发布。
// 对相同输入是幂等的（等价索引）。可选能力的构建失败被一次性捕获，
// 该代内该能力保持禁用，不会作为错误抛给查询方。
func (e *Engine) Build(ctx context.Context, records []CandidateRecord) *Generation {
	ctx, span := tracer.Start(ctx, "matching.Build",
		trace.WithAttributes(attribute.Int("candidates", len(records))))
	defer span.End()

	docs := make([]string, len(records))
	for i, rec := range records {
		docs[i] = BuildDocument(rec)
	}
	gen := &Generation{
		ID:       uuid.NewString(),
		BuiltAt:  e.now(),
		Records:  records,
		Docs:     docs,
		Lexical:  NewLexicalIndex(docs, WithLexicalBlend(e.opts.LexTFIDFWeight, e.opts.LexBM25Weight)),
		Semantic: BuildSemanticIndex(ctx, e.embedder, docs),
	}
	span.SetAttributes(
		attribute.String("generation", gen.ID),
		attribute.Bool("semantic", gen.Semantic.Enabled()),
	)
	logger.Info().
		Str("generation", gen.ID).
		Int("candidates", len(records)).
		Bool("semantic", gen.Semantic.Enabled()).
		Msg("索引代构建完成")
	return gen
}

// Publish 原子地把gen发布为当前代。
func (e *Engine) Publish(gen *Generation) {
	e.current.Store(gen)
}

// Current 返回当前已发布的代，可能为nil（尚未构建）。
func (e *Engine) Current() *Generation {
	return e.current.Load()
}

// Rebuild 构建并发布新代。调用方负责串行化重建请求（如single-flight锁）。
func (e *Engine) Rebuild(ctx context.Context, records []CandidateRecord) *Generation {
	gen := e.Build(ctx, records)
	e.Publish(gen)
	return gen
}

// Rank 对一个已构建的代执行完整的融合排序。
// gen为nil说明调用方时序出错（先Rank后Build），这属于编程错误，直接panic。
func (e *Engine) Rank(ctx context.Context, gen *Generation, q Query) []ScoredCandidate {
	if gen == nil {
		panic("matching: Rank called before any generation was built")
	}

	wInterests, wSkills, wPubs := normalizeWeights(q.WInterests, q.WSkills, q.WPubs)

	rawQuery := strings.TrimSpace(q.Interests + " " + q.Skills)
	ctx, span := tracer.Start(ctx, "matching.Rank",
		trace.WithAttributes(
			attribute.String("generation", gen.ID),
			attribute.String("student_query", tracing.SafeAttributeValue("student_query", rawQuery, tracing.MaxQueryLength)),
			attribute.Int("top_k", q.TopK),
		))
	defer span.End()
	expanded := ExpandQuery(q.Interests, q.Skills)
	simsLex := gen.Lexical.Sims(expanded)
	simsSem := gen.Semantic.Sims(ctx, rawQuery)

	studentSkills := ExtractSkills(q.Skills)
	interestTokens := pickInterestTokens(q.Interests, e.opts.MaxInterestTokens)
	interestPhrases := SplitPhrases(q.Interests)
	normPhrases := make([]string, len(interestPhrases))
	for i, p := range interestPhrases {
		normPhrases[i] = Normalize(p)
	}

	nowYear := e.now().UTC().Year()
	scored := make([]ScoredCandidate, 0, len(gen.Records))
	for i := range gen.Records {
		rec := &gen.Records[i]

		lex := simsLex[i]
		sem := simsSem[i]
		var simInterests float64
		if sem > 0 {
			simInterests = clamp01(e.opts.SemBlendLex*lex + e.opts.SemBlendSem*sem)
		} else {
			simInterests = clamp01(lex)
		}

		jac, skillHits := SkillJaccard(studentSkills, rec.Skills)
		f1 := skillF1(studentSkills, rec.Skills)
		skillScore := e.opts.SkillF1Weight*f1 + e.opts.SkillJacWeight*jac

		pubBase, pubHits, pubBonus := pubsScore(interestTokens, rec.Publications, nowYear)

		phraseHits := phraseHits(interestPhrases, normPhrases, rec)

		base := wInterests*simInterests + wSkills*skillScore + wPubs*pubBase

		synergy := 1.0
		if simInterests >= e.opts.StrongSignal && skillScore >= e.opts.StrongSignal {
			synergy = e.opts.SynergyBonus
		}
		if f1 < e.opts.WeakSkillF1 {
			synergy *= e.opts.WeakSkillPenalty
		}

		final := clamp01(base * pubBonus * synergy)

		scored = append(scored, ScoredCandidate{
			CandidateID:  rec.ID,
			Score:        final,
			ScorePercent: math.Round(final*10000) / 100,
			Why: Explanation{
				InterestHits: capList(phraseHits, e.opts.MaxWhyItems),
				SkillHits:    capList(skillHits, e.opts.MaxWhyItems),
				PubHits:      capList(pubHits, e.opts.MaxWhyItems),
			},
			Record: rec,
		})
	}

	sortCandidates(scored)
	e.rerank(ctx, gen, rawQuery, q.RerankLimit, scored)

	if q.TopK > 0 {
		if q.TopK < len(scored) {
			scored = scored[:q.TopK]
		}
		return scored
	}
	kept := scored[:0]
	for _, sc := range scored {
		if sc.Score > 0 {
			kept = append(kept, sc)
		}
	}
	return kept
}

// rerank 对排序后的前缀短名单执行交叉编码重排：
// 0.5*融合分 + 0.5*重排分，截断后按同一平局规则重排并拼回原位。
func (e *Engine) rerank(ctx context.Context, gen *Generation, query string, limit int, scored []ScoredCandidate) {
	if !e.reranker.Enabled() || len(scored) == 0 || query == "" {
		return
	}
	depth := limit
	if depth <= 0 {
		depth = e.opts.RerankDepth
	}
	if depth > len(scored) {
		depth = len(scored)
	}

	// 短名单文档按当前排序顺序取，分数缺失时整体放弃重排。
	docs := make([]string, depth)
	for i := 0; i < depth; i++ {
		docs[i] = docForCandidate(gen, scored[i].CandidateID)
	}
	ceScores := e.reranker.Score(ctx, query, docs)
	if ceScores == nil {
		return
	}

	head := scored[:depth]
	for i := range head {
		head[i].Score = clamp01(e.opts.RerankBlend*head[i].Score + (1-e.opts.RerankBlend)*ceScores[i])
		head[i].ScorePercent = math.Round(head[i].Score*10000) / 100
	}
	sortCandidates(head)
}

func docForCandidate(gen *Generation, id int64) string {
	for i := range gen.Records {
		if gen.Records[i].ID == id {
			return gen.Docs[i]
		}
	}
	return ""
}

// sortCandidates 完全确定的全序：final降序，命中技能数降序，候选ID降序兜底。
// 平局永远不依赖输入迭代顺序。
func sortCandidates(scored []ScoredCandidate) {
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Why.SkillHits) != len(b.Why.SkillHits) {
			return len(a.Why.SkillHits) > len(b.Why.SkillHits)
		}
		return a.CandidateID > b.CandidateID
	})
}

// normalizeWeights 把三路权重归一化到和为1。
// 全部接近零时退回近似均分，避免除零。
func normalizeWeights(wi, ws, wp float64) (float64, float64, float64) {
	total := wi + ws + wp
	if total < scoreEpsilon {
		third := 1.0 / 3.0
		return third, third, third
	}
	return wi / total, ws / total, wp / total
}

// skillF1 以候选技能集为基准的精确率/召回率调和平均。
func skillF1(student, candidate []string) float64 {
	setA := make(map[string]bool, len(student))
	for _, s := range student {
		setA[NormalizeSkill(s)] = true
	}
	setB := make(map[string]bool, len(candidate))
	for _, s := range candidate {
		setB[NormalizeSkill(s)] = true
	}
	var inter int
	for k := range setA {
		if setB[k] {
			inter++
		}
	}
	var prec, rec float64
	if len(setB) > 0 {
		prec = float64(inter) / float64(len(setB))
	}
	if len(setA) > 0 {
		rec = float64(inter) / float64(len(setA))
	}
	if prec+rec == 0 {
		return 0
	}
	return 2 * prec * rec / (prec + rec)
}

// pickInterestTokens 取长度大于2的兴趣token，数量封顶。
func pickInterestTokens(interests string, max int) []string {
	var out []string
	for _, t := range Tokenize(interests) {
		if len(t) > 2 {
			out = append(out, t)
			if len(out) >= max {
				break
			}
		}
	}
	return out
}

// pubsScore 统计兴趣token在论文标题/摘要中的命中。
// 基础分 = min(命中数,3)/3；时效加成对命中论文取最大值：
// 3年内1.05，5年内1.02，否则1.0，永不低于1.0。
func pubsScore(interestTokens []string, pubs []Publication, nowYear int) (float64, []string, float64) {
	if len(pubs) == 0 || len(interestTokens) == 0 {
		return 0, nil, 1.0
	}
	hitSet := make(map[string]bool)
	totalHits := 0
	bonus := 1.0
	for _, pub := range pubs {
		text := Normalize(pub.Title + " " + pub.Abstract)
		local := false
		for _, kw := range interestTokens {
			if kw != "" && strings.Contains(text, kw) {
				hitSet[kw] = true
				totalHits++
				local = true
			}
		}
		if local && pub.Year > 0 {
			age := nowYear - pub.Year
			switch {
			case age <= 3:
				bonus = math.Max(bonus, 1.05)
			case age <= 5:
				bonus = math.Max(bonus, 1.02)
			}
		}
	}
	base := math.Min(float64(totalHits), 3) / 3
	hits := make([]string, 0, len(hitSet))
	for k := range hitSet {
		hits = append(hits, k)
	}
	sort.Strings(hits)
	return base, hits, bonus
}

// phraseHits 收集在候选文本（兴趣+论文）中逐字出现的兴趣短语，保留多词原文。
func phraseHits(rawPhrases, normPhrases []string, rec *CandidateRecord) []string {
	parts := []string{rec.Interests}
	for _, pub := range rec.Publications {
		parts = append(parts, pub.Title, pub.Abstract)
	}
	combined := Normalize(strings.Join(parts, " "))
	var hits []string
	for i, nn := range normPhrases {
		if nn != "" && strings.Contains(combined, nn) {
			hits = append(hits, rawPhrases[i])
		}
	}
	return hits
}

func capList(items []string, max int) []string {
	if len(items) > max {
		return items[:max]
	}
	return items
}
