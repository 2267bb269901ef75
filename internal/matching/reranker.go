package matching

import (
	"context"
	"sync/atomic"

	"lablink-go/internal/logger"
)

// PairScorer 交叉编码器后端：对(query, document)对联合打分。
// 实现见 internal/embedding。
type PairScorer interface {
	// ScorePairs 返回每个文档相对query的原始相关性分数
	ScorePairs(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Reranker 可选的交叉编码重排能力。
// 只在有限大小的候选短名单上运行（代价与文档对数量成正比）。
// 打分过程中一旦失败，该能力被永久禁用而不是逐次重试。
type Reranker struct {
	scorer   PairScorer
	disabled atomic.Bool
}

// NewReranker 构建重排器；scorer为nil时返回nil（禁用态）。
func NewReranker(scorer PairScorer) *Reranker {
	if scorer == nil {
		return nil
	}
	return &Reranker{scorer: scorer}
}

// Enabled 报告重排能力当前是否可用。
func (r *Reranker) Enabled() bool {
	return r != nil && !r.disabled.Load()
}

// Score 对短名单打分并做min-max归一化到[0,1]。
// 所有原始分数相等的退化批次使用单位区间兜底（全部归零）。
// 后端失败时返回nil并锁定禁用态，调用方应跳过重排步骤。
func (r *Reranker) Score(ctx context.Context, query string, docs []string) []float64 {
	if !r.Enabled() || len(docs) == 0 {
		return nil
	}
	raw, err := r.scorer.ScorePairs(ctx, query, docs)
	if err != nil || len(raw) != len(docs) {
		logger.Warn().Err(err).Int("docs", len(docs)).Msg("交叉编码器打分失败，禁用重排能力")
		r.disabled.Store(true)
		return nil
	}

	minV, maxV := raw[0], raw[0]
	for _, s := range raw[1:] {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}
	span := maxV - minV
	if span <= scoreEpsilon {
		span = 1
	}
	out := make([]float64, len(raw))
	for i, s := range raw {
		out[i] = clamp01((s - minV) / span)
	}
	return out
}
