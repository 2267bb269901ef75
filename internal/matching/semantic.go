package matching

import (
	"context"
	"math"

	"lablink-go/internal/logger"
)

// TextEmbedder 文本向量化接口，语义索引的可选后端。
// 实现见 internal/embedding。
type TextEmbedder interface {
	// EmbedStrings 将一批文本转换为向量表示
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

// SemanticIndex 可选的语义索引。
// 后端不可用或构建失败时索引处于禁用态：Sims恒返回全零向量，
// 调用方把它当作"没有语义信号"而不是错误。
type SemanticIndex struct {
	embedder TextEmbedder
	enabled  bool

	// fitted 与 vectors 一一对应：非空文档的原始下标及其归一化向量。
	fitted  []int
	vectors [][]float64
	total   int
}

// BuildSemanticIndex 在构建期把所有非空文档各编码一次。
// embedder为nil直接得到禁用态索引；编码失败时记录一次日志后同样禁用，
// 该代能力不再重试（见错误处理约定）。
func BuildSemanticIndex(ctx context.Context, embedder TextEmbedder, docs []string) *SemanticIndex {
	ix := &SemanticIndex{embedder: embedder, total: len(docs)}
	if embedder == nil {
		return ix
	}

	var texts []string
	for i, d := range docs {
		if d != "" {
			ix.fitted = append(ix.fitted, i)
			texts = append(texts, d)
		}
	}
	if len(texts) == 0 {
		return ix
	}

	vecs, err := embedder.EmbedStrings(ctx, texts)
	if err != nil || len(vecs) != len(texts) {
		logger.Warn().Err(err).Int("docs", len(texts)).Msg("语义索引构建失败，本代禁用语义信号")
		ix.fitted = nil
		return ix
	}

	ix.vectors = make([][]float64, len(vecs))
	for i, v := range vecs {
		ix.vectors[i] = normalizeVector(v)
	}
	ix.enabled = true
	return ix
}

// Enabled 报告语义能力在本代是否可用。
func (ix *SemanticIndex) Enabled() bool {
	return ix != nil && ix.enabled
}

// Sims 返回查询对每个文档的语义相似度（归一化向量的点积），
// 与构建时的文档顺序对齐并截断到[0,1]。禁用态或查询编码失败时全零。
func (ix *SemanticIndex) Sims(ctx context.Context, query string) []float64 {
	out := make([]float64, ix.totalDocs())
	if !ix.Enabled() || query == "" {
		return out
	}
	vecs, err := ix.embedder.EmbedStrings(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		logger.Warn().Err(err).Msg("查询向量化失败，本次返回零语义相似度")
		return out
	}
	qvec := normalizeVector(vecs[0])
	for fi, di := range ix.fitted {
		var dot float64
		dvec := ix.vectors[fi]
		n := len(qvec)
		if len(dvec) < n {
			n = len(dvec)
		}
		for i := 0; i < n; i++ {
			dot += qvec[i] * dvec[i]
		}
		out[di] = clamp01(dot)
	}
	return out
}

func (ix *SemanticIndex) totalDocs() int {
	if ix == nil {
		return 0
	}
	return ix.total
}

// normalizeVector 先把非有限值清零，再做L2归一化；
// 范数接近零的退化向量跳过归一化，避免除零。
func normalizeVector(v []float64) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			x = 0
		}
		out[i] = x
		norm += x * x
	}
	if norm <= scoreEpsilon {
		return out
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i] /= norm
	}
	return out
}
