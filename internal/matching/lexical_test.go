package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLexicalSimsAlignment 输出向量必须与构建时的文档顺序对齐，空文档恒为0
func TestLexicalSimsAlignment(t *testing.T) {
	docs := []string{
		"",
		"deep learning for protein folding",
		"database systems and query optimization",
	}
	ix := NewLexicalIndex(docs)
	sims := ix.Sims("deep learning")

	require.Len(t, sims, len(docs))
	assert.Zero(t, sims[0])
	assert.Greater(t, sims[1], 0.0)
	assert.Greater(t, sims[1], sims[2])
}

// TestLexicalSimsBounded 融合分数必须落在[0,1]
func TestLexicalSimsBounded(t *testing.T) {
	docs := []string{
		"machine learning machine learning machine learning",
		"machine learning and computer vision",
		"reinforcement learning agents",
	}
	ix := NewLexicalIndex(docs)
	for _, query := range []string{"machine learning", "learning", "machine learning computer vision agents"} {
		for i, s := range ix.Sims(query) {
			assert.GreaterOrEqual(t, s, 0.0, "query=%q doc=%d", query, i)
			assert.LessOrEqual(t, s, 1.0, "query=%q doc=%d", query, i)
		}
	}
}

// TestLexicalExactDocumentQuery 查询与某文档完全一致时该文档得分最高
func TestLexicalExactDocumentQuery(t *testing.T) {
	docs := []string{
		"graph neural networks for molecules",
		"natural language processing with transformers",
		"quantum error correction codes",
	}
	ix := NewLexicalIndex(docs)
	sims := ix.Sims(docs[1])
	best := 0
	for i, s := range sims {
		if s > sims[best] {
			best = i
		}
	}
	assert.Equal(t, 1, best)
}

// TestLexicalEmptyQuery 空查询得到全零向量
func TestLexicalEmptyQuery(t *testing.T) {
	ix := NewLexicalIndex([]string{"some document text"})
	for _, s := range ix.Sims("") {
		assert.Zero(t, s)
	}
}

// TestLexicalEmptyCorpus 空语料不panic，返回全零
func TestLexicalEmptyCorpus(t *testing.T) {
	ix := NewLexicalIndex(nil)
	assert.Empty(t, ix.Sims("anything"))

	ix = NewLexicalIndex([]string{"", ""})
	sims := ix.Sims("anything")
	require.Len(t, sims, 2)
	assert.Zero(t, sims[0])
	assert.Zero(t, sims[1])
}

// TestLexicalBM25OnlyPath 文档只含停用词时TF-IDF词表为空，BM25独立工作
func TestLexicalBM25OnlyPath(t *testing.T) {
	docs := []string{"the of and", "is was were"}
	ix := NewLexicalIndex(docs)
	require.Nil(t, ix.vocab)

	sims := ix.Sims("the and")
	assert.Greater(t, sims[0], 0.0)
	assert.Zero(t, sims[1])
	assert.LessOrEqual(t, sims[0], 1.0)
}

// TestLexicalJaccardFallback 两个引擎都不可用时退化为token集合覆盖率
func TestLexicalJaccardFallback(t *testing.T) {
	ix := NewLexicalIndex([]string{"alpha beta gamma", "delta epsilon"})
	out := make([]float64, 2)
	ix.jaccardFallback(Tokenize("alpha beta zeta"), out)
	// |{alpha,beta}| / |{alpha,beta,gamma,zeta}| = 2/4
	assert.InDelta(t, 0.5, out[0], 1e-12)
	assert.Zero(t, out[1])

	// 空查询不产生任何分数
	out = make([]float64, 2)
	ix.jaccardFallback(nil, out)
	assert.Zero(t, out[0])
}

// TestLexicalBlendOverride 融合权重可在构建时覆盖
func TestLexicalBlendOverride(t *testing.T) {
	docs := []string{"machine learning research"}
	ixDefault := NewLexicalIndex(docs)
	ixTFIDF := NewLexicalIndex(docs, WithLexicalBlend(1.0, 0.0))

	assert.InDelta(t, 0.6, ixDefault.tfidfWeight, 1e-12)
	assert.InDelta(t, 0.4, ixDefault.bm25Weight, 1e-12)

	// 纯TF-IDF权重时，完整匹配查询的余弦为1
	sims := ixTFIDF.Sims("machine learning research")
	assert.InDelta(t, 1.0, sims[0], 1e-9)
}
