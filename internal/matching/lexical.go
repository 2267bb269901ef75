package matching

import (
	"math"
)

// 英文停用词表，仅用于TF-IDF词表构建；BM25按原始token计算。
var stopWords = map[string]bool{
	"a": true, "about": true, "above": true, "after": true, "again": true,
	"against": true, "all": true, "am": true, "an": true, "and": true,
	"any": true, "are": true, "as": true, "at": true, "be": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "but": true, "by": true, "can": true,
	"could": true, "did": true, "do": true, "does": true, "doing": true,
	"down": true, "during": true, "each": true, "few": true, "for": true,
	"from": true, "further": true, "had": true, "has": true, "have": true,
	"having": true, "he": true, "her": true, "here": true, "hers": true,
	"him": true, "his": true, "how": true, "i": true, "if": true,
	"in": true, "into": true, "is": true, "it": true, "its": true,
	"itself": true, "just": true, "me": true, "more": true, "most": true,
	"my": true, "no": true, "nor": true, "not": true, "now": true,
	"of": true, "off": true, "on": true, "once": true, "only": true,
	"or": true, "other": true, "our": true, "ours": true, "out": true,
	"over": true, "own": true, "same": true, "she": true, "should": true,
	"so": true, "some": true, "such": true, "than": true, "that": true,
	"the": true, "their": true, "theirs": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true,
	"through": true, "to": true, "too": true, "under": true, "until": true,
	"up": true, "very": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"who": true, "whom": true, "why": true, "will": true, "with": true,
	"you": true, "your": true, "yours": true,
}

// BM25参数，Okapi标准取值。
const (
	bm25K1       = 1.5
	bm25B        = 0.75
	scoreEpsilon = 1e-9
)

// LexicalIndex 在全部候选文档上构建的词法索引。
// 文档顺序在构建时固定，Sims返回的相似度向量与之一一对应，
// 调用方依赖这个顺序把分数映射回候选人ID。
type LexicalIndex struct {
	docs      []string
	docTokens [][]string

	// fitted 记录参与拟合的非空文档在原始顺序中的下标。
	fitted []int

	// TF-IDF部分（停用词过滤后的词表）。
	vocab      map[string]int
	idf        []float64
	docVectors []map[int]float64 // 每个fitted文档的L2归一化TF-IDF向量

	// BM25部分（全token）。
	termDF    map[string]int
	termFreq  []map[string]int
	docLen    []int
	avgDocLen float64

	// 融合权重，默认0.6/0.4，可在构建时覆盖。
	tfidfWeight float64
	bm25Weight  float64
}

// LexicalOption 词法索引构建选项。
type LexicalOption func(*LexicalIndex)

// WithLexicalBlend 覆盖TF-IDF与BM25的融合权重。
func WithLexicalBlend(tfidf, bm25 float64) LexicalOption {
	return func(ix *LexicalIndex) {
		ix.tfidfWeight = tfidf
		ix.bm25Weight = bm25
	}
}

// NewLexicalIndex 对全部文档构建TF-IDF矩阵与BM25模型。
// 空文档在拟合前被过滤，但仍占据输出向量中的位置（相似度恒为0）。
// 词表退化（没有可用词项）时索引自动降级为token集合覆盖率。
func NewLexicalIndex(docs []string, opts ...LexicalOption) *LexicalIndex {
	ix := &LexicalIndex{
		docs:        docs,
		docTokens:   make([][]string, len(docs)),
		tfidfWeight: 0.6,
		bm25Weight:  0.4,
	}
	for _, opt := range opts {
		opt(ix)
	}

	for i, d := range docs {
		ix.docTokens[i] = Tokenize(d)
		if len(ix.docTokens[i]) > 0 {
			ix.fitted = append(ix.fitted, i)
		}
	}
	if len(ix.fitted) == 0 {
		return ix
	}

	ix.fitTFIDF()
	ix.fitBM25()
	return ix
}

// fitTFIDF 构建词表、IDF与逐文档的归一化TF-IDF向量。
// IDF使用平滑形式 ln((1+n)/(1+df)) + 1。
func (ix *LexicalIndex) fitTFIDF() {
	ix.vocab = make(map[string]int)
	df := make(map[string]int)
	for _, di := range ix.fitted {
		seen := make(map[string]bool)
		for _, t := range ix.docTokens[di] {
			if stopWords[t] {
				continue
			}
			if _, ok := ix.vocab[t]; !ok {
				ix.vocab[t] = len(ix.vocab)
			}
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	if len(ix.vocab) == 0 {
		ix.vocab = nil
		return
	}

	n := float64(len(ix.fitted))
	ix.idf = make([]float64, len(ix.vocab))
	for term, id := range ix.vocab {
		ix.idf[id] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	ix.docVectors = make([]map[int]float64, len(ix.fitted))
	for fi, di := range ix.fitted {
		ix.docVectors[fi] = ix.vectorize(ix.docTokens[di])
	}
}

// vectorize 将token序列转成L2归一化的TF-IDF稀疏向量。
func (ix *LexicalIndex) vectorize(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, t := range tokens {
		if id, ok := ix.vocab[t]; ok {
			vec[id] += ix.idf[id]
		}
	}
	var norm float64
	for _, w := range vec {
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for id, w := range vec {
			vec[id] = w / norm
		}
	}
	return vec
}

// fitBM25 在全token上统计词频与文档长度。
func (ix *LexicalIndex) fitBM25() {
	ix.termDF = make(map[string]int)
	ix.termFreq = make([]map[string]int, len(ix.fitted))
	ix.docLen = make([]int, len(ix.fitted))
	var total int
	for fi, di := range ix.fitted {
		freq := make(map[string]int)
		for _, t := range ix.docTokens[di] {
			freq[t]++
		}
		ix.termFreq[fi] = freq
		ix.docLen[fi] = len(ix.docTokens[di])
		total += ix.docLen[fi]
		for t := range freq {
			ix.termDF[t]++
		}
	}
	ix.avgDocLen = float64(total) / float64(len(ix.fitted))
}

// bm25Scores 对fitted文档计算原始BM25得分。
func (ix *LexicalIndex) bm25Scores(queryTokens []string) []float64 {
	n := float64(len(ix.fitted))
	scores := make([]float64, len(ix.fitted))
	for _, qt := range queryTokens {
		df, ok := ix.termDF[qt]
		if !ok {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for fi := range ix.fitted {
			tf := float64(ix.termFreq[fi][qt])
			if tf == 0 {
				continue
			}
			dl := float64(ix.docLen[fi])
			scores[fi] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*dl/ix.avgDocLen))
		}
	}
	return scores
}

// Sims 返回查询对每个文档的词法相似度，输出向量与构建时的文档顺序对齐。
// TF-IDF余弦与BM25(按该次查询的最大分归一化)按权重融合；
// 只有一个引擎可用时单独使用，两个都不可用时退化为token集合Jaccard。
func (ix *LexicalIndex) Sims(query string) []float64 {
	out := make([]float64, len(ix.docs))
	queryTokens := Tokenize(query)
	if len(ix.fitted) == 0 {
		return out
	}

	tfidfOK := ix.vocab != nil

	var cosine []float64
	if tfidfOK {
		qvec := ix.vectorize(queryTokens)
		cosine = make([]float64, len(ix.fitted))
		for fi := range ix.fitted {
			var dot float64
			for id, w := range qvec {
				dot += w * ix.docVectors[fi][id]
			}
			cosine[fi] = dot
		}
	}

	bm25 := ix.bm25Scores(queryTokens)
	var maxBM25 float64
	for _, s := range bm25 {
		if s > maxBM25 {
			maxBM25 = s
		}
	}
	bm25OK := maxBM25 > scoreEpsilon
	if bm25OK {
		for fi := range bm25 {
			bm25[fi] /= maxBM25
		}
	}

	switch {
	case tfidfOK && bm25OK:
		for fi, di := range ix.fitted {
			out[di] = ix.tfidfWeight*cosine[fi] + ix.bm25Weight*bm25[fi]
		}
	case tfidfOK:
		for fi, di := range ix.fitted {
			out[di] = cosine[fi]
		}
	case bm25OK:
		for fi, di := range ix.fitted {
			out[di] = bm25[fi]
		}
	default:
		ix.jaccardFallback(queryTokens, out)
	}
	return out
}

// jaccardFallback token集合覆盖率：|q ∩ d| / |q ∪ d|，任一侧为空时为0。
func (ix *LexicalIndex) jaccardFallback(queryTokens []string, out []float64) {
	qset := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		qset[t] = true
	}
	if len(qset) == 0 {
		return
	}
	for i, tokens := range ix.docTokens {
		if len(tokens) == 0 {
			continue
		}
		dset := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			dset[t] = true
		}
		var inter int
		for t := range qset {
			if dset[t] {
				inter++
			}
		}
		out[i] = float64(inter) / float64(len(qset)+len(dset)-inter)
	}
}
