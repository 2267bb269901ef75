package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalize 验证空白压缩、大小写与首尾空格处理
func TestNormalize(t *testing.T) {
	assert.Equal(t, "machine learning", Normalize("  Machine   Learning\t"))
	assert.Equal(t, "deep learning and nlp", Normalize("Deep\nLearning  AND   NLP"))
	assert.Equal(t, "", Normalize("   \t\n  "))
	assert.Equal(t, "c++", Normalize("C++"))
}

// TestTokenize 验证非字母数字切分与空token丢弃
func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"machine", "learning"}, Tokenize("Machine Learning"))
	assert.Equal(t, []string{"c", "pytorch", "2"}, Tokenize("C++, PyTorch-2"))
	assert.Empty(t, Tokenize("!!! ... ---"))
	// 顺序必须保留
	assert.Equal(t, []string{"graph", "neural", "networks"}, Tokenize("graph neural networks"))
}

// TestSplitPhrases 验证逗号/分号切分
func TestSplitPhrases(t *testing.T) {
	assert.Equal(t, []string{"nlp", "computer vision", "robotics"}, SplitPhrases("nlp, computer vision; robotics"))
	assert.Equal(t, []string{"single phrase"}, SplitPhrases("single phrase"))
	assert.Empty(t, SplitPhrases(" ; , "))
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 1.0, clamp01(1.2))
	assert.Equal(t, 0.42, clamp01(0.42))
}
