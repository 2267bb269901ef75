package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNormalizeSkill 验证别名解析的三级查找顺序
func TestNormalizeSkill(t *testing.T) {
	cases := map[string]string{
		"torch":      "pytorch",
		"PyTorch":    "pytorch",
		"TF":         "tensorflow",
		"cpp":        "c++",
		"C Sharp":    "c#",
		"Postgres":   "postgresql",
		"NLP":        "natural language processing",
		"node.js":    "node js", // 点号换空格后走原样返回
		"ml":         "machine learning",
		"Rust":       "rust", // 表里没有的技能原样返回
		"  Go Lang ": "go lang",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeSkill(in), "input=%q", in)
	}
}

// TestNormalizeSkillNoSpaceLookup 去空格后命中别名表
func TestNormalizeSkillNoSpaceLookup(t *testing.T) {
	// "l l m" 去空格后是 "llm"
	assert.Equal(t, "large language model", NormalizeSkill("l l m"))
}

// TestExtractSkills 分隔符切分、别名解析、顺序保留去重
func TestExtractSkills(t *testing.T) {
	got := ExtractSkills("torch; TensorFlow, torch, CUDA")
	assert.Equal(t, []string{"pytorch", "tensorflow", "cuda"}, got)

	// 没有分隔符时退化为整段解析
	got = ExtractSkills("pytorch")
	assert.Equal(t, []string{"pytorch"}, got)

	assert.Nil(t, ExtractSkills("   "))
}

// TestSkillJaccard 验证别名归一后的交并比与排序交集
func TestSkillJaccard(t *testing.T) {
	jac, hits := SkillJaccard([]string{"torch", "cuda"}, []string{"pytorch", "opencv"})
	// 归一后 {pytorch, cuda} vs {pytorch, opencv}: 交1 并3
	assert.InDelta(t, 1.0/3.0, jac, 1e-12)
	assert.Equal(t, []string{"pytorch"}, hits)

	jac, hits = SkillJaccard(nil, []string{"pytorch"})
	assert.Zero(t, jac)
	assert.Empty(t, hits)

	jac, hits = SkillJaccard([]string{"CV", "ml"}, []string{"computer vision", "machine learning"})
	assert.InDelta(t, 1.0, jac, 1e-12)
	assert.Equal(t, []string{"computer vision", "machine learning"}, hits)
}

// TestInterestSynonyms 同义词表是双向可达的常见缩写
func TestInterestSynonyms(t *testing.T) {
	assert.Contains(t, InterestSynonyms("nlp"), "natural language processing")
	assert.Contains(t, InterestSynonyms("machine learning"), "ml")
	assert.Nil(t, InterestSynonyms("underwater basket weaving"))
}
