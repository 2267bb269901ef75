package matching

import (
	"sort"
	"strings"
)

// skillAliases 技能别名到规范名的静态映射。
// 扩展这张表（加入院系特有的同义词）可以提升召回。
var skillAliases = map[string]string{
	"torch": "pytorch", "pytorch": "pytorch",
	"tf": "tensorflow", "tensorflow": "tensorflow",
	"opencv": "opencv",
	"cuda":   "cuda", "nvidia-cuda": "cuda",
	"cpp": "c++", "c sharp": "c#", "postgres": "postgresql",
	"hpc":  "high-performance computing",
	"pl":   "programming languages",
	"ml":   "machine learning",
	"dl":   "deep learning",
	"nlp":  "natural language processing",
	"cv":   "computer vision",
	"rl":   "reinforcement learning",
	"llm":  "large language model",
	"llms": "large language models",
	"vit":  "vision transformer", "vision transformer": "vision transformer",
	"rag": "retrieval augmented generation",
	"ssl": "self-supervised learning",
}

// interestAliases 兴趣短语的同义词扩展表。
// 只用于查询扩展，绝不改写已存储的文档：若反过来用别名表改写文档，
// 排序会偏向别名表自身的词汇。
var interestAliases = map[string][]string{
	"nlp":                            {"natural language processing", "computational linguistics"},
	"natural language processing":    {"nlp", "language models", "text processing"},
	"cv":                             {"computer vision", "image recognition", "visual recognition"},
	"computer vision":                {"cv", "image understanding", "object detection"},
	"ml":                             {"machine learning"},
	"machine learning":               {"ml", "statistical learning"},
	"dl":                             {"deep learning"},
	"deep learning":                  {"dl", "neural networks"},
	"rl":                             {"reinforcement learning"},
	"large language model":           {"llm", "transformers"},
	"large language models":          {"llms", "foundation models"},
	"gnn":                            {"graph neural networks", "graph learning"},
	"graph neural networks":          {"gnn", "graph representation learning"},
	"vision transformer":             {"vit", "transformer vision", "image transformer"},
	"retrieval augmented generation": {"rag", "retrieval-augmented generation"},
	"self-supervised learning":       {"ssl", "contrastive learning"},
	"causal inference":               {"causality", "causal discovery"},
	"bayesian inference":             {"probabilistic modeling", "bayesian modeling"},
	"robotics":                       {"autonomous systems", "robot learning"},
	"graph representation learning":  {"gnn", "graph neural networks"},
	"time series":                    {"temporal modeling", "sequence forecasting"},
	"optimization":                   {"stochastic optimization", "convex optimization"},
}

// NormalizeSkill 将原始技能字符串解析为规范技能名。
// 查找顺序：去掉点号后的完整短语 -> 去掉内部空格的短语 -> 原样返回。
// 总是返回一个字符串，不会失败。
func NormalizeSkill(s string) string {
	base := strings.TrimSpace(strings.ReplaceAll(Normalize(s), ".", " "))
	base = strings.TrimSpace(wsPattern.ReplaceAllString(base, " "))
	if canonical, ok := skillAliases[base]; ok {
		return canonical
	}
	ns := strings.ReplaceAll(base, " ", "")
	if canonical, ok := skillAliases[ns]; ok {
		return canonical
	}
	return base
}

// ExtractSkills 从自由文本中抽取规范化技能列表。
// 先按分号/逗号切分，每段走别名解析；没有分隔符时退化为逐token解析。
// 去重并保留首次出现的顺序。
func ExtractSkills(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var skills []string
	for _, part := range SplitPhrases(s) {
		skills = append(skills, NormalizeSkill(part))
	}
	if len(skills) == 0 {
		for _, t := range Tokenize(s) {
			skills = append(skills, NormalizeSkill(t))
		}
	}
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, k := range skills {
		if k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// InterestSynonyms 返回规范化短语对应的同义词列表（可能为nil）。
func InterestSynonyms(phrase string) []string {
	return interestAliases[phrase]
}

// SkillJaccard 计算两组技能的Jaccard相似度，并返回排序后的交集。
// 两侧先过别名解析，空集合的相似度为0。
func SkillJaccard(a, b []string) (float64, []string) {
	setA := make(map[string]bool, len(a))
	for _, x := range a {
		setA[NormalizeSkill(x)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, x := range b {
		setB[NormalizeSkill(x)] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0, nil
	}
	var inter []string
	for k := range setA {
		if setB[k] {
			inter = append(inter, k)
		}
	}
	union := len(setA) + len(setB) - len(inter)
	sort.Strings(inter)
	return float64(len(inter)) / float64(union), inter
}
