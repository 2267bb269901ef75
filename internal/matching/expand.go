package matching

import "strings"

// ExpandQuery 在词法检索前扩充原始查询。
// 对每个兴趣短语，查整句与逐token的同义词表并追加命中的同义词；
// 对每个技能，追加与原文不同的规范别名。扩展只作用于查询，
// 存储的文档保持原样，避免别名表的词汇污染排序。
func ExpandQuery(interests, skills string) string {
	var sb strings.Builder
	sb.WriteString(interests)
	sb.WriteString(" ")
	sb.WriteString(skills)

	for _, phrase := range SplitPhrases(interests) {
		norm := Normalize(phrase)
		if syns := InterestSynonyms(norm); len(syns) > 0 {
			sb.WriteString(" ")
			sb.WriteString(strings.Join(syns, " "))
		}
		tokens := Tokenize(norm)
		if len(tokens) < 2 {
			// 单token短语与整句查找相同，避免同义词加倍
			continue
		}
		for _, t := range tokens {
			if syns := InterestSynonyms(t); len(syns) > 0 {
				sb.WriteString(" ")
				sb.WriteString(strings.Join(syns, " "))
			}
		}
	}

	for _, raw := range Tokenize(skills) {
		if canonical := NormalizeSkill(raw); canonical != raw {
			sb.WriteString(" ")
			sb.WriteString(canonical)
		}
	}

	return Normalize(sb.String())
}
