package matching

import "strings"

// Publication 候选人的一篇论文（标题、摘要、年份）。
type Publication struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Year     int    `json:"year"`
}

// CandidateRecord 一次索引构建的不可变输入。
// 由持久化层提供，匹配引擎只读不写。
// Payload 是调用方附带的展示载荷，引擎不读取，原样随打分结果返回。
type CandidateRecord struct {
	ID           int64
	Interests    string
	Skills       []string
	Publications []Publication

	Payload any
}

// BuildDocument 将候选人记录压平为一个规范化的文档字符串。
// 没有兴趣也没有技能的记录产出空文档，在所有相似度方案下都得到接近零的分数。
func BuildDocument(rec CandidateRecord) string {
	parts := []string{rec.Interests}
	for _, pub := range rec.Publications {
		parts = append(parts, pub.Title, pub.Abstract)
	}
	if len(rec.Skills) > 0 {
		parts = append(parts, strings.Join(rec.Skills, " "))
	}
	return Normalize(strings.TrimSpace(strings.Join(parts, " ")))
}
