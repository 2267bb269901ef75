package matching

import (
	"regexp"
	"strings"
)

var (
	wsPattern       = regexp.MustCompile(`\s+`)
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)
	delimPattern    = regexp.MustCompile(`[;,]`)
)

// Normalize 规范化自由文本：压缩空白、去首尾空格、转小写。
// 任何输入都有输出，不会失败。
func Normalize(s string) string {
	return strings.ToLower(wsPattern.ReplaceAllString(strings.TrimSpace(s), " "))
}

// Tokenize 将规范化后的文本按非字母数字字符切分为有序token序列。
// 空token被丢弃，顺序保留（下游的短语窗口匹配依赖顺序）。
func Tokenize(s string) []string {
	parts := nonAlnumPattern.Split(Normalize(s), -1)
	tokens := make([]string, 0, len(parts))
	for _, t := range parts {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// SplitPhrases 按逗号/分号切分文本为短语列表，去掉空白片段。
func SplitPhrases(s string) []string {
	parts := delimPattern.Split(s, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
