package constants

import "time"

const (
	// MatchCacheDuration 匹配结果缓存默认过期时间
	MatchCacheDuration = time.Hour

	// ProfessorCacheDuration 教授列表缓存过期时间
	ProfessorCacheDuration = 24 * time.Hour

	// RebuildLockDuration 索引重建锁的持有上限
	RebuildLockDuration = 2 * time.Minute
)
