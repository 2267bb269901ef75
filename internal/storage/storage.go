package storage

import (
	"context"
	"fmt"
	"strings"

	"lablink-go/internal/config"
	"lablink-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 关系型数据库（教授记录）
	MySQL *MySQL

	// 键值存储（匹配结果缓存、重建锁）
	Redis *Redis

	// 消息队列（邮件事件）
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器。
// MySQL是硬依赖；Redis和RabbitMQ按配置初始化，失败时记录警告后继续，
// 对应功能（缓存、邮件发送）降级关闭。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var initErrors []string

	if cfg.MySQL.Host == "" {
		return nil, fmt.Errorf("MySQL未配置")
	}
	mysql, err := NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	storage.MySQL = mysql
	logger.Info().Msg("MySQL客户端初始化成功")

	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败，匹配缓存停用")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		} else if err = storage.Redis.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Redis探活失败，匹配缓存停用")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
			_ = storage.Redis.Close()
			storage.Redis = nil
		} else {
			logger.Info().Str("address", cfg.Redis.Address).Msg("Redis客户端初始化成功")
		}
	} else {
		logger.Info().Msg("Redis未配置, 跳过初始化")
	}

	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败，邮件发送停用")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	} else {
		logger.Info().Msg("RabbitMQ未配置, 跳过初始化")
	}

	if len(initErrors) > 0 {
		logger.Warn().Str("components", strings.Join(initErrors, "; ")).Msg("部分存储组件初始化失败")
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
}
