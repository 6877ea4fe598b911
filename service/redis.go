package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	alphaKeyPrefix  = "alpha:"
	trimapKeyPrefix = "trimap:"
)

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// TrimapCacheKey 三分图缓存键：md5 + 模式参数
func TrimapCacheKey(md5, source string, mode Mode) string {
	return md5 + ":" + source + ":" + ModeKey(mode)
}

// GetAlphaResult 从缓存获取alpha提取结果
func (s *RedisService) GetAlphaResult(ctx context.Context, md5 string) (*model.AlphaResult, error) {
	var result model.AlphaResult
	ok, err := s.get(ctx, alphaKeyPrefix+md5, &result)
	if !ok || err != nil {
		return nil, err
	}
	return &result, nil
}

// SetAlphaResult 设置alpha提取结果到缓存
func (s *RedisService) SetAlphaResult(ctx context.Context, md5 string, result *model.AlphaResult) error {
	return s.set(ctx, alphaKeyPrefix+md5, result)
}

// GetTrimapResult 从缓存获取三分图结果
func (s *RedisService) GetTrimapResult(ctx context.Context, key string) (*model.TrimapResult, error) {
	var result model.TrimapResult
	ok, err := s.get(ctx, trimapKeyPrefix+key, &result)
	if !ok || err != nil {
		return nil, err
	}
	return &result, nil
}

// SetTrimapResult 设置三分图结果到缓存
func (s *RedisService) SetTrimapResult(ctx context.Context, key string, result *model.TrimapResult) error {
	return s.set(ctx, trimapKeyPrefix+key, result)
}

func (s *RedisService) get(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // 缓存未命中
		}
		return false, err
	}

	if err := json.Unmarshal(data, out); err != nil {
		utils.Logger.Error("failed to unmarshal cached result",
			zap.String("key", key), zap.Error(err))
		return false, err
	}

	return true, nil
}

func (s *RedisService) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
