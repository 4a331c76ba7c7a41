package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"github.com/go-redis/redis/v8"
)

const (
	identityTTL   = time.Minute
	categoriesTTL = 5 * time.Minute
	categoriesKey = "catalog:categories"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), cfg)
}

func NewRedisRepositoryWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{client: client, config: cfg}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// GetJSON decodes key into dest. A missing key reports false, nil.
func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func identityKey(userID string) string {
	return fmt.Sprintf("user:%s:identity", userID)
}

func (r *RedisRepository) GetIdentity(ctx context.Context, userID string) (*models.Identity, error) {
	var identity models.Identity
	ok, err := r.GetJSON(ctx, identityKey(userID), &identity)
	if err != nil || !ok {
		return nil, err
	}
	return &identity, nil
}

func (r *RedisRepository) SetIdentity(ctx context.Context, identity *models.Identity) error {
	return r.SetJSON(ctx, identityKey(identity.UserID.Hex()), identity, identityTTL)
}

func (r *RedisRepository) DeleteIdentity(ctx context.Context, userID string) error {
	return r.Del(ctx, identityKey(userID))
}

func (r *RedisRepository) GetCategories(ctx context.Context) ([]models.CategoryCount, error) {
	var counts []models.CategoryCount
	ok, err := r.GetJSON(ctx, categoriesKey, &counts)
	if err != nil || !ok {
		return nil, err
	}
	if counts == nil {
		counts = []models.CategoryCount{}
	}
	return counts, nil
}

func (r *RedisRepository) SetCategories(ctx context.Context, categories []models.CategoryCount) error {
	return r.SetJSON(ctx, categoriesKey, categories, categoriesTTL)
}

func (r *RedisRepository) InvalidateCategories(ctx context.Context) error {
	return r.Del(ctx, categoriesKey)
}

var (
	_ service.IdentityCache = (*RedisRepository)(nil)
	_ service.CategoryCache = (*RedisRepository)(nil)
)
