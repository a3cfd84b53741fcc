package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"nazim/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CacheService fronts redis for subscription status lookups. The database row
// stays authoritative; everything here may vanish at any time.
type CacheService interface {
	GetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionStatusInfo, error)
	SetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID, info *models.SubscriptionStatusInfo, ttl time.Duration) error
	InvalidateSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) error

	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func statusKey(organizationID uuid.UUID) string {
	return fmt.Sprintf("nazim:substatus:%s", organizationID.String())
}

func (r *redisCacheService) GetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionStatusInfo, error) {
	data, err := r.client.Get(ctx, statusKey(organizationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var info models.SubscriptionStatusInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (r *redisCacheService) SetSubscriptionStatus(ctx context.Context, organizationID uuid.UUID, info *models.SubscriptionStatusInfo, ttl time.Duration) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, statusKey(organizationID), data, ttl).Err()
}

func (r *redisCacheService) InvalidateSubscriptionStatus(ctx context.Context, organizationID uuid.UUID) error {
	return r.client.Del(ctx, statusKey(organizationID)).Err()
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
