package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const defaultPrefix = "gicatesis:"

// RedisStore 基于 Redis 的共享缓存，多实例部署时共用哈希结果
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// ConnectRedis 解析 URL、建立连接并检查可用性
func ConnectRedis(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStore(rdb, defaultPrefix, ttl), nil
}

// NewRedisStore 使用已有客户端创建缓存
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Item, error) {
	val, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item Item
	if err := json.Unmarshal(val, &item); err != nil {
		klog.Warningf("discarding malformed cache entry %s: %v", key, err)
		return nil, nil
	}
	return &item, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, item Item) error {
	if item.StoredAt.IsZero() {
		item.StoredAt = time.Now()
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	return r.rdb.Del(ctx, full...).Err()
}

// Clear 按前缀扫描删除
func (r *RedisStore) Clear(ctx context.Context) error {
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

// Close 关闭连接
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
