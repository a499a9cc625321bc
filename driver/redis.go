package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/mindscape-ai/mindscape/domain"
	"github.com/redis/go-redis/v9"
)

const redisMetaPrefix = "meta:"

// Redis backs the driver contract with go-redis. Pattern queries use SCAN,
// immutability is enforced with SET NX, and the optional set and queue
// capabilities map onto native Redis structures.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Write(ctx context.Context, key string, value []byte, meta domain.WriteMeta) error {
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	if meta.Immutable {
		ok, err := r.client.SetNX(ctx, key, value, 0).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrImmutable, key)
		}
		if err := r.client.Set(ctx, redisMetaPrefix+key, metaRaw, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		return nil
	}

	existing, err := r.getMeta(ctx, key)
	if err == nil && existing.Immutable {
		return fmt.Errorf("%w: %s", domain.ErrImmutable, key)
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, 0)
	pipe.Set(ctx, redisMetaPrefix+key, metaRaw, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return raw, nil
}

func (r *Redis) Query(ctx context.Context, q domain.QuerySpec) ([]domain.KeyValue, error) {
	keys, err := r.scanKeys(ctx, q.Pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]domain.KeyValue, 0, len(keys))
	for _, k := range keys {
		if q.From > 0 || q.To > 0 {
			meta, err := r.getMeta(ctx, k)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, err
			}
			if q.From > 0 && meta.Timestamp < q.From {
				continue
			}
			if q.To > 0 && meta.Timestamp > q.To {
				continue
			}
		}
		raw, err := r.client.Get(ctx, k).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		out = append(out, domain.KeyValue{Key: k, Value: raw})
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (r *Redis) Count(ctx context.Context, pattern string) (int, error) {
	keys, err := r.scanKeys(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

func (r *Redis) GetMetadata(ctx context.Context, key string) (domain.WriteMeta, error) {
	return r.getMeta(ctx, key)
}

func (r *Redis) getMeta(ctx context.Context, key string) (domain.WriteMeta, error) {
	raw, err := r.client.Get(ctx, redisMetaPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.WriteMeta{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return domain.WriteMeta{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	var meta domain.WriteMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return domain.WriteMeta{}, fmt.Errorf("decode meta %s: %w", key, err)
	}
	return meta, nil
}

func (r *Redis) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return keys, nil
}

func (r *Redis) AddToSet(ctx context.Context, key, member string) error {
	if err := r.client.SAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *Redis) RemoveFromSet(ctx context.Context, key, member string) error {
	if err := r.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *Redis) GetSetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	sort.Strings(members)
	return members, nil
}

func (r *Redis) IsSetMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return ok, nil
}

func (r *Redis) PushQueue(ctx context.Context, queue, id string) error {
	if err := r.client.LPush(ctx, "queue:"+queue, id).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (r *Redis) PopQueue(ctx context.Context, queue string) (string, error) {
	id, err := r.client.RPop(ctx, "queue:"+queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: queue %s empty", domain.ErrNotFound, queue)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return id, nil
}

var (
	_ domain.Driver      = (*Redis)(nil)
	_ domain.SetDriver   = (*Redis)(nil)
	_ domain.QueueDriver = (*Redis)(nil)
)
