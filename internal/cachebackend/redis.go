package cachebackend

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a github.com/redis/go-redis/v9-backed Backend, grounded on
// goadesign-goa-ai's use of go-redis for its own cache layer (the teacher
// itself has no cache backend of any kind, so this crosses from one
// example repo in the retrieved pack to another).
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (r *Redis) Get(key string) (Entry, bool, error) {
	ctx := context.Background()
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (r *Redis) Set(key string, entry Entry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), key, raw, ttl).Err()
}

func (r *Redis) Delete(key string) error {
	return r.client.Del(context.Background(), key).Err()
}
