package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/VoxMapDB/voxmap/pkg/mapdata"
)

// Redis is a backend over a Redis hash. Every block lives in one hash whose
// fields are the decimal block keys, matching the on-server layout the
// engine's redis backend uses.
type Redis struct {
	client *redis.Client
	hash   string
}

// NewRedis connects to the Redis server at addr and uses the given hash.
func NewRedis(addr, hash string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	return &Redis{client: client, hash: hash}, nil
}

func redisField(key int64) string {
	return strconv.FormatInt(key, 10)
}

// Get returns the stored bytes for key, or mapdata.ErrKeyNotFound.
func (r *Redis) Get(ctx context.Context, key int64) ([]byte, error) {
	data, err := r.client.HGet(ctx, r.hash, redisField(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, mapdata.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget: %w", err)
	}
	return data, nil
}

// Put stores data under key, replacing any previous value.
func (r *Redis) Put(ctx context.Context, key int64, data []byte) error {
	if err := r.client.HSet(ctx, r.hash, redisField(key), data).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// Keys returns a cursor over all stored keys, paging through the hash
// with HSCAN.
func (r *Redis) Keys(ctx context.Context) (mapdata.KeyIterator, error) {
	return &redisKeyIterator{
		ctx:    ctx,
		client: r.client,
		hash:   r.hash,
		cursor: 0,
		first:  true,
	}, nil
}

// Close closes the client connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisKeyIterator struct {
	ctx    context.Context
	client *redis.Client
	hash   string

	cursor uint64
	first  bool
	fields []string
	idx    int
	key    int64
	err    error
}

func (it *redisKeyIterator) Next() bool {
	if it.err != nil {
		return false
	}

	for {
		if it.idx < len(it.fields) {
			field := it.fields[it.idx]
			it.idx++

			key, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				it.err = fmt.Errorf("non-numeric hash field %q: %w", field, err)
				return false
			}
			it.key = key
			return true
		}

		if !it.first && it.cursor == 0 {
			return false
		}

		// HSCAN pages fields and values interleaved; we only need fields.
		page, cursor, err := it.client.HScan(it.ctx, it.hash, it.cursor, "*", 256).Result()
		if err != nil {
			it.err = fmt.Errorf("redis hscan: %w", err)
			return false
		}

		fields := make([]string, 0, len(page)/2)
		for i := 0; i < len(page); i += 2 {
			fields = append(fields, page[i])
		}

		it.fields = fields
		it.idx = 0
		it.cursor = cursor
		it.first = false
	}
}

func (it *redisKeyIterator) Key() int64 {
	return it.key
}

func (it *redisKeyIterator) Err() error {
	return it.err
}

func (it *redisKeyIterator) Close() error {
	return nil
}

var _ mapdata.Backend = (*Redis)(nil)
