/*
 * Copyright (C) 2025 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"
	"github.com/theirish81/chatgraph"
)

var _ chatgraph.Checkpointer = &Redis{}

// KeyPrefix prefixes every thread key
const KeyPrefix = "chatgraph:session:"

// RedisConfig configures the Redis checkpointer
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL expires idle threads. Zero means threads never expire.
	TTL time.Duration
}

// Redis is a Checkpointer storing each thread as a JSON document
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis, retrying up to attempts times
func NewRedis(ctx context.Context, cfg RedisConfig, attempts int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := connect(ctx, attempts, "redis", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func threadKey(threadID string) string {
	return KeyPrefix + threadID
}

func (r *Redis) Get(ctx context.Context, threadID string) (chatgraph.Messages, bool, error) {
	data, err := r.client.Get(ctx, threadKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return chatgraph.Messages{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	messages := chatgraph.Messages{}
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, false, fmt.Errorf("decode thread %s failed: %w", threadID, err)
	}
	return messages, true, nil
}

// Put overwrites the thread document and refreshes its TTL
func (r *Redis) Put(ctx context.Context, threadID string, messages chatgraph.Messages) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode thread %s failed: %w", threadID, err)
	}
	return r.client.Set(ctx, threadKey(threadID), data, r.ttl).Err()
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	iter := r.client.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	// SCAN may return a key more than once
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
