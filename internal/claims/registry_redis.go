// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package claims

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisInsertScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])

if redis.call("EXISTS", key) == 1 then
  local expires_at = tonumber(redis.call("HGET", key, "expires_at"))
  if expires_at and expires_at > now_ms then
    return 0
  end
  redis.call("DEL", key)
end

redis.call("HSET", key,
  "recipient_id", ARGV[2],
  "code", ARGV[3],
  "token", ARGV[4],
  "expires_at", ARGV[5],
  "attempts", 0)
redis.call("PEXPIREAT", key, ARGV[6])
return 1
`)

var redisCompareAndDeleteScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var redisRecordMismatchScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "token") ~= ARGV[1] then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisRegistry keeps pending confirmations in Redis so several processes
// can share them. Entries outlive their expiry by the retention period so a
// late confirmation still reports ErrExpired and the release can find them.
type RedisRegistry struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

var _ Registry = (*RedisRegistry)(nil)

// NewRedisRegistry creates a registry storing entries under prefix.
func NewRedisRegistry(client redis.UniversalClient, prefix string, retention time.Duration) *RedisRegistry {
	if prefix == "" {
		prefix = "claims:"
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisRegistry{client: client, prefix: prefix, retention: retention}
}

func (r *RedisRegistry) key(listingID int64) string {
	return r.prefix + strconv.FormatInt(listingID, 10)
}

func (r *RedisRegistry) Insert(ctx context.Context, entry Entry, now time.Time) error {
	inserted, err := redisInsertScript.Run(ctx, r.client,
		[]string{r.key(entry.ListingID)},
		now.UnixMilli(),
		entry.RecipientID,
		entry.Code,
		entry.Token,
		entry.ExpiresAt.UnixMilli(),
		entry.ExpiresAt.Add(r.retention).UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("inserting pending confirmation: %w", err)
	}
	if inserted == 0 {
		return ErrEntryExists
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, listingID int64) (Entry, error) {
	fields, err := r.client.HGetAll(ctx, r.key(listingID)).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("reading pending confirmation: %w", err)
	}
	if len(fields) == 0 {
		return Entry{}, ErrNotFound
	}
	return decodeEntry(listingID, fields)
}

func (r *RedisRegistry) CompareAndDelete(ctx context.Context, listingID int64, token string) (bool, error) {
	deleted, err := redisCompareAndDeleteScript.Run(ctx, r.client, []string{r.key(listingID)}, token).Int()
	if err != nil {
		return false, fmt.Errorf("deleting pending confirmation: %w", err)
	}
	return deleted == 1, nil
}

func (r *RedisRegistry) RecordMismatch(ctx context.Context, listingID int64, token string) (int, error) {
	attempts, err := redisRecordMismatchScript.Run(ctx, r.client, []string{r.key(listingID)}, token).Int()
	if err != nil {
		return 0, fmt.Errorf("recording code mismatch: %w", err)
	}
	if attempts < 0 {
		return 0, ErrNotFound
	}
	return attempts, nil
}

func (r *RedisRegistry) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("counting pending confirmations: %w", err)
	}
	return n, nil
}

func decodeEntry(listingID int64, fields map[string]string) (Entry, error) {
	recipientID, err := strconv.ParseInt(fields["recipient_id"], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("decoding recipient_id: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("decoding expires_at: %w", err)
	}
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return Entry{}, fmt.Errorf("decoding attempts: %w", err)
	}
	if fields["token"] == "" {
		return Entry{}, errors.New("pending confirmation has no token")
	}

	return Entry{
		ListingID:   listingID,
		RecipientID: recipientID,
		Code:        fields["code"],
		Token:       fields["token"],
		ExpiresAt:   time.UnixMilli(expiresAt).UTC(),
		Attempts:    attempts,
	}, nil
}
