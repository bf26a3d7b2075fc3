package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/models"
	"github.com/ZaraC-Codes/v0-nft-fs-app-sub003/internal/relay"
)

const (
	refTTL     = 24 * time.Hour
	sessionTTL = 24 * time.Hour
)

// appendScript assigns the next id of a group and stores the message in one
// atomic step. Members are "<id>:<json>" so the id never round-trips through
// Lua number formatting. A ref that was already stored returns the stored
// member instead of appending again.
//
// KEYS[1] messages sorted set, KEYS[2] id counter, KEYS[3] ref -> id hash
// ARGV[1] ref, ARGV[2] message json, ARGV[3] ref ttl in seconds
var appendScript = redis.NewScript(`
local existing = redis.call('HGET', KEYS[3], ARGV[1])
if existing then
	local found = redis.call('ZRANGEBYSCORE', KEYS[1], existing, existing)
	if found[1] then
		return found[1]
	end
end
local id = redis.call('INCR', KEYS[2])
local member = tostring(id) .. ':' .. ARGV[2]
redis.call('ZADD', KEYS[1], id, member)
redis.call('HSET', KEYS[3], ARGV[1], id)
redis.call('EXPIRE', KEYS[3], ARGV[3])
return member
`)

// RedisStore keeps the canonical message log and session signers in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Keys share a hash tag so a group's keys live in one cluster slot.
func groupMessagesKey(groupID string) string {
	return fmt.Sprintf("group:{%s}:messages", groupID)
}

func groupSeqKey(groupID string) string {
	return fmt.Sprintf("group:{%s}:seq", groupID)
}

func groupRefsKey(groupID string) string {
	return fmt.Sprintf("group:{%s}:refs", groupID)
}

func sessionSignerKey(profileID uuid.UUID) string {
	return fmt.Sprintf("session:%s:signer", profileID)
}

// Append stores a draft with the group's next id.
func (s *RedisStore) Append(ctx context.Context, d relay.Draft) (models.Message, error) {
	data, err := json.Marshal(d.Message(0))
	if err != nil {
		return models.Message{}, err
	}

	keys := []string{groupMessagesKey(d.GroupID), groupSeqKey(d.GroupID), groupRefsKey(d.GroupID)}
	member, err := appendScript.Run(ctx, s.client, keys, d.Ref, string(data), int(refTTL.Seconds())).Text()
	if err != nil {
		return models.Message{}, err
	}
	return decodeMember(member)
}

// ReadSince returns the group's messages with id > afterID in ascending order.
func (s *RedisStore) ReadSince(ctx context.Context, groupID string, afterID int64) ([]models.Message, error) {
	results, err := s.client.ZRangeByScore(ctx, groupMessagesKey(groupID), &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", afterID), // exclusive
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, member := range results {
		msg, err := decodeMember(member)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMember(member string) (models.Message, error) {
	idStr, data, ok := strings.Cut(member, ":")
	if !ok {
		return models.Message{}, errors.New("malformed message member")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return models.Message{}, fmt.Errorf("malformed message id: %w", err)
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return models.Message{}, err
	}
	msg.ID = id
	return msg, nil
}

// ActiveSigner returns the signer of the profile's session, or "" when unset.
func (s *RedisStore) ActiveSigner(ctx context.Context, profileID uuid.UUID) (string, error) {
	addr, err := s.client.Get(ctx, sessionSignerKey(profileID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return addr, err
}

// Activate records address as the profile's session signer.
func (s *RedisStore) Activate(ctx context.Context, profileID uuid.UUID, address string) error {
	return s.client.Set(ctx, sessionSignerKey(profileID), address, sessionTTL).Err()
}
