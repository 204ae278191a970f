package doer

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// MemoryStore is the host store's user_memory surface the Doer depends on
// (§4.4 step 2: "load memory = store.load_memory(user_id); user =
// store.load_user(user_id)", step 7: "save memory"). user_memory is keyed
// user_id -> map; the user profile is read-only to a run.
type MemoryStore interface {
	LoadMemory(ctx context.Context, userID string) (map[string]any, error)
	LoadUser(ctx context.Context, userID string) (map[string]any, error)
	SaveMemory(ctx context.Context, userID string, memory map[string]any) error
}

// RedisMemoryStore is the default MemoryStore, one Redis string key per user
// holding the JSON-encoded memory map, and one for the (externally
// populated, never written by a run) user profile.
type RedisMemoryStore struct {
	client redis.UniversalClient
}

// NewRedisMemoryStore builds a store against an already-connected client.
func NewRedisMemoryStore(client redis.UniversalClient) *RedisMemoryStore {
	return &RedisMemoryStore{client: client}
}

func (s *RedisMemoryStore) memoryKey(userID string) string { return "user_memory:" + userID }
func (s *RedisMemoryStore) userKey(userID string) string   { return "user_profile:" + userID }

// LoadMemory reads the user's memory map, returning an empty map (not an
// error) when the key does not exist yet — a brand-new user has no memory.
func (s *RedisMemoryStore) LoadMemory(ctx context.Context, userID string) (map[string]any, error) {
	return s.loadMap(ctx, s.memoryKey(userID))
}

// LoadUser reads the user's static profile, empty map when absent.
func (s *RedisMemoryStore) LoadUser(ctx context.Context, userID string) (map[string]any, error) {
	return s.loadMap(ctx, s.userKey(userID))
}

func (s *RedisMemoryStore) loadMap(ctx context.Context, key string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMemory persists the run's final memory state — step 7 of the Doer
// algorithm, "save memory: store.save_memory(user_id, memory)".
func (s *RedisMemoryStore) SaveMemory(ctx context.Context, userID string, memory map[string]any) error {
	data, err := json.Marshal(memory)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.memoryKey(userID), data, 0).Err()
}
