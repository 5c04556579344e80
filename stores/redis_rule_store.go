package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/policy"
)

// RedisRuleStore keeps the ordered rule set as JSON entries of a Redis
// list, so a fleet of engines can reload from one shared source.
type RedisRuleStore struct {
	client *redis.Client
	key    string
}

func NewRedisRuleStore(client *redis.Client) *RedisRuleStore {
	return &RedisRuleStore{client: client, key: "policy:rules"}
}

// WithKey overrides the default list key.
func (r *RedisRuleStore) WithKey(key string) *RedisRuleStore {
	r.key = key
	return r
}

func (r *RedisRuleStore) ListRules(ctx context.Context) ([]*policy.Rule, error) {
	entries, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	rules := make([]*policy.Rule, 0, len(entries))
	for i, entry := range entries {
		rule := &policy.Rule{}
		if err := json.Unmarshal([]byte(entry), rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ReplaceRules atomically swaps the stored rule set.
func (r *RedisRuleStore) ReplaceRules(ctx context.Context, rules []*policy.Rule) error {
	entries := make([]any, 0, len(rules))
	for i, rule := range rules {
		data, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		entries = append(entries, string(data))
	}
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	if len(entries) > 0 {
		pipe.RPush(ctx, r.key, entries...)
	}
	_, err := pipe.Exec(ctx)
	return err
}
