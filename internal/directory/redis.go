package directory

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "ticketd:online:"
	noticeChanPrefix  = "ticketd:notices:"
	operatorSetKey    = "ticketd:ops"

	// presenceTTL bounds how long a crashed bridge leaves ghosts in the
	// roster; bridges re-announce presence well inside this window.
	presenceTTL = 90 * time.Second
)

// RedisDirectory keeps the connected-player roster in Redis presence keys and
// publishes notices on per-recipient channels. Bridges subscribe to their
// players' channels and render whatever arrives into game chat.
type RedisDirectory struct {
	client    *redis.Client
	operators map[string]struct{}
}

// NewRedisDirectory wraps the given client. The static operator list from
// configuration is honored alongside the ticketd:ops set, which bridges keep
// in sync with the deployment's live operator roster.
func NewRedisDirectory(client *redis.Client, operators []string) *RedisDirectory {
	ops := make(map[string]struct{}, len(operators))
	for _, op := range operators {
		ops[strings.ToLower(op)] = struct{}{}
	}
	return &RedisDirectory{client: client, operators: ops}
}

func (d *RedisDirectory) Join(ctx context.Context, name string) error {
	return d.client.Set(ctx, presenceKeyPrefix+strings.ToLower(name), name, presenceTTL).Err()
}

func (d *RedisDirectory) Leave(ctx context.Context, name string) error {
	return d.client.Del(ctx, presenceKeyPrefix+strings.ToLower(name)).Err()
}

func (d *RedisDirectory) IsConnected(ctx context.Context, name string) (bool, error) {
	n, err := d.client.Exists(ctx, presenceKeyPrefix+strings.ToLower(name)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisDirectory) Connected(ctx context.Context) ([]string, error) {
	var (
		names  []string
		cursor uint64
	)
	for {
		keys, next, err := d.client.Scan(ctx, cursor, presenceKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			// The key value holds the display-cased name.
			name, err := d.client.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		cursor = next
		if cursor == 0 {
			return names, nil
		}
	}
}

func (d *RedisDirectory) IsOperator(ctx context.Context, name string) (bool, error) {
	lower := strings.ToLower(name)
	if _, ok := d.operators[lower]; ok {
		return true, nil
	}
	return d.client.SIsMember(ctx, operatorSetKey, lower).Result()
}

// Deliver publishes the notice on the recipient's channel when they are
// connected. Disconnected recipients are skipped silently.
func (d *RedisDirectory) Deliver(ctx context.Context, recipient string, notice Notice) error {
	connected, err := d.IsConnected(ctx, recipient)
	if err != nil {
		return err
	}
	if !connected {
		return nil
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	return d.client.Publish(ctx, noticeChanPrefix+strings.ToLower(recipient), payload).Err()
}
