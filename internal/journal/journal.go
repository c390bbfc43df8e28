// Package journal appends a record of every completed turn to an external
// stream so other processes can follow an idea's activity.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"boardroom/internal/calls"
	"boardroom/internal/config"
)

type TurnRecord struct {
	IdeaID     string         `json:"idea_id"`
	Mode       string         `json:"mode"`
	PersonaIDs []string       `json:"persona_ids"`
	Verdict    string         `json:"verdict,omitempty"`
	Effects    []calls.Effect `json:"effects,omitempty"`
	Duration   time.Duration  `json:"duration"`
	At         time.Time      `json:"at"`
}

type Journal interface {
	Record(ctx context.Context, rec TurnRecord) error
	Close() error
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, TurnRecord) error { return nil }
func (Nop) Close() error                             { return nil }

// Redis appends records to the stream <prefix><ideaID>, trimmed to about MaxLen entries.
type Redis struct {
	client *redis.Client
	prefix string
	maxLen int64
}

// Open returns a Redis journal when a URL is configured and Nop otherwise.
func Open(cfg config.Journal) (Journal, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return Nop{}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse journal redis url: %w", err)
	}
	return NewRedis(redis.NewClient(opts), cfg.StreamPrefix, cfg.MaxLen), nil
}

func NewRedis(client *redis.Client, prefix string, maxLen int64) *Redis {
	return &Redis{client: client, prefix: prefix, maxLen: maxLen}
}

// Stream is the stream key for an idea.
func (r *Redis) Stream(ideaID string) string {
	return r.prefix + ideaID
}

func (r *Redis) Record(ctx context.Context, rec TurnRecord) error {
	if rec.IdeaID == "" {
		return nil
	}
	values, err := Values(rec)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: r.Stream(rec.IdeaID),
		MaxLen: r.maxLen,
		Approx: true,
		Values: values,
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("journal turn: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Values flattens a record into stream fields.
func Values(rec TurnRecord) (map[string]any, error) {
	effects, err := json.Marshal(rec.Effects)
	if err != nil {
		return nil, fmt.Errorf("marshal effects: %w", err)
	}
	return map[string]any{
		"mode":        rec.Mode,
		"personas":    strings.Join(rec.PersonaIDs, ","),
		"verdict":     rec.Verdict,
		"effects":     string(effects),
		"duration_ms": rec.Duration.Milliseconds(),
		"at":          rec.At.UTC().Format(time.RFC3339Nano),
	}, nil
}
