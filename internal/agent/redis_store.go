package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore persists session state in Redis so the API tier can restart
// (or scale out) without dropping live conversations. History and metadata
// live in separate keys; both are JSON blobs rewritten whole, which is safe
// because the agent serializes turns per session key.
type RedisStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed session store. A zero ttl means
// sessions never expire; expiry policy belongs to the host, not the flow
// engine.
func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("agent: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("salesai.internal.agent.store")
	}
	return &RedisStore{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
	}
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

func metadataKey(sessionID string) string {
	return fmt.Sprintf("session:%s:meta", sessionID)
}

func (s *RedisStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	ctx, span := s.tracer.Start(ctx, "agent.store.append_message")
	defer span.End()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	history = append(history, ChatMessage{Role: role, Content: content})
	if err := s.saveJSON(ctx, historyKey(sessionID), history); err != nil {
		span.RecordError(err)
		return err
	}

	if role != ChatRoleUser {
		return nil
	}
	meta, err := s.loadMetadata(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	meta[metaTurnsInStage] = asInt(meta[metaTurnsInStage]) + 1
	if err := s.saveJSON(ctx, metadataKey(sessionID), meta); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	ctx, span := s.tracer.Start(ctx, "agent.store.history")
	defer span.End()

	history, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return history, nil
}

func (s *RedisStore) SetFact(ctx context.Context, sessionID, key string, value any) error {
	ctx, span := s.tracer.Start(ctx, "agent.store.set_fact")
	defer span.End()

	meta, err := s.loadMetadata(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	meta[key] = value
	if err := s.saveJSON(ctx, metadataKey(sessionID), meta); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) Fact(ctx context.Context, sessionID, key string) (any, error) {
	ctx, span := s.tracer.Start(ctx, "agent.store.fact")
	defer span.End()

	meta, err := s.loadMetadata(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return meta[key], nil
}

func (s *RedisStore) AdvanceTo(ctx context.Context, sessionID string, next Stage) error {
	ctx, span := s.tracer.Start(ctx, "agent.store.advance")
	defer span.End()

	meta, err := s.loadMetadata(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	meta[metaStage] = string(next)
	meta[metaTurnsInStage] = 0
	if err := s.saveJSON(ctx, metadataKey(sessionID), meta); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "agent.store.clear")
	defer span.End()

	if err := s.redis.Del(ctx, historyKey(sessionID), metadataKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("agent: failed to clear session: %w", err)
	}
	return nil
}

func (s *RedisStore) loadHistory(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	data, err := s.redis.Get(ctx, historyKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("agent: failed to load history: %w", err)
	}
	var history []ChatMessage
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("agent: failed to decode history: %w", err)
	}
	return history, nil
}

func (s *RedisStore) loadMetadata(ctx context.Context, sessionID string) (map[string]any, error) {
	meta := defaultMetadata()
	data, err := s.redis.Get(ctx, metadataKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return meta, nil
		}
		return nil, fmt.Errorf("agent: failed to load metadata: %w", err)
	}
	var stored map[string]any
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("agent: failed to decode metadata: %w", err)
	}
	for key, value := range stored {
		meta[key] = value
	}
	return meta, nil
}

func (s *RedisStore) saveJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("agent: failed to marshal %s: %w", key, err)
	}
	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("agent: failed to persist %s: %w", key, err)
	}
	return nil
}
