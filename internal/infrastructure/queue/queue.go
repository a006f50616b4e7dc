package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"dealersign/internal/config"
	"dealersign/internal/infrastructure/redis"
)

// In-flight messages not deleted within this window are redelivered. The
// queue is at-least-once; consumers must tolerate duplicates.
const defaultVisibilityTimeout = 60 * time.Second

// How often an empty long poll retries the ready list.
const longPollInterval = 100 * time.Millisecond

// Message is one received queue entry. The receipt handle acknowledges it.
type Message struct {
	Body          string
	ReceiptHandle string
}

// Attributes reports queue depth by bucket.
type Attributes struct {
	Ready    int64 `json:"ready"`
	Delayed  int64 `json:"delayed"`
	InFlight int64 `json:"in_flight"`
}

// Queue is a durable at-least-once work queue. Any backend with these four
// operations satisfies the PDF pipeline's contract.
type Queue interface {
	SendMessage(ctx context.Context, body string, delay time.Duration) error
	ReceiveMessages(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	DeleteMessage(ctx context.Context, receiptHandle string) error
	GetAttributes(ctx context.Context) (Attributes, error)
}

// envelope wraps a body with a unique id so identical payloads stay distinct
// zset members.
type envelope struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type queueKeys struct {
	ready    string // list of ready envelopes
	delayed  string // zset of envelopes scored by ready-at
	inflight string // zset of envelopes scored by redelivery deadline
}

// popScript removes one envelope from the ready list and registers it
// in-flight in the same redis operation. A message is always in exactly one
// of ready, delayed or inflight; there is no window in which a crash can
// lose it.
var popScript = goredis.NewScript(`
local raw = redis.call('RPOP', KEYS[1])
if raw then
  redis.call('ZADD', KEYS[2], ARGV[1], raw)
end
return raw
`)

// redisQueue implements Queue on a redis list/zset pair. The key set derives
// from the queue name once, on first use. The receipt handle for a received
// message is its raw envelope, which doubles as the inflight zset member.
type redisQueue struct {
	client     *goredis.Client
	name       string
	logger     *zap.Logger
	visibility time.Duration

	initKeys sync.Once
	keys     queueKeys
}

func NewQueue(cfg *config.Config, rc *redis.RedisClient, logger *zap.Logger) Queue {
	return &redisQueue{
		client:     rc.Client,
		name:       cfg.Queue.Name,
		logger:     logger,
		visibility: defaultVisibilityTimeout,
	}
}

func (q *redisQueue) queueKeys() queueKeys {
	q.initKeys.Do(func() {
		prefix := "queue:" + q.name
		q.keys = queueKeys{
			ready:    prefix + ":ready",
			delayed:  prefix + ":delayed",
			inflight: prefix + ":inflight",
		}
	})
	return q.keys
}

func (q *redisQueue) SendMessage(ctx context.Context, body string, delay time.Duration) error {
	keys := q.queueKeys()

	raw, err := json.Marshal(envelope{ID: uuid.NewString(), Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal queue envelope: %w", err)
	}

	if delay > 0 {
		readyAt := float64(time.Now().Add(delay).UnixMilli())
		if err := q.client.ZAdd(ctx, keys.delayed, goredis.Z{Score: readyAt, Member: string(raw)}).Err(); err != nil {
			return fmt.Errorf("failed to enqueue delayed message: %w", err)
		}
		return nil
	}

	if err := q.client.LPush(ctx, keys.ready, string(raw)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// promoteDue moves delayed messages whose ready-at has passed onto the ready
// list, and requeues in-flight messages past their redelivery deadline.
func (q *redisQueue) promoteDue(ctx context.Context) error {
	keys := q.queueKeys()
	now := fmt.Sprintf("%d", time.Now().UnixMilli())

	due, err := q.client.ZRangeByScore(ctx, keys.delayed, &goredis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("failed to read delayed messages: %w", err)
	}
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, keys.delayed, raw).Result()
		if err != nil {
			return fmt.Errorf("failed to promote delayed message: %w", err)
		}
		// Another consumer may have promoted it first.
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, keys.ready, raw).Err(); err != nil {
			return fmt.Errorf("failed to push promoted message: %w", err)
		}
	}

	expired, err := q.client.ZRangeByScore(ctx, keys.inflight, &goredis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return fmt.Errorf("failed to read in-flight messages: %w", err)
	}
	for _, raw := range expired {
		removed, err := q.client.ZRem(ctx, keys.inflight, raw).Result()
		if err != nil {
			return fmt.Errorf("failed to reclaim in-flight message: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, keys.ready, raw).Err(); err != nil {
			return fmt.Errorf("failed to requeue in-flight message: %w", err)
		}
		q.logger.Warn("Requeued message past visibility timeout",
			zap.String("queue", q.name),
		)
	}

	return nil
}

// popMessage atomically claims one ready envelope, or returns "" when the
// ready list is empty.
func (q *redisQueue) popMessage(ctx context.Context) (string, error) {
	keys := q.queueKeys()
	deadline := float64(time.Now().Add(q.visibility).UnixMilli())

	res, err := popScript.Run(ctx, q.client, []string{keys.ready, keys.inflight}, deadline).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop message: %w", err)
	}
	raw, _ := res.(string)
	return raw, nil
}

func (q *redisQueue) ReceiveMessages(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	keys := q.queueKeys()
	pollDeadline := time.Now().Add(wait)

	var messages []Message
	for {
		if err := q.promoteDue(ctx); err != nil {
			return messages, err
		}

		for len(messages) < max {
			raw, err := q.popMessage(ctx)
			if err != nil {
				return messages, err
			}
			if raw == "" {
				break
			}

			var env envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				q.logger.Warn("Dropping malformed queue entry",
					zap.String("queue", q.name),
					zap.Error(err),
				)
				q.client.ZRem(ctx, keys.inflight, raw)
				continue
			}

			messages = append(messages, Message{Body: env.Body, ReceiptHandle: raw})
		}

		if len(messages) > 0 || wait <= 0 || !time.Now().Before(pollDeadline) {
			return messages, nil
		}

		// Long-poll: retry until the first message or the wait runs out.
		select {
		case <-ctx.Done():
			return messages, ctx.Err()
		case <-time.After(longPollInterval):
		}
	}
}

func (q *redisQueue) DeleteMessage(ctx context.Context, receiptHandle string) error {
	keys := q.queueKeys()
	if err := q.client.ZRem(ctx, keys.inflight, receiptHandle).Err(); err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return nil
}

func (q *redisQueue) GetAttributes(ctx context.Context) (Attributes, error) {
	keys := q.queueKeys()

	ready, err := q.client.LLen(ctx, keys.ready).Result()
	if err != nil {
		return Attributes{}, fmt.Errorf("failed to read queue depth: %w", err)
	}
	delayed, err := q.client.ZCard(ctx, keys.delayed).Result()
	if err != nil {
		return Attributes{}, fmt.Errorf("failed to read delayed depth: %w", err)
	}
	inflight, err := q.client.ZCard(ctx, keys.inflight).Result()
	if err != nil {
		return Attributes{}, fmt.Errorf("failed to read in-flight depth: %w", err)
	}

	return Attributes{Ready: ready, Delayed: delayed, InFlight: inflight}, nil
}

var Module = fx.Module("queue",
	fx.Provide(NewQueue),
)
