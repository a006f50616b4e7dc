package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) *redisQueue {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &redisQueue{
		client:     client,
		name:       "pdf-generation",
		logger:     zap.NewNop(),
		visibility: time.Minute,
	}
}

func TestQueue_SendReceiveDelete(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SendMessage(ctx, "first", 0))
	require.NoError(t, q.SendMessage(ctx, "second", 0))

	messages, err := q.ReceiveMessages(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "second", messages[1].Body)

	attrs, err := q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{Ready: 0, Delayed: 0, InFlight: 2}, attrs)

	for _, m := range messages {
		require.NoError(t, q.DeleteMessage(ctx, m.ReceiptHandle))
	}

	attrs, err = q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{}, attrs)
}

// A claimed message must be registered in-flight in the same redis operation
// that removes it from the ready list, so a consumer crash between receive
// and acknowledge can never lose it.
func TestQueue_ClaimedMessageIsImmediatelyInFlight(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SendMessage(ctx, "render doc-1", 0))

	raw, err := q.popMessage(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	keys := q.queueKeys()
	ready, err := q.client.LLen(ctx, keys.ready).Result()
	require.NoError(t, err)
	assert.Zero(t, ready)

	// The popped envelope itself is the in-flight member.
	_, err = q.client.ZScore(ctx, keys.inflight, raw).Result()
	assert.NoError(t, err)
}

func TestQueue_UnacknowledgedMessageIsRedelivered(t *testing.T) {
	q := newTestQueue(t)
	q.visibility = 20 * time.Millisecond
	ctx := context.Background()

	require.NoError(t, q.SendMessage(ctx, "render doc-1", 0))

	first, err := q.ReceiveMessages(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Consumer dies without acknowledging; the deadline passes.
	time.Sleep(40 * time.Millisecond)

	second, err := q.ReceiveMessages(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "render doc-1", second[0].Body)

	require.NoError(t, q.DeleteMessage(ctx, second[0].ReceiptHandle))

	attrs, err := q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{}, attrs)
}

func TestQueue_DelayedMessageInvisibleUntilDue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SendMessage(ctx, "retry", 50*time.Millisecond))

	messages, err := q.ReceiveMessages(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	attrs, err := q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{Delayed: 1}, attrs)

	time.Sleep(60 * time.Millisecond)

	messages, err = q.ReceiveMessages(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "retry", messages[0].Body)
}

func TestQueue_DuplicateBodiesStayDistinct(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.SendMessage(ctx, "same", 0))
	require.NoError(t, q.SendMessage(ctx, "same", 0))

	messages, err := q.ReceiveMessages(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.NotEqual(t, messages[0].ReceiptHandle, messages[1].ReceiptHandle)

	require.NoError(t, q.DeleteMessage(ctx, messages[0].ReceiptHandle))

	attrs, err := q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{InFlight: 1}, attrs)
}

func TestQueue_MalformedEntryDropped(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	keys := q.queueKeys()
	require.NoError(t, q.client.LPush(ctx, keys.ready, "not json").Err())
	require.NoError(t, q.SendMessage(ctx, "good", 0))

	messages, err := q.ReceiveMessages(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "good", messages[0].Body)

	attrs, err := q.GetAttributes(ctx)
	require.NoError(t, err)
	assert.Equal(t, Attributes{InFlight: 1}, attrs)
}
