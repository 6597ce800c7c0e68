package queue

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/surgeworks/surge/internal/common/configuration"
	"github.com/surgeworks/surge/internal/common/surgeerrors"
)

const (
	pendingSuffix    = ":pending"
	inflightSuffix   = ":inflight"
	deadSuffix       = ":dead"
	messagePrefix    = ":msg:"
	deadLetterPrefix = ":dead:msg:"
)

// claimScript atomically pops the oldest visible message, increments its
// delivery counter and leases it until the supplied deadline. Returns nil if
// the queue is empty and {id} alone if the payload has already expired.
var claimScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
	return false
end
local key = ARGV[1] .. id
if redis.call('EXISTS', key) == 0 then
	return {id}
end
local attempts = redis.call('HINCRBY', key, 'attempts', 1)
redis.call('ZADD', KEYS[2], ARGV[2], id)
local payload = redis.call('HGET', key, 'payload')
return {id, payload, attempts}
`)

// sweepScript requeues every message whose visibility lease expired before
// now, except those past the delivery limit, which move to the dead-letter
// channel. Returns {requeued, deadlettered}.
var sweepScript = redis.NewScript(`
local requeued = 0
local deadlettered = 0
local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[2])
for _, id in ipairs(expired) do
	redis.call('ZREM', KEYS[2], id)
	local key = ARGV[1] .. id
	if redis.call('EXISTS', key) == 1 then
		local attempts = tonumber(redis.call('HGET', key, 'attempts'))
		if attempts > tonumber(ARGV[3]) then
			local deadKey = ARGV[4] .. id
			redis.call('RENAME', key, deadKey)
			redis.call('PEXPIRE', deadKey, ARGV[5])
			redis.call('RPUSH', KEYS[3], id)
			redis.call('PEXPIRE', KEYS[3], ARGV[5])
			deadlettered = deadlettered + 1
		else
			redis.call('RPUSH', KEYS[1], id)
			requeued = requeued + 1
		end
	end
end
return {requeued, deadlettered}
`)

// RedisQueue implements Queue on top of a redis instance or cluster. Many
// producers and consumers may share one queue without external locking; all
// state transitions happen in single redis commands or scripts.
type RedisQueue struct {
	db     redis.UniversalClient
	config configuration.QueueConfig
}

func NewRedisQueue(db redis.UniversalClient, config configuration.QueueConfig) *RedisQueue {
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &RedisQueue{db: db, config: config}
}

func (q *RedisQueue) keyPrefix() string { return "surge:queue:" + q.config.Name }

func (q *RedisQueue) pendingKey() string { return q.keyPrefix() + pendingSuffix }

func (q *RedisQueue) inflightKey() string { return q.keyPrefix() + inflightSuffix }

func (q *RedisQueue) deadKey() string { return q.keyPrefix() + deadSuffix }

func (q *RedisQueue) messageKey() string { return q.keyPrefix() + messagePrefix }

func (q *RedisQueue) deadLetterKey() string { return q.keyPrefix() + deadLetterPrefix }

func (q *RedisQueue) Publish(ctx context.Context, payload []byte) error {
	id := uuid.NewString()
	pipe := q.db.TxPipeline()
	msgKey := q.messageKey() + id
	pipe.HSet(ctx, msgKey, map[string]interface{}{
		"payload":     payload,
		"attempts":    0,
		"enqueued_at": time.Now().UnixMilli(),
	})
	pipe.PExpire(ctx, msgKey, q.config.Retention)
	pipe.RPush(ctx, q.pendingKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics := Get()
		metrics.RecordPublishError()
		return errors.WithStack(&surgeerrors.ErrPublishUnavailable{Queue: q.config.Name, Cause: err})
	}
	Get().RecordPublished()
	return nil
}

func (q *RedisQueue) Receive(ctx context.Context, maxBatch int, maxWait time.Duration) ([]*Envelope, error) {
	deadline := time.Now().Add(maxWait)
	var envelopes []*Envelope
	for {
		for len(envelopes) < maxBatch {
			envelope, err := q.claim(ctx)
			if err != nil {
				return envelopes, err
			}
			if envelope == nil {
				break
			}
			envelopes = append(envelopes, envelope)
		}
		if len(envelopes) > 0 || !time.Now().Before(deadline) {
			Get().RecordReceived(len(envelopes))
			return envelopes, nil
		}
		select {
		case <-ctx.Done():
			return envelopes, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// claim pops one visible message and leases it; nil means the queue is empty.
func (q *RedisQueue) claim(ctx context.Context) (*Envelope, error) {
	visibilityDeadline := time.Now().Add(q.config.VisibilityTimeout).UnixMilli()
	result, err := claimScript.Run(ctx, q.db,
		[]string{q.pendingKey(), q.inflightKey()},
		q.messageKey(), visibilityDeadline,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not claim message")
	}
	values, ok := result.([]interface{})
	if !ok {
		return nil, errors.Errorf("unexpected claim script result %T", result)
	}
	if len(values) < 3 {
		// Payload retention expired while the id was still queued; the
		// message is gone and the id can be dropped silently.
		return q.claim(ctx)
	}
	attempts, err := strconv.Atoi(toString(values[2]))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse delivery attempts")
	}
	return &Envelope{
		Id:       toString(values[0]),
		Payload:  []byte(toString(values[1])),
		Attempts: attempts,
	}, nil
}

func (q *RedisQueue) Ack(ctx context.Context, envelope *Envelope) error {
	pipe := q.db.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey(), envelope.Id)
	pipe.Del(ctx, q.messageKey()+envelope.Id)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "could not ack message %s", envelope.Id)
	}
	Get().RecordAcked()
	return nil
}

// Sweep moves every message whose visibility lease expired before now back
// to the pending list, or to the dead-letter channel once its delivery
// counter exceeds MaxDeliveries. Safe to run concurrently from many
// processes.
func (q *RedisQueue) Sweep(ctx context.Context, now time.Time) (requeued int, deadlettered int, err error) {
	result, err := sweepScript.Run(ctx, q.db,
		[]string{q.pendingKey(), q.inflightKey(), q.deadKey()},
		q.messageKey(), now.UnixMilli(), q.config.MaxDeliveries, q.deadLetterKey(), q.config.DeadLetterRetention.Milliseconds(),
	).Result()
	if err != nil {
		return 0, 0, errors.Wrap(err, "could not sweep visibility leases")
	}
	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, errors.Errorf("unexpected sweep script result %v", result)
	}
	requeued = int(values[0].(int64))
	deadlettered = int(values[1].(int64))
	if requeued > 0 {
		Get().RecordRequeued(requeued)
	}
	if deadlettered > 0 {
		Get().RecordDeadLettered(deadlettered)
		log.Warnf("Moved %d messages on queue %s to the dead-letter channel", deadlettered, q.config.Name)
	}
	return requeued, deadlettered, nil
}

// RunReaper sweeps expired leases on an interval until ctx is cancelled.
func (q *RedisQueue) RunReaper(ctx context.Context) {
	interval := q.config.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := q.Sweep(ctx, time.Now()); err != nil {
				log.WithError(err).Warnf("Sweep of queue %s failed", q.config.Name)
			}
		}
	}
}

// DeadLetters returns up to max quarantined messages for offline inspection.
// Messages remain on the dead-letter channel afterwards.
func (q *RedisQueue) DeadLetters(ctx context.Context, max int) ([]*DeadLetter, error) {
	ids, err := q.db.LRange(ctx, q.deadKey(), 0, int64(max)-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "could not read dead-letter channel")
	}
	letters := make([]*DeadLetter, 0, len(ids))
	for _, id := range ids {
		fields, err := q.db.HGetAll(ctx, q.deadLetterKey()+id).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "could not read dead letter %s", id)
		}
		if len(fields) == 0 {
			continue
		}
		attempts, _ := strconv.Atoi(fields["attempts"])
		enqueuedMillis, _ := strconv.ParseInt(fields["enqueued_at"], 10, 64)
		letters = append(letters, &DeadLetter{
			Id:         id,
			Payload:    []byte(fields["payload"]),
			Attempts:   attempts,
			EnqueuedAt: time.UnixMilli(enqueuedMillis),
		})
	}
	return letters, nil
}

func toString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
