package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/SproutLearn/sprout-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/SproutLearn/sprout-core/pkg/session"

// keyPrefix namespaces session timer keys in Redis.
const keyPrefix = "session:timer:"

// DefaultStateTTL bounds how long an abandoned timer snapshot lingers in
// Redis. It exceeds the autosave window so a snapshot never expires before
// the timer would have auto-saved it.
const DefaultStateTTL = 2 * time.Hour

// Cmdable is the narrow slice of go-redis commands the store uses. It is
// satisfied by [*redis.Client] and by mocks in tests.
type Cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Compile-time assertion that *redis.Client satisfies Cmdable.
var _ Cmdable = (*redis.Client)(nil)

// Store persists timer snapshots in Redis as JSON values with a TTL, so a
// crashed node never strands a session timer forever.
type Store struct {
	rdb    Cmdable
	ttl    time.Duration
	tracer trace.Tracer
}

// NewStore creates a Store over the given Redis client. A non-positive ttl
// falls back to [DefaultStateTTL].
func NewStore(rdb Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &Store{
		rdb:    rdb,
		ttl:    ttl,
		tracer: otel.Tracer(tracerName),
	}
}

// timerStateJSON is the wire form of a timer snapshot. The struct is kept
// separate from [TimerState] so the Redis schema does not shift when the
// in-memory type grows fields.
type timerStateJSON struct {
	SessionID      uuid.UUID     `json:"session_id"`
	ProfileID      uuid.UUID     `json:"profile_id"`
	StartedAt      time.Time     `json:"started_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	NudgeAfter     time.Duration `json:"nudge_after"`
	HardCapAfter   time.Duration `json:"hard_cap_after"`
	Nudged         bool          `json:"nudged"`
}

// Save writes the timer snapshot, refreshing its TTL.
func (s *Store) Save(ctx context.Context, state TimerState) error {
	ctx, span := s.startSpan(ctx, "session.Save", state.SessionID)
	defer span.End()

	payload, err := json.Marshal(timerStateJSON{
		SessionID:      state.SessionID,
		ProfileID:      state.ProfileID,
		StartedAt:      state.StartedAt,
		LastActivityAt: state.LastActivityAt,
		NudgeAfter:     state.Thresholds.NudgeAfter,
		HardCapAfter:   state.Thresholds.HardCapAfter,
		Nudged:         state.Nudged,
	})
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal,
			"session: timer state encoding failed")
	}

	if err := s.rdb.Set(ctx, keyPrefix+state.SessionID.String(), payload, s.ttl).Err(); err != nil {
		return wrapRedisError(err, "session: timer state write failed")
	}
	return nil
}

// Load reads the timer snapshot for a session. A missing key yields a
// CodeNotFound error.
func (s *Store) Load(ctx context.Context, sessionID uuid.UUID) (TimerState, error) {
	ctx, span := s.startSpan(ctx, "session.Load", sessionID)
	defer span.End()

	payload, err := s.rdb.Get(ctx, keyPrefix+sessionID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TimerState{}, sserr.Newf(sserr.CodeNotFound,
				"session: no timer state for session %s", sessionID)
		}
		return TimerState{}, wrapRedisError(err, "session: timer state read failed")
	}

	var wire timerStateJSON
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return TimerState{}, sserr.Wrap(err, sserr.CodeInternal,
			"session: timer state decoding failed")
	}
	return TimerState{
		SessionID:      wire.SessionID,
		ProfileID:      wire.ProfileID,
		StartedAt:      wire.StartedAt,
		LastActivityAt: wire.LastActivityAt,
		Thresholds: Thresholds{
			NudgeAfter:   wire.NudgeAfter,
			HardCapAfter: wire.HardCapAfter,
		},
		Nudged: wire.Nudged,
	}, nil
}

// Delete removes the timer snapshot once the session has ended. Deleting
// an absent key is not an error.
func (s *Store) Delete(ctx context.Context, sessionID uuid.UUID) error {
	ctx, span := s.startSpan(ctx, "session.Delete", sessionID)
	defer span.End()

	if err := s.rdb.Del(ctx, keyPrefix+sessionID.String()).Err(); err != nil {
		return wrapRedisError(err, "session: timer state delete failed")
	}
	return nil
}

func (s *Store) startSpan(ctx context.Context, name string, sessionID uuid.UUID) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("session.id", sessionID.String()),
	)
	return ctx, span
}

// wrapRedisError classifies a Redis failure. Deadline expiry is reported
// as a storage timeout so callers can retry; everything else is a plain
// storage error.
func wrapRedisError(err error, message string) *sserr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeStorageTimeout, message)
	}
	return sserr.Wrap(err, sserr.CodeStorage, message)
}
