package archive

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/faultlog"
)

// fakeRedis keeps one list in memory and mirrors the Redis list semantics
// the sink relies on.
type fakeRedis struct {
	lists   map[string][]string
	ttls    map[string]time.Duration
	pushErr error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		switch v := v.(type) {
		case []byte:
			f.lists[key] = append(f.lists[key], string(v))
		case string:
			f.lists[key] = append(f.lists[key], v)
		}
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) LTrim(_ context.Context, key string, start, stop int64) *redis.StatusCmd {
	f.lists[key] = listRange(f.lists[key], start, stop)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	return redis.NewStringSliceResult(listRange(f.lists[key], start, stop), nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func listRange(l []string, start, stop int64) []string {
	n := int64(len(l))
	if start < 0 {
		start = max(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []string{}
	}
	return append([]string(nil), l[start:stop+1]...)
}

func sampleArchive(at time.Time, contexts ...domain.Context) faultlog.Archive {
	a := faultlog.Archive{ArchivedAt: at, Statistics: domain.NewErrorStats()}
	for i, c := range contexts {
		a.Errors = append(a.Errors, &domain.ErrorRecord{
			ID:        string(rune('a' + i)),
			Name:      "Error",
			Message:   "boom",
			Timestamp: at,
			Context:   c,
			Metadata:  map[string]any{},
		})
		a.Statistics.Total++
		a.Statistics.ByContext[c]++
	}
	a.ErrorCount = len(a.Errors)
	return a
}

func TestRedisSink_ShipAndRecent(t *testing.T) {
	fake := newFakeRedis()
	sink := newRedisSink(fake, RedisConfig{Keep: 2, TTL: time.Hour})
	ctx := t.Context()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Ship(ctx, sampleArchive(base.Add(time.Duration(i)*time.Minute), domain.ContextAudio)))
	}

	assert.Len(t, fake.lists[defaultRedisKey], 2, "list is trimmed to Keep")
	assert.Equal(t, time.Hour, fake.ttls[defaultRedisKey])

	got, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ArchivedAt.Equal(base.Add(2*time.Minute)), "newest first")
	assert.True(t, got[1].ArchivedAt.Equal(base.Add(time.Minute)))
	assert.Equal(t, 1, got[0].ErrorCount)
	assert.Equal(t, domain.ContextAudio, got[0].Errors[0].Context)

	none, err := sink.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, sink.Close())
	assert.True(t, fake.closed)
}

func TestRedisSink_Defaults(t *testing.T) {
	sink := newRedisSink(newFakeRedis(), RedisConfig{})
	assert.Equal(t, defaultRedisKey, sink.key)
	assert.Equal(t, defaultRedisKeep, sink.keep)
	assert.Equal(t, defaultRedisTTL, sink.ttl)
	assert.Equal(t, "redis", sink.Name())
}

func TestRedisSink_PushError(t *testing.T) {
	fake := newFakeRedis()
	fake.pushErr = errors.New("connection refused")
	sink := newRedisSink(fake, RedisConfig{})

	err := sink.Ship(t.Context(), sampleArchive(time.Now()))
	require.Error(t, err)
	assert.ErrorIs(t, err, fake.pushErr)
}

func TestOpen(t *testing.T) {
	sink, err := Open(t.Context(), "none", RedisConfig{}, PostgresConfig{})
	require.NoError(t, err)
	assert.Nil(t, sink)

	_, err = Open(t.Context(), "s3", RedisConfig{}, PostgresConfig{})
	assert.Error(t, err)

	_, err = Open(t.Context(), "redis", RedisConfig{URL: "not a url"}, PostgresConfig{})
	assert.Error(t, err)
}

func TestContextsOf(t *testing.T) {
	a := sampleArchive(time.Now(), domain.ContextNetwork, domain.ContextAudio, domain.ContextNetwork)
	assert.Equal(t, []string{"AUDIO_ERROR", "NETWORK_ERROR"}, contextsOf(a))
	assert.Empty(t, contextsOf(faultlog.Archive{}))
}

func TestPostgresSink_Integration(t *testing.T) {
	url := os.Getenv("FAULTLINE_TEST_PG_URL")
	if url == "" {
		t.Skip("FAULTLINE_TEST_PG_URL not set")
	}

	ctx := t.Context()
	sink, err := NewPostgresSink(ctx, PostgresConfig{URL: url})
	require.NoError(t, err)
	defer sink.Close()

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, sink.Ship(ctx, sampleArchive(at, domain.ContextCanvas, domain.ContextStorage)))

	rows, err := sink.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].ErrorCount)
	assert.ElementsMatch(t, []string{"CANVAS_ERROR", "STORAGE_ERROR"}, []string(rows[0].Contexts))

	decoded, err := rows[0].Decode()
	require.NoError(t, err)
	assert.Len(t, decoded.Errors, 2)
	assert.Equal(t, 2, decoded.Statistics.Total)
}
