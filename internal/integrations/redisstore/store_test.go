package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/omkar861856/agentic-honeypot32/internal/domain"
)

type fakeRedis struct {
	lists     map[string][]string
	pushErr   error
	rangeErr  error
	expireErr error

	expires     map[string]time.Duration
	rangeStart  int64
	rangeStop   int64
	pushCalls   int
	expireCalls int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{lists: map[string][]string{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.pushCalls++
	if f.pushErr != nil {
		return redis.NewIntResult(0, f.pushErr)
	}
	for _, v := range values {
		f.lists[key] = append(f.lists[key], v.(string))
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expireCalls++
	f.expires[key] = expiration
	return redis.NewBoolResult(f.expireErr == nil, f.expireErr)
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.rangeStart, f.rangeStop = start, stop
	if f.rangeErr != nil {
		return redis.NewStringSliceResult(nil, f.rangeErr)
	}
	vals := f.lists[key]
	from := int64(len(vals)) + start
	if from < 0 {
		from = 0
	}
	return redis.NewStringSliceResult(append([]string(nil), vals[from:]...), nil)
}

func TestAddThenSearch(t *testing.T) {
	db := newFakeRedis()
	s, err := New(db, time.Hour, 10)
	require.NoError(t, err)

	err = s.Add(context.Background(), "conv-1", []domain.MemoryMessage{
		{Role: domain.RoleUser, Content: "send to fee@ybl"},
		{Role: domain.RoleAssistant, Content: `{"kind":"x"}`},
	}, map[string]string{"type": domain.KindScamIntelligence})
	require.NoError(t, err)
	require.Equal(t, time.Hour, db.expires["honeypot:conv:conv-1"])

	entries, err := s.Search(context.Background(), "scam", "conv-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "send to fee@ybl", entries[0].Text())
	require.Equal(t, "user", entries[0].Fields()["role"])
	require.Equal(t, int64(-10), db.rangeStart)
	require.Equal(t, int64(-1), db.rangeStop)

	entries, err = s.Search(context.Background(), "FEE@", "conv-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSearch_ToleratesPlainValues(t *testing.T) {
	db := newFakeRedis()
	db.lists["honeypot:conv:c"] = []string{"legacy note"}
	s, err := New(db, 0, 0)
	require.NoError(t, err)

	entries, err := s.Search(context.Background(), "", "c")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.False(t, entries[0].IsStructured())
	require.Equal(t, "legacy note", entries[0].Text())
}

func TestSearch_EmptyListAndErrors(t *testing.T) {
	db := newFakeRedis()
	s, err := New(db, 0, 0)
	require.NoError(t, err)

	entries, err := s.Search(context.Background(), "scam", "missing")
	require.NoError(t, err)
	require.Empty(t, entries)

	db.rangeErr = errors.New("conn refused")
	_, err = s.Search(context.Background(), "scam", "missing")
	require.ErrorContains(t, err, "conn refused")
}

func TestAdd_Errors(t *testing.T) {
	db := newFakeRedis()
	s, err := New(db, 0, 0)
	require.NoError(t, err)

	require.ErrorContains(t, s.Add(context.Background(), "", []domain.MemoryMessage{{Content: "x"}}, nil), "conversation id")
	require.ErrorContains(t, s.Add(context.Background(), "c", nil, nil), "no messages")
	require.Zero(t, db.pushCalls)

	db.pushErr = errors.New("OOM")
	require.ErrorContains(t, s.Add(context.Background(), "c", []domain.MemoryMessage{{Content: "x"}}, nil), "OOM")
	require.Zero(t, db.expireCalls)

	db.pushErr = nil
	db.expireErr = errors.New("readonly")
	require.ErrorContains(t, s.Add(context.Background(), "c", []domain.MemoryMessage{{Content: "x"}}, nil), "expire")
}

func TestAdd_StoredShape(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	db := newFakeRedis()
	s, err := New(db, 0, 0)
	require.NoError(t, err)
	require.NoError(t, s.Add(context.Background(), "c", []domain.MemoryMessage{{Role: "user", Content: "hi"}}, nil))

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(db.lists["honeypot:conv:c"][0]), &stored))
	require.Equal(t, "hi", stored["memory"])
	require.Equal(t, "2026-03-01T09:00:00Z", stored["created_at"])
	require.Equal(t, defaultTTL, db.expires["honeypot:conv:c"])
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil, 0, 0)
	require.Error(t, err)
}
