package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_analysis/internal/adapters/observability"
	redisad "review_analysis/internal/adapters/redis"
	"review_analysis/internal/domain"
)

func newStore(t *testing.T, ttl time.Duration) (*redisad.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := redisad.New(mr.Addr(), "", 0, ttl)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestSessionStore_RoundTripKeepsScores(t *testing.T) {
	s, mr := newStore(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	v := 0.75
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	in := domain.ReviewSet{CreatedAt: created, Reviews: []domain.Review{
		{Token: "1", Text: "bene", AreaAziendale: "IT", AnzianitaLavorativa: "Oltre 10 anni", EtaAnagrafica: "Oltre 35", SentimentScore: &v},
		{Token: "2", Text: "male", AreaAziendale: "IT"},
	}}
	require.NoError(t, s.Put(ctx, "abc", in))
	assert.True(t, mr.Exists("review_session:abc"))

	got, ok, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)
	assert.Nil(t, got.Reviews[1].SentimentScore)
}

func TestSessionStore_MissAndTTL(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "abc", domain.ReviewSet{}))
	assert.Equal(t, time.Minute, mr.TTL("review_session:abc"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionStore_CorruptPayload(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	require.NoError(t, mr.Set("review_session:bad", "{not json"))

	_, _, err := s.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestSessionStore_FailedPutCountsAsError(t *testing.T) {
	s, mr := newStore(t, time.Minute)
	sets := observability.SessionEvents.WithLabelValues("redis", "set")
	errs := observability.SessionEvents.WithLabelValues("redis", "error")
	setsBefore, errsBefore := testutil.ToFloat64(sets), testutil.ToFloat64(errs)

	mr.SetError("READONLY replica")
	err := s.Put(context.Background(), "abc", domain.ReviewSet{})

	require.Error(t, err)
	assert.Equal(t, setsBefore, testutil.ToFloat64(sets))
	assert.Equal(t, errsBefore+1, testutil.ToFloat64(errs))
}
