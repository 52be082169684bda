package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_analysis/internal/domain"
)

func pf(v float64) *float64 { return &v }

func TestStore_RoundTripReturnsCopies(t *testing.T) {
	s := New(time.Hour)
	ctx := context.Background()
	in := domain.ReviewSet{Reviews: []domain.Review{{Token: "1", AreaAziendale: "A", SentimentScore: pf(0.4)}}}

	require.NoError(t, s.Put(ctx, "s1", in))
	*in.Reviews[0].SentimentScore = 0.9 // caller mutation after Put

	got, ok, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.4, *got.Reviews[0].SentimentScore)

	got.Reviews[0].AreaAziendale = "changed"
	again, _, _ := s.Get(ctx, "s1")
	assert.Equal(t, "A", again.Reviews[0].AreaAziendale)
}

func TestStore_MissAndExpiry(t *testing.T) {
	s := New(time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "s1", domain.ReviewSet{}))
	_, ok, _ = s.Get(ctx, "s1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = s.Get(ctx, "s1")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
}

func TestStore_NoTTLNeverExpires(t *testing.T) {
	s := New(0)
	require.NoError(t, s.Put(context.Background(), "s1", domain.ReviewSet{}))
	s.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	_, ok, _ := s.Get(context.Background(), "s1")
	assert.True(t, ok)
}
