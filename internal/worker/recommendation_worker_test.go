package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

type fakeGenerator struct {
	mu     sync.Mutex
	limits map[string]int
}

func (g *fakeGenerator) GenerateRecommendations(_ context.Context, userID string, limit int) []core.Recommendation {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.limits == nil {
		g.limits = make(map[string]int)
	}
	g.limits[userID] = limit
	return []core.Recommendation{{Kind: core.KindInfo, Title: "hello " + userID, Priority: 1}}
}

type fakePublisher struct {
	mu      sync.Mutex
	results []*amqp.RecommendationResult
	failFor map[string]bool
}

func (p *fakePublisher) PublishRecommendationResult(_ context.Context, res *amqp.RecommendationResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[res.UserID] {
		return errors.New("broker unavailable")
	}
	p.results = append(p.results, res)
	return nil
}

func (p *fakePublisher) users() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.results {
		out = append(out, r.UserID)
	}
	sort.Strings(out)
	return out
}

type fakeUsers struct {
	ids []string
	err error
}

func (u fakeUsers) ListUserIDs(context.Context) ([]string, error) {
	return u.ids, u.err
}

type fakeCache struct {
	invalidated []string
}

func (c *fakeCache) Invalidate(userID string) {
	c.invalidated = append(c.invalidated, userID)
}

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestWorker(gen *fakeGenerator, users UserLister, pub *fakePublisher, cache Invalidator) *RecommendationWorker {
	return NewRecommendationWorker(gen, users, pub, Config{
		Concurrency:  2,
		DefaultLimit: 3,
		Logger:       log.Discard(),
		Clock:        func() time.Time { return fixedNow },
		Cache:        cache,
	})
}

func TestHandleRequest(t *testing.T) {
	tests := []struct {
		name            string
		req             *amqp.RecommendationRequest
		wantLimit       int
		wantInvalidated []string
	}{
		{
			name:            "on demand uses requested limit and drops cache",
			req:             &amqp.RecommendationRequest{RequestID: "r1", UserID: "u1", Limit: 7, Reason: amqp.ReasonOnDemand},
			wantLimit:       7,
			wantInvalidated: []string{"u1"},
		},
		{
			name:            "missing reason is treated as on demand",
			req:             &amqp.RecommendationRequest{RequestID: "r2", UserID: "u1"},
			wantLimit:       3,
			wantInvalidated: []string{"u1"},
		},
		{
			name:      "digest keeps cache",
			req:       &amqp.RecommendationRequest{RequestID: "r3", UserID: "u1", Reason: amqp.ReasonDigest},
			wantLimit: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			pub := &fakePublisher{}
			cache := &fakeCache{}
			w := newTestWorker(gen, fakeUsers{}, pub, cache)

			require.NoError(t, w.HandleRequest(context.Background(), tt.req))

			assert.Equal(t, tt.wantLimit, gen.limits["u1"])
			assert.Equal(t, tt.wantInvalidated, cache.invalidated)
			require.Len(t, pub.results, 1)
			res := pub.results[0]
			assert.Equal(t, tt.req.RequestID, res.RequestID)
			assert.Equal(t, fixedNow, res.GeneratedAt)
			require.Len(t, res.Recommendations, 1)
			assert.Equal(t, "hello u1", res.Recommendations[0].Title)
		})
	}
}

func TestHandleRequest_PublishFailure(t *testing.T) {
	pub := &fakePublisher{failFor: map[string]bool{"u1": true}}
	w := newTestWorker(&fakeGenerator{}, fakeUsers{}, pub, nil)

	err := w.HandleRequest(context.Background(), &amqp.RecommendationRequest{UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish result for u1")
}

func TestRunDigest(t *testing.T) {
	t.Run("publishes for every user", func(t *testing.T) {
		gen := &fakeGenerator{}
		pub := &fakePublisher{}
		cache := &fakeCache{}
		w := newTestWorker(gen, fakeUsers{ids: []string{"c", "a", "b"}}, pub, cache)

		require.NoError(t, w.RunDigest(context.Background()))
		assert.Equal(t, []string{"a", "b", "c"}, pub.users())
		assert.Empty(t, cache.invalidated)
		for _, r := range pub.results {
			assert.Equal(t, amqp.ReasonDigest, r.Reason)
		}
	})

	t.Run("one failure does not stop the sweep", func(t *testing.T) {
		pub := &fakePublisher{failFor: map[string]bool{"b": true}}
		w := newTestWorker(&fakeGenerator{}, fakeUsers{ids: []string{"a", "b", "c"}}, pub, nil)

		err := w.RunDigest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 3 users failed")
		assert.Equal(t, []string{"a", "c"}, pub.users())
	})

	t.Run("no users", func(t *testing.T) {
		pub := &fakePublisher{}
		w := newTestWorker(&fakeGenerator{}, fakeUsers{}, pub, nil)
		require.NoError(t, w.RunDigest(context.Background()))
		assert.Empty(t, pub.results)
	})

	t.Run("listing fails", func(t *testing.T) {
		w := newTestWorker(&fakeGenerator{}, fakeUsers{err: errors.New("db down")}, &fakePublisher{}, nil)
		err := w.RunDigest(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "list users")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		w := newTestWorker(&fakeGenerator{}, fakeUsers{ids: []string{"a"}}, &fakePublisher{}, nil)
		assert.ErrorIs(t, w.RunDigest(ctx), context.Canceled)
	})
}

type fakeRecurring struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
	ran   chan struct{}
}

func (r *fakeRecurring) ProcessDue(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, now)
	if r.ran != nil && len(r.calls) == 1 {
		close(r.ran)
	}
	return len(r.calls), r.err
}

func TestRunRecurring(t *testing.T) {
	rec := &fakeRecurring{}
	w := NewRecommendationWorker(&fakeGenerator{}, fakeUsers{}, &fakePublisher{}, Config{
		Logger:    log.Discard(),
		Clock:     func() time.Time { return fixedNow },
		Recurring: rec,
	})

	require.NoError(t, w.RunRecurring(context.Background()))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, fixedNow, rec.calls[0])

	rec.err = errors.New("recurring: 1 of 2 postings failed")
	assert.EqualError(t, w.RunRecurring(context.Background()), "recurring: 1 of 2 postings failed")

	bare := newTestWorker(&fakeGenerator{}, fakeUsers{}, &fakePublisher{}, nil)
	assert.Error(t, bare.RunRecurring(context.Background()))
}

func TestStartStop(t *testing.T) {
	w := newTestWorker(&fakeGenerator{}, fakeUsers{}, &fakePublisher{}, nil)
	ctx := context.Background()

	err := w.Start(ctx, Schedule{Digest: "not a schedule"})
	require.Error(t, err)
	assert.False(t, w.IsRunning())

	assert.Error(t, w.Start(ctx, Schedule{}), "nothing to schedule")
	assert.Error(t, w.Start(ctx, Schedule{Recurring: "@hourly"}), "no recurring processor")
	assert.False(t, w.IsRunning())

	require.NoError(t, w.Start(ctx, Schedule{Digest: "@daily"}))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx, Schedule{Digest: "@daily"}))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())
	assert.NoError(t, w.Stop(stopCtx))
}

func TestStart_SchedulesRecurring(t *testing.T) {
	rec := &fakeRecurring{ran: make(chan struct{})}
	w := NewRecommendationWorker(&fakeGenerator{}, fakeUsers{}, &fakePublisher{}, Config{
		Logger:    log.Discard(),
		Recurring: rec,
	})
	ctx := context.Background()

	err := w.Start(ctx, Schedule{Digest: "@daily", Recurring: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recurring schedule")

	require.NoError(t, w.Start(ctx, Schedule{Recurring: "@every 1s"}))
	select {
	case <-rec.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("recurring job did not run")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(stopCtx))
}
