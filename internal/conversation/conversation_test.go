package conversation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/triage_assistant/internal/matcher"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMergeIsMonotonic(t *testing.T) {
	s := newSession("s", time.Now())

	assert.Equal(t, []string{"headache"}, s.Merge([]string{"headache"}))
	assert.Equal(t, []string{"nausea"}, s.Merge([]string{"headache", "nausea", ""}))
	assert.Nil(t, s.Merge(nil))
	assert.Equal(t, []string{"headache", "nausea"}, s.AccumulatedSymptoms())
	assert.Len(t, s.Symptoms, 2)
}

func TestUpdateCreatesAndPersists(t *testing.T) {
	store := NewStore()

	_, ok := store.Get("a")
	assert.False(t, ok)

	require.NoError(t, store.Update("a", func(s *SessionContext) error {
		assert.True(t, s.IsNew())
		s.Merge([]string{"cough"})
		s.LastMatches = []matcher.MatchResult{{Condition: "Common Cold", SimilarityScore: 0.5}}
		s.TurnCount++
		return nil
	}))

	snap, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, snap.TurnCount)
	assert.Equal(t, []string{"cough"}, snap.AccumulatedSymptoms())

	snap.Merge([]string{"fever"})
	snap.LastMatches[0].Condition = "mutated"
	again, _ := store.Get("a")
	assert.Equal(t, []string{"cough"}, again.AccumulatedSymptoms())
	assert.Equal(t, "Common Cold", again.LastMatches[0].Condition)
}

func TestUpdatePropagatesError(t *testing.T) {
	store := NewStore()
	err := store.Update("a", func(*SessionContext) error { return fmt.Errorf("nope") })
	assert.EqualError(t, err, "nope")
}

func TestClearResetsToNew(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.Update("a", func(s *SessionContext) error {
		s.Merge([]string{"headache"})
		s.TurnCount++
		return nil
	}))

	assert.True(t, store.Clear("a"))
	assert.False(t, store.Clear("a"))
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Update("a", func(s *SessionContext) error {
		assert.True(t, s.IsNew())
		assert.Empty(t, s.AccumulatedSymptoms())
		return nil
	}))
}

func TestSameSessionUpdatesAreSerialised(t *testing.T) {
	store := NewStore()
	var inFlight, maxInFlight int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Update("shared", func(s *SessionContext) error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				s.Merge([]string{fmt.Sprintf("symptom-%d", i)})
				s.TurnCount++
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	snap, ok := store.Get("shared")
	require.True(t, ok)
	assert.Equal(t, 50, snap.TurnCount)
	assert.Len(t, snap.Symptoms, 50)
	assert.Equal(t, int32(1), maxInFlight)
}

func TestDifferentSessionsRunConcurrently(t *testing.T) {
	store := NewStore()
	release := make(chan struct{})
	entered := make(chan struct{})

	go func() {
		_ = store.Update("slow", func(*SessionContext) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = store.Update("fast", func(*SessionContext) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("update on another session blocked")
	}
	close(release)
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(WithClock(clock.Now))

	touch := func(id string) {
		require.NoError(t, store.Update(id, func(*SessionContext) error { return nil }))
	}
	touch("old")
	clock.Advance(20 * time.Minute)
	touch("recent")
	clock.Advance(15 * time.Minute)

	assert.Equal(t, 1, store.Sweep(30*time.Minute))
	assert.Equal(t, []string{"recent"}, store.IDs())
	assert.Equal(t, 0, store.Sweep(30*time.Minute))
}

func TestSweepSkipsBusySessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(WithClock(clock.Now))

	entered := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		_ = store.Update("busy", func(*SessionContext) error {
			close(entered)
			<-release
			return nil
		})
		close(finished)
	}()
	<-entered

	clock.Advance(time.Hour)
	assert.Equal(t, 0, store.Sweep(time.Minute))
	close(release)
	<-finished
	assert.Equal(t, 1, store.Sweep(time.Minute))
}

func TestRunJanitor(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(WithClock(clock.Now))
	require.NoError(t, store.Update("a", func(*SessionContext) error { return nil }))
	clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	counts := make(chan int, 16)
	done := make(chan struct{})
	go func() {
		store.RunJanitor(ctx, 5*time.Millisecond, time.Minute, func(active int) {
			select {
			case counts <- active:
			default:
			}
		})
		close(done)
	}()

	select {
	case n := <-counts:
		assert.Equal(t, 0, n)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor never ran")
	}
	cancel()
	<-done
	assert.Equal(t, 0, store.Len())
}
