package store

import (
	"sync"
	"testing"

	"github.com/ashureev/pcdoctor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetOrCreate(t *testing.T) {
	s := NewMemoryStore(5)

	fresh := s.GetOrCreate("")
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, 5, fresh.MaxIterations)
	assert.Equal(t, domain.StatusActive, fresh.Status)

	again := s.GetOrCreate(fresh.ID)
	assert.Equal(t, fresh.ID, again.ID)
	assert.Equal(t, fresh.CreatedAt, again.CreatedAt)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreUnknownIDGetsFreshID(t *testing.T) {
	s := NewMemoryStore(5)

	created := s.GetOrCreate("laptop-1")
	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "laptop-1", created.ID)

	_, ok := s.Get("laptop-1")
	assert.False(t, ok)
	_, ok = s.Get(created.ID)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewMemoryStore(10)
	id := s.GetOrCreate("").ID

	require.NoError(t, s.Mutate(id, func(sess *domain.Session) {
		sess.RecordExchange("hi", "hello", domain.LoopContinue)
	}))

	snap, ok := s.Get(id)
	require.True(t, ok)
	snap.Messages[0].Text = "tampered"
	snap.IterationCount = 99

	live, _ := s.Get(id)
	assert.Equal(t, "hi", live.Messages[0].Text)
	assert.Equal(t, 1, live.IterationCount)
}

func TestMemoryStoreMutateUnknown(t *testing.T) {
	s := NewMemoryStore(10)

	err := s.Mutate("missing", func(*domain.Session) {
		t.Fatal("fn must not run for unknown ids")
	})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(10)
	id := s.GetOrCreate("").ID

	s.Delete(id)
	s.Delete(id)
	s.Delete("never")

	_, ok := s.Get(id)
	assert.False(t, ok)
	assert.Zero(t, s.Len())
	assert.ErrorIs(t, s.Mutate(id, func(*domain.Session) {}), domain.ErrSessionNotFound)

	recreated := s.GetOrCreate(id)
	assert.NotEqual(t, id, recreated.ID)
	assert.Equal(t, 0, recreated.IterationCount)
	assert.Empty(t, recreated.Messages)
}

func TestMemoryStoreConcurrentMutate(t *testing.T) {
	s := NewMemoryStore(1000)
	id := s.GetOrCreate("").ID

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Mutate(id, func(sess *domain.Session) {
				sess.RecordExchange("q", "a", domain.LoopContinue)
			})
		}()
	}
	wg.Wait()

	snap, _ := s.Get(id)
	assert.Equal(t, workers, snap.IterationCount)
	assert.Len(t, snap.Messages, 2*workers)
}

func TestMemoryStoreDeleteDuringCreate(t *testing.T) {
	s := NewMemoryStore(10)
	id := s.GetOrCreate("").ID

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sess := s.GetOrCreate(id)
			assert.NotEmpty(t, sess.ID)
			mu.Lock()
			got = append(got, sess.ID)
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			s.Delete(id)
		}()
	}
	wg.Wait()

	_, ok := s.Get(id)
	assert.False(t, ok, "deleted id must not come back")
	for _, sid := range got {
		if sid == id {
			continue
		}
		_, live := s.Get(sid)
		assert.True(t, live, "fresh session %s should be live", sid)
	}
}
