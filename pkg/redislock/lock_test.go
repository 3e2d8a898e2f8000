package redislock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestAcquireIsExclusiveAndReleaseChecksOwner(t *testing.T) {
	store := newMemoryStore()
	first, err := New(store, "stl:lock:escrow:1", time.Minute)
	require.NoError(t, err)
	second, err := New(store, "stl:lock:escrow:1", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(context.Background()))
	_, err = store.Get(context.Background(), first.Key())
	require.NoError(t, err, "non-owner release must keep the key")

	require.NoError(t, first.Release(context.Background()))
	_, err = store.Get(context.Background(), first.Key())
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "k", time.Second)
	require.Error(t, err)
	_, err = New(newMemoryStore(), "", time.Second)
	require.Error(t, err)

	lock, err := New(newMemoryStore(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTTL, lock.ttl)
}

func TestObtainWaitsForRelease(t *testing.T) {
	store := newMemoryStore()
	holder, err := Obtain(context.Background(), store, "job", time.Minute, 0)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = holder.Release(context.Background())
	}()

	next, err := Obtain(context.Background(), store, "job", time.Minute, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, next.Release(context.Background()))
}

func TestObtainGivesUpAfterWait(t *testing.T) {
	store := newMemoryStore()
	_, err := Obtain(context.Background(), store, "job", time.Minute, 0)
	require.NoError(t, err)

	_, err = Obtain(context.Background(), store, "job", time.Minute, 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestObtainSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	_, err := Obtain(context.Background(), store, "job", time.Minute, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
