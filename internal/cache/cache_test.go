package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey(t *testing.T) {
	// Known md5 digest.
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", Key("hello"))

	assert.Len(t, Key("労働時間の上限は何時間ですか"), 32)
	assert.Equal(t, Key("同じ質問"), Key("同じ質問"))
	assert.NotEqual(t, Key("質問A"), Key("質問B"))
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))

	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestMemoryStore_Miss(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)

	_, err := s.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	s := NewMemoryStore(10, 30*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))

	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	time.Sleep(60 * time.Millisecond)

	_, err = s.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	s := NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "c", "3"))

	_, err = s.Get(ctx, "b")
	assert.True(t, IsCacheMiss(err))

	val, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	val, err = s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", val)

	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_OverwriteRefreshes(t *testing.T) {
	s := NewMemoryStore(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))
	require.NoError(t, s.Set(ctx, "a", "updated"))

	// "b" is now least recently used.
	require.NoError(t, s.Set(ctx, "c", "3"))

	_, err := s.Get(ctx, "b")
	assert.True(t, IsCacheMiss(err))

	val, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "updated", val)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(100, time.Minute)
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, s.Set(ctx, key, "value"))
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	for i := 0; i < 10; i++ {
		go func(id int) {
			key := fmt.Sprintf("concurrent-%d", id)
			val, err := s.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", val)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestJSONHelpers(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	type payload struct {
		Translated string   `json:"translated"`
		Expansions []string `json:"expansions"`
	}

	in := payload{
		Translated: "労働時間の上限",
		Expansions: []string{"労働時間 上限 規制", "時間外労働 限度"},
	}
	require.NoError(t, SetJSON(ctx, s, "q1", in))

	var out payload
	require.NoError(t, GetJSON(ctx, s, "q1", &out))
	assert.Equal(t, in, out)
}

func TestGetJSON_Miss(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)

	var out map[string]any
	err := GetJSON(context.Background(), s, "absent", &out)
	assert.True(t, IsCacheMiss(err))
}

func TestGetJSON_InvalidValue(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "bad", "not a json"))

	var out map[string]any
	err := GetJSON(ctx, s, "bad", &out)
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestSetJSON_Unmarshalable(t *testing.T) {
	s := NewMemoryStore(10, time.Minute)

	err := SetJSON(context.Background(), s, "ch", make(chan int))
	assert.Error(t, err)
}

func setupRedisStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := NewRedisStore(Config{
		Addr: mr.Addr(),
		TTL:  ttl,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return mr, store
}

func TestRedisStore_SetAndGet(t *testing.T) {
	_, store := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestRedisStore_Miss(t *testing.T) {
	_, store := setupRedisStore(t, time.Minute)

	_, err := store.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisStore_TTL(t *testing.T) {
	mr, store := setupRedisStore(t, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	mr.FastForward(200 * time.Millisecond)

	_, err = store.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisStore_KeysAreNamespaced(t *testing.T) {
	mr, store := setupRedisStore(t, time.Minute)

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	assert.True(t, mr.Exists("hourei:qcache:k"))
}

func TestRedisStore_ConnectFailure(t *testing.T) {
	_, err := NewRedisStore(Config{Addr: "localhost:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_BackendSelection(t *testing.T) {
	logger := zap.NewNop()

	s, err := New(Config{Backend: "memory", MaxEntries: 10, TTL: time.Minute}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	// Empty backend falls back to memory.
	s, err = New(Config{TTL: time.Minute}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(Config{Backend: "memcached"}, logger)
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err = New(Config{Backend: "redis", Addr: mr.Addr(), TTL: time.Minute}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	s.Close()
}
