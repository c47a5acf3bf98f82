package kv

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against one backend.
func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	t.Run("GetMissing", func(t *testing.T) {
		store := open(t)

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("PutGet", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, "a", []byte("1"), 0))
		got, err := store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), got)

		require.NoError(t, store.Put(ctx, "a", []byte("2"), 0))
		got, err = store.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), got)
	})

	t.Run("CreateIfAbsent", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		created, err := store.CreateIfAbsent(ctx, "marker", []byte("first"), time.Hour)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.CreateIfAbsent(ctx, "marker", []byte("second"), time.Hour)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := store.Get(ctx, "marker")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), got, "existing value must not be overwritten")
	})

	t.Run("CreateIfAbsentConcurrent", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		const workers = 32
		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := store.CreateIfAbsent(ctx, "race", []byte("x"), time.Hour)
				assert.NoError(t, err)
				if created {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), winners.Load())
	})

	t.Run("UpdateCreatesAndModifies", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		err := store.Update(ctx, "counter", func(current []byte) ([]byte, time.Duration, error) {
			assert.Nil(t, current)
			return []byte("1"), time.Hour, nil
		})
		require.NoError(t, err)

		err = store.Update(ctx, "counter", func(current []byte) ([]byte, time.Duration, error) {
			assert.Equal(t, []byte("1"), current)
			return []byte("2"), time.Hour, nil
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), got)
	})

	t.Run("UpdateNilLeavesValue", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Put(ctx, "keep", []byte("v"), 0))
		err := store.Update(ctx, "keep", func(current []byte) ([]byte, time.Duration, error) {
			return nil, 0, nil
		})
		require.NoError(t, err)

		got, err := store.Get(ctx, "keep")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("UpdateErrorAborts", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		boom := errors.New("boom")

		require.NoError(t, store.Put(ctx, "abort", []byte("v"), 0))
		err := store.Update(ctx, "abort", func(current []byte) ([]byte, time.Duration, error) {
			return []byte("changed"), 0, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := store.Get(ctx, "abort")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("UpdateConcurrentIncrements", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		const workers = 24
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Update(ctx, "n", func(current []byte) ([]byte, time.Duration, error) {
					n := 0
					if current != nil {
						var err error
						n, err = strconv.Atoi(string(current))
						if err != nil {
							return nil, 0, err
						}
					}
					return []byte(strconv.Itoa(n + 1)), time.Hour, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, "n")
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(workers), string(got))
	})

	t.Run("DeleteFunc", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		for _, key := range []string{"p:2026-01-01:a", "p:2026-01-02:b", "p:2026-01-03:c", "q:2026-01-01:d"} {
			require.NoError(t, store.Put(ctx, key, []byte("1"), 0))
		}

		deleted, err := store.DeleteFunc(ctx, "p:", func(key string, value []byte) bool {
			return strings.HasPrefix(key, "p:2026-01-01") || strings.HasPrefix(key, "p:2026-01-02")
		})
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)

		_, err = store.Get(ctx, "p:2026-01-01:a")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.Get(ctx, "p:2026-01-03:c")
		assert.NoError(t, err)
		_, err = store.Get(ctx, "q:2026-01-01:d")
		assert.NoError(t, err, "keys outside the prefix must survive")
	})

	t.Run("Ping", func(t *testing.T) {
		store := open(t)
		assert.NoError(t, store.Ping(context.Background()))
	})
}
