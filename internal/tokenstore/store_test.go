package tokenstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-academic-portal/internal/model"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func backends(t *testing.T) map[string]func() KV {
	t.Helper()

	return map[string]func() KV{
		"memory": func() KV { return NewMemoryKV() },
		"bolt": func() KV {
			kv, err := OpenBoltKV(filepath.Join(t.TempDir(), "state", "session.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = kv.Close() })
			return kv
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, newKV := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := New(newKV())

			record := model.TokenRecord{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				Duration:     15 * time.Second,
				ExpiresAt:    time.UnixMilli(1_760_000_000_123),
				CurrentRole:  "docente",
			}
			require.NoError(t, store.Save(record))
			require.Equal(t, record, store.Load())
		})
	}
}

func TestStoreSaveOverwritesAllFields(t *testing.T) {
	t.Parallel()

	kv := NewMemoryKV()
	store := New(kv)

	require.NoError(t, store.Save(model.TokenRecord{
		AccessToken:  "a",
		RefreshToken: "r",
		Duration:     time.Minute,
		ExpiresAt:    time.UnixMilli(1000),
		CurrentRole:  "estudiante",
	}))
	require.NoError(t, store.Save(model.TokenRecord{AccessToken: "b"}))

	require.Equal(t, model.TokenRecord{AccessToken: "b"}, store.Load())
	require.ElementsMatch(t, []string{KeyAccessToken}, kv.Keys())
}

func TestStoreClearRemovesEveryKey(t *testing.T) {
	t.Parallel()

	for name, newKV := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := newKV()
			store := New(kv)

			require.NoError(t, store.Save(model.TokenRecord{
				AccessToken:  "a",
				RefreshToken: "r",
				Duration:     time.Minute,
				ExpiresAt:    time.Now().Add(time.Minute),
				CurrentRole:  "docente",
			}))
			require.NoError(t, store.Clear())

			values, err := kv.Load(allKeys)
			require.NoError(t, err)
			require.Empty(t, values)
			require.True(t, store.Load().Empty())
			require.Zero(t, store.RemainingMs())
		})
	}
}

func TestStoreRemaining(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.UnixMilli(1_000_000)}
	store := New(NewMemoryKV(), WithClock(clock.Now))

	require.Zero(t, store.RemainingMs(), "no record")

	require.NoError(t, store.Save(model.TokenRecord{
		AccessToken: "a",
		Duration:    5 * time.Second,
		ExpiresAt:   clock.now.Add(5 * time.Second),
	}))

	remaining := store.RemainingMs()
	require.Greater(t, remaining, int64(0))
	require.LessOrEqual(t, remaining, int64(5000))

	clock.now = clock.now.Add(4 * time.Second)
	require.Equal(t, int64(1000), store.RemainingMs())

	clock.now = clock.now.Add(time.Second)
	require.Zero(t, store.RemainingMs())

	clock.now = clock.now.Add(time.Hour)
	require.Zero(t, store.RemainingMs())
}

func TestStoreLoadSubsetAndGarbage(t *testing.T) {
	t.Parallel()

	kv := NewMemoryKV()
	require.NoError(t, kv.Apply(map[string]string{
		KeyRefreshToken: "r",
		KeyDuration:     "abc",
		KeyExpiry:       "",
	}, nil))

	record := New(kv).Load()
	require.True(t, record.Empty())
	require.Equal(t, "r", record.RefreshToken)
	require.Zero(t, record.Duration)
	require.True(t, record.ExpiresAt.IsZero())
}

func TestStoreRoleAccessors(t *testing.T) {
	t.Parallel()

	store := New(NewMemoryKV())
	require.Empty(t, store.LoadRole())

	require.NoError(t, store.SaveRole("docente"))
	require.Equal(t, "docente", store.LoadRole())
	require.Equal(t, "docente", store.Load().CurrentRole)

	require.NoError(t, store.SaveRole(""))
	require.Empty(t, store.LoadRole())
}

func TestBoltKVPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.db")
	kv, err := OpenBoltKV(path)
	require.NoError(t, err)

	record := model.TokenRecord{
		AccessToken:  "a",
		RefreshToken: "r",
		Duration:     30 * time.Second,
		ExpiresAt:    time.UnixMilli(2_000_000),
	}
	require.NoError(t, New(kv).Save(record))
	require.NoError(t, kv.Close())

	reopened, err := OpenBoltKV(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	require.Equal(t, record, New(reopened).Load())
}
