package shortener_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/serroba/shortlink-go/internal/shortener"
	"github.com/serroba/shortlink-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collidingRepo reports every probed code as taken for the first n probes.
type collidingRepo struct {
	shortener.Repository

	collisions int
	probes     int
}

func (r *collidingRepo) FindByCode(_ context.Context, _ shortener.Code) (*shortener.UrlRecord, error) {
	r.probes++
	if r.probes <= r.collisions {
		return &shortener.UrlRecord{}, nil
	}

	return nil, shortener.ErrNotFound
}

func newAllocator(t *testing.T, repo shortener.Repository) *shortener.Allocator {
	t.Helper()

	allocator, err := shortener.NewAllocator(repo, 7, 3, 50)
	require.NoError(t, err)

	return allocator
}

func TestAllocate(t *testing.T) {
	t.Run("generates codes from the url-safe alphabet", func(t *testing.T) {
		allocator := newAllocator(t, store.NewMemoryRepository())

		code, err := allocator.Allocate(context.Background())

		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9_-]{7}$`), string(code))
	})

	t.Run("generates distinct codes", func(t *testing.T) {
		allocator := newAllocator(t, store.NewMemoryRepository())

		seen := make(map[shortener.Code]struct{})

		for range 50 {
			code, err := allocator.Allocate(context.Background())

			require.NoError(t, err)
			seen[code] = struct{}{}
		}

		assert.Len(t, seen, 50)
	})

	t.Run("widens the code after repeated collisions", func(t *testing.T) {
		repo := &collidingRepo{collisions: 10}
		allocator := newAllocator(t, repo)

		code, err := allocator.Allocate(context.Background())

		require.NoError(t, err)
		assert.Len(t, string(code), 9)
		assert.Equal(t, 11, repo.probes)
	})

	t.Run("gives up when even the widened code collides", func(t *testing.T) {
		repo := &collidingRepo{collisions: 11}
		allocator := newAllocator(t, repo)

		_, err := allocator.Allocate(context.Background())

		assert.ErrorIs(t, err, shortener.ErrCodeSpaceExhausted)
	})

	t.Run("surfaces repository errors", func(t *testing.T) {
		repo := &failingRepo{err: errors.New("store down")}
		allocator := newAllocator(t, repo)

		_, err := allocator.Allocate(context.Background())

		assert.ErrorContains(t, err, "store down")
	})
}

type failingRepo struct {
	shortener.Repository

	err error
}

func (r *failingRepo) FindByCode(_ context.Context, _ shortener.Code) (*shortener.UrlRecord, error) {
	return nil, r.err
}

func TestValidateAlias(t *testing.T) {
	t.Run("accepts a valid alias", func(t *testing.T) {
		allocator := newAllocator(t, store.NewMemoryRepository())

		assert.NoError(t, allocator.ValidateAlias(context.Background(), "my-link_1"))
	})

	t.Run("rejects bad charset", func(t *testing.T) {
		allocator := newAllocator(t, store.NewMemoryRepository())

		err := allocator.ValidateAlias(context.Background(), "my link!")

		assert.ErrorIs(t, err, shortener.ErrAliasInvalid)
	})

	t.Run("rejects aliases outside the length bounds", func(t *testing.T) {
		allocator := newAllocator(t, store.NewMemoryRepository())

		assert.ErrorIs(t, allocator.ValidateAlias(context.Background(), "ab"), shortener.ErrAliasInvalid)

		long := make([]byte, 51)
		for i := range long {
			long[i] = 'a'
		}

		assert.ErrorIs(t, allocator.ValidateAlias(context.Background(), string(long)), shortener.ErrAliasInvalid)
	})

	t.Run("rejects aliases already in use", func(t *testing.T) {
		repo := store.NewMemoryRepository()
		require.NoError(t, repo.Insert(context.Background(), &shortener.UrlRecord{
			ID:         "1",
			Code:       "my-link",
			Normalized: "https://example.com/a",
		}))

		allocator := newAllocator(t, repo)

		err := allocator.ValidateAlias(context.Background(), "my-link")

		assert.ErrorIs(t, err, shortener.ErrAliasTaken)
	})
}
