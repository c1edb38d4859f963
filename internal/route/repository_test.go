package route

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/filtergw/internal/async"
	"github.com/vyrodovalexey/filtergw/internal/util"
)

func ids(t *testing.T, repo Locator) []string {
	t.Helper()
	var out []string
	for r := range repo.Routes(context.Background()) {
		out = append(out, r.ID)
	}
	return out
}

func TestInMemoryRepository_SaveDeleteLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()

	require.NoError(t, repo.Save(ctx, Route{ID: "a"}).Err())
	require.NoError(t, repo.Save(ctx, Route{ID: "b"}).Err())
	assert.Equal(t, []string{"a", "b"}, ids(t, repo))

	require.NoError(t, repo.Delete(ctx, "a").Err())
	assert.Equal(t, []string{"b"}, ids(t, repo))

	err := repo.Delete(ctx, "a").Err()
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrNotFound)
	assert.True(t, IsNotFound(err))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "a", nf.ID)
	assert.Contains(t, err.Error(), "a")
}

func TestInMemoryRepository_ReplaceKeepsPosition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, Route{ID: id, URI: "http://old"}).Err())
	}
	require.NoError(t, repo.Save(ctx, Route{ID: "b", URI: "http://new"}).Err())

	assert.Equal(t, []string{"a", "b", "c"}, ids(t, repo))
	assert.Equal(t, 3, repo.Len())

	got, ok := repo.Get(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "http://new", got.URI)
}

func TestInMemoryRepository_SaveRequiresID(t *testing.T) {
	t.Parallel()

	repo := NewInMemoryRepository()
	err := repo.Save(context.Background(), Route{URI: "http://x"}).Err()
	assert.ErrorIs(t, err, util.ErrInvalidInput)
	assert.Zero(t, repo.Len())
}

func TestInMemoryRepository_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := NewInMemoryRepository()
	assert.ErrorIs(t, repo.Save(ctx, Route{ID: "a"}).Err(), context.Canceled)
	assert.ErrorIs(t, repo.Delete(ctx, "a").Err(), context.Canceled)
	assert.Zero(t, repo.Len())
}

func TestInMemoryRepository_CopiesOnSaveAndRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()

	in := Route{
		ID:       "a",
		Metadata: map[string]string{"team": "core"},
		Filters:  []FilterDefinition{{Name: "RateLimit", Args: map[string]string{"rps": "10"}}},
	}
	require.NoError(t, repo.Save(ctx, in).Err())

	in.Metadata["team"] = "changed"
	in.Filters[0].Args["rps"] = "99"

	got, ok := repo.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "core", got.Metadata["team"])
	assert.Equal(t, "10", got.Filters[0].Args["rps"])

	got.Metadata["team"] = "mutated"
	for r := range repo.Routes(ctx) {
		r.Filters[0].Args["rps"] = "0"
	}

	again, _ := repo.Get(ctx, "a")
	assert.Equal(t, "core", again.Metadata["team"])
	assert.Equal(t, "10", again.Filters[0].Args["rps"])
}

func TestInMemoryRepository_RoutesIsRestartable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()
	seq := repo.Routes(ctx)

	require.NoError(t, repo.Save(ctx, Route{ID: "a"}).Err())

	var first []string
	for r := range seq {
		first = append(first, r.ID)
	}

	require.NoError(t, repo.Save(ctx, Route{ID: "b"}).Err())

	var second []string
	for r := range seq {
		second = append(second, r.ID)
	}

	assert.Equal(t, []string{"a"}, first)
	assert.Equal(t, []string{"a", "b"}, second)
}

func TestInMemoryRepository_RoutesSnapshotIgnoresConcurrentMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()
	require.NoError(t, repo.Save(ctx, Route{ID: "a"}).Err())
	require.NoError(t, repo.Save(ctx, Route{ID: "b"}).Err())

	var seen []string
	for r := range repo.Routes(ctx) {
		seen = append(seen, r.ID)
		if r.ID == "a" {
			require.NoError(t, repo.Delete(ctx, "b").Err())
			require.NoError(t, repo.Save(ctx, Route{ID: "c"}).Err())
		}
	}

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"a", "c"}, ids(t, repo))
}

func TestInMemoryRepository_RoutesStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	repo := NewInMemoryRepository()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(context.Background(), Route{ID: id}).Err())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []string
	for r := range repo.Routes(ctx) {
		seen = append(seen, r.ID)
		cancel()
	}
	assert.Equal(t, []string{"a"}, seen)
}

func TestInMemoryRepository_EmptyStore(t *testing.T) {
	t.Parallel()

	repo := NewInMemoryRepository()
	assert.Empty(t, ids(t, repo))

	_, ok := repo.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestInMemoryRepository_FromFutures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("upstream source failed")

	tests := []struct {
		name    string
		run     func(repo *InMemoryRepository) *async.Completion
		wantErr error
		wantIDs []string
	}{
		{
			name: "save from resolved",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.SaveFrom(ctx, async.Resolve(Route{ID: "x"}))
			},
			wantIDs: []string{"seed", "x"},
		},
		{
			name: "save from rejected stores nothing",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.SaveFrom(ctx, async.Reject[Route](boom))
			},
			wantErr: boom,
			wantIDs: []string{"seed"},
		},
		{
			name: "save from nil",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.SaveFrom(ctx, nil)
			},
			wantErr: util.ErrInvalidInput,
			wantIDs: []string{"seed"},
		},
		{
			name: "delete from resolved",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.DeleteFrom(ctx, async.Resolve("seed"))
			},
			wantIDs: nil,
		},
		{
			name: "delete from resolved missing id",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.DeleteFrom(ctx, async.Resolve("nope"))
			},
			wantErr: util.ErrNotFound,
			wantIDs: []string{"seed"},
		},
		{
			name: "delete from rejected",
			run: func(repo *InMemoryRepository) *async.Completion {
				return repo.DeleteFrom(ctx, async.Reject[string](boom))
			},
			wantErr: boom,
			wantIDs: []string{"seed"},
		},
		{
			name: "save from pending",
			run: func(repo *InMemoryRepository) *async.Completion {
				src := async.Go(ctx, func(context.Context) (Route, error) {
					return Route{ID: "late"}, nil
				})
				return repo.SaveFrom(ctx, src)
			},
			wantIDs: []string{"seed", "late"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := NewInMemoryRepository()
			require.NoError(t, repo.Save(ctx, Route{ID: "seed"}).Err())

			err := tt.run(repo).Err()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantIDs, ids(t, repo))
		})
	}
}

func TestInMemoryRepository_DeleteFromNotFoundCarriesResolvedID(t *testing.T) {
	t.Parallel()

	repo := NewInMemoryRepository()
	err := repo.DeleteFrom(context.Background(), async.Resolve("ghost")).Err()

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost", nf.ID)
}

func TestInMemoryRepository_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewInMemoryRepository()

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				assert.NoError(t, repo.Save(ctx, Route{ID: id}).Err())
				if i%2 == 0 {
					assert.NoError(t, repo.Delete(ctx, id).Err())
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				seen := make(map[string]bool)
				for route := range repo.Routes(ctx) {
					assert.False(t, seen[route.ID], "duplicate id %s", route.ID)
					seen[route.ID] = true
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter/2, repo.Len())
}

func TestInMemoryRepository_Metrics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	repo := NewInMemoryRepository(WithMetrics(metrics))

	require.NoError(t, repo.Save(ctx, Route{ID: "a"}).Err())
	require.NoError(t, repo.Save(ctx, Route{ID: "b"}).Err())
	require.NoError(t, repo.Delete(ctx, "a").Err())
	require.Error(t, repo.Delete(ctx, "a").Err())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.routes))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.operations.WithLabelValues("save", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("delete", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.operations.WithLabelValues("delete", "not_found")))
}

func TestInMemoryRepository_MetricsUnderConcurrency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	metrics := NewMetrics("test", prometheus.NewRegistry())
	repo := NewInMemoryRepository(WithMetrics(metrics))

	const workers = 16
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				id := fmt.Sprintf("w%d-%d", w, i)
				_ = repo.Save(ctx, Route{ID: id}).Err()
				if i%3 == 0 {
					_ = repo.Delete(ctx, id).Err()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(repo.Len()), testutil.ToFloat64(metrics.routes))
}

func TestRoute_CloneAndEqual(t *testing.T) {
	t.Parallel()

	r := Route{
		ID:        "a",
		URI:       "http://a",
		Predicate: `request.path.startsWith("/a")`,
		Order:     2,
		Filters:   []FilterDefinition{{Name: "JWTAuth"}},
		Metadata:  map[string]string{"k": "v"},
	}
	cp := r.Clone()
	assert.True(t, r.Equal(cp))

	cp.Metadata["k"] = "other"
	assert.False(t, r.Equal(cp))
	assert.Equal(t, "v", r.Metadata["k"])

	assert.True(t, Route{ID: "x"}.Equal(Route{ID: "x"}.Clone()))
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("a")
	assert.Equal(t, "route not found: a", err.Error())
	assert.True(t, errors.Is(err, util.ErrNotFound))
	assert.True(t, errors.Is(err, &NotFoundError{}))
	assert.False(t, errors.Is(err, util.ErrInvalidInput))
}
