package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAndReject(t *testing.T) {
	t.Parallel()

	v, err := Resolve(42).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Reject[int](boom).Await(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestCompleteAndFail(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Complete().Err())
	assert.True(t, Complete().IsDone())

	boom := errors.New("boom")
	assert.ErrorIs(t, Fail(boom).Err(), boom)
}

func TestGo(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := Go(context.Background(), func(_ context.Context) (string, error) {
		<-release
		return "done", nil
	})

	assert.False(t, f.IsDone())
	close(release)

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.True(t, f.IsDone())
}

func TestGo_Panic(t *testing.T) {
	t.Parallel()

	f := Go(context.Background(), func(_ context.Context) (int, error) {
		panic("kaboom")
	})

	_, err := f.Await(context.Background())
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestRun(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	c := Run(context.Background(), func(_ context.Context) error { return boom })
	assert.ErrorIs(t, c.Err(), boom)
}

func TestAwait_ContextDone(t *testing.T) {
	t.Parallel()

	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.IsDone())
}

func TestSettle_OnlyFirstWins(t *testing.T) {
	t.Parallel()

	f := newFuture[int]()
	f.settle(1, nil)
	f.settle(2, errors.New("ignored"))

	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestThen(t *testing.T) {
	t.Parallel()

	t.Run("settled source runs inline", func(t *testing.T) {
		t.Parallel()

		called := false
		out := Then(Resolve(2), func(v int) *Future[int] {
			called = true
			return Resolve(v * 10)
		})
		assert.True(t, called)

		v, err := out.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 20, v)
	})

	t.Run("pending source", func(t *testing.T) {
		t.Parallel()

		src := newFuture[int]()
		out := Then(src, func(v int) *Future[string] {
			return Resolve("got")
		})
		assert.False(t, out.IsDone())

		src.settle(1, nil)
		v, err := out.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "got", v)
	})

	t.Run("failure skips fn", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		src := newFuture[int]()
		out := Then(src, func(int) *Future[int] {
			t.Error("fn must not run")
			return Resolve(0)
		})

		src.settle(0, boom)
		_, err := out.Await(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestFinally(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := newFuture[int]()

	var seen error
	out := Finally(src, func(_ int, err error) { seen = err })

	src.settle(0, boom)
	_, err := out.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, seen, boom)
}

func TestThen_PanicInContinuation(t *testing.T) {
	t.Parallel()

	t.Run("settled source", func(t *testing.T) {
		t.Parallel()

		out := Then(Resolve(1), func(int) *Future[int] {
			panic("inline boom")
		})

		_, err := out.Await(context.Background())
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "inline boom", pe.Value)
	})

	t.Run("pending source", func(t *testing.T) {
		t.Parallel()

		src := newFuture[int]()
		out := Then(src, func(int) *Future[int] {
			panic("deferred boom")
		})
		src.settle(1, nil)

		_, err := out.Await(context.Background())
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "deferred boom", pe.Value)
		assert.NotEmpty(t, pe.Stack)
	})
}

func TestThen_NilFuture(t *testing.T) {
	t.Parallel()

	t.Run("settled source", func(t *testing.T) {
		t.Parallel()

		out := Then(Resolve(1), func(int) *Completion { return nil })
		require.NotNil(t, out)
		assert.ErrorIs(t, out.Err(), ErrNilFuture)
	})

	t.Run("pending source", func(t *testing.T) {
		t.Parallel()

		src := newFuture[int]()
		out := Then(src, func(int) *Completion { return nil })
		src.settle(1, nil)
		assert.ErrorIs(t, out.Err(), ErrNilFuture)
	})
}

func TestFinally_PanicInCallback(t *testing.T) {
	t.Parallel()

	t.Run("settled source", func(t *testing.T) {
		t.Parallel()

		out := Finally(Resolve(1), func(int, error) { panic("observer boom") })
		var pe *PanicError
		require.ErrorAs(t, out.Err(), &pe)
		assert.Equal(t, "observer boom", pe.Value)
	})

	t.Run("pending source", func(t *testing.T) {
		t.Parallel()

		src := newFuture[int]()
		out := Finally(src, func(int, error) { panic("observer boom") })
		src.settle(1, nil)

		var pe *PanicError
		require.ErrorAs(t, out.Err(), &pe)
		assert.Equal(t, "observer boom", pe.Value)
	})
}
