package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExchange_Attributes(t *testing.T) {
	t.Parallel()

	ex := New(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	_, ok := ex.Attribute("missing")
	assert.False(t, ok)

	ex.SetAttribute(AttrRequestID, "req-1")
	assert.Equal(t, "req-1", ex.StringAttribute(AttrRequestID))
	assert.Empty(t, ex.StringAttribute("missing"))

	ex.SetAttribute("number", 7)
	assert.Empty(t, ex.StringAttribute("number"))
}

func TestExchange_WithRequestSharesState(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ex := New(rec, httptest.NewRequest(http.MethodGet, "/a", nil))

	type key struct{}
	derived := ex.WithContext(context.WithValue(ex.Context(), key{}, "v"))
	derived.SetAttribute("k", "v")

	assert.Equal(t, "/a", derived.Request().URL.Path)
	assert.Equal(t, "v", derived.Context().Value(key{}))
	assert.Nil(t, ex.Context().Value(key{}))
	assert.Equal(t, "v", ex.StringAttribute("k"))
	assert.Same(t, ex.Response(), derived.Response())
	assert.Equal(t, ex.StartTime(), derived.StartTime())
}

func TestResponse_StatusAndCommit(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	ex := New(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	resp := ex.Response()

	assert.False(t, resp.Committed())
	assert.Equal(t, http.StatusOK, resp.Status())

	resp.WriteHeader(http.StatusCreated)
	resp.WriteHeader(http.StatusTeapot)
	_, err := resp.Write([]byte("hello"))
	assert.NoError(t, err)

	assert.True(t, resp.Committed())
	assert.Equal(t, http.StatusCreated, resp.Status())
	assert.Equal(t, int64(5), resp.BytesWritten())
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Same(t, rec, resp.Unwrap())
}

func TestResponse_WriteImplicitOK(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	resp := New(rec, httptest.NewRequest(http.MethodGet, "/", nil)).Response()

	_, _ = resp.Write([]byte("x"))
	resp.Flush()
	assert.True(t, resp.Committed())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rec.Flushed)
}

func TestResponse_WriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	resp := New(rec, httptest.NewRequest(http.MethodGet, "/", nil)).Response()

	resp.WriteJSONError(http.StatusForbidden, `forbidden "x"`)
	resp.WriteJSONError(http.StatusInternalServerError, "ignored")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"forbidden \"x\""}`, rec.Body.String())
}

func TestResponse_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	resp := New(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)).Response()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = resp.Write([]byte("ab"))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(20), resp.BytesWritten())
}
