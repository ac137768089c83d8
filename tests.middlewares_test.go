package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// TestMiddlewaresStacks ensures we get both public and ops middlewares
// stacks with exact number of elements in those stacks.
func TestMiddlewaresStacks(t *testing.T) {
	api := newTestAPIHandler(nil)
	pub, ops := api.MiddlewaresStacks()
	assert.Equal(t, 7, len(*pub))
	assert.Equal(t, 6, len(*ops))
}

// TestChain ensures each middleware in the stack is called as well the handler.
func TestChain(t *testing.T) {
	var ca, cb, cc, ch bool
	queue := make(chan int, 4)

	middlewareA := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 1
			ca = true
			next(w, r, ps)
		}
	}
	middlewareB := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 2
			cb = true
			next(w, r, ps)
		}
	}
	middlewareC := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 3
			cc = true
			next(w, r, ps)
		}
	}
	middlewares := Middlewares{
		middlewareA,
		middlewareB,
		middlewareC,
	}

	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		queue <- 4
		ch = true
	}

	chained := (&middlewares).Chain(handler)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	chained(w, req, nil)

	t.Run("check calling", func(t *testing.T) {
		assert.Equal(t, true, ca)
		assert.Equal(t, true, cb)
		assert.Equal(t, true, cc)
		assert.Equal(t, true, ch)
	})

	t.Run("check ordering", func(t *testing.T) {
		assert.Equal(t, 1, <-queue)
		assert.Equal(t, 2, <-queue)
		assert.Equal(t, 3, <-queue)
		assert.Equal(t, 4, <-queue)
	})
}

// TestRequestsCounterMiddleware ensures the request counter increment.
func TestRequestsCounterMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	var num uint64
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		num = GetRequestNumberFromContext(req.Context())
	}
	wrapped := api.RequestsCounterMiddleware(handler)
	wrapped(w, req, nil)
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, uint64(1), api.stats.called)
}

// TestRequestIDMiddleware ensures the request id and the request logger are set into the context.
func TestRequestIDMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	var requestID string
	var logger *zap.Logger
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		requestID = GetValueFromContext(req.Context(), ContextRequestID)
		logger = api.GetLoggerFromContext(req.Context())
	}
	api.RequestIDMiddleware(handler)(w, req, nil)
	assert.Equal(t, "r:abc", requestID)
	assert.NotNil(t, logger)
	assert.NotSame(t, api.logger, logger)
}

// TestStatsMiddleware ensures response status codes are counted.
func TestStatsMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil)
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	}
	wrapped := api.StatsMiddleware(handler)
	for i := 0; i < 2; i++ {
		wrapped(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/books", nil), nil)
	}
	wrapped = api.StatsMiddleware(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		_, _ = w.Write([]byte("ok"))
	})
	wrapped(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/books", nil), nil)

	assert.Equal(t, uint64(2), api.stats.status[http.StatusTeapot])
	assert.Equal(t, uint64(1), api.stats.status[http.StatusOK])
}

// TestPanicRecoveryMiddleware ensures a panic is turned into a 500 error response.
func TestPanicRecoveryMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil)
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		panic("boom")
	}
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		api.PanicRecoveryMiddleware(handler)(w, httptest.NewRequest("GET", "/v1/books", nil), nil)
	})
	assertErrorResponse(t, w, http.StatusInternalServerError, "failed to process the request.")
}

// TestCORSMiddleware ensures the cors headers are set.
func TestCORSMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	CORSMiddleware(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {})(w, httptest.NewRequest("GET", "/", nil), nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

// TestMaintenanceModeMiddleware ensures requests are not processed during maintenance.
func TestMaintenanceModeMiddleware(t *testing.T) {
	api := newTestAPIHandler(nil)
	var called bool
	wrapped := api.MaintenanceModeMiddleware(func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		called = true
	})

	api.mode.enabled.Store(true)
	w := httptest.NewRecorder()
	wrapped(w, httptest.NewRequest("GET", "/v1/books", nil), nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	api.mode.enabled.Store(false)
	w = httptest.NewRecorder()
	wrapped(w, httptest.NewRequest("GET", "/v1/books", nil), nil)
	assert.True(t, called)
}
