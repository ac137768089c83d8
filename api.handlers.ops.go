package main

import (
	"expvar"
	"net/http"
	"net/http/pprof"
	"runtime"
	"runtime/debug"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// ProfileNames lists the profiles exposed under /ops/debug/pprof/ when the
// profiler endpoints are enabled. The empty name is the index page.
var ProfileNames = []string{
	"", "profile", "trace", "symbol", "cmdline",
	"heap", "allocs", "goroutine", "threadcreate", "block", "mutex",
}

// export goroutines to be used by expvar handler.
var goroutines = expvar.NewInt("goroutines")

// GetMemStats returns memory statistics with number of goroutines in json.
func GetMemStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	goroutines.Set(int64(runtime.NumGoroutine()))
	expvar.Handler().ServeHTTP(w, r)
}

// RunGC forces the run of the garbage collector asynchronously.
func (api *APIHandler) RunGC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go runtime.GC()
	api.writeJSON(w, r, http.StatusOK, map[string]string{"called": "go runtime.GC()"}, "run gc")
}

// FreeOSMemory forces the garbage collector to and tries to returns the memory
// back to the operating system in an asynchronous fashion.
func (api *APIHandler) FreeOSMemory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	go debug.FreeOSMemory()
	api.writeJSON(w, r, http.StatusOK, map[string]string{"called": "go debug.FreeOSMemory()"}, "free os memory")
}

// GetProfile serves the named runtime profile. Each call is logged since
// cpu and trace profiles keep the request open for their whole duration.
func (api *APIHandler) GetProfile(name string) httprouter.Handle {
	var h http.Handler
	switch name {
	case "":
		h = http.HandlerFunc(pprof.Index)
	case "profile":
		h = http.HandlerFunc(pprof.Profile)
	case "trace":
		h = http.HandlerFunc(pprof.Trace)
	case "symbol":
		h = http.HandlerFunc(pprof.Symbol)
	case "cmdline":
		h = http.HandlerFunc(pprof.Cmdline)
	default:
		h = pprof.Handler(name)
	}

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		api.GetLoggerFromContext(r.Context()).Info(
			"ops: profile requested",
			zap.String("profile", name),
			zap.String("query", r.URL.RawQuery),
		)
		h.ServeHTTP(w, r)
	}
}

// WrapHandler adapts a standard handler to the router handle signature.
func WrapHandler(h http.Handler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		h.ServeHTTP(w, r)
	}
}
