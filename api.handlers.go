package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Statistics holds app stats for ops.
type Statistics struct {
	version   string
	container bool
	runtime   string
	platform  string
	called    uint64
	started   time.Time
	status    map[int]uint64
	mu        *sync.RWMutex
}

// NewStatistics provides the app statistics initialized with build and runtime details.
func NewStatistics(config *Config, started time.Time) *Statistics {
	version := config.GitTag
	// Use git commit in case the tag is not set.
	if version == "" {
		version = config.GitCommit
	}
	return &Statistics{
		version:   version,
		container: IsAppRunningInDocker(),
		started:   started,
		runtime:   runtime.Version(),
		platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Maintenance holds app maintenance mode infos.
type Maintenance struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	message string
	started time.Time
}

// APIHandler defines the API handler.
type APIHandler struct {
	logger      *zap.Logger
	config      *Config
	stats       *Statistics
	mode        *Maintenance
	clock       Clocker
	idsHandler  UIDHandler
	validator   *Validator
	bookService BookServiceProvider
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(
	logger *zap.Logger,
	config *Config,
	stats *Statistics,
	clock Clocker,
	idsHandler UIDHandler,
	validator *Validator,
	bs BookServiceProvider,
) *APIHandler {
	stats.status = make(map[int]uint64)
	stats.mu = &sync.RWMutex{}
	return &APIHandler{
		logger:      logger,
		config:      config,
		stats:       stats,
		mode:        &Maintenance{},
		clock:       clock,
		idsHandler:  idsHandler,
		validator:   validator,
		bookService: bs,
	}
}

// writeError resolves the status code and message of err then sends them to the client.
func (api *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, fields ...zap.Field) {
	logger := api.GetLoggerFromContext(r.Context())
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	code, message := ErrorStatusAndMessage(err)
	logger.Error(msg, append(fields, zap.Int("status", code), zap.Error(err))...)
	if err = WriteErrorResponse(r.Context(), w, code, NewAPIError(requestID, message)); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

// writeJSON sends a raw json payload used by the ops and status endpoints.
func (api *APIHandler) writeJSON(w http.ResponseWriter, r *http.Request, code int, data interface{}, what string) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send "+what+" response", zap.Error(err))
	}
}

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.writeJSON(w, r, http.StatusOK, StatusResponse{
		RequestID: GetValueFromContext(r.Context(), ContextRequestID),
		Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		Message:   "Hello. Books catalog api is available. Enjoy :)",
	}, "status")
}

// NotFound answers requests targeting an unknown route. It runs outside of
// the middlewares chains so the request id is generated here.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := api.idsHandler.Generate(RequestIDPrefix)
		api.logger.Info("route not found",
			zap.String("request.id", requestID),
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
		)
		api.writeJSON(w, r, http.StatusNotFound, map[string]interface{}{
			"requestid": requestID,
			"status":    false,
			"message":   "route does not exist",
			"path":      r.Method + " " + r.URL.Path,
		}, "not found")
	})
}

// Maintenance handles request to enable or disable the maintenance mode of the service and respond
// to client requests with predefined message when the service is in maintenance mode.
// Enable the maintenance mode : /ops/maintenance?status=enable&msg=message-to-be-displayed-to-users
// Disable the maintenance mode: /ops/maintenance?status=disable
func (api *APIHandler) Maintenance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	q := r.URL.Query()
	mstatus := "show"
	if ps.ByName("status") != mstatus {
		mstatus = q.Get("status")
	}

	switch mstatus {
	case "enable":
		api.mode.mu.Lock()
		api.mode.message = q.Get("msg")
		api.mode.started = api.clock.Now().UTC()
		started := api.mode.started
		api.mode.mu.Unlock()
		api.mode.enabled.Store(true)
		api.writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"requestid":           requestID,
			"maintenance.started": started.Format(time.RFC1123),
			"maintenance.message": q.Get("msg"),
			"message":             "Maintenance mode enabled successfully.",
		}, "maintenance")

	case "disable":
		api.mode.enabled.Store(false)
		api.mode.mu.Lock()
		api.mode.started = time.Time{}
		api.mode.message = ""
		api.mode.mu.Unlock()
		api.writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"requestid": requestID,
			"message":   "Maintenance mode disabled successfully.",
		}, "maintenance")

	case "show":
		api.mode.mu.RLock()
		reason, since := api.mode.message, api.mode.started
		api.mode.mu.RUnlock()
		api.writeJSON(w, r, http.StatusServiceUnavailable, map[string]interface{}{
			"requestid": requestID,
			"message":   "service currently unvailable.",
			"reason":    reason,
			"since":     since.Format(time.RFC1123),
		}, "maintenance")

	default:
		errResp := NewAPIError(requestID, "status must be enable or disable")
		if err := WriteErrorResponse(r.Context(), w, http.StatusBadRequest, errResp); err != nil {
			api.GetLoggerFromContext(r.Context()).Error("failed to send maintenance response", zap.Error(err))
		}
	}
}

// GetStatistics provides useful details about the application to the internal ops users.
// The stats returns by this handler do not contain the ops request which triggered that.
// That is why we remove 1 from the called field value in order to match the status stats.
func (api *APIHandler) GetStatistics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.mode.mu.RLock()
	maintenanceStarted := ""
	if !api.mode.started.IsZero() {
		maintenanceStarted = api.mode.started.Format(time.RFC1123)
	}
	maintenance := map[string]interface{}{
		"enabled": api.mode.enabled.Load(),
		"started": maintenanceStarted,
		"message": api.mode.message,
	}
	api.mode.mu.RUnlock()

	called := atomic.LoadUint64(&api.stats.called)
	if called > 0 {
		called--
	}

	api.stats.mu.RLock()
	status := make(map[int]uint64, len(api.stats.status))
	for code, count := range api.stats.status {
		status[code] = count
	}
	api.stats.mu.RUnlock()

	api.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"requestid":     GetValueFromContext(r.Context(), ContextRequestID),
		"app.version":   api.stats.version,
		"app.container": api.stats.container,
		"app.platform":  api.stats.platform,
		"go.version":    api.stats.runtime,
		"called":        called,
		"started":       api.stats.started.Format(time.RFC1123),
		"uptime":        fmt.Sprintf("%.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
		"maintenance":   maintenance,
		"status":        status,
	}, "statistics")
}

// GetConfigs serves current in-use configurations/settings.
func (api *APIHandler) GetConfigs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	api.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"requestid": GetValueFromContext(r.Context(), ContextRequestID),
		"configs":   api.config,
	}, "settings")
}

// GetArchivedBooks serves all books snapshots replicated into the local archive.
func (api *APIHandler) GetArchivedBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	books, err := api.bookService.GetArchivedBooks(r.Context())
	if err != nil {
		api.writeError(w, r, err, "failed to get archived books")
		return
	}
	total := len(books)
	resp := GenericResponse(requestID, "Archived books fetched successfully.", &total, books)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.Error(err))
	}
}

// GetArchivedBook serves the last archived snapshot of a single book.
func (api *APIHandler) GetArchivedBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id := ps.ByName("bookId")
	book, err := api.bookService.GetArchivedBook(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err, "failed to get archived book", zap.String("book.id", id))
		return
	}
	resp := GenericResponse(requestID, "Archived book fetched successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send response", zap.String("book.id", id), zap.Error(err))
	}
}
