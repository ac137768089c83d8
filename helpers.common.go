package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type ContextKey string

const (
	RequestIDPrefix      string     = "r"
	ContextRequestID     ContextKey = "request.id"
	ContextRequestNumber ContextKey = "request.number"
	ConnContextKey       ContextKey = "http-conn"
)

// GetValueFromContext returns the value of a given key in the context
// if this key is not available, it returns an empty string.
func GetValueFromContext(ctx context.Context, contextKey ContextKey) string {
	if val, ok := ctx.Value(contextKey).(string); ok {
		return val
	}
	return ""
}

// GetRequestNumberFromContext returns the request number set in
// the context. if not previously set then it returns 0.
func GetRequestNumberFromContext(ctx context.Context) uint64 {
	if val, ok := ctx.Value(ContextRequestNumber).(uint64); ok {
		return val
	}
	return 0
}

// FileUpload is a file received from a multipart request and waiting to be stored.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Header      *multipart.FileHeader
}

// Open returns a reader on the uploaded file content.
func (f *FileUpload) Open() (multipart.File, error) {
	return f.Header.Open()
}

// Ext returns the lower-cased extension of the original file name.
func (f *FileUpload) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// IsMultipartRequest tells whether the request body is a multipart form.
func IsMultipartRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// DecodeCreateBookRequestBody reads the content of a book creation request. It supports
// json and multipart bodies. In the multipart case the first attached file is returned.
func DecodeCreateBookRequestBody(r *http.Request, maxSize int64, req *CreateBookRequest) (*FileUpload, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, NewValidationError("please provide book details")
	}

	if IsMultipartRequest(r) {
		return decodeMultipartCreateBookRequest(r, maxSize, req)
	}

	fields := map[string]json.RawMessage{}
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxSize)).Decode(&fields); err != nil {
		return nil, NewValidationError("invalid create book request body: %v", err)
	}
	if len(fields) == 0 {
		return nil, NewValidationError("please provide book details")
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, NewValidationError("invalid create book request body: %v", err)
	}
	if err = json.Unmarshal(raw, req); err != nil {
		return nil, NewValidationError("invalid create book request body: %v", err)
	}
	return nil, nil
}

func decodeMultipartCreateBookRequest(r *http.Request, maxSize int64, req *CreateBookRequest) (*FileUpload, error) {
	file, err := ExtractFirstFile(r, maxSize)
	if err != nil && !errors.Is(err, ErrNoFileFound) {
		return nil, err
	}

	form := url.Values(r.MultipartForm.Value)
	if len(form) == 0 {
		return nil, NewValidationError("please provide book details")
	}

	req.Title = form.Get("title")
	req.Excerpt = form.Get("excerpt")
	req.UserID = form.Get("userId")
	req.ISBN = form.Get("ISBN")
	req.Category = form.Get("category")
	req.Subcategory = form.Get("subcategory")
	req.ReleasedAt = form.Get("releasedAt")
	return file, nil
}

// ExtractFirstFile parses the multipart form and returns its first file. Form fields
// are visited in sorted order so the choice is stable across calls.
func ExtractFirstFile(r *http.Request, maxSize int64) (*FileUpload, error) {
	if !IsMultipartRequest(r) {
		return nil, ErrNoFileFound
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, NewValidationError("invalid multipart request body: %v", err)
	}

	keys := make([]string, 0, len(r.MultipartForm.File))
	for k := range r.MultipartForm.File {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if headers := r.MultipartForm.File[k]; len(headers) > 0 {
			h := headers[0]
			return &FileUpload{
				Name:        h.Filename,
				ContentType: h.Header.Get("Content-Type"),
				Size:        h.Size,
				Header:      h,
			}, nil
		}
	}
	return nil, ErrNoFileFound
}

// DecodeUpdateBookRequestBody reads the content of a book update request.
func DecodeUpdateBookRequestBody(r *http.Request, maxSize int64, req *UpdateBookRequest) error {
	if r.Body == nil || r.Body == http.NoBody {
		return NewValidationError("please provide data for update")
	}
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxSize)).Decode(req); err != nil {
		return NewValidationError("invalid update book request body: %v", err)
	}
	return nil
}

// GetRequestSourceIP helps find the source IP of the caller.
func GetRequestSourceIP(r *http.Request) string {
	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		ip = strings.TrimSpace(ip)
		netIP = net.ParseIP(ip)
		if netIP != nil {
			return ip
		}
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip
	}
	return ""
}

// IsAppRunningInDocker checks the existence of the .dockerenv
// file at the root directory and returns a boolean result. This
// helps know if the App is running in a docker container or not.
func IsAppRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// SaveConnInContext is the hook used by the server under ConnContext.
// It sets the underlying connection into the request context for later
// use by ReadDeadline or WriteDeadline method on *CustomResponseWriter.
func SaveConnInContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, ConnContextKey, c)
}

// GetConnFromContext returns the connection saved into the context or nil.
func GetConnFromContext(ctx context.Context) net.Conn {
	if c, ok := ctx.Value(ConnContextKey).(net.Conn); ok {
		return c
	}
	return nil
}

// FormatBookKey builds the key under which a book is archived.
func FormatBookKey(id string) string {
	return fmt.Sprintf("book:%s", id)
}
