package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestAPIHandler(bs BookServiceProvider) *APIHandler {
	config := &Config{}
	config.Server.MaxUploadSize = 1 << 20
	return NewAPIHandler(
		zap.NewNop(),
		config,
		&Statistics{started: NewMockClocker().Now()},
		NewMockClocker(),
		NewMockUIDHandler("abc"),
		NewValidator(),
		bs,
	)
}

// readResponse ensures the response is json and decodes its body.
func readResponse(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	m := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

// assertErrorResponse ensures the response carries the error envelope with the expected message.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, code int, message string) {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, code, res.StatusCode)
	m := readResponse(t, res)
	assert.Equal(t, false, m["status"])
	assert.Equal(t, message, m["message"])
	_, ok := m["requestid"]
	assert.True(t, ok)
}

func bookIDParams(id string) httprouter.Params {
	return httprouter.Params{{Key: "bookId", Value: id}}
}

func newCreatingBookStorage() *MockBookStorage {
	return &MockBookStorage{
		FindOneFunc: func(ctx context.Context, filter bson.M) (Book, error) {
			return Book{}, ErrBookNotFound
		},
		CreateFunc: func(ctx context.Context, book Book) (Book, error) {
			book.ID, _ = primitive.ObjectIDFromHex(testBookHexID)
			return book, nil
		},
	}
}

// TestStatusHandler ensures api handler can provides its status.
func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	api := newTestAPIHandler(nil)
	api.Status(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	m := readResponse(t, res)

	_, ok := m["requestid"]
	assert.True(t, ok)
	assert.Equal(t, "up & running since 0 mins", m["status"])
	assert.Equal(t, "Hello. Books catalog api is available. Enjoy :)", m["message"])
}

// TestCreateBookHandler ensures api handler can create a book.
//
//nolint:funlen
func TestCreateBookHandler(t *testing.T) {
	var uploaded *FileUpload
	uploader := &MockUploader{
		UploadFileFunc: func(ctx context.Context, file *FileUpload) (string, error) {
			uploaded = file
			return "http://localhost:9000/books-covers/covers/abc.png", nil
		},
	}
	bs := NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{
		Books:    newCreatingBookStorage(),
		Users:    existingUsers(),
		Uploader: uploader,
	})
	api := newTestAPIHandler(bs)

	t.Run("should pass: valid json payload", func(t *testing.T) {
		payload, err := json.Marshal(validCreateBookRequest())
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/v1/books", bytes.NewBuffer(payload))
		w := httptest.NewRecorder()
		api.CreateBook(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		m := readResponse(t, res)
		assert.Equal(t, true, m["status"])
		assert.Equal(t, "Book created successfully.", m["message"])
		_, ok := m["total"]
		assert.False(t, ok)

		book, ok := m["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Go in action", book["title"])
		assert.Equal(t, testUserHexID, book["userId"])
		assert.Equal(t, "2015-11-01", book["releasedAt"])
		assert.Equal(t, false, book["isDeleted"])
		assert.Nil(t, book["deletedAt"])
		assert.Equal(t, float64(0), book["reviews"])
		assert.Equal(t, "2023-07-02T00:00:00Z", book["createdAt"])
	})

	t.Run("should pass: multipart payload with cover", func(t *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		req := validCreateBookRequest()
		for k, v := range map[string]string{
			"title": req.Title, "excerpt": req.Excerpt, "userId": req.UserID, "ISBN": req.ISBN,
			"category": req.Category, "subcategory": req.Subcategory, "releasedAt": req.ReleasedAt,
		} {
			require.NoError(t, mw.WriteField(k, v))
		}
		fw, err := mw.CreateFormFile("cover", "abc.png")
		require.NoError(t, err)
		_, err = fw.Write([]byte("png-content"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		r := httptest.NewRequest(http.MethodPost, "/v1/books", body)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		api.CreateBook(w, r, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		m := readResponse(t, res)
		book := m["data"].(map[string]interface{})
		assert.Equal(t, "http://localhost:9000/books-covers/covers/abc.png", book["bookCover"])
		require.NotNil(t, uploaded)
		assert.Equal(t, "abc.png", uploaded.Name)
		assert.Equal(t, int64(len("png-content")), uploaded.Size)
	})

	testCases := []struct {
		name    string
		payload string
		message string
	}{
		{"should fail: empty object", `{}`, "please provide book details"},
		{"should fail: missing title", `{"excerpt":"e"}`, "book title is required"},
		{"should fail: blank title", `{"title":"  ","excerpt":"e"}`, "book title is required"},
		{"should fail: missing excerpt", `{"title":"t"}`, "excerpt is required"},
		{"should fail: missing user id", `{"title":"t","excerpt":"e"}`, "user id is required"},
		{"should fail: invalid user id", `{"title":"t","excerpt":"e","userId":"u1"}`, "u1 is not a valid user id"},
		{"should fail: missing isbn", `{"title":"t","excerpt":"e","userId":"` + testUserHexID + `"}`, "ISBN is required"},
		{
			"should fail: invalid release date",
			`{"title":"t","excerpt":"e","userId":"` + testUserHexID + `","ISBN":"i","category":"c","subcategory":"s","releasedAt":"2023-13-01"}`,
			"released date must be in YYYY-MM-DD format",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(tc.payload))
			w := httptest.NewRecorder()
			api.CreateBook(w, req, httprouter.Params{})
			assertErrorResponse(t, w, http.StatusBadRequest, tc.message)
		})
	}
}

// TestGetAllBooksHandler ensures the listing applies the filters whitelist.
func TestGetAllBooksHandler(t *testing.T) {
	var gotFilter bson.M
	books := &MockBookStorage{
		FindFunc: func(ctx context.Context, filter bson.M, projection bson.M) ([]Book, error) {
			gotFilter = filter
			return []Book{{Title: "b"}, {Title: "a"}}, nil
		},
	}
	api := newTestAPIHandler(NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{Books: books}))

	t.Run("should pass: filtered listing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books?category=golang&userId="+testUserHexID, nil)
		w := httptest.NewRecorder()
		api.GetAllBooks(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		m := readResponse(t, res)
		assert.Equal(t, float64(2), m["total"])
		data := m["data"].([]interface{})
		assert.Equal(t, "a", data[0].(map[string]interface{})["title"])
		assert.Equal(t, "golang", gotFilter["category"])
		assert.Equal(t, false, gotFilter["isDeleted"])
		assert.Equal(t, mustObjectID(t, testUserHexID), gotFilter["userId"])
	})

	t.Run("should fail: operator filter key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books?$where=1", nil)
		w := httptest.NewRecorder()
		api.GetAllBooks(w, req, httprouter.Params{})
		assertErrorResponse(t, w, http.StatusBadRequest, "can not filter using ($where) query")
	})

	t.Run("should fail: deletion state filter key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books?isDeleted=true", nil)
		w := httptest.NewRecorder()
		api.GetAllBooks(w, req, httprouter.Params{})
		assertErrorResponse(t, w, http.StatusBadRequest, "can not filter using (isDeleted) query")
	})

	t.Run("should fail: invalid user id filter", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books?userId=abc", nil)
		w := httptest.NewRecorder()
		api.GetAllBooks(w, req, httprouter.Params{})
		assertErrorResponse(t, w, http.StatusBadRequest, "abc is not a valid user id")
	})
}

// TestGetOneBookHandler ensures a book is served with its reviews.
func TestGetOneBookHandler(t *testing.T) {
	found := func(ctx context.Context, id string) (Book, error) {
		return Book{ID: mustObjectID(t, id), Title: "Go in action"}, nil
	}
	bs := NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{
		Books: &MockBookStorage{FindByIDFunc: found, FindActiveByIDFunc: found},
		Reviews: &MockReviewStorage{
			FindFunc: func(ctx context.Context, filter bson.M, projection bson.M) ([]Review, error) {
				return []Review{}, nil
			},
		},
	})
	api := newTestAPIHandler(bs)

	t.Run("should pass: existing book", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books/"+testBookHexID, nil)
		w := httptest.NewRecorder()
		api.GetOneBook(w, req, bookIDParams(testBookHexID))
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		m := readResponse(t, res)
		book := m["data"].(map[string]interface{})
		assert.Equal(t, testBookHexID, book["_id"])
		assert.Equal(t, []interface{}{}, book["reviewsData"])
	})

	t.Run("should fail: invalid book id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/books/xyz", nil)
		w := httptest.NewRecorder()
		api.GetOneBook(w, req, bookIDParams("xyz"))
		assertErrorResponse(t, w, http.StatusBadRequest, "xyz is not a valid book id")
	})
}

// TestUpdateBookHandler ensures the update request is validated before reaching the service.
func TestUpdateBookHandler(t *testing.T) {
	bs := NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{
		Books: &MockBookStorage{
			FindByIDFunc: func(ctx context.Context, id string) (Book, error) {
				return Book{ID: mustObjectID(t, id)}, nil
			},
			FindOneFunc: func(ctx context.Context, filter bson.M) (Book, error) {
				return Book{}, ErrBookNotFound
			},
			FindOneAndUpdateFunc: func(ctx context.Context, filter bson.M, update bson.M) (Book, error) {
				set := update["$set"].(bson.M)
				return Book{ID: filter["_id"].(primitive.ObjectID), Excerpt: set["excerpt"].(string)}, nil
			},
		},
	})
	api := newTestAPIHandler(bs)

	t.Run("should pass: excerpt updated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/v1/books/"+testBookHexID, strings.NewReader(`{"excerpt":"new excerpt"}`))
		w := httptest.NewRecorder()
		api.UpdateBook(w, req, bookIDParams(testBookHexID))
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		m := readResponse(t, res)
		assert.Equal(t, "Book updated successfully.", m["message"])
		assert.Equal(t, "new excerpt", m["data"].(map[string]interface{})["excerpt"])
	})

	testCases := []struct {
		name    string
		payload string
		message string
	}{
		{"should fail: no field", `{}`, "please provide data for update"},
		{"should fail: blank title", `{"title":" "}`, "book title must not be empty"},
		{"should fail: invalid user id", `{"userId":"u1"}`, "u1 is not a valid user id"},
		{"should fail: invalid release date", `{"releasedAt":"01-01-2020"}`, "released date must be in YYYY-MM-DD format"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/v1/books/"+testBookHexID, strings.NewReader(tc.payload))
			w := httptest.NewRecorder()
			api.UpdateBook(w, req, bookIDParams(testBookHexID))
			assertErrorResponse(t, w, http.StatusBadRequest, tc.message)
		})
	}
}

// TestDeleteOneBookHandler ensures deletion errors are mapped to their status codes.
func TestDeleteOneBookHandler(t *testing.T) {
	bs := NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{
		Books: &MockBookStorage{
			FindByIDFunc: func(ctx context.Context, id string) (Book, error) {
				if id == testBookHexID {
					return Book{ID: mustObjectID(t, id), IsDeleted: true}, nil
				}
				return Book{}, ErrBookNotFound
			},
		},
	})
	api := newTestAPIHandler(bs)

	t.Run("should fail: already deleted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/books/"+testBookHexID, nil)
		w := httptest.NewRecorder()
		api.DeleteOneBook(w, req, bookIDParams(testBookHexID))
		assertErrorResponse(t, w, http.StatusBadRequest, "Book is already deleted")
	})

	t.Run("should fail: not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/v1/books/"+testUserHexID, nil)
		w := httptest.NewRecorder()
		api.DeleteOneBook(w, req, bookIDParams(testUserHexID))
		assertErrorResponse(t, w, http.StatusNotFound, "Book not found")
	})
}

// TestUploadBookCoverHandler ensures a cover upload requires a file.
func TestUploadBookCoverHandler(t *testing.T) {
	api := newTestAPIHandler(NewBookService(zap.NewNop(), &Config{}, NewMockClocker(), BookServiceDeps{}))

	t.Run("should fail: not a multipart request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/books/"+testBookHexID+"/cover", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		api.UploadBookCover(w, req, bookIDParams(testBookHexID))
		assertErrorResponse(t, w, http.StatusBadRequest, "no file found")
	})

	t.Run("should fail: multipart request without file", func(t *testing.T) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		require.NoError(t, mw.WriteField("name", "cover"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/v1/books/"+testBookHexID+"/cover", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		api.UploadBookCover(w, req, bookIDParams(testBookHexID))
		assertErrorResponse(t, w, http.StatusBadRequest, "no file found")
	})
}
