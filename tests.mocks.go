package main

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// This file contains mocks definitions needed to perform unit tests.

type MockBookStorage struct {
	FindByIDFunc         func(ctx context.Context, id string) (Book, error)
	FindActiveByIDFunc   func(ctx context.Context, id string) (Book, error)
	FindOneFunc          func(ctx context.Context, filter bson.M) (Book, error)
	FindFunc             func(ctx context.Context, filter bson.M, projection bson.M) ([]Book, error)
	CreateFunc           func(ctx context.Context, book Book) (Book, error)
	FindOneAndUpdateFunc func(ctx context.Context, filter bson.M, update bson.M) (Book, error)
}

// FindByID mocks the behavior of retrieving a book whatever its state.
func (m *MockBookStorage) FindByID(ctx context.Context, id string) (Book, error) {
	return m.FindByIDFunc(ctx, id)
}

// FindActiveByID mocks the behavior of retrieving a non deleted book.
func (m *MockBookStorage) FindActiveByID(ctx context.Context, id string) (Book, error) {
	return m.FindActiveByIDFunc(ctx, id)
}

// FindOne mocks the behavior of retrieving the first book matching a filter.
func (m *MockBookStorage) FindOne(ctx context.Context, filter bson.M) (Book, error) {
	return m.FindOneFunc(ctx, filter)
}

// Find mocks the behavior of listing books.
func (m *MockBookStorage) Find(ctx context.Context, filter bson.M, projection bson.M) ([]Book, error) {
	return m.FindFunc(ctx, filter, projection)
}

// Create mocks the behavior of book creation by the repository.
func (m *MockBookStorage) Create(ctx context.Context, book Book) (Book, error) {
	return m.CreateFunc(ctx, book)
}

// FindOneAndUpdate mocks the behavior of updating a book by the repository.
func (m *MockBookStorage) FindOneAndUpdate(ctx context.Context, filter bson.M, update bson.M) (Book, error) {
	return m.FindOneAndUpdateFunc(ctx, filter, update)
}

type MockReviewStorage struct {
	FindFunc func(ctx context.Context, filter bson.M, projection bson.M) ([]Review, error)
}

func (m *MockReviewStorage) Find(ctx context.Context, filter bson.M, projection bson.M) ([]Review, error) {
	return m.FindFunc(ctx, filter, projection)
}

type MockUserStorage struct {
	FindByIDFunc func(ctx context.Context, id string) (User, error)
}

func (m *MockUserStorage) FindByID(ctx context.Context, id string) (User, error) {
	return m.FindByIDFunc(ctx, id)
}

type MockQueuer struct {
	PushFunc func(ctx context.Context, qid string, book Book) error
	PopFunc  func(ctx context.Context, qids ...string) (string, Book, error)
}

func (m *MockQueuer) Push(ctx context.Context, qid string, book Book) error {
	return m.PushFunc(ctx, qid, book)
}

func (m *MockQueuer) Pop(ctx context.Context, qids ...string) (string, Book, error) {
	return m.PopFunc(ctx, qids...)
}

type MockUploader struct {
	UploadFileFunc func(ctx context.Context, file *FileUpload) (string, error)
}

func (m *MockUploader) UploadFile(ctx context.Context, file *FileUpload) (string, error) {
	return m.UploadFileFunc(ctx, file)
}

type MockBookArchiver struct {
	PutFunc    func(ctx context.Context, event string, book Book) error
	GetOneFunc func(ctx context.Context, id string) (ArchivedBook, error)
	GetAllFunc func(ctx context.Context) ([]ArchivedBook, error)
}

func (m *MockBookArchiver) Put(ctx context.Context, event string, book Book) error {
	return m.PutFunc(ctx, event, book)
}

func (m *MockBookArchiver) GetOne(ctx context.Context, id string) (ArchivedBook, error) {
	return m.GetOneFunc(ctx, id)
}

func (m *MockBookArchiver) GetAll(ctx context.Context) ([]ArchivedBook, error) {
	return m.GetAllFunc(ctx)
}

// MockClocker implements a fake Clocker.
type MockClocker struct {
	MockNow time.Time
}

// NewMockClocker returns a mocked instance with fixed time.
func NewMockClocker() *MockClocker {
	return &MockClocker{time.Date(2023, 0o7, 0o2, 0o0, 0o0, 0o0, 0o00000000, time.UTC)}
}

// Now returns an already defined time to be used as mock. This
// equals to `Sun, 02 Jul 2023 00:00:00 UTC` in time.RFC1123 format.
// equals to `2023-07-02` in DateLayout format.
func (mck *MockClocker) Now() time.Time {
	return mck.MockNow
}

// MockUIDHandler implements a fake UIDHandler.
type MockUIDHandler struct {
	MockedUID string
}

// NewMockUIDHandler returns a mocked instance with predictable id.
func NewMockUIDHandler(id string) *MockUIDHandler {
	return &MockUIDHandler{MockedUID: id}
}

// Generate constructs a predictable id to be used as mock.
func (muid *MockUIDHandler) Generate(prefix string) string {
	return prefix + ":" + muid.MockedUID
}
