package main

import (
	"context"
	"errors"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// BookListProjection lists the fields served by the books listing.
	BookListProjection = bson.M{"title": 1, "excerpt": 1, "userId": 1, "category": 1, "reviews": 1, "releasedAt": 1}
	// ReviewProjection lists the fields of reviews attached to a single book.
	ReviewProjection = bson.M{"bookId": 1, "reviewedBy": 1, "reviewedAt": 1, "rating": 1, "review": 1}
)

type BookServiceProvider interface {
	Create(ctx context.Context, req CreateBookRequest, cover *FileUpload) (Book, error)
	List(ctx context.Context, filter bson.M) ([]BookSummary, error)
	GetDetails(ctx context.Context, id string) (BookDetails, error)
	Update(ctx context.Context, id string, req UpdateBookRequest) (Book, error)
	Delete(ctx context.Context, id string) (Book, error)
	AttachCover(ctx context.Context, id string, cover *FileUpload) (Book, error)
	GetArchivedBooks(ctx context.Context) ([]ArchivedBook, error)
	GetArchivedBook(ctx context.Context, id string) (ArchivedBook, error)
}

type BookService struct {
	logger   *zap.Logger
	config   *Config
	clock    Clocker
	books    BookStorage
	reviews  ReviewStorage
	users    UserStorage
	uploader Uploader
	queue    Queuer
	archive  BookArchiver
}

// BookServiceDeps groups the collaborators of the books service.
type BookServiceDeps struct {
	Books    BookStorage
	Reviews  ReviewStorage
	Users    UserStorage
	Uploader Uploader
	Queue    Queuer
	Archive  BookArchiver
}

func NewBookService(logger *zap.Logger, config *Config, clock Clocker, deps BookServiceDeps) BookServiceProvider {
	return &BookService{
		logger:   logger,
		config:   config,
		clock:    clock,
		books:    deps.Books,
		reviews:  deps.Reviews,
		users:    deps.Users,
		uploader: deps.Uploader,
		queue:    deps.Queue,
		archive:  deps.Archive,
	}
}

// Create checks the owner exists and the title and ISBN are not used
// then stores the new book. Each check is a separate round trip.
func (bs *BookService) Create(ctx context.Context, req CreateBookRequest, cover *FileUpload) (Book, error) {
	if err := bs.ensureUserExists(ctx, req.UserID); err != nil {
		return Book{}, err
	}
	if err := bs.ensureUnique(ctx, "title", req.Title, nil, "title already used"); err != nil {
		return Book{}, err
	}
	if err := bs.ensureUnique(ctx, "ISBN", req.ISBN, nil, "isbn already used"); err != nil {
		return Book{}, err
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return Book{}, NewValidationError("%s is not a valid user id", req.UserID)
	}

	now := bs.clock.Now().UTC()
	book := Book{
		Title:       req.Title,
		Excerpt:     req.Excerpt,
		UserID:      userID,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Subcategory: req.Subcategory,
		ReleasedAt:  req.ReleasedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if cover != nil {
		url, err := bs.uploader.UploadFile(ctx, cover)
		if err != nil {
			return Book{}, NewUpstreamError(err)
		}
		book.BookCover = url
	}

	book, err = bs.books.Create(ctx, book)
	if errors.Is(err, ErrDuplicateBook) {
		return Book{}, NewConflictError("title or isbn already used", err)
	}
	if err != nil {
		return Book{}, NewUpstreamError(err)
	}

	bs.publish(ctx, CreateQueue, book)
	return book, nil
}

// List returns the active books matching the filter sorted by title.
func (bs *BookService) List(ctx context.Context, filter bson.M) ([]BookSummary, error) {
	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}
	query["isDeleted"] = false

	books, err := bs.books.Find(ctx, query, BookListProjection)
	if err != nil {
		return nil, NewUpstreamError(err)
	}
	if len(books) == 0 {
		return nil, NewNotFoundError("no book found", nil)
	}

	sort.SliceStable(books, func(i, j int) bool {
		return books[i].Title < books[j].Title
	})

	summaries := make([]BookSummary, 0, len(books))
	for _, b := range books {
		summaries = append(summaries, BookSummary{
			ID:         b.ID,
			Title:      b.Title,
			Excerpt:    b.Excerpt,
			UserID:     b.UserID,
			Category:   b.Category,
			Reviews:    b.Reviews,
			ReleasedAt: b.ReleasedAt,
		})
	}
	return summaries, nil
}

// GetDetails returns an active book with its non deleted reviews.
func (bs *BookService) GetDetails(ctx context.Context, id string) (BookDetails, error) {
	if _, err := bs.findBook(ctx, id); err != nil {
		return BookDetails{}, err
	}

	book, err := bs.books.FindActiveByID(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return BookDetails{}, NewDeletedError("Book is deleted")
	}
	if err != nil {
		return BookDetails{}, NewUpstreamError(err)
	}

	reviews, err := bs.reviews.Find(ctx, bson.M{"bookId": book.ID, "isDeleted": false}, ReviewProjection)
	if err != nil {
		return BookDetails{}, NewUpstreamError(err)
	}
	if reviews == nil {
		reviews = []Review{}
	}
	return BookDetails{Book: book, ReviewsData: reviews}, nil
}

// Update replaces the provided fields of an active book. Setting isDeleted
// to true soft-deletes the book and stamps its deletion date.
func (bs *BookService) Update(ctx context.Context, id string, req UpdateBookRequest) (Book, error) {
	current, err := bs.findBook(ctx, id)
	if err != nil {
		return Book{}, err
	}

	if req.Title != nil {
		if err = bs.ensureUnique(ctx, "title", *req.Title, &current.ID, "title must be unique"); err != nil {
			return Book{}, err
		}
	}
	if req.ISBN != nil {
		if err = bs.ensureUnique(ctx, "ISBN", *req.ISBN, &current.ID, "isbn must be unique"); err != nil {
			return Book{}, err
		}
	}

	set := bson.M{"updatedAt": bs.clock.Now().UTC()}
	if req.UserID != nil {
		if err = bs.ensureUserExists(ctx, *req.UserID); err != nil {
			return Book{}, err
		}
		userID, err := primitive.ObjectIDFromHex(*req.UserID)
		if err != nil {
			return Book{}, NewValidationError("%s is not a valid user id", *req.UserID)
		}
		set["userId"] = userID
	}
	setIfPresent(set, "title", req.Title)
	setIfPresent(set, "excerpt", req.Excerpt)
	setIfPresent(set, "ISBN", req.ISBN)
	setIfPresent(set, "category", req.Category)
	setIfPresent(set, "subcategory", req.Subcategory)
	setIfPresent(set, "releasedAt", req.ReleasedAt)
	setIfPresent(set, "bookCover", req.BookCover)
	if req.IsDeleted != nil {
		set["isDeleted"] = *req.IsDeleted
		if *req.IsDeleted {
			set["deletedAt"] = Today(bs.clock)
		}
	}

	book, err := bs.books.FindOneAndUpdate(ctx, bson.M{"_id": current.ID, "isDeleted": false}, bson.M{"$set": set})
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, NewDeletedError("Book is Deleted")
	}
	if errors.Is(err, ErrDuplicateBook) {
		return Book{}, NewConflictError("title or isbn must be unique", err)
	}
	if err != nil {
		return Book{}, NewUpstreamError(err)
	}

	if book.IsDeleted {
		bs.publish(ctx, DeleteQueue, book)
	} else {
		bs.publish(ctx, UpdateQueue, book)
	}
	return book, nil
}

// Delete soft-deletes an active book.
func (bs *BookService) Delete(ctx context.Context, id string) (Book, error) {
	current, err := bs.findBook(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if current.IsDeleted {
		return Book{}, NewDeletedError("Book is already deleted")
	}

	update := bson.M{"$set": bson.M{
		"isDeleted": true,
		"deletedAt": Today(bs.clock),
		"updatedAt": bs.clock.Now().UTC(),
	}}
	book, err := bs.books.FindOneAndUpdate(ctx, bson.M{"_id": current.ID, "isDeleted": false}, update)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, NewDeletedError("Book is already deleted")
	}
	if err != nil {
		return Book{}, NewUpstreamError(err)
	}

	bs.publish(ctx, DeleteQueue, book)
	return book, nil
}

// AttachCover uploads a cover and links its url to an active book.
func (bs *BookService) AttachCover(ctx context.Context, id string, cover *FileUpload) (Book, error) {
	current, err := bs.findBook(ctx, id)
	if err != nil {
		return Book{}, err
	}
	if current.IsDeleted {
		return Book{}, NewDeletedError("Book is deleted")
	}

	url, err := bs.uploader.UploadFile(ctx, cover)
	if err != nil {
		return Book{}, NewUpstreamError(err)
	}

	update := bson.M{"$set": bson.M{"bookCover": url, "updatedAt": bs.clock.Now().UTC()}}
	book, err := bs.books.FindOneAndUpdate(ctx, bson.M{"_id": current.ID, "isDeleted": false}, update)
	if errors.Is(err, ErrBookNotFound) {
		return Book{}, NewDeletedError("Book is deleted")
	}
	if err != nil {
		return Book{}, NewUpstreamError(err)
	}

	bs.publish(ctx, UpdateQueue, book)
	return book, nil
}

func (bs *BookService) GetArchivedBooks(ctx context.Context) ([]ArchivedBook, error) {
	books, err := bs.archive.GetAll(ctx)
	if err != nil {
		return nil, NewUpstreamError(err)
	}
	return books, nil
}

func (bs *BookService) GetArchivedBook(ctx context.Context, id string) (ArchivedBook, error) {
	book, err := bs.archive.GetOne(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return book, NewNotFoundError("book not archived", err)
	}
	if err != nil {
		return book, NewUpstreamError(err)
	}
	return book, nil
}

// findBook looks a book up whatever its deletion state.
func (bs *BookService) findBook(ctx context.Context, id string) (Book, error) {
	book, err := bs.books.FindByID(ctx, id)
	if errors.Is(err, ErrBookNotFound) {
		return book, NewNotFoundError("Book not found", err)
	}
	if err != nil {
		return book, NewUpstreamError(err)
	}
	return book, nil
}

func (bs *BookService) ensureUserExists(ctx context.Context, id string) error {
	_, err := bs.users.FindByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return NewNotFoundError("user not found", err)
	}
	if err != nil {
		return NewUpstreamError(err)
	}
	return nil
}

// ensureUnique fails when another book, deleted or not, holds the same value.
func (bs *BookService) ensureUnique(ctx context.Context, field, value string, exclude *primitive.ObjectID, message string) error {
	filter := bson.M{field: value}
	if exclude != nil {
		filter["_id"] = bson.M{"$ne": *exclude}
	}
	_, err := bs.books.FindOne(ctx, filter)
	if err == nil {
		return NewConflictError(message, nil)
	}
	if errors.Is(err, ErrBookNotFound) {
		return nil
	}
	return NewUpstreamError(err)
}

// publish pushes the book snapshot to the queue. A failure does not fail the request.
func (bs *BookService) publish(ctx context.Context, qid string, book Book) {
	if bs.queue == nil {
		return
	}
	if err := bs.queue.Push(ctx, qid, book); err != nil {
		bs.logger.Error("service: failed to push book to queue", zap.String("qid", qid), zap.String("book.id", book.ID.Hex()), zap.Error(err))
	}
}

func setIfPresent(set bson.M, field string, value *string) {
	if value != nil {
		set[field] = *value
	}
}
