package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// bookIDFromParams reads the book id from the route and ensures it is a valid object id.
func (api *APIHandler) bookIDFromParams(ps httprouter.Params) (string, error) {
	id := ps.ByName("bookId")
	if !api.validator.IsValidObjectID(id) {
		return id, NewValidationError("%s is not a valid book id", id)
	}
	return id, nil
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Creates a book from a json body or a multipart form whose first file is the cover.
// @Tags         books
// @Accept       json,mpfd
// @Produce      json
// @Param        book  body      CreateBookRequest  true  "book details"
// @Success      201   {object}  APIResponse{data=Book}
// @Failure      400   {object}  APIError
// @Failure      404   {object}  APIError
// @Failure      500   {object}  APIError
// @Router       /v1/books [post]
func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreateBookRequest
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	cover, err := DecodeCreateBookRequestBody(r, api.config.Server.MaxUploadSize, &req)
	if err != nil {
		api.writeError(w, r, err, "failed to decode create book request")
		return
	}

	if err = api.validator.ValidateCreateBookRequest(&req); err != nil {
		api.writeError(w, r, err, "failed to validate create book request")
		return
	}

	book, err := api.bookService.Create(r.Context(), req, cover)
	if err != nil {
		api.writeError(w, r, err, "failed to create book")
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to create book", zap.String("book.id", book.ID.Hex()))
	resp := GenericResponse(requestID, "Book created successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusCreated, resp); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// GetAllBooks godoc
// @Summary      List books
// @Description  Lists active books sorted by title. Query keys are equality filters.
// @Tags         books
// @Produce      json
// @Param        userId       query     string  false  "owner id"
// @Param        title        query     string  false  "title"
// @Param        ISBN         query     string  false  "ISBN"
// @Param        category     query     string  false  "category"
// @Param        subcategory  query     string  false  "subcategory"
// @Param        releasedAt   query     string  false  "release date"
// @Success      200          {object}  APIResponse{data=[]BookSummary}
// @Failure      400          {object}  APIError
// @Failure      404          {object}  APIError
// @Router       /v1/books [get]
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	filter, err := api.validator.BuildBooksFilter(r.URL.Query())
	if err != nil {
		api.writeError(w, r, err, "failed to build books filter")
		return
	}

	books, err := api.bookService.List(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, err, "failed to get all books")
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to get all books", zap.Int("total", len(books)))
	total := len(books)
	resp := GenericResponse(requestID, "All books fetched successfully.", &total, books)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		logger.Error("failed to send response", zap.Error(err))
	}
}

// GetOneBook godoc
// @Summary      Get a book
// @Description  Gets an active book with its reviews.
// @Tags         books
// @Produce      json
// @Param        bookId  path      string  true  "book id"
// @Success      200     {object}  APIResponse{data=BookDetails}
// @Failure      400     {object}  APIError
// @Failure      404     {object}  APIError
// @Router       /v1/books/{bookId} [get]
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id, err := api.bookIDFromParams(ps)
	if err != nil {
		api.writeError(w, r, err, "book id provided is not valid", zap.String("book.id", id))
		return
	}

	book, err := api.bookService.GetDetails(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err, "failed to get book", zap.String("book.id", id))
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to get book", zap.String("book.id", id))
	resp := GenericResponse(requestID, "Book fetched successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		logger.Error("failed to send response", zap.String("book.id", id), zap.Error(err))
	}
}

// UpdateBook godoc
// @Summary      Update a book
// @Description  Updates the provided fields of an active book.
// @Tags         books
// @Accept       json
// @Produce      json
// @Param        bookId  path      string             true  "book id"
// @Param        book    body      UpdateBookRequest  true  "fields to update"
// @Success      200     {object}  APIResponse{data=Book}
// @Failure      400     {object}  APIError
// @Failure      404     {object}  APIError
// @Router       /v1/books/{bookId} [put]
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id, err := api.bookIDFromParams(ps)
	if err != nil {
		api.writeError(w, r, err, "book id provided is not valid", zap.String("book.id", id))
		return
	}

	var req UpdateBookRequest
	if err = DecodeUpdateBookRequestBody(r, api.config.Server.MaxUploadSize, &req); err != nil {
		api.writeError(w, r, err, "failed to decode update book request", zap.String("book.id", id))
		return
	}

	if err = api.validator.ValidateUpdateBookRequest(&req); err != nil {
		api.writeError(w, r, err, "failed to validate update book request", zap.String("book.id", id))
		return
	}

	book, err := api.bookService.Update(r.Context(), id, req)
	if err != nil {
		api.writeError(w, r, err, "failed to update book", zap.String("book.id", id))
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to update book", zap.String("book.id", id))
	resp := GenericResponse(requestID, "Book updated successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		logger.Error("failed to send response", zap.String("book.id", id), zap.Error(err))
	}
}

// DeleteOneBook godoc
// @Summary      Delete a book
// @Description  Soft-deletes an active book.
// @Tags         books
// @Produce      json
// @Param        bookId  path      string  true  "book id"
// @Success      200     {object}  APIResponse{data=Book}
// @Failure      400     {object}  APIError
// @Failure      404     {object}  APIError
// @Router       /v1/books/{bookId} [delete]
func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id, err := api.bookIDFromParams(ps)
	if err != nil {
		api.writeError(w, r, err, "book id provided is not valid", zap.String("book.id", id))
		return
	}

	book, err := api.bookService.Delete(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err, "failed to delete book", zap.String("book.id", id))
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to delete book", zap.String("book.id", id))
	resp := GenericResponse(requestID, "Book deleted successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		logger.Error("failed to send response", zap.String("book.id", id), zap.Error(err))
	}
}

// UploadBookCover godoc
// @Summary      Upload a book cover
// @Description  Stores the first file of the multipart form and links it to an active book.
// @Tags         books
// @Accept       mpfd
// @Produce      json
// @Param        bookId  path      string  true  "book id"
// @Param        cover   formData  file    true  "cover image"
// @Success      200     {object}  APIResponse{data=Book}
// @Failure      400     {object}  APIError
// @Failure      404     {object}  APIError
// @Failure      500     {object}  APIError
// @Router       /v1/books/{bookId}/cover [post]
func (api *APIHandler) UploadBookCover(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), ContextRequestID)
	id, err := api.bookIDFromParams(ps)
	if err != nil {
		api.writeError(w, r, err, "book id provided is not valid", zap.String("book.id", id))
		return
	}

	cover, err := ExtractFirstFile(r, api.config.Server.MaxUploadSize)
	if err == ErrNoFileFound {
		err = NewValidationError("no file found")
	}
	if err != nil {
		api.writeError(w, r, err, "failed to read book cover", zap.String("book.id", id))
		return
	}

	book, err := api.bookService.AttachCover(r.Context(), id, cover)
	if err != nil {
		api.writeError(w, r, err, "failed to attach book cover", zap.String("book.id", id))
		return
	}

	logger := api.GetLoggerFromContext(r.Context())
	logger.Info("success to upload book cover", zap.String("book.id", id), zap.String("book.cover", book.BookCover))
	resp := GenericResponse(requestID, "Book cover uploaded successfully.", nil, book)
	if err = WriteResponse(r.Context(), w, http.StatusOK, resp); err != nil {
		logger.Error("failed to send response", zap.String("book.id", id), zap.Error(err))
	}
}
