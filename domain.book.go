package main

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book represents a book entity as stored into the books collection.
type Book struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Title       string             `json:"title" bson:"title"`
	Excerpt     string             `json:"excerpt" bson:"excerpt"`
	UserID      primitive.ObjectID `json:"userId" bson:"userId"`
	ISBN        string             `json:"ISBN" bson:"ISBN"`
	Category    string             `json:"category" bson:"category"`
	Subcategory string             `json:"subcategory" bson:"subcategory"`
	Reviews     int                `json:"reviews" bson:"reviews"`
	ReleasedAt  string             `json:"releasedAt" bson:"releasedAt"`
	BookCover   string             `json:"bookCover,omitempty" bson:"bookCover,omitempty"`
	IsDeleted   bool               `json:"isDeleted" bson:"isDeleted"`
	DeletedAt   *string            `json:"deletedAt" bson:"deletedAt"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// BookSummary is the reduced view of a book served by the listing endpoint.
type BookSummary struct {
	ID         primitive.ObjectID `json:"_id"`
	Title      string             `json:"title"`
	Excerpt    string             `json:"excerpt"`
	UserID     primitive.ObjectID `json:"userId"`
	Category   string             `json:"category"`
	Reviews    int                `json:"reviews"`
	ReleasedAt string             `json:"releasedAt"`
}

// BookDetails is a book enriched with its active reviews.
type BookDetails struct {
	Book
	ReviewsData []Review `json:"reviewsData"`
}

// Review represents a review left on a book. Reviews are only read here.
type Review struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	BookID     primitive.ObjectID `json:"bookId" bson:"bookId"`
	ReviewedBy string             `json:"reviewedBy" bson:"reviewedBy"`
	ReviewedAt time.Time          `json:"reviewedAt" bson:"reviewedAt"`
	Rating     int                `json:"rating" bson:"rating"`
	Review     string             `json:"review,omitempty" bson:"review,omitempty"`
	IsDeleted  bool               `json:"-" bson:"isDeleted"`
}

// User is only checked for existence by the books api.
type User struct {
	ID primitive.ObjectID `json:"_id" bson:"_id"`
}

// CreateBookRequest holds the raw fields of a book creation request.
type CreateBookRequest struct {
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt"`
	UserID      string `json:"userId"`
	ISBN        string `json:"ISBN"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	ReleasedAt  string `json:"releasedAt"`
}

// UpdateBookRequest holds the optional fields of a book update request.
// A nil field is left untouched.
type UpdateBookRequest struct {
	Title       *string `json:"title"`
	Excerpt     *string `json:"excerpt"`
	UserID      *string `json:"userId"`
	ISBN        *string `json:"ISBN"`
	Category    *string `json:"category"`
	Subcategory *string `json:"subcategory"`
	ReleasedAt  *string `json:"releasedAt"`
	BookCover   *string `json:"bookCover"`
	IsDeleted   *bool   `json:"isDeleted"`
}

// IsEmpty tells whether no field at all was provided.
func (u *UpdateBookRequest) IsEmpty() bool {
	return u.Title == nil && u.Excerpt == nil && u.UserID == nil && u.ISBN == nil &&
		u.Category == nil && u.Subcategory == nil && u.ReleasedAt == nil &&
		u.BookCover == nil && u.IsDeleted == nil
}

// BookStorage defines possible operations on the books collection.
type BookStorage interface {
	FindByID(ctx context.Context, id string) (Book, error)
	FindActiveByID(ctx context.Context, id string) (Book, error)
	FindOne(ctx context.Context, filter bson.M) (Book, error)
	Find(ctx context.Context, filter bson.M, projection bson.M) ([]Book, error)
	Create(ctx context.Context, book Book) (Book, error)
	FindOneAndUpdate(ctx context.Context, filter bson.M, update bson.M) (Book, error)
}

// ReviewStorage defines read operations on the reviews collection.
type ReviewStorage interface {
	Find(ctx context.Context, filter bson.M, projection bson.M) ([]Review, error)
}

// UserStorage defines read operations on the users collection.
type UserStorage interface {
	FindByID(ctx context.Context, id string) (User, error)
}
