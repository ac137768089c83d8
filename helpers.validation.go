package main

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// unfilterableFields can not be used as listing query keys. The deletion
// state is always forced to active books.
var unfilterableFields = map[string]bool{
	"isDeleted": true,
}

// releaseDatePattern accepts `YYYY-MM-DD` with month 01-12 and day 01-31.
var releaseDatePattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

// Validator groups the pure checks used by the api handlers.
// Each check can be swapped independently.
type Validator struct {
	IsValid         func(value string) bool
	IsValidObjectID func(id string) bool
	IsValidDate     func(value string) bool
}

// NewValidator returns a Validator backed by the default checks.
func NewValidator() *Validator {
	return &Validator{
		IsValid:         IsValidValue,
		IsValidObjectID: IsValidObjectID,
		IsValidDate:     IsValidReleaseDate,
	}
}

// IsValidValue reports whether the value is not blank.
func IsValidValue(value string) bool {
	return len(strings.TrimSpace(value)) != 0
}

// IsValidObjectID reports whether id is a 24 hex characters object id.
func IsValidObjectID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// IsValidReleaseDate reports whether value follows the `YYYY-MM-DD` format.
func IsValidReleaseDate(value string) bool {
	return releaseDatePattern.MatchString(value)
}

// ValidateCreateBookRequest checks the fields of a creation request in a fixed
// order and returns the first failure.
func (v *Validator) ValidateCreateBookRequest(req *CreateBookRequest) error {
	if !v.IsValid(req.Title) {
		return NewValidationError("book title is required")
	}
	if !v.IsValid(req.Excerpt) {
		return NewValidationError("excerpt is required")
	}
	if !v.IsValid(req.UserID) {
		return NewValidationError("user id is required")
	}
	if !v.IsValidObjectID(req.UserID) {
		return NewValidationError("%s is not a valid user id", req.UserID)
	}
	if !v.IsValid(req.ISBN) {
		return NewValidationError("ISBN is required")
	}
	if !v.IsValid(req.Category) {
		return NewValidationError("category is required")
	}
	if !v.IsValid(req.Subcategory) {
		return NewValidationError("subcategory is required")
	}
	if !v.IsValid(req.ReleasedAt) {
		return NewValidationError("released date is required")
	}
	if !v.IsValidDate(req.ReleasedAt) {
		return NewValidationError("released date must be in YYYY-MM-DD format")
	}
	return nil
}

// ValidateUpdateBookRequest checks only the fields present into the update request.
func (v *Validator) ValidateUpdateBookRequest(req *UpdateBookRequest) error {
	if req.IsEmpty() {
		return NewValidationError("please provide data for update")
	}

	fields := []struct {
		name  string
		value *string
	}{
		{"book title", req.Title},
		{"excerpt", req.Excerpt},
		{"user id", req.UserID},
		{"ISBN", req.ISBN},
		{"category", req.Category},
		{"subcategory", req.Subcategory},
		{"released date", req.ReleasedAt},
		{"book cover", req.BookCover},
	}
	for _, f := range fields {
		if f.value != nil && !v.IsValid(*f.value) {
			return NewValidationError("%s must not be empty", f.name)
		}
	}

	if req.UserID != nil && !v.IsValidObjectID(*req.UserID) {
		return NewValidationError("%s is not a valid user id", *req.UserID)
	}
	if req.ReleasedAt != nil && !v.IsValidDate(*req.ReleasedAt) {
		return NewValidationError("released date must be in YYYY-MM-DD format")
	}
	return nil
}

// BuildBooksFilter turns the listing query parameters into an equality filter.
// Any book field can be used except operators and the deletion state. Keys are
// visited in sorted order so the reported invalid key is stable.
func (v *Validator) BuildBooksFilter(query url.Values) (bson.M, error) {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filter := bson.M{}
	for _, k := range keys {
		if !v.IsValid(k) || strings.HasPrefix(k, "$") || unfilterableFields[k] {
			return nil, NewValidationError("can not filter using (%s) query", k)
		}
		value := query.Get(k)
		switch k {
		case "userId", "_id":
			if !v.IsValidObjectID(value) {
				if k == "userId" {
					return nil, NewValidationError("%s is not a valid user id", value)
				}
				return nil, NewValidationError("%s is not a valid book id", value)
			}
			oid, _ := primitive.ObjectIDFromHex(value)
			filter[k] = oid
		case "reviews":
			count, err := strconv.Atoi(value)
			if err != nil {
				return nil, NewValidationError("%s is not a valid reviews count", value)
			}
			filter[k] = count
		default:
			filter[k] = value
		}
	}
	return filter, nil
}
