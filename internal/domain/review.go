package domain

import (
	"time"
	"unicode/utf8"
)

const (
	// MinReviewRating и MaxReviewRating задают допустимый диапазон оценки.
	MinReviewRating = 1
	MaxReviewRating = 5
	// MaxReviewCommentLen — предел длины комментария в символах.
	MaxReviewCommentLen = 500
)

// Review — отзыв клиента на товар. На пару (клиент, товар)
// допускается не более одного отзыва.
type Review struct {
	ID         string
	ProductID  string
	CustomerID string
	Rating     int32
	Comment    string
	CreatedAt  time.Time
}

// Validate проверяет поля отзыва и возвращает все нарушения.
func (r *Review) Validate() *ValidationError {
	ve := &ValidationError{}

	if r.CustomerID == "" {
		ve.Add("customer_id", "is required")
	}
	if r.ProductID == "" {
		ve.Add("product_id", "is required")
	}
	if r.Rating < MinReviewRating || r.Rating > MaxReviewRating {
		ve.Addf("rating", "must be an integer between %d and %d", MinReviewRating, MaxReviewRating)
	}
	if utf8.RuneCountInString(r.Comment) > MaxReviewCommentLen {
		ve.Addf("comment", "must not exceed %d characters", MaxReviewCommentLen)
	}

	if ve.ErrOrNil() == nil {
		return nil
	}
	return ve
}
