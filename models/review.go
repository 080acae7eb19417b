package models

import "time"

const (
	MinRating = 1
	MaxRating = 5

	// ReviewListLimit bounds the public review listing.
	ReviewListLimit = 50
)

type Review struct {
	ID         string    `json:"id"`
	CategoryID string    `json:"categoryId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// RatingUpdateFunc computes the new aggregate from the one read under lock.
type RatingUpdateFunc func(current RatingAggregate) RatingAggregate
