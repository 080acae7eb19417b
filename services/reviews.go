package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardtalk/api/apperrors"
	"cardtalk/api/logger"
	"cardtalk/api/metrics"
	"cardtalk/api/models"
)

// AddRating folds one rating into a running aggregate.
func AddRating(agg models.RatingAggregate, rating int) models.RatingAggregate {
	total := agg.TotalReviews + 1
	avg := (agg.AverageRating*float64(agg.TotalReviews) + float64(rating)) / float64(total)
	return models.RatingAggregate{TotalReviews: total, AverageRating: avg}
}

// RemoveRating takes one rating out of a running aggregate. Removing the last
// rating yields exactly (0, 0).
func RemoveRating(agg models.RatingAggregate, rating int) models.RatingAggregate {
	total := agg.TotalReviews - 1
	if total <= 0 {
		return models.RatingAggregate{}
	}
	avg := (agg.AverageRating*float64(agg.TotalReviews) - float64(rating)) / float64(total)
	if avg < 0 {
		avg = 0
	}
	return models.RatingAggregate{TotalReviews: total, AverageRating: avg}
}

type ReviewInput struct {
	CategoryID string
	Rating     int
	Comment    string
	UserID     string
	UserName   string
}

type Reviews struct {
	reviews ReviewRepository
	cache   CategoryCache
	log     *logger.Logger
	now     func() time.Time
}

func NewReviews(reviews ReviewRepository, cache CategoryCache, log *logger.Logger) *Reviews {
	if cache == nil {
		cache = nopCache{}
	}
	return &Reviews{
		reviews: reviews,
		cache:   cache,
		log:     log.With("service", "Reviews"),
		now:     time.Now,
	}
}

func (s *Reviews) Submit(ctx context.Context, in ReviewInput) (*models.Review, models.RatingAggregate, error) {
	if strings.TrimSpace(in.CategoryID) == "" {
		return nil, models.RatingAggregate{}, apperrors.InvalidArgument("category ID is required")
	}
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return nil, models.RatingAggregate{}, apperrors.InvalidArgument("rating must be between 1 and 5")
	}
	userName := strings.TrimSpace(in.UserName)
	if userName == "" {
		userName = "Member"
	}

	review := &models.Review{
		ID:         uuid.NewString(),
		CategoryID: in.CategoryID,
		UserID:     in.UserID,
		UserName:   userName,
		Rating:     in.Rating,
		Comment:    strings.TrimSpace(in.Comment),
		CreatedAt:  s.now().UTC(),
	}
	agg, err := s.reviews.Create(ctx, review, func(current models.RatingAggregate) models.RatingAggregate {
		return AddRating(current, review.Rating)
	})
	if err != nil {
		return nil, models.RatingAggregate{}, err
	}

	metrics.ReviewChanges.WithLabelValues("add").Inc()
	s.invalidate(ctx)
	return review, agg, nil
}

func (s *Reviews) Delete(ctx context.Context, categoryID, reviewID string) (models.RatingAggregate, error) {
	if categoryID == "" || reviewID == "" {
		return models.RatingAggregate{}, apperrors.InvalidArgument("category ID and review ID are required")
	}
	agg, err := s.reviews.Delete(ctx, categoryID, reviewID, RemoveRating)
	if err != nil {
		return models.RatingAggregate{}, err
	}

	metrics.ReviewChanges.WithLabelValues("remove").Inc()
	s.invalidate(ctx)
	return agg, nil
}

func (s *Reviews) List(ctx context.Context, categoryID string) ([]models.Review, error) {
	return s.reviews.ListByCategory(ctx, categoryID, models.ReviewListLimit)
}

func (s *Reviews) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("category cache invalidation failed", "error", err)
	}
}
