package store

import (
	"context"
	"database/sql"
	"fmt"

	"cardtalk/api/models"
)

type ReviewStore struct {
	db *sql.DB
}

func NewReviewStore(db *sql.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func lockRatingAggregate(ctx context.Context, tx *sql.Tx, categoryID string) (models.RatingAggregate, error) {
	var agg models.RatingAggregate
	err := tx.QueryRowContext(ctx,
		`SELECT total_reviews, average_rating FROM categories WHERE id = $1 FOR UPDATE`, categoryID).
		Scan(&agg.TotalReviews, &agg.AverageRating)
	if err != nil {
		return agg, notFoundOr(err, "category", "lock category rating")
	}
	return agg, nil
}

func writeRatingAggregate(ctx context.Context, tx *sql.Tx, categoryID string, agg models.RatingAggregate) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE categories SET total_reviews = $2, average_rating = $3 WHERE id = $1`,
		categoryID, agg.TotalReviews, agg.AverageRating)
	if err != nil {
		return fmt.Errorf("update category rating: %w", err)
	}
	return nil
}

// Create inserts review and replaces the category's rating aggregate with
// update(current), where current is read under a row lock in the same transaction.
func (s *ReviewStore) Create(ctx context.Context, review *models.Review, update models.RatingUpdateFunc) (models.RatingAggregate, error) {
	var next models.RatingAggregate
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := lockRatingAggregate(ctx, tx, review.CategoryID)
		if err != nil {
			return err
		}
		next = update(current)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO reviews (id, category_id, user_id, user_name, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			review.ID, review.CategoryID, review.UserID, review.UserName, review.Rating, review.Comment, review.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		return writeRatingAggregate(ctx, tx, review.CategoryID, next)
	})
	return next, err
}

// Delete removes a review and replaces the category's rating aggregate with
// update(current, rating) inside one transaction.
func (s *ReviewStore) Delete(ctx context.Context, categoryID, reviewID string, update func(models.RatingAggregate, int) models.RatingAggregate) (models.RatingAggregate, error) {
	var next models.RatingAggregate
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := lockRatingAggregate(ctx, tx, categoryID)
		if err != nil {
			return err
		}

		var rating int
		err = tx.QueryRowContext(ctx,
			`DELETE FROM reviews WHERE id = $1 AND category_id = $2 RETURNING rating`, reviewID, categoryID).
			Scan(&rating)
		if err != nil {
			return notFoundOr(err, "review", "delete review")
		}

		next = update(current, rating)
		return writeRatingAggregate(ctx, tx, categoryID, next)
	})
	return next, err
}

// ListByCategory returns the newest reviews first.
func (s *ReviewStore) ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, user_id, user_name, rating, comment, created_at
		FROM reviews
		WHERE category_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.CategoryID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}
