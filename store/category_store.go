package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cardtalk/api/apperrors"
	"cardtalk/api/models"
)

type CategoryStore struct {
	db *sql.DB
}

func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, slug, title_th, title_en, description_th, description_en,
	icon_class, icon_color, instructions_th, instructions_en,
	total_question_views, total_question_skips, total_reviews, average_rating,
	play_count, visit_count, created_at, updated_at`

func categoryDest(c *models.Category, updatedAt *sql.NullTime) []any {
	return []any{
		&c.ID,
		&c.Slug,
		&c.TitleTH,
		&c.TitleEN,
		&c.DescriptionTH,
		&c.DescriptionEN,
		&c.IconClass,
		&c.IconColor,
		&c.InstructionsTH,
		&c.InstructionsEN,
		&c.TotalQuestionViews,
		&c.TotalQuestionSkips,
		&c.TotalReviews,
		&c.AverageRating,
		&c.PlayCount,
		&c.VisitCount,
		&c.CreatedAt,
		updatedAt,
	}
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		c         models.Category
		updatedAt sql.NullTime
	)
	if err := row.Scan(categoryDest(&c, &updatedAt)...); err != nil {
		return nil, err
	}
	c.UpdatedAt = timePtr(updatedAt)
	return &c, nil
}

func (s *CategoryStore) Get(ctx context.Context, id string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err != nil {
		return nil, notFoundOr(err, "category", "get category")
	}
	return c, nil
}

func (s *CategoryStore) List(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func insertCategory(ctx context.Context, exec interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}, c *models.Category) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.Slug, c.TitleTH, c.TitleEN, c.DescriptionTH, c.DescriptionEN,
		c.IconClass, c.IconColor, c.InstructionsTH, c.InstructionsEN,
		c.TotalQuestionViews, c.TotalQuestionSkips, c.TotalReviews, c.AverageRating,
		c.PlayCount, c.VisitCount, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("a category with this slug already exists")
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *CategoryStore) Create(ctx context.Context, c *models.Category) error {
	return insertCategory(ctx, s.db, c)
}

// Update applies patch to the category. When the patch carries a new slug the
// category is re-created under that key, its questions and reviews are moved
// over, and the old row is deleted, all in one transaction.
func (s *CategoryStore) Update(ctx context.Context, id string, patch models.CategoryPatch, at time.Time) (*models.Category, error) {
	var result *models.Category
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1 FOR UPDATE`, id)
		c, err := scanCategory(row)
		if err != nil {
			return notFoundOr(err, "category", "lock category")
		}
		patch.Apply(c)
		c.UpdatedAt = &at

		if patch.Slug == nil || *patch.Slug == id {
			_, err := tx.ExecContext(ctx, `
				UPDATE categories
				SET title_th = $2, title_en = $3, description_th = $4, description_en = $5,
				    icon_class = $6, icon_color = $7, instructions_th = $8, instructions_en = $9,
				    updated_at = $10
				WHERE id = $1`,
				id, c.TitleTH, c.TitleEN, c.DescriptionTH, c.DescriptionEN,
				c.IconClass, c.IconColor, c.InstructionsTH, c.InstructionsEN, at)
			if err != nil {
				return fmt.Errorf("update category: %w", err)
			}
			result = c
			return nil
		}

		newID := *patch.Slug
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, newID).Scan(&exists); err != nil {
			return fmt.Errorf("check new slug: %w", err)
		}
		if exists {
			return apperrors.Conflict("new slug already exists")
		}

		c.ID, c.Slug = newID, newID
		if err := insertCategory(ctx, tx, c); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE questions SET category_id = $2 WHERE category_id = $1`, id, newID); err != nil {
			return fmt.Errorf("migrate questions: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE reviews SET category_id = $2 WHERE category_id = $1`, id, newID); err != nil {
			return fmt.Errorf("migrate reviews: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete old category: %w", err)
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "category")
}

func (s *CategoryStore) IncrementVisitCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET visit_count = visit_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment visit count: %w", err)
	}
	return requireAffected(res, "category")
}

func (s *CategoryStore) IncrementPlayCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE categories SET play_count = play_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment play count: %w", err)
	}
	return requireAffected(res, "category")
}

// ReviewStats lists categories with review counts and averages recomputed from
// the reviews table, for checking against the running aggregates.
func (s *CategoryStore) ReviewStats(ctx context.Context) ([]models.CategoryReviewStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.slug, c.title_th, c.title_en, c.description_th, c.description_en,
		       c.icon_class, c.icon_color, c.instructions_th, c.instructions_en,
		       c.total_question_views, c.total_question_skips, c.total_reviews, c.average_rating,
		       c.play_count, c.visit_count, c.created_at, c.updated_at,
		       count(r.id), COALESCE(avg(r.rating), 0)
		FROM categories c
		LEFT JOIN reviews r ON r.category_id = c.id
		GROUP BY c.id
		ORDER BY c.created_at DESC, c.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("category review stats: %w", err)
	}
	defer rows.Close()

	stats := []models.CategoryReviewStats{}
	for rows.Next() {
		var (
			st        models.CategoryReviewStats
			updatedAt sql.NullTime
		)
		dest := append(categoryDest(&st.Category, &updatedAt), &st.ReviewCount, &st.ReviewAverage)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan category review stats: %w", err)
		}
		st.UpdatedAt = timePtr(updatedAt)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category review stats: %w", err)
	}
	return stats, nil
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(resource)
	}
	return nil
}
