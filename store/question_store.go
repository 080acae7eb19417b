package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"cardtalk/api/apperrors"
	"cardtalk/api/database"
	"cardtalk/api/models"
)

type QuestionStore struct {
	db *sql.DB
}

func NewQuestionStore(db *sql.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

const questionColumns = `id, category_id, content_th, content_en, view_count, skip_count,
	impressions, skip_rate, popularity_score, last_viewed, created_at, updated_at`

// questionSortColumns whitelists the ORDER BY expressions for listings.
var questionSortColumns = map[string]string{
	"createdAt":       "created_at",
	"content_th":      "lower(content_th)",
	"content_en":      "lower(content_en)",
	"viewCount":       "view_count",
	"skipCount":       "skip_count",
	"skipRate":        "skip_rate",
	"popularityScore": "popularity_score",
}

var rankColumns = map[models.RankField]string{
	models.RankByViews:      "view_count",
	models.RankBySkips:      "skip_count",
	models.RankBySkipRate:   "skip_rate",
	models.RankByPopularity: "popularity_score",
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var (
		q          models.Question
		lastViewed sql.NullTime
		updatedAt  sql.NullTime
	)
	err := row.Scan(
		&q.ID,
		&q.CategoryID,
		&q.ContentTH,
		&q.ContentEN,
		&q.ViewCount,
		&q.SkipCount,
		&q.Impressions,
		&q.SkipRate,
		&q.PopularityScore,
		&lastViewed,
		&q.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	q.LastViewed = timePtr(lastViewed)
	q.UpdatedAt = timePtr(updatedAt)
	return &q, nil
}

func collectQuestions(rows *sql.Rows) ([]models.Question, error) {
	defer rows.Close()

	questions := []models.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func (s *QuestionStore) Get(ctx context.Context, id string) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if err != nil {
		return nil, notFoundOr(err, "question", "get question")
	}
	return q, nil
}

// List returns one page of questions matching filter plus the total match count.
func (s *QuestionStore) List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int64, error) {
	var (
		where []string
		args  []any
	)
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		where = append(where, fmt.Sprintf("(content_th ILIKE $%d OR content_en ILIKE $%d)", len(args), len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM questions `+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	orderBy, ok := questionSortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	limit, page := filter.Limit, filter.Page
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM questions %s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		questionColumns, whereClause, orderBy, direction, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	questions, err := collectQuestions(rows)
	if err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

func (s *QuestionStore) ListByCategory(ctx context.Context, categoryID string) ([]models.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE category_id = $1 ORDER BY created_at ASC, id ASC`,
		categoryID)
	if err != nil {
		return nil, fmt.Errorf("list category questions: %w", err)
	}
	return collectQuestions(rows)
}

func (s *QuestionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *QuestionStore) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, count(*) FROM questions GROUP BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("count questions by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			categoryID string
			n          int64
		)
		if err := rows.Scan(&categoryID, &n); err != nil {
			return nil, fmt.Errorf("scan question count: %w", err)
		}
		counts[categoryID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question counts: %w", err)
	}
	return counts, nil
}

// Top returns the limit questions with the highest field value. A positive
// minImpressions restricts the ranking to questions shown at least that often.
func (s *QuestionStore) Top(ctx context.Context, field models.RankField, limit int, minImpressions int64) ([]models.Question, error) {
	column, ok := rankColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown rank field %q", field)
	}

	var rows *sql.Rows
	var err error
	if minImpressions > 0 {
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT %s FROM questions WHERE impressions >= $1 ORDER BY %s DESC, id ASC LIMIT $2`, questionColumns, column),
			minImpressions, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT %s FROM questions ORDER BY %s DESC, id ASC LIMIT $1`, questionColumns, column),
			limit)
	}
	if err != nil {
		return nil, fmt.Errorf("rank questions by %s: %w", field, err)
	}
	return collectQuestions(rows)
}

// HasSkipRateIndex reports whether the index backing the filtered skip-rate ranking exists.
func (s *QuestionStore) HasSkipRateIndex(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE tablename = 'questions' AND indexname = $1)`,
		database.SkipRateIndexName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("probe skip rate index: %w", err)
	}
	return exists, nil
}

// lockCategoryForInsert locks the category row and returns how many questions it holds.
func lockCategoryForInsert(ctx context.Context, tx *sql.Tx, categoryID string) (int64, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE id = $1 FOR UPDATE`, categoryID).Scan(&id)
	if err != nil {
		return 0, notFoundOr(err, "category", "lock category")
	}
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM questions WHERE category_id = $1`, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count category questions: %w", err)
	}
	return n, nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, q *models.Question) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO questions (id, category_id, content_th, content_en, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		q.ID, q.CategoryID, q.ContentTH, q.ContentEN, q.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict(fmt.Sprintf("question %s already exists", q.ID))
		}
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// Create inserts questions into one category, refusing to grow it past
// models.MaxQuestionsPerCategory.
func (s *QuestionStore) Create(ctx context.Context, categoryID string, questions []models.Question) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := lockCategoryForInsert(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		if existing+int64(len(questions)) > models.MaxQuestionsPerCategory {
			return apperrors.InvalidArgument(fmt.Sprintf(
				"category has reached the limit of %d questions", models.MaxQuestionsPerCategory))
		}
		for i := range questions {
			questions[i].CategoryID = categoryID
			if err := insertQuestion(ctx, tx, &questions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites a question's content. Moving it to another category carries
// its counters over to the new category's totals.
func (s *QuestionStore) Update(ctx context.Context, q *models.Question) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			oldCategory string
			views       int64
			skips       int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT category_id, view_count, skip_count FROM questions WHERE id = $1 FOR UPDATE`, q.ID).
			Scan(&oldCategory, &views, &skips)
		if err != nil {
			return notFoundOr(err, "question", "lock question")
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE questions SET category_id = $2, content_th = $3, content_en = $4, updated_at = $5
			WHERE id = $1`,
			q.ID, q.CategoryID, q.ContentTH, q.ContentEN, q.UpdatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return apperrors.NotFound("category")
			}
			return fmt.Errorf("update question: %w", err)
		}

		if oldCategory == q.CategoryID {
			return nil
		}
		if err := adjustCategoryTotals(ctx, tx, oldCategory, -views, -skips); err != nil {
			return err
		}
		return adjustCategoryTotals(ctx, tx, q.CategoryID, views, skips)
	})
}

// Delete removes questions and subtracts their counters from their categories'
// totals in the same transaction. It returns how many rows were removed.
func (s *QuestionStore) Delete(ctx context.Context, ids []string) (int64, error) {
	var removed int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`DELETE FROM questions WHERE id = ANY($1) RETURNING category_id, view_count, skip_count`,
			pq.Array(ids))
		if err != nil {
			return fmt.Errorf("delete questions: %w", err)
		}

		type totals struct{ views, skips int64 }
		byCategory := make(map[string]*totals)
		var order []string
		for rows.Next() {
			var (
				categoryID   string
				views, skips int64
			)
			if err := rows.Scan(&categoryID, &views, &skips); err != nil {
				rows.Close()
				return fmt.Errorf("scan deleted question: %w", err)
			}
			t, ok := byCategory[categoryID]
			if !ok {
				t = &totals{}
				byCategory[categoryID] = t
				order = append(order, categoryID)
			}
			t.views += views
			t.skips += skips
			removed++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterate deleted questions: %w", err)
		}
		rows.Close()

		for _, categoryID := range order {
			t := byCategory[categoryID]
			if err := adjustCategoryTotals(ctx, tx, categoryID, -t.views, -t.skips); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ApplyInteraction increments a question's counters by delta, stores the
// impressions and skip rate derived from the new counts, and mirrors the
// view/skip delta onto the owning category, all in one transaction.
func (s *QuestionStore) ApplyInteraction(ctx context.Context, id string, delta models.CounterDelta, at time.Time, derive models.SkipStatsFunc) (*models.Question, error) {
	var q *models.Question
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE questions
			SET view_count = view_count + $2,
			    skip_count = skip_count + $3,
			    popularity_score = popularity_score + $4,
			    last_viewed = $5
			WHERE id = $1
			RETURNING `+questionColumns,
			id, delta.Views, delta.Skips, delta.Popularity, at)
		updated, err := scanQuestion(row)
		if err != nil {
			return notFoundOr(err, "question", "increment question counters")
		}

		updated.Impressions, updated.SkipRate = derive(updated.ViewCount, updated.SkipCount)
		_, err = tx.ExecContext(ctx,
			`UPDATE questions SET impressions = $2, skip_rate = $3 WHERE id = $1`,
			id, updated.Impressions, updated.SkipRate)
		if err != nil {
			return fmt.Errorf("update question skip stats: %w", err)
		}

		if err := adjustCategoryTotals(ctx, tx, updated.CategoryID, delta.Views, delta.Skips); err != nil {
			return err
		}
		q = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func adjustCategoryTotals(ctx context.Context, tx *sql.Tx, categoryID string, views, skips int64) error {
	if views == 0 && skips == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE categories
		SET total_question_views = GREATEST(0, total_question_views + $2),
		    total_question_skips = GREATEST(0, total_question_skips + $3)
		WHERE id = $1`,
		categoryID, views, skips)
	if err != nil {
		return fmt.Errorf("adjust category totals: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
