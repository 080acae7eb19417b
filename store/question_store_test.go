package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtalk/api/apperrors"
	"cardtalk/api/models"
)

var (
	testTime       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	questionFields = []string{"id", "category_id", "content_th", "content_en", "view_count", "skip_count",
		"impressions", "skip_rate", "popularity_score", "last_viewed", "created_at", "updated_at"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedStats(views, skips int64) (int64, float64) {
	return views + skips, 25
}

func TestQuestionStoreApplyInteraction(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE questions\s+SET view_count = view_count \+ \$2`).
		WithArgs("q1", int64(1), int64(0), int64(1), testTime).
		WillReturnRows(sqlmock.NewRows(questionFields).
			AddRow("q1", "couples", "", "hi", 3, 1, 3, 33.3, 1, testTime, testTime, nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE questions SET impressions = $2, skip_rate = $3 WHERE id = $1`)).
		WithArgs("q1", int64(4), 25.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE categories\s+SET total_question_views`).
		WithArgs("couples", int64(1), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q, err := s.ApplyInteraction(context.Background(), "q1",
		models.CounterDelta{Views: 1, Popularity: 1}, testTime, fixedStats)
	require.NoError(t, err)
	assert.EqualValues(t, 4, q.Impressions)
	assert.Equal(t, 25.0, q.SkipRate)
	assert.Equal(t, "couples", q.CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreApplyInteraction_NotFound(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE questions`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.ApplyInteraction(context.Background(), "missing",
		models.CounterDelta{Skips: 1, Popularity: -2}, testTime, fixedStats)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreCreate_RespectsCategoryCap(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM categories WHERE id = \$1 FOR UPDATE`).
		WithArgs("couples").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("couples"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM questions WHERE category_id = \$1`).
		WithArgs("couples").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(99))
	mock.ExpectRollback()

	err := s.Create(context.Background(), "couples", []models.Question{{ID: "a"}, {ID: "b"}})
	assert.True(t, apperrors.Is(err, apperrors.KindInvalidArgument))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreCreate_InsertsBatch(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("couples"))
	mock.ExpectQuery(`SELECT count`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO questions`).
		WithArgs("a", "couples", "ก", "A", testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO questions`).
		WithArgs("b", "couples", "", "B", testTime.Add(time.Millisecond)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	batch := []models.Question{
		{ID: "a", ContentTH: "ก", ContentEN: "A", CreatedAt: testTime},
		{ID: "b", ContentEN: "B", CreatedAt: testTime.Add(time.Millisecond)},
	}
	require.NoError(t, s.Create(context.Background(), "couples", batch))
	assert.Equal(t, "couples", batch[1].CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreCreate_UnknownCategory(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := s.Create(context.Background(), "ghost", []models.Question{{ID: "a"}})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreDelete_AdjustsCategoryTotals(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM questions WHERE id = ANY\(\$1\) RETURNING`).
		WithArgs(pq.Array([]string{"q1", "q2", "q3"})).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "view_count", "skip_count"}).
			AddRow("couples", 4, 1).
			AddRow("friends", 2, 0).
			AddRow("couples", 1, 1))
	mock.ExpectExec(`UPDATE categories`).WithArgs("couples", int64(-5), int64(-2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE categories`).WithArgs("friends", int64(-2), int64(0)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := s.Delete(context.Background(), []string{"q1", "q2", "q3"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreUpdate_MovesCounters(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)
	at := testTime

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT category_id, view_count, skip_count FROM questions WHERE id = \$1 FOR UPDATE`).
		WithArgs("q1").
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "view_count", "skip_count"}).AddRow("old", 6, 2))
	mock.ExpectExec(`UPDATE questions SET category_id`).
		WithArgs("q1", "new", "", "moved", &at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE categories`).WithArgs("old", int64(-6), int64(-2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE categories`).WithArgs("new", int64(6), int64(2)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Update(context.Background(), &models.Question{ID: "q1", CategoryID: "new", ContentEN: "moved", UpdatedAt: &at})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreUpdate_UnknownTargetCategory(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"category_id", "view_count", "skip_count"}).AddRow("old", 0, 0))
	mock.ExpectExec(`UPDATE questions`).WillReturnError(&pq.Error{Code: "23503"})
	mock.ExpectRollback()

	err := s.Update(context.Background(), &models.Question{ID: "q1", CategoryID: "ghost"})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreTop(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectQuery(`FROM questions WHERE impressions >= \$1 ORDER BY skip_rate DESC, id ASC LIMIT \$2`).
		WithArgs(int64(5), 10).
		WillReturnRows(sqlmock.NewRows(questionFields).
			AddRow("q1", "c", "", "x", 1, 4, 5, 80.0, -7, nil, testTime, nil))
	mock.ExpectQuery(`FROM questions ORDER BY popularity_score DESC, id ASC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(questionFields))

	top, err := s.Top(context.Background(), models.RankBySkipRate, 10, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Nil(t, top[0].LastViewed)
	assert.Equal(t, 80.0, top[0].SkipRate)

	trending, err := s.Top(context.Background(), models.RankByPopularity, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, trending)
	assert.Empty(t, trending)

	_, err = s.Top(context.Background(), "content_th", 10, 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreList_FiltersAndPages(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM questions WHERE category_id = $1 AND (content_th ILIKE $2 OR content_en ILIKE $2)`)).
		WithArgs("couples", `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY view_count DESC, id ASC LIMIT $3 OFFSET $4`)).
		WithArgs("couples", `%50\%%`, 5, 5).
		WillReturnRows(sqlmock.NewRows(questionFields).
			AddRow("q6", "couples", "", "50% off", 9, 0, 9, 0.0, 9, nil, testTime, nil))

	questions, total, err := s.List(context.Background(), models.QuestionFilter{
		CategoryID: "couples", Search: "50%", SortBy: "viewCount", SortDesc: true, Page: 2, Limit: 5,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 12, total)
	require.Len(t, questions, 1)
	assert.Equal(t, "q6", questions[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionStoreHasSkipRateIndex(t *testing.T) {
	db, mock := newMock(t)
	s := NewQuestionStore(db)

	mock.ExpectQuery(`pg_indexes`).
		WithArgs("idx_questions_impressions_skip_rate").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.HasSkipRateIndex(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
