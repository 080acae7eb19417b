package services

import (
	"context"
	"time"

	"cardtalk/api/models"
)

// The interfaces below are satisfied by the Postgres, ClickHouse and Redis
// stores in package store, and by the in-memory store in store/memstore.

type QuestionRepository interface {
	Get(ctx context.Context, id string) (*models.Question, error)
	List(ctx context.Context, filter models.QuestionFilter) ([]models.Question, int64, error)
	ListByCategory(ctx context.Context, categoryID string) ([]models.Question, error)
	Count(ctx context.Context) (int64, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
	Top(ctx context.Context, field models.RankField, limit int, minImpressions int64) ([]models.Question, error)
	Create(ctx context.Context, categoryID string, questions []models.Question) error
	Update(ctx context.Context, q *models.Question) error
	Delete(ctx context.Context, ids []string) (int64, error)
	ApplyInteraction(ctx context.Context, id string, delta models.CounterDelta, at time.Time, derive models.SkipStatsFunc) (*models.Question, error)
}

type CategoryRepository interface {
	Get(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, id string, patch models.CategoryPatch, at time.Time) (*models.Category, error)
	Delete(ctx context.Context, id string) error
	IncrementVisitCount(ctx context.Context, id string) error
	IncrementPlayCount(ctx context.Context, id string) error
	ReviewStats(ctx context.Context) ([]models.CategoryReviewStats, error)
}

type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review, update models.RatingUpdateFunc) (models.RatingAggregate, error)
	Delete(ctx context.Context, categoryID, reviewID string, update func(models.RatingAggregate, int) models.RatingAggregate) (models.RatingAggregate, error)
	ListByCategory(ctx context.Context, categoryID string, limit int) ([]models.Review, error)
}

type UserRepository interface {
	CreateAdmin(ctx context.Context, admin *models.AdminUser) error
	GetAdmin(ctx context.Context, username string) (*models.AdminUser, error)
	CreateMember(ctx context.Context, m *models.Member) error
	GetMember(ctx context.Context, email string) (*models.Member, error)
	RecordFailedLogin(ctx context.Context, email string, attempts int, lockoutUntil *time.Time) error
	RecordLogin(ctx context.Context, email string, at *time.Time) error
}

// InteractionLog receives best-effort audit records.
type InteractionLog interface {
	InsertInteractions(ctx context.Context, events []models.InteractionEvent) error
}

type CategoryCache interface {
	GetList(ctx context.Context) ([]models.Category, bool, error)
	SetList(ctx context.Context, categories []models.Category) error
	Invalidate(ctx context.Context) error
}
