package services

import (
	"context"
	"time"

	"cardtalk/api/apperrors"
	"cardtalk/api/metrics"
	"cardtalk/api/models"
	"cardtalk/api/utils"
)

// Counters is the single place where engagement counters change.
type Counters struct {
	questions  QuestionRepository
	categories CategoryRepository
	now        func() time.Time
}

func NewCounters(questions QuestionRepository, categories CategoryRepository) *Counters {
	return &Counters{questions: questions, categories: categories, now: time.Now}
}

// DeltaFor maps an action to its counter increments: a view adds one view and
// one popularity point, a skip adds one skip and costs two points.
func DeltaFor(action models.Action) models.CounterDelta {
	switch action {
	case models.ActionView:
		return models.CounterDelta{Views: 1, Popularity: 1}
	case models.ActionSkip:
		return models.CounterDelta{Skips: 1, Popularity: -2}
	default:
		return models.CounterDelta{}
	}
}

// SkipStats derives impressions and the skip rate percentage (one decimal).
func SkipStats(views, skips int64) (int64, float64) {
	impressions := views + skips
	return impressions, utils.Round1(utils.Percent(skips, impressions))
}

// Apply records one action against the question and its category.
func (c *Counters) Apply(ctx context.Context, questionID string, action models.Action) (*models.Question, error) {
	if !action.Valid() {
		return nil, apperrors.InvalidArgument("action must be 'view' or 'skip'")
	}
	q, err := c.questions.ApplyInteraction(ctx, questionID, DeltaFor(action), c.now().UTC(), SkipStats)
	if err != nil {
		return nil, err
	}
	metrics.QuestionInteractions.WithLabelValues(string(action)).Inc()
	return q, nil
}

// RecordVisit counts a deck being opened.
func (c *Counters) RecordVisit(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return apperrors.InvalidArgument("category ID is required")
	}
	return c.categories.IncrementVisitCount(ctx, categoryID)
}

// RecordCompletion counts a deck being played to the end.
func (c *Counters) RecordCompletion(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return apperrors.InvalidArgument("category ID is required")
	}
	return c.categories.IncrementPlayCount(ctx, categoryID)
}
