package models

import "time"

// Action is a single player interaction with a question card.
type Action string

const (
	ActionView Action = "view"
	ActionSkip Action = "skip"
)

func (a Action) Valid() bool {
	return a == ActionView || a == ActionSkip
}

// MaxQuestionsPerCategory caps a deck's size.
const MaxQuestionsPerCategory = 100

type Question struct {
	ID              string     `json:"id"`
	CategoryID      string     `json:"categoryId"`
	ContentTH       string     `json:"content_th"`
	ContentEN       string     `json:"content_en"`
	ViewCount       int64      `json:"viewCount"`
	SkipCount       int64      `json:"skipCount"`
	Impressions     int64      `json:"impressions"`
	SkipRate        float64    `json:"skipRate"`
	PopularityScore int64      `json:"popularityScore"`
	LastViewed      *time.Time `json:"lastViewed,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       *time.Time `json:"updatedAt,omitempty"`
}

// CounterDelta is applied atomically to a question and mirrored onto its category.
type CounterDelta struct {
	Views      int64
	Skips      int64
	Popularity int64
}

// SkipStatsFunc derives impressions and skip rate from post-increment counters.
type SkipStatsFunc func(views, skips int64) (impressions int64, skipRate float64)

// RankField names a counter questions can be ranked by.
type RankField string

const (
	RankByViews      RankField = "viewCount"
	RankBySkips      RankField = "skipCount"
	RankBySkipRate   RankField = "skipRate"
	RankByPopularity RankField = "popularityScore"
)

type QuestionContent struct {
	ContentTH string `json:"content_th"`
	ContentEN string `json:"content_en"`
}

type CreateQuestionRequest struct {
	CategoryID string `json:"categoryId" binding:"required"`
	ContentTH  string `json:"content_th"`
	ContentEN  string `json:"content_en"`
}

type UpdateQuestionRequest struct {
	CategoryID *string `json:"categoryId"`
	ContentTH  *string `json:"content_th"`
	ContentEN  *string `json:"content_en"`
}

type BatchImportRequest struct {
	CategoryID string            `json:"categoryId" binding:"required"`
	Questions  []QuestionContent `json:"questions" binding:"required,min=1"`
}

type BatchDeleteRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// QuestionFilter drives the paginated question listing.
type QuestionFilter struct {
	CategoryID string
	Search     string
	SortBy     string
	SortDesc   bool
	Page       int
	Limit      int
}

type PageMeta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type QuestionPage struct {
	Data []Question `json:"data"`
	Meta PageMeta   `json:"meta"`
}

type TrackRequest struct {
	QuestionID string `json:"questionId"`
	Action     string `json:"action"`
	SessionID  string `json:"sessionId"`
}
