package models

import "time"

type Category struct {
	ID                 string     `json:"id"`
	Slug               string     `json:"slug"`
	TitleTH            string     `json:"title_th"`
	TitleEN            string     `json:"title_en"`
	DescriptionTH      string     `json:"description_th"`
	DescriptionEN      string     `json:"description_en"`
	IconClass          string     `json:"iconClass"`
	IconColor          string     `json:"iconColor"`
	InstructionsTH     string     `json:"instructions_th"`
	InstructionsEN     string     `json:"instructions_en"`
	TotalQuestionViews int64      `json:"totalQuestionViews"`
	TotalQuestionSkips int64      `json:"totalQuestionSkips"`
	TotalReviews       int64      `json:"totalReviews"`
	AverageRating      float64    `json:"averageRating"`
	PlayCount          int64      `json:"playCount"`
	VisitCount         int64      `json:"visitCount"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          *time.Time `json:"updatedAt,omitempty"`
}

// CategoryPatch carries optional field changes. A Slug different from the
// category's id triggers a rename.
type CategoryPatch struct {
	Slug           *string `json:"slug"`
	TitleTH        *string `json:"title_th"`
	TitleEN        *string `json:"title_en"`
	DescriptionTH  *string `json:"description_th"`
	DescriptionEN  *string `json:"description_en"`
	IconClass      *string `json:"iconClass"`
	IconColor      *string `json:"iconColor"`
	InstructionsTH *string `json:"instructions_th"`
	InstructionsEN *string `json:"instructions_en"`
}

// Apply copies every non-nil field of p onto c. Slug and ID are left alone.
func (p CategoryPatch) Apply(c *Category) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.TitleTH, p.TitleTH)
	set(&c.TitleEN, p.TitleEN)
	set(&c.DescriptionTH, p.DescriptionTH)
	set(&c.DescriptionEN, p.DescriptionEN)
	set(&c.IconClass, p.IconClass)
	set(&c.IconColor, p.IconColor)
	set(&c.InstructionsTH, p.InstructionsTH)
	set(&c.InstructionsEN, p.InstructionsEN)
}

type CreateCategoryRequest struct {
	Slug           string `json:"slug" binding:"required"`
	TitleTH        string `json:"title_th" binding:"required"`
	TitleEN        string `json:"title_en" binding:"required"`
	DescriptionTH  string `json:"description_th"`
	DescriptionEN  string `json:"description_en"`
	IconClass      string `json:"iconClass"`
	IconColor      string `json:"iconColor"`
	InstructionsTH string `json:"instructions_th"`
	InstructionsEN string `json:"instructions_en"`
}

// RatingAggregate is the running (count, average) pair kept on a category.
type RatingAggregate struct {
	TotalReviews  int64   `json:"totalReviews"`
	AverageRating float64 `json:"averageRating"`
}

// CategoryReviewStats is the admin review overview, recomputed from the reviews table.
type CategoryReviewStats struct {
	Category
	ReviewCount   int64   `json:"reviewCount"`
	ReviewAverage float64 `json:"reviewAverage"`
}
