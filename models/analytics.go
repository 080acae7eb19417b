package models

type AnalyticsSummary struct {
	TotalQuestions int64   `json:"totalQuestions"`
	TotalViews     int64   `json:"totalViews"`
	TotalSkips     int64   `json:"totalSkips"`
	AvgSkipRate    float64 `json:"avgSkipRate"`
}

type CategoryStat struct {
	CategoryID     string  `json:"categoryId"`
	CategoryName   string  `json:"categoryName"`
	TotalQuestions int64   `json:"totalQuestions"`
	TotalViews     int64   `json:"totalViews"`
	TotalSkips     int64   `json:"totalSkips"`
	AvgSkipRate    float64 `json:"avgSkipRate"`
	PlayCount      int64   `json:"playCount"`
	VisitCount     int64   `json:"visitCount"`
}

type AnalyticsReport struct {
	Summary         AnalyticsSummary `json:"summary"`
	TopViewed       []Question       `json:"topViewed"`
	MostSkipped     []Question       `json:"mostSkipped"`
	HighestSkipRate []Question       `json:"highestSkipRate"`
	Trending        []Question       `json:"trending"`
	CategoryStats   []CategoryStat   `json:"categoryStats"`
}
