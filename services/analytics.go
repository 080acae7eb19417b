package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"cardtalk/api/config"
	"cardtalk/api/metrics"
	"cardtalk/api/models"
	"cardtalk/api/utils"
)

const (
	// rankingSize is the length of every top-N list in a report.
	rankingSize = 10
	// minImpressionsForSkipRate keeps barely-seen questions out of the skip rate ranking.
	minImpressionsForSkipRate = 5
)

type Analytics struct {
	questions        QuestionRepository
	categories       CategoryRepository
	filteredSkipRate bool
}

// NewAnalytics builds the reader. filteredSkipRate selects the
// impressions-filtered skip rate ranking in global reports; when false the
// ranking falls back to ordering by skip rate alone.
func NewAnalytics(questions QuestionRepository, categories CategoryRepository, filteredSkipRate bool) *Analytics {
	return &Analytics{questions: questions, categories: categories, filteredSkipRate: filteredSkipRate}
}

// ResolveSkipRateFilter turns the configured mode into the startup decision.
// In auto mode probe is asked whether the supporting index exists.
func ResolveSkipRateFilter(ctx context.Context, mode string, probe func(context.Context) (bool, error)) (bool, error) {
	switch mode {
	case config.SkipRateIndexOn:
		return true, nil
	case config.SkipRateIndexOff:
		return false, nil
	case config.SkipRateIndexAuto, "":
		return probe(ctx)
	default:
		return false, fmt.Errorf("unknown skip rate index mode %q", mode)
	}
}

// Report builds the per-category report when categoryID is set and the
// global report otherwise.
func (a *Analytics) Report(ctx context.Context, categoryID string) (*models.AnalyticsReport, error) {
	if categoryID != "" {
		return a.scopedReport(ctx, categoryID)
	}
	return a.globalReport(ctx)
}

func (a *Analytics) scopedReport(ctx context.Context, categoryID string) (*models.AnalyticsReport, error) {
	if _, err := a.categories.Get(ctx, categoryID); err != nil {
		return nil, err
	}
	questions, err := a.questions.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	var views, skips int64
	for i := range questions {
		q := &questions[i]
		q.Impressions, q.SkipRate = SkipStats(q.ViewCount, q.SkipCount)
		views += q.ViewCount
		skips += q.SkipCount
	}

	rateCandidates := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if q.Impressions >= minImpressionsForSkipRate {
			rateCandidates = append(rateCandidates, q)
		}
	}

	metrics.AnalyticsReports.WithLabelValues("category", "in_memory").Inc()
	return &models.AnalyticsReport{
		Summary: models.AnalyticsSummary{
			TotalQuestions: int64(len(questions)),
			TotalViews:     views + skips,
			TotalSkips:     skips,
			AvgSkipRate:    utils.Round1(utils.Percent(skips, views+skips)),
		},
		TopViewed:       topBy(questions, func(q models.Question) float64 { return float64(q.ViewCount) }),
		MostSkipped:     topBy(questions, func(q models.Question) float64 { return float64(q.SkipCount) }),
		HighestSkipRate: topBy(rateCandidates, func(q models.Question) float64 { return q.SkipRate }),
		Trending:        topBy(questions, func(q models.Question) float64 { return float64(q.PopularityScore) }),
		CategoryStats:   []models.CategoryStat{},
	}, nil
}

// topBy returns up to rankingSize questions with the largest key, keeping the
// input order among ties.
func topBy(questions []models.Question, key func(models.Question) float64) []models.Question {
	sorted := make([]models.Question, len(questions))
	copy(sorted, questions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return key(sorted[i]) > key(sorted[j])
	})
	if len(sorted) > rankingSize {
		sorted = sorted[:rankingSize]
	}
	return sorted
}

func (a *Analytics) globalReport(ctx context.Context) (*models.AnalyticsReport, error) {
	var (
		totalQuestions int64
		categories     []models.Category
		counts         map[string]int64
		report         = &models.AnalyticsReport{}
	)

	minImpressions := int64(0)
	queryMode := "unfiltered"
	if a.filteredSkipRate {
		minImpressions = minImpressionsForSkipRate
		queryMode = "filtered"
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.questions.Count(gctx)
		totalQuestions = n
		return err
	})
	g.Go(func() error {
		list, err := a.categories.List(gctx)
		categories = list
		return err
	})
	g.Go(func() error {
		m, err := a.questions.CountByCategory(gctx)
		counts = m
		return err
	})
	rank := func(dst *[]models.Question, field models.RankField, minImpressions int64) {
		g.Go(func() error {
			top, err := a.questions.Top(gctx, field, rankingSize, minImpressions)
			*dst = top
			return err
		})
	}
	rank(&report.TopViewed, models.RankByViews, 0)
	rank(&report.MostSkipped, models.RankBySkips, 0)
	rank(&report.HighestSkipRate, models.RankBySkipRate, minImpressions)
	rank(&report.Trending, models.RankByPopularity, 0)

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var views, skips int64
	report.CategoryStats = make([]models.CategoryStat, 0, len(categories))
	for _, c := range categories {
		impressions := c.TotalQuestionViews + c.TotalQuestionSkips
		report.CategoryStats = append(report.CategoryStats, models.CategoryStat{
			CategoryID:     c.ID,
			CategoryName:   c.TitleEN,
			TotalQuestions: counts[c.ID],
			TotalViews:     impressions,
			TotalSkips:     c.TotalQuestionSkips,
			AvgSkipRate:    utils.Round1(utils.Percent(c.TotalQuestionSkips, impressions)),
			PlayCount:      c.PlayCount,
			VisitCount:     c.VisitCount,
		})
		views += c.TotalQuestionViews
		skips += c.TotalQuestionSkips
	}

	report.Summary = models.AnalyticsSummary{
		TotalQuestions: totalQuestions,
		TotalViews:     views + skips,
		TotalSkips:     skips,
		AvgSkipRate:    utils.Round1(utils.Percent(skips, views+skips)),
	}
	for _, list := range []*[]models.Question{&report.TopViewed, &report.MostSkipped, &report.HighestSkipRate, &report.Trending} {
		*list = roundRates(*list)
	}

	metrics.AnalyticsReports.WithLabelValues("global", queryMode).Inc()
	return report, nil
}

func roundRates(questions []models.Question) []models.Question {
	if questions == nil {
		return []models.Question{}
	}
	for i := range questions {
		questions[i].SkipRate = utils.Round1(questions[i].SkipRate)
	}
	return questions
}
