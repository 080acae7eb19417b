// Package memstore is an in-memory implementation of the service
// repositories. A single mutex serializes every operation, so each call is
// atomic the way a Postgres transaction is.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cardtalk/api/apperrors"
	"cardtalk/api/models"
)

type Store struct {
	mu         sync.Mutex
	categories map[string]*models.Category
	questions  map[string]*models.Question
	reviews    map[string]*models.Review
	admins     map[string]*models.AdminUser
	members    map[string]*models.Member
	events     []models.InteractionEvent
}

func New() *Store {
	return &Store{
		categories: make(map[string]*models.Category),
		questions:  make(map[string]*models.Question),
		reviews:    make(map[string]*models.Review),
		admins:     make(map[string]*models.AdminUser),
		members:    make(map[string]*models.Member),
	}
}

func (s *Store) Questions() *QuestionRepo      { return &QuestionRepo{s} }
func (s *Store) Categories() *CategoryRepo     { return &CategoryRepo{s} }
func (s *Store) Reviews() *ReviewRepo          { return &ReviewRepo{s} }
func (s *Store) Users() *UserRepo              { return &UserRepo{s} }
func (s *Store) Interactions() *InteractionLog { return &InteractionLog{s} }

// Events returns a copy of the recorded audit events.
func (s *Store) Events() []models.InteractionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.InteractionEvent(nil), s.events...)
}

type QuestionRepo struct{ s *Store }

func (r *QuestionRepo) Get(_ context.Context, id string) (*models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.questions[id]
	if !ok {
		return nil, apperrors.NotFound("question")
	}
	cp := *q
	return &cp, nil
}

func (r *QuestionRepo) all(match func(*models.Question) bool) []models.Question {
	out := []models.Question{}
	for _, q := range r.s.questions {
		if match == nil || match(q) {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortKey(q models.Question, field string) (float64, string) {
	switch field {
	case "content_th":
		return 0, strings.ToLower(q.ContentTH)
	case "content_en":
		return 0, strings.ToLower(q.ContentEN)
	case "viewCount":
		return float64(q.ViewCount), ""
	case "skipCount":
		return float64(q.SkipCount), ""
	case "skipRate":
		return q.SkipRate, ""
	case "popularityScore":
		return float64(q.PopularityScore), ""
	default:
		return float64(q.CreatedAt.UnixNano()), ""
	}
}

func (r *QuestionRepo) List(_ context.Context, filter models.QuestionFilter) ([]models.Question, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matches := r.all(func(q *models.Question) bool {
		if filter.CategoryID != "" && q.CategoryID != filter.CategoryID {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(q.ContentTH), search) &&
			!strings.Contains(strings.ToLower(q.ContentEN), search) {
			return false
		}
		return true
	})
	sort.SliceStable(matches, func(i, j int) bool {
		ni, si := sortKey(matches[i], filter.SortBy)
		nj, sj := sortKey(matches[j], filter.SortBy)
		if ni == nj && si == sj {
			return matches[i].ID < matches[j].ID
		}
		less := ni < nj || (ni == nj && si < sj)
		if filter.SortDesc {
			return !less
		}
		return less
	})

	total := int64(len(matches))
	start := (filter.Page - 1) * filter.Limit
	if start < 0 || start >= len(matches) {
		return []models.Question{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end], total, nil
}

func (r *QuestionRepo) ListByCategory(_ context.Context, categoryID string) ([]models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.all(func(q *models.Question) bool { return q.CategoryID == categoryID }), nil
}

func (r *QuestionRepo) Count(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.questions)), nil
}

func (r *QuestionRepo) CountByCategory(context.Context) (map[string]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int64)
	for _, q := range r.s.questions {
		counts[q.CategoryID]++
	}
	return counts, nil
}

func (r *QuestionRepo) Top(_ context.Context, field models.RankField, limit int, minImpressions int64) ([]models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ranked := r.all(func(q *models.Question) bool { return q.Impressions >= minImpressions })
	sort.SliceStable(ranked, func(i, j int) bool {
		vi, _ := sortKey(ranked[i], string(field))
		vj, _ := sortKey(ranked[j], string(field))
		if vi != vj {
			return vi > vj
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (r *QuestionRepo) Create(_ context.Context, categoryID string, questions []models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[categoryID]; !ok {
		return apperrors.NotFound("category")
	}
	existing := 0
	for _, q := range r.s.questions {
		if q.CategoryID == categoryID {
			existing++
		}
	}
	if existing+len(questions) > models.MaxQuestionsPerCategory {
		return apperrors.InvalidArgument("category has reached the limit of 100 questions")
	}
	for i := range questions {
		if _, dup := r.s.questions[questions[i].ID]; dup {
			return apperrors.Conflict("question " + questions[i].ID + " already exists")
		}
	}
	for i := range questions {
		questions[i].CategoryID = categoryID
		q := questions[i]
		r.s.questions[q.ID] = &q
	}
	return nil
}

func (r *QuestionRepo) Update(_ context.Context, q *models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.questions[q.ID]
	if !ok {
		return apperrors.NotFound("question")
	}
	if _, ok := r.s.categories[q.CategoryID]; !ok {
		return apperrors.NotFound("category")
	}
	if current.CategoryID != q.CategoryID {
		r.s.adjustTotals(current.CategoryID, -current.ViewCount, -current.SkipCount)
		r.s.adjustTotals(q.CategoryID, current.ViewCount, current.SkipCount)
	}
	current.CategoryID = q.CategoryID
	current.ContentTH = q.ContentTH
	current.ContentEN = q.ContentEN
	current.UpdatedAt = q.UpdatedAt
	return nil
}

func (r *QuestionRepo) Delete(_ context.Context, ids []string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for _, id := range ids {
		q, ok := r.s.questions[id]
		if !ok {
			continue
		}
		r.s.adjustTotals(q.CategoryID, -q.ViewCount, -q.SkipCount)
		delete(r.s.questions, id)
		removed++
	}
	return removed, nil
}

func (r *QuestionRepo) ApplyInteraction(_ context.Context, id string, delta models.CounterDelta, at time.Time, derive models.SkipStatsFunc) (*models.Question, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.questions[id]
	if !ok {
		return nil, apperrors.NotFound("question")
	}
	q.ViewCount += delta.Views
	q.SkipCount += delta.Skips
	q.PopularityScore += delta.Popularity
	q.Impressions, q.SkipRate = derive(q.ViewCount, q.SkipCount)
	lastViewed := at
	q.LastViewed = &lastViewed
	r.s.adjustTotals(q.CategoryID, delta.Views, delta.Skips)
	cp := *q
	return &cp, nil
}

// adjustTotals must be called with mu held.
func (s *Store) adjustTotals(categoryID string, views, skips int64) {
	c, ok := s.categories[categoryID]
	if !ok {
		return
	}
	c.TotalQuestionViews = max(0, c.TotalQuestionViews+views)
	c.TotalQuestionSkips = max(0, c.TotalQuestionSkips+skips)
}

type CategoryRepo struct{ s *Store }

func (r *CategoryRepo) Get(_ context.Context, id string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, apperrors.NotFound("category")
	}
	cp := *c
	return &cp, nil
}

func (r *CategoryRepo) List(context.Context) ([]models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sortedCategories(), nil
}

func (s *Store) sortedCategories() []models.Category {
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *CategoryRepo) Create(_ context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[c.ID]; ok {
		return apperrors.Conflict("a category with this slug already exists")
	}
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

func (r *CategoryRepo) Update(_ context.Context, id string, patch models.CategoryPatch, at time.Time) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, apperrors.NotFound("category")
	}
	next := *c
	patch.Apply(&next)
	next.UpdatedAt = &at

	if patch.Slug != nil && *patch.Slug != id {
		newID := *patch.Slug
		if _, exists := r.s.categories[newID]; exists {
			return nil, apperrors.Conflict("new slug already exists")
		}
		next.ID, next.Slug = newID, newID
		for _, q := range r.s.questions {
			if q.CategoryID == id {
				q.CategoryID = newID
			}
		}
		for _, rv := range r.s.reviews {
			if rv.CategoryID == id {
				rv.CategoryID = newID
			}
		}
		delete(r.s.categories, id)
	}
	r.s.categories[next.ID] = &next
	cp := next
	return &cp, nil
}

func (r *CategoryRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return apperrors.NotFound("category")
	}
	delete(r.s.categories, id)
	for qid, q := range r.s.questions {
		if q.CategoryID == id {
			delete(r.s.questions, qid)
		}
	}
	for rid, rv := range r.s.reviews {
		if rv.CategoryID == id {
			delete(r.s.reviews, rid)
		}
	}
	return nil
}

func (r *CategoryRepo) increment(id string, field func(*models.Category) *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return apperrors.NotFound("category")
	}
	*field(c)++
	return nil
}

func (r *CategoryRepo) IncrementVisitCount(_ context.Context, id string) error {
	return r.increment(id, func(c *models.Category) *int64 { return &c.VisitCount })
}

func (r *CategoryRepo) IncrementPlayCount(_ context.Context, id string) error {
	return r.increment(id, func(c *models.Category) *int64 { return &c.PlayCount })
}

func (r *CategoryRepo) ReviewStats(context.Context) ([]models.CategoryReviewStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := []models.CategoryReviewStats{}
	for _, c := range r.s.sortedCategories() {
		st := models.CategoryReviewStats{Category: c}
		var sum int64
		for _, rv := range r.s.reviews {
			if rv.CategoryID == c.ID {
				st.ReviewCount++
				sum += int64(rv.Rating)
			}
		}
		if st.ReviewCount > 0 {
			st.ReviewAverage = float64(sum) / float64(st.ReviewCount)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

type ReviewRepo struct{ s *Store }

func (r *ReviewRepo) Create(_ context.Context, review *models.Review, update models.RatingUpdateFunc) (models.RatingAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[review.CategoryID]
	if !ok {
		return models.RatingAggregate{}, apperrors.NotFound("category")
	}
	next := update(models.RatingAggregate{TotalReviews: c.TotalReviews, AverageRating: c.AverageRating})
	cp := *review
	r.s.reviews[review.ID] = &cp
	c.TotalReviews, c.AverageRating = next.TotalReviews, next.AverageRating
	return next, nil
}

func (r *ReviewRepo) Delete(_ context.Context, categoryID, reviewID string, update func(models.RatingAggregate, int) models.RatingAggregate) (models.RatingAggregate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[categoryID]
	if !ok {
		return models.RatingAggregate{}, apperrors.NotFound("category")
	}
	rv, ok := r.s.reviews[reviewID]
	if !ok || rv.CategoryID != categoryID {
		return models.RatingAggregate{}, apperrors.NotFound("review")
	}
	next := update(models.RatingAggregate{TotalReviews: c.TotalReviews, AverageRating: c.AverageRating}, rv.Rating)
	delete(r.s.reviews, reviewID)
	c.TotalReviews, c.AverageRating = next.TotalReviews, next.AverageRating
	return next, nil
}

func (r *ReviewRepo) ListByCategory(_ context.Context, categoryID string, limit int) ([]models.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Review{}
	for _, rv := range r.s.reviews {
		if rv.CategoryID == categoryID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type UserRepo struct{ s *Store }

func (r *UserRepo) CreateAdmin(_ context.Context, admin *models.AdminUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *admin
	r.s.admins[admin.Username] = &cp
	return nil
}

func (r *UserRepo) GetAdmin(_ context.Context, username string) (*models.AdminUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.admins[username]
	if !ok {
		return nil, apperrors.NotFound("admin")
	}
	cp := *a
	return &cp, nil
}

func (r *UserRepo) CreateMember(_ context.Context, m *models.Member) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[m.Email]; ok {
		return apperrors.Conflict("email already registered")
	}
	cp := *m
	r.s.members[m.Email] = &cp
	return nil
}

func (r *UserRepo) GetMember(_ context.Context, email string) (*models.Member, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[email]
	if !ok {
		return nil, apperrors.NotFound("member")
	}
	cp := *m
	return &cp, nil
}

// SetMemberActive toggles a member account. There is no HTTP route for it.
func (r *UserRepo) SetMemberActive(email string, active bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[email]; ok {
		m.IsActive = active
	}
}

func (r *UserRepo) RecordFailedLogin(_ context.Context, email string, attempts int, lockoutUntil *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[email]
	if !ok {
		return apperrors.NotFound("member")
	}
	m.FailedLoginAttempts = attempts
	m.LockoutUntil = lockoutUntil
	return nil
}

func (r *UserRepo) RecordLogin(_ context.Context, email string, at *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[email]
	if !ok {
		return apperrors.NotFound("member")
	}
	m.FailedLoginAttempts = 0
	m.LockoutUntil = nil
	if at != nil {
		m.LastLogin = at
	}
	return nil
}

type InteractionLog struct{ s *Store }

func (l *InteractionLog) InsertInteractions(_ context.Context, events []models.InteractionEvent) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	l.s.events = append(l.s.events, events...)
	return nil
}
