package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardtalk/api/apperrors"
	"cardtalk/api/logger"
	"cardtalk/api/models"
	"cardtalk/api/utils"
)

const (
	defaultPageSize  = 10
	maxPageSize      = 100
	defaultIconColor = "pink-500"
)

// Catalog manages categories and their question decks.
type Catalog struct {
	categories CategoryRepository
	questions  QuestionRepository
	cache      CategoryCache
	log        *logger.Logger
	now        func() time.Time
}

func NewCatalog(categories CategoryRepository, questions QuestionRepository, cache CategoryCache, log *logger.Logger) *Catalog {
	if cache == nil {
		cache = nopCache{}
	}
	return &Catalog{
		categories: categories,
		questions:  questions,
		cache:      cache,
		log:        log.With("service", "Catalog"),
		now:        time.Now,
	}
}

// ListCategories serves the public listing, reading through the cache.
func (s *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	cached, ok, err := s.cache.GetList(ctx)
	if err != nil {
		s.log.Warn("category cache read failed", "error", err)
	}
	if ok {
		return cached, nil
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetList(ctx, categories); err != nil {
		s.log.Warn("category cache write failed", "error", err)
	}
	return categories, nil
}

func (s *Catalog) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	return s.categories.Get(ctx, id)
}

func (s *Catalog) CategoryReviewStats(ctx context.Context) ([]models.CategoryReviewStats, error) {
	return s.categories.ReviewStats(ctx)
}

func (s *Catalog) CreateCategory(ctx context.Context, req models.CreateCategoryRequest) (*models.Category, error) {
	slug := strings.TrimSpace(req.Slug)
	if !utils.IsValidSlug(slug) {
		return nil, apperrors.InvalidArgument("slug may only contain lowercase letters, numbers and hyphens")
	}
	titleTH, titleEN := strings.TrimSpace(req.TitleTH), strings.TrimSpace(req.TitleEN)
	if titleTH == "" || titleEN == "" {
		return nil, apperrors.InvalidArgument("Thai and English titles are required")
	}
	iconColor := strings.TrimSpace(req.IconColor)
	if iconColor == "" {
		iconColor = defaultIconColor
	}

	c := &models.Category{
		ID:             slug,
		Slug:           slug,
		TitleTH:        titleTH,
		TitleEN:        titleEN,
		DescriptionTH:  strings.TrimSpace(req.DescriptionTH),
		DescriptionEN:  strings.TrimSpace(req.DescriptionEN),
		IconClass:      strings.TrimSpace(req.IconClass),
		IconColor:      iconColor,
		InstructionsTH: strings.TrimSpace(req.InstructionsTH),
		InstructionsEN: strings.TrimSpace(req.InstructionsEN),
		CreatedAt:      s.now().UTC(),
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

// UpdateCategory applies patch. A new slug renames the category, moving its
// questions and reviews along.
func (s *Catalog) UpdateCategory(ctx context.Context, id string, patch models.CategoryPatch) (*models.Category, error) {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	patch.Slug = trim(patch.Slug)
	patch.TitleTH = trim(patch.TitleTH)
	patch.TitleEN = trim(patch.TitleEN)

	if patch.Slug != nil && !utils.IsValidSlug(*patch.Slug) {
		return nil, apperrors.InvalidArgument("slug may only contain lowercase letters, numbers and hyphens")
	}
	if (patch.TitleTH != nil && *patch.TitleTH == "") || (patch.TitleEN != nil && *patch.TitleEN == "") {
		return nil, apperrors.InvalidArgument("titles cannot be empty")
	}

	c, err := s.categories.Update(ctx, id, patch, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *Catalog) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListQuestions returns one page of questions. Zero page or limit take defaults.
func (s *Catalog) ListQuestions(ctx context.Context, filter models.QuestionFilter) (*models.QuestionPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.SortBy == "" {
		filter.SortBy = "createdAt"
	}
	if !utils.IsValidSortField(filter.SortBy) {
		return nil, apperrors.InvalidArgument(fmt.Sprintf("cannot sort by %q", filter.SortBy))
	}

	questions, total, err := s.questions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &models.QuestionPage{
		Data: questions,
		Meta: models.PageMeta{
			Total:      total,
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		},
	}, nil
}

func (s *Catalog) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	return s.questions.Get(ctx, id)
}

func (s *Catalog) CreateQuestion(ctx context.Context, req models.CreateQuestionRequest) (*models.Question, error) {
	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		return nil, apperrors.InvalidArgument("categoryId is required")
	}
	q, err := newQuestion(req.ContentTH, req.ContentEN, s.now().UTC())
	if err != nil {
		return nil, err
	}
	batch := []models.Question{q}
	if err := s.questions.Create(ctx, categoryID, batch); err != nil {
		return nil, err
	}
	return &batch[0], nil
}

// ImportQuestions adds a batch to one category. Creation times are staggered
// by a millisecond so the batch keeps its order when sorted by createdAt.
func (s *Catalog) ImportQuestions(ctx context.Context, req models.BatchImportRequest) (int, error) {
	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" {
		return 0, apperrors.InvalidArgument("categoryId is required")
	}
	if len(req.Questions) == 0 {
		return 0, apperrors.InvalidArgument("no questions to import")
	}

	base := s.now().UTC()
	batch := make([]models.Question, 0, len(req.Questions))
	for i, content := range req.Questions {
		q, err := newQuestion(content.ContentTH, content.ContentEN, base.Add(time.Duration(i)*time.Millisecond))
		if err != nil {
			return 0, apperrors.InvalidArgument(fmt.Sprintf("question %d: %s", i+1, err.Error()))
		}
		batch = append(batch, q)
	}
	if err := s.questions.Create(ctx, categoryID, batch); err != nil {
		return 0, err
	}
	s.log.Info("questions imported", "category_id", categoryID, "count", len(batch))
	return len(batch), nil
}

func (s *Catalog) UpdateQuestion(ctx context.Context, id string, req models.UpdateQuestionRequest) (*models.Question, error) {
	q, err := s.questions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		categoryID := strings.TrimSpace(*req.CategoryID)
		if categoryID == "" {
			return nil, apperrors.InvalidArgument("categoryId cannot be empty")
		}
		q.CategoryID = categoryID
	}
	if req.ContentTH != nil {
		q.ContentTH = strings.TrimSpace(*req.ContentTH)
	}
	if req.ContentEN != nil {
		q.ContentEN = strings.TrimSpace(*req.ContentEN)
	}
	if q.ContentTH == "" && q.ContentEN == "" {
		return nil, apperrors.InvalidArgument("at least one of content_th or content_en is required")
	}
	at := s.now().UTC()
	q.UpdatedAt = &at

	if err := s.questions.Update(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQuestions removes questions by id and reports how many existed.
func (s *Catalog) DeleteQuestions(ctx context.Context, ids []string) (int64, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		return 0, apperrors.InvalidArgument("no question ids given")
	}
	return s.questions.Delete(ctx, cleaned)
}

// DeleteQuestion removes a single question, failing with NotFound if it is absent.
func (s *Catalog) DeleteQuestion(ctx context.Context, id string) error {
	n, err := s.DeleteQuestions(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("question")
	}
	return nil
}

func newQuestion(contentTH, contentEN string, createdAt time.Time) (models.Question, error) {
	contentTH, contentEN = strings.TrimSpace(contentTH), strings.TrimSpace(contentEN)
	if contentTH == "" && contentEN == "" {
		return models.Question{}, apperrors.InvalidArgument("at least one of content_th or content_en is required")
	}
	return models.Question{
		ID:        uuid.NewString(),
		ContentTH: contentTH,
		ContentEN: contentEN,
		CreatedAt: createdAt,
	}, nil
}

func (s *Catalog) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("category cache invalidation failed", "error", err)
	}
}
