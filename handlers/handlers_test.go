package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardtalk/api/logger"
	"cardtalk/api/middleware"
	"cardtalk/api/models"
	"cardtalk/api/services"
	"cardtalk/api/store/memstore"
	"cardtalk/api/utils"
)

var testSecret = []byte("handlers-test-secret")

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

type testEnv struct {
	router *gin.Engine
	store  *memstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New()
	log := logger.Nop()
	counters := services.NewCounters(st.Questions(), st.Categories())
	deps := Deps{
		Auth:           services.NewAuth(st.Users(), services.LockoutPolicy{Enabled: true, MaxAttempts: 5, Duration: 10 * time.Minute}, log),
		Recorder:       services.NewRecorder(st.Questions(), counters, st.Interactions(), log),
		Counters:       counters,
		Reviews:        services.NewReviews(st.Reviews(), nil, log),
		Catalog:        services.NewCatalog(st.Categories(), st.Questions(), nil, log),
		Analytics:      services.NewAnalytics(st.Questions(), st.Categories(), true),
		DB:             fakePinger{},
		JWTSecret:      testSecret,
		FrontendOrigin: "http://localhost:3000",
		Log:            log,
	}

	ctx := context.Background()
	require.NoError(t, st.Categories().Create(ctx, &models.Category{ID: "couples", Slug: "couples", TitleTH: "คู่รัก", TitleEN: "Couples", CreatedAt: time.Now()}))
	require.NoError(t, st.Questions().Create(ctx, "couples", []models.Question{{ID: "q1", ContentEN: "What made you smile today?", CreatedAt: time.Now()}}))

	return &testEnv{router: NewRouter(deps), store: st}
}

func sessionCookie(t *testing.T, kind, subject, name string) *http.Cookie {
	t.Helper()
	claims := utils.Claims{Kind: kind, Name: name}
	if kind == utils.KindMember {
		claims.Email = subject
	}
	claims.Subject = subject
	token, err := utils.GenerateJWT(testSecret, claims, time.Hour)
	require.NoError(t, err)
	cookie := middleware.AdminCookie
	if kind == utils.KindMember {
		cookie = middleware.MemberCookie
	}
	return &http.Cookie{Name: cookie, Value: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestTrackInteraction(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/questions/track", gin.H{"questionId": "q1", "action": "skip", "sessionId": "s1"},
		sessionCookie(t, utils.KindMember, "m@x.io", "M"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	events := env.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "m@x.io", events[0].UserID)

	q, err := env.store.Questions().Get(context.Background(), "q1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, q.SkipCount)
	assert.EqualValues(t, -2, q.PopularityScore)

	w = env.do(t, http.MethodPost, "/api/questions/track", gin.H{"questionId": "q1", "action": "like"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[map[string]string](t, w)["error"], "view")

	w = env.do(t, http.MethodPost, "/api/questions/track", gin.H{"action": "view"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/questions/track", gin.H{"questionId": "ghost", "action": "view"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "question not found", decode[map[string]string](t, w)["error"])
}

func TestReviewFlow(t *testing.T) {
	env := newTestEnv(t)
	member := sessionCookie(t, utils.KindMember, "m@x.io", "Mali")
	admin := sessionCookie(t, utils.KindAdmin, "root", "root")

	w := env.do(t, http.MethodPost, "/api/categories/couples/reviews", gin.H{"rating": 5})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/categories/couples/reviews", gin.H{"rating": 5}, admin)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "admin cookie is not a member session")

	w = env.do(t, http.MethodPost, "/api/categories/couples/reviews", gin.H{"rating": 9}, member)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/categories/ghost/reviews", gin.H{"rating": 4}, member)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var reviewIDs []string
	for _, rating := range []int{5, 3, 4} {
		w = env.do(t, http.MethodPost, "/api/categories/couples/reviews", gin.H{"rating": rating, "comment": "fun"}, member)
		require.Equal(t, http.StatusCreated, w.Code)
		body := decode[struct {
			Review        models.Review `json:"review"`
			TotalReviews  int64         `json:"totalReviews"`
			AverageRating float64       `json:"averageRating"`
		}](t, w)
		assert.Equal(t, "Mali", body.Review.UserName)
		assert.Equal(t, "m@x.io", body.Review.UserID)
		reviewIDs = append(reviewIDs, body.Review.ID)
	}

	w = env.do(t, http.MethodGet, "/api/categories/couples", nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := decode[models.Category](t, w)
	assert.EqualValues(t, 3, c.TotalReviews)
	assert.InDelta(t, 4.0, c.AverageRating, 1e-9)

	w = env.do(t, http.MethodDelete, "/api/admin/reviews/couples/"+reviewIDs[1], nil, member)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "member cookie does not open admin routes")

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/reviews/couples/"+reviewIDs[1], nil)
	req.Header.Set("Authorization", "Bearer "+member.Value)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	w = env.do(t, http.MethodDelete, "/api/admin/reviews/couples/"+reviewIDs[1], nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	agg := decode[models.RatingAggregate](t, w)
	assert.EqualValues(t, 2, agg.TotalReviews)
	assert.InDelta(t, 4.5, agg.AverageRating, 1e-9)

	w = env.do(t, http.MethodDelete, "/api/admin/reviews/couples/"+reviewIDs[1], nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/categories/couples/reviews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Review](t, w), 2)
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := sessionCookie(t, utils.KindAdmin, "root", "root")

	for _, action := range []string{"view", "view", "skip", "view"} {
		w := env.do(t, http.MethodPost, "/api/questions/track", gin.H{"questionId": "q1", "action": action})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/admin/analytics/questions", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/admin/analytics/questions?categoryId=couples", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[models.AnalyticsReport](t, w)
	assert.EqualValues(t, 4, report.Summary.TotalViews)
	assert.Equal(t, 25.0, report.Summary.AvgSkipRate)
	require.Len(t, report.TopViewed, 1)
	assert.Equal(t, 25.0, report.TopViewed[0].SkipRate)
	assert.EqualValues(t, 1, report.TopViewed[0].PopularityScore)
	assert.Empty(t, report.HighestSkipRate, "4 impressions is below the threshold")

	w = env.do(t, http.MethodGet, "/api/admin/analytics/questions", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	report = decode[models.AnalyticsReport](t, w)
	require.Len(t, report.CategoryStats, 1)
	assert.Equal(t, "Couples", report.CategoryStats[0].CategoryName)
	assert.EqualValues(t, 4, report.CategoryStats[0].TotalViews)

	w = env.do(t, http.MethodGet, "/api/admin/analytics/questions?categoryId=ghost", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := sessionCookie(t, utils.KindAdmin, "root", "root")

	w := env.do(t, http.MethodPost, "/api/admin/categories", gin.H{"slug": "friends", "title_th": "เพื่อน", "title_en": "Friends"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/categories", gin.H{"slug": "friends", "title_th": "เพื่อน", "title_en": "Friends"}, admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/categories", gin.H{"slug": "friends", "title_th": "x", "title_en": "y"}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/categories", gin.H{"slug": "Bad Slug", "title_th": "x", "title_en": "y"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/categories", gin.H{"slug": "no-titles"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/categories/couples", gin.H{"slug": "lovers"}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lovers", decode[models.Category](t, w).ID)

	q, err := env.store.Questions().Get(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "lovers", q.CategoryID)

	w = env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Category](t, w), 2)

	w = env.do(t, http.MethodGet, "/api/admin/categories/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.CategoryReviewStats](t, w), 2)

	w = env.do(t, http.MethodDelete, "/api/admin/categories/friends", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/admin/categories/friends", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryTelemetryNeverFails(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/categories/couples/play", "/api/categories/couples/complete", "/api/categories/ghost/play"} {
		w := env.do(t, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"success":true}`, w.Body.String())
	}

	c, err := env.store.Categories().Get(context.Background(), "couples")
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.VisitCount)
	assert.EqualValues(t, 1, c.PlayCount)
}

func TestQuestionAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := sessionCookie(t, utils.KindAdmin, "root", "root")

	w := env.do(t, http.MethodPost, "/api/admin/questions/batch", gin.H{
		"categoryId": "couples",
		"questions":  []gin.H{{"content_en": "First"}, {"content_th": "สอง", "content_en": "Second"}},
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"count":2}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/admin/questions", gin.H{"categoryId": "couples"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/questions", gin.H{"categoryId": "couples", "content_en": "Third"}, admin)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[models.Question](t, w)

	w = env.do(t, http.MethodGet, "/api/questions?categoryId=couples&limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.QuestionPage](t, w)
	assert.Equal(t, models.PageMeta{Total: 4, Page: 2, Limit: 2, TotalPages: 2}, page.Meta)

	w = env.do(t, http.MethodGet, "/api/questions?search=second", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[models.QuestionPage](t, w).Meta.Total)

	w = env.do(t, http.MethodGet, "/api/questions?page=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/api/admin/questions/"+created.ID, gin.H{"content_th": "สาม"}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "สาม", decode[models.Question](t, w).ContentTH)

	w = env.do(t, http.MethodDelete, "/api/admin/questions/"+created.ID, nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/admin/questions/"+created.ID, nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/admin/questions/batch", gin.H{"ids": []string{"q1", "missing"}}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"deleted":1}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/admin/questions/batch", gin.H{"ids": []string{}}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/members/register", gin.H{"email": "not-an-email", "password": "password1", "displayName": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/members/register", gin.H{"email": "ploy@example.com", "password": "password1", "displayName": "Ploy"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/members/register", gin.H{"email": "ploy@example.com", "password": "password1", "displayName": "Ploy"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/members/login", gin.H{"email": "ploy@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/members/login", gin.H{"email": "ploy@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, w.Code)
	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.MemberCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, 7*24*60*60, session.MaxAge)

	w = env.do(t, http.MethodGet, "/api/members/me", nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authenticated":true,"member":{"email":"ploy@example.com","displayName":"Ploy"}}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "root", "password": "whatever"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, session)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/members/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.MemberCookie {
			assert.Less(t, c.MaxAge, 0)
		}
	}
}

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/ok", Health(fakePinger{}))
	r.GET("/down", Health(fakePinger{err: errors.New("connection refused")}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRespondError_HidesStorageErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		respondError(c, logger.Nop(), errors.New("pq: connection reset"), "Failed to fetch things")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch things"}`, w.Body.String())
}
