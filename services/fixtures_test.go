package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cardtalk/api/models"
	"cardtalk/api/store/memstore"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedCategory(t *testing.T, st *memstore.Store, id string) {
	t.Helper()
	err := st.Categories().Create(context.Background(), &models.Category{
		ID:        id,
		Slug:      id,
		TitleTH:   "หมวด " + id,
		TitleEN:   "Deck " + id,
		CreatedAt: baseTime,
	})
	require.NoError(t, err)
}

func seedQuestion(t *testing.T, st *memstore.Store, categoryID, id string, views, skips, popularity int64) {
	t.Helper()
	q := models.Question{ID: id, ContentEN: "question " + id, CreatedAt: baseTime}
	require.NoError(t, st.Questions().Create(context.Background(), categoryID, []models.Question{q}))
	if views == 0 && skips == 0 && popularity == 0 {
		return
	}
	_, err := st.Questions().ApplyInteraction(context.Background(), id,
		models.CounterDelta{Views: views, Skips: skips, Popularity: popularity}, baseTime, SkipStats)
	require.NoError(t, err)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
