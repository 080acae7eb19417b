package services

import (
	"context"

	"cardtalk/api/models"
)

// nopCache stands in when no Redis is configured.
type nopCache struct{}

func (nopCache) GetList(context.Context) ([]models.Category, bool, error) { return nil, false, nil }
func (nopCache) SetList(context.Context, []models.Category) error         { return nil }
func (nopCache) Invalidate(context.Context) error                         { return nil }
