package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/models"
	"cardtalk/api/services"
)

type CategoryHandlers struct {
	Catalog  *services.Catalog
	Counters *services.Counters
	Log      *logger.Logger
}

func NewCategoryHandlers(catalog *services.Catalog, counters *services.Counters, log *logger.Logger) *CategoryHandlers {
	return &CategoryHandlers{Catalog: catalog, Counters: counters, Log: log}
}

func (h *CategoryHandlers) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *CategoryHandlers) Get(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.Catalog.GetCategory(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch category")
		return
	}
	c.JSON(http.StatusOK, category)
}

// Play counts a deck being opened. It never fails the caller.
func (h *CategoryHandlers) Play(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Counters.RecordVisit(ctx, c.Param("id")); err != nil {
		h.Log.Warn("visit count not recorded", "category_id", c.Param("id"), "error", err)
	}
	c.JSON(http.StatusOK, success(nil))
}

// Complete counts a deck being played through. It never fails the caller.
func (h *CategoryHandlers) Complete(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Counters.RecordCompletion(ctx, c.Param("id")); err != nil {
		h.Log.Warn("play count not recorded", "category_id", c.Param("id"), "error", err)
	}
	c.JSON(http.StatusOK, success(nil))
}

func (h *CategoryHandlers) Create(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Slug, Thai title and English title are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.Catalog.CreateCategory(ctx, req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to create category")
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandlers) Update(c *gin.Context) {
	var patch models.CategoryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	category, err := h.Catalog.UpdateCategory(ctx, c.Param("id"), patch)
	if err != nil {
		respondError(c, h.Log, err, "Failed to update category")
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *CategoryHandlers) Delete(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.DeleteCategory(ctx, c.Param("id")); err != nil {
		respondError(c, h.Log, err, "Failed to delete category")
		return
	}
	c.JSON(http.StatusOK, success(nil))
}

// Stats lists categories with review figures recomputed from the reviews.
func (h *CategoryHandlers) Stats(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.Catalog.CategoryReviewStats(ctx)
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch category stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
