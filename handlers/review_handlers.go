package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/middleware"
	"cardtalk/api/models"
	"cardtalk/api/services"
)

type ReviewHandlers struct {
	Reviews *services.Reviews
	Log     *logger.Logger
}

func NewReviewHandlers(reviews *services.Reviews, log *logger.Logger) *ReviewHandlers {
	return &ReviewHandlers{Reviews: reviews, Log: log}
}

func (h *ReviewHandlers) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	reviews, err := h.Reviews.List(ctx, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// Submit adds the logged-in member's review to a category.
func (h *ReviewHandlers) Submit(c *gin.Context) {
	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	claims, _ := middleware.Claims(c)

	ctx, cancel := requestContext(c)
	defer cancel()

	review, agg, err := h.Reviews.Submit(ctx, services.ReviewInput{
		CategoryID: c.Param("id"),
		Rating:     req.Rating,
		Comment:    req.Comment,
		UserID:     claims.Subject,
		UserName:   claims.Name,
	})
	if err != nil {
		respondError(c, h.Log, err, "Failed to submit review")
		return
	}
	c.JSON(http.StatusCreated, success(gin.H{
		"review":        review,
		"totalReviews":  agg.TotalReviews,
		"averageRating": agg.AverageRating,
	}))
}

func (h *ReviewHandlers) Delete(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	agg, err := h.Reviews.Delete(ctx, c.Param("categoryId"), c.Param("reviewId"))
	if err != nil {
		respondError(c, h.Log, err, "Failed to delete review")
		return
	}
	c.JSON(http.StatusOK, success(gin.H{
		"totalReviews":  agg.TotalReviews,
		"averageRating": agg.AverageRating,
	}))
}
