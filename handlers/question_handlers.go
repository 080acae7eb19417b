package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/models"
	"cardtalk/api/services"
)

type QuestionHandlers struct {
	Catalog *services.Catalog
	Log     *logger.Logger
}

func NewQuestionHandlers(catalog *services.Catalog, log *logger.Logger) *QuestionHandlers {
	return &QuestionHandlers{Catalog: catalog, Log: log}
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// List serves ?categoryId=&search=&sortBy=&order=asc|desc&page=&limit=.
func (h *QuestionHandlers) List(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	filter := models.QuestionFilter{
		CategoryID: c.Query("categoryId"),
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		SortDesc:   c.DefaultQuery("order", "asc") == "desc",
		Page:       page,
		Limit:      limit,
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	result, err := h.Catalog.ListQuestions(ctx, filter)
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch questions")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *QuestionHandlers) Create(c *gin.Context) {
	var req models.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "categoryId is required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	q, err := h.Catalog.CreateQuestion(ctx, req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to create question")
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (h *QuestionHandlers) Update(c *gin.Context) {
	var req models.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	q, err := h.Catalog.UpdateQuestion(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to update question")
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *QuestionHandlers) Delete(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Catalog.DeleteQuestion(ctx, c.Param("id")); err != nil {
		respondError(c, h.Log, err, "Failed to delete question")
		return
	}
	c.JSON(http.StatusOK, success(nil))
}

// BatchImport adds questions parsed client-side from a spreadsheet.
func (h *QuestionHandlers) BatchImport(c *gin.Context) {
	var req models.BatchImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "categoryId and a non-empty questions list are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Catalog.ImportQuestions(ctx, req)
	if err != nil {
		respondError(c, h.Log, err, "Failed to import questions")
		return
	}
	c.JSON(http.StatusCreated, success(gin.H{"count": n}))
}

func (h *QuestionHandlers) BatchDelete(c *gin.Context) {
	var req models.BatchDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids must be a non-empty list"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	n, err := h.Catalog.DeleteQuestions(ctx, req.IDs)
	if err != nil {
		respondError(c, h.Log, err, "Failed to delete questions")
		return
	}
	c.JSON(http.StatusOK, success(gin.H{"deleted": n}))
}
