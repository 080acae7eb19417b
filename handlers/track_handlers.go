package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cardtalk/api/logger"
	"cardtalk/api/middleware"
	"cardtalk/api/models"
	"cardtalk/api/services"
)

type TrackHandlers struct {
	Recorder  *services.Recorder
	Analytics *services.Analytics
	Log       *logger.Logger
}

func NewTrackHandlers(recorder *services.Recorder, analytics *services.Analytics, log *logger.Logger) *TrackHandlers {
	return &TrackHandlers{Recorder: recorder, Analytics: analytics, Log: log}
}

// TrackInteraction records a view or skip from the play screen.
func (h *TrackHandlers) TrackInteraction(c *gin.Context) {
	var req models.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	in := services.Interaction{
		QuestionID: req.QuestionID,
		Action:     models.Action(req.Action),
		SessionID:  req.SessionID,
		IPAddress:  c.ClientIP(),
	}
	if claims, ok := middleware.Claims(c); ok {
		in.UserID = claims.Subject
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Recorder.Record(ctx, in); err != nil {
		respondError(c, h.Log, err, "Failed to track interaction")
		return
	}
	c.JSON(http.StatusOK, success(nil))
}

// GetQuestionAnalytics serves the admin analytics report, scoped to a
// category when ?categoryId= is given.
func (h *TrackHandlers) GetQuestionAnalytics(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := h.Analytics.Report(ctx, c.Query("categoryId"))
	if err != nil {
		respondError(c, h.Log, err, "Failed to fetch analytics")
		return
	}
	c.JSON(http.StatusOK, report)
}
