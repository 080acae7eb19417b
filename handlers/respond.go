package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"cardtalk/api/apperrors"
	"cardtalk/api/logger"
)

const requestTimeout = 10 * time.Second

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes {"error": ...} with the status for err's kind. Storage
// failures are logged and reported as fallback.
func respondError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindUnavailable {
		log.Error(fallback, "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(apperrors.HTTPStatus(apperrors.KindUnavailable), gin.H{"error": fallback})
		return
	}
	c.JSON(apperrors.HTTPStatus(appErr.Kind), gin.H{"error": appErr.Message})
}

func success(extra gin.H) gin.H {
	body := gin.H{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	return body
}
