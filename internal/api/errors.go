package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leaselink/leaselink/internal/models"
	"go.uber.org/zap"
)

// respondError maps the engine error kinds onto HTTP statuses. The three
// domain kinds carry caller-safe messages and pass through verbatim;
// anything else is an internal failure that gets logged and hidden
// behind a generic 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
