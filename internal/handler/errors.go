package handler

import (
	"errors"
	"net/http"

	"billing-backend/internal/service"
	"billing-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// abortWithError translates service-layer errors into HTTP responses:
// validation failures carry field messages, stock and uniqueness
// conflicts map to 409, missing records to 404, the rest to 500.
func abortWithError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var stockErr *service.StockExceededError
	var conflictErr *service.ConflictError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, response.ValidationError(http.StatusBadRequest, "validation failed", verr.Fields))
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, stockErr.Error()))
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, response.Error(http.StatusConflict, conflictErr.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}

func currentUserID(c *gin.Context) string {
	userID, _ := c.Get("userID")
	id, _ := userID.(string)
	return id
}
