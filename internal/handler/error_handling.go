package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bestiary-server/internal/models"
)

// operation определяет тексты ошибок конкретного эндпоинта.
type operation int

const (
	opGenerate operation = iota
	opList
	opGet
	opImage
	opDelete
	opRename
)

var errMissingToken = errors.New("authorization header missing")

// Тексты, которые видят клиенты при внутренних ошибках.
var internalMessages = map[operation]string{
	opGenerate: "Failed to generate monster and image",
	opList:     "Error fetching monsters",
	opGet:      "Error fetching monster",
	opImage:    "Error fetching image",
	opDelete:   "Failed to delete monster",
	opRename:   "Error updating monster",
}

func handleServiceError(c *gin.Context, op operation, err error) {
	var (
		statusCode int
		message    string
	)

	switch {
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, models.ErrRateLimited):
		statusCode = http.StatusTooManyRequests
		message = "Generation rate limit exceeded, try again later"
	case errors.Is(err, models.ErrNotFound) && op == opImage:
		statusCode = http.StatusNotFound
		message = "Image not found"
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		message = "Monster not found"
	case errors.Is(err, models.ErrForbidden) && op == opDelete:
		statusCode = http.StatusForbidden
		message = "Unauthorized to delete this monster"
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "Admin privileges required"
	default:
		// Вид ошибки генерации уже залогирован конвейером, клиенту уходит общий текст
		if op != opGenerate {
			zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		}
		statusCode = http.StatusInternalServerError
		message = internalMessages[op]
	}

	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: message})
}

func handleAuthError(c *gin.Context, err error) {
	message := "Unauthorized: Invalid token"
	switch {
	case errors.Is(err, errMissingToken):
		message = "Unauthorized: Missing token"
	case errors.Is(err, models.ErrTokenExpired):
		message = "Unauthorized: Token expired"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: message})
}

// generationStatus - метка метрики для неудачной генерации.
func generationStatus(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	default:
		return "failure"
	}
}
