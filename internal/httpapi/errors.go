package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/wellness-engine/internal/common"
)

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor переводит ошибку движка в HTTP-статус и код ошибки.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrInsufficientFunds):
		return http.StatusBadRequest, "insufficient_funds"
	case errors.Is(err, common.ErrAlreadyOwned):
		return http.StatusConflict, "already_owned"
	case errors.Is(err, common.ErrAlreadyCompleted):
		return http.StatusConflict, "already_completed"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrInvalidAmount), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrWrongPassword):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrTooManyAttempts):
		return http.StatusTooManyRequests, "too_many_attempts"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError отвечает ошибкой. Внутренние ошибки логируются,
// а клиент получает только общий текст.
func writeError(c *gin.Context, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Ошибка обработки запроса")
		message = "внутренняя ошибка сервера"
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: code, Message: message})
}

// badRequest — некорректное тело запроса.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "invalid_input", Message: err.Error()})
}
