package handlers

import (
	"errors"
	"net/http"

	"planora/internal/logger"
	"planora/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError пишет ответ для бизнес-ошибки, остальные ошибки отдаются как 500
func handleBusinessError(w http.ResponseWriter, r *http.Request, err error) {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		logger.Error("HTTP: Ошибка Service", err, zap.String("path", r.URL.Path))
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)
	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode),
		zap.String("path", r.URL.Path),
	)

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeConflict:
		return http.StatusConflict
	case service.CodeViewClosed:
		return http.StatusGone
	case service.CodeBackend:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
