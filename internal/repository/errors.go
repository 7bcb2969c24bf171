package repository

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("не найдено")
var ErrConflict = errors.New("конфликт данных")

// APIError - ответ бэкенда вне 2xx, который не свёлся к sentinel-ошибке
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("бэкенд ответил %d", e.StatusCode)
	}
	return fmt.Sprintf("бэкенд ответил %d: %s", e.StatusCode, e.Detail)
}

// IsPermanent сообщает, что повтор запроса не изменит результат
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
	}
	return false
}
