package service

import (
	"errors"
	"fmt"
	"net/http"

	"planora/internal/models/task"
	"planora/internal/repository"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeBackend    = "BACKEND_ERROR"
	CodeViewClosed = "VIEW_CLOSED"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewNotFound(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s не найден(а)", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

// NewBackendError оборачивает отказ бэкенда, исходная ошибка доступна через errors.Is
func NewBackendError(op string, err error) *BusinessError {
	return &BusinessError{
		Code:    CodeBackend,
		Message: fmt.Sprintf("бэкенд не выполнил %s", op),
		Details: map[string]any{
			"operation": op,
		},
		Err: err,
	}
}

// fromBackend переводит отказ бэкенда в код ошибки. Отказы по содержимому
// запроса отдаются клиенту, сбои связи и 5xx остаются BACKEND_ERROR.
func fromBackend(op string, err error) error {
	var apiErr *repository.APIError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newRejected(CodeNotFound, op, err.Error(), err)
	case errors.Is(err, repository.ErrConflict):
		return newRejected(CodeConflict, op, err.Error(), err)
	case errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusUnprocessableEntity):
		return newRejected(CodeValidation, op, apiErr.Detail, err)
	default:
		return NewBackendError(op, err)
	}
}

func newRejected(code, op, reason string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf("бэкенд отклонил %s: %s", op, reason),
		Details: map[string]any{
			"operation": op,
			"reason":    reason,
		},
		Err: err,
	}
}

func NewViewClosed(projectID string) *BusinessError {
	return &BusinessError{
		Code:    CodeViewClosed,
		Message: fmt.Sprintf("доска проекта %s закрыта", projectID),
		Details: map[string]any{
			"project_id": projectID,
		},
	}
}

// fromValidation переводит ошибку модели в бизнес-ошибку
func fromValidation(err error) error {
	var vErr *task.ValidationError
	if errors.As(err, &vErr) {
		return NewValidationError(vErr.Field, vErr.Reason)
	}
	return NewBusinessError(CodeValidation, err.Error())
}

func IsCode(err error, code string) bool {
	var busErr *BusinessError
	return errors.As(err, &busErr) && busErr.Code == code
}
