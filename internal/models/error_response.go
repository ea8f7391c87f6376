package models

import "net/http"

// ErrorKind - закрытый набор видов ошибок ядра.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"          // Заявка или предложение не найдены
	KindForbidden         ErrorKind = "forbidden"          // Нет роли, связи или соответствия для действия
	KindInvalidTransition ErrorKind = "invalid_transition" // Действие недопустимо из текущего статуса
	KindConflict          ErrorKind = "conflict"           // Гонка проиграна: заявка уже занята
	KindExpired           ErrorKind = "expired"            // Срок срочной заявки истёк
	KindValidation        ErrorKind = "validation"         // Структурно некорректный ввод
)

// ErrorResponse описывает ошибку с кодом, видом и сообщением.
type ErrorResponse struct {
	StatusCode int       `json:"-"`
	Kind       ErrorKind `json:"-"`
	Message    string    `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

// NewNotFound создает ошибку отсутствующей заявки или предложения.
func NewNotFound(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

// NewForbidden создает ошибку отсутствия прав на действие.
func NewForbidden(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusForbidden, Kind: KindForbidden, Message: message}
}

// NewConflict создает ошибку проигранной гонки.
func NewConflict(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusConflict, Kind: KindConflict, Message: message}
}

// NewExpired создает ошибку истёкшей срочной заявки.
func NewExpired(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusBadRequest, Kind: KindExpired, Message: message}
}

// NewValidationError создает ошибку структурно некорректного ввода.
func NewValidationError(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusBadRequest, Kind: KindValidation, Message: message}
}
