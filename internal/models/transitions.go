package models

import "net/http"

// transitionTable описывает допустимые переходы статусов заявки.
var transitionTable = map[RequestStatus]map[RequestAction]RequestStatus{
	NewRequest: {
		SendAction:   SentRequest,
		AcceptAction: AcceptedRequest,
		CancelAction: CancelledRequest,
		ExpireAction: ExpiredRequest,
	},
	SentRequest: {
		AcceptAction: AcceptedRequest,
		CancelAction: CancelledRequest,
		ExpireAction: ExpiredRequest,
	},
	AcceptedRequest: {
		StartAction:  InProgressRequest,
		CancelAction: CancelledRequest,
	},
	InProgressRequest: {
		CompleteAction: CompletedRequest,
	},
}

// NextStatus возвращает новый статус для пары (текущий статус, действие).
func NextStatus(current RequestStatus, action RequestAction) (RequestStatus, error) {
	next, ok := transitionTable[current][action]
	if !ok {
		return "", NewInvalidTransition("cannot " + string(action) + " a request in status " + string(current))
	}
	return next, nil
}

// IsTerminal возвращает true, если из статуса нет ни одного перехода.
func IsTerminal(status RequestStatus) bool {
	return len(transitionTable[status]) == 0
}

// ValidStatus проверяет, что строка является известным статусом заявки.
func ValidStatus(status RequestStatus) bool {
	switch status {
	case NewRequest, SentRequest, AcceptedRequest, InProgressRequest, CompletedRequest, CancelledRequest, ExpiredRequest:
		return true
	}
	return false
}

// ValidType проверяет, что строка является известным типом размещения.
func ValidType(t RequestType) bool {
	switch t {
	case NormalRequest, CompetitiveRequest, UrgentRequest:
		return true
	}
	return false
}

// NewInvalidTransition создает ошибку недопустимого перехода статуса.
func NewInvalidTransition(message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: http.StatusBadRequest, Kind: KindInvalidTransition, Message: message}
}
