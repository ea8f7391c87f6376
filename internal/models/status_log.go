package models

import "time"

// RequestStatusLog представляет запись журнала смены статуса заявки.
// Журнал только пополняется, записи никогда не изменяются и не удаляются.
type RequestStatusLog struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"requestId"`
	ActorID    *string       `json:"actorId"` // nil для системных переходов
	FromStatus RequestStatus `json:"fromStatus"`
	ToStatus   RequestStatus `json:"toStatus"`
	Note       string        `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}
