package models

import "context"

// StatusEvent - событие успешного перехода статуса заявки.
// Испускается сервисами после фиксации транзакции, одно событие на переход.
type StatusEvent struct {
	RequestID          string        `json:"requestId"`
	FromStatus         RequestStatus `json:"fromStatus"`
	ToStatus           RequestStatus `json:"toStatus"`
	ActorID            *string       `json:"actorId"`
	CounterpartyUserID string        `json:"counterpartyUserId,omitempty"`
	Note               string        `json:"note,omitempty"`
}

// EventSink получает события переходов. Реализуется внешними потребителями:
// диспетчером уведомлений и инициализатором чата по заявке.
type EventSink interface {
	Publish(ctx context.Context, event StatusEvent)
}
