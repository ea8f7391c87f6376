package services

import (
	"context"

	"github.com/senyabanana/marketplace-service/internal/models"

	"github.com/sirupsen/logrus"
)

// LogEventSink - приёмник событий по умолчанию: пишет переходы в журнал.
// Диспетчер уведомлений и инициализатор чата подключаются вместо него
// (или рядом с ним) на той же границе.
type LogEventSink struct {
	Logger *logrus.Logger
}

// NewLogEventSink создает новый экземпляр LogEventSink.
func NewLogEventSink(logger *logrus.Logger) *LogEventSink {
	return &LogEventSink{Logger: logger}
}

// Publish пишет событие перехода статуса в журнал.
func (s *LogEventSink) Publish(_ context.Context, event models.StatusEvent) {
	fields := logrus.Fields{
		"request_id":  event.RequestID,
		"from_status": event.FromStatus,
		"to_status":   event.ToStatus,
	}
	if event.ActorID != nil {
		fields["actor_id"] = *event.ActorID
	}
	if event.CounterpartyUserID != "" {
		fields["counterparty"] = event.CounterpartyUserID
	}
	s.Logger.WithFields(fields).Info("request status changed")
}
