package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allStatuses = []RequestStatus{
	NewRequest, SentRequest, AcceptedRequest, InProgressRequest,
	CompletedRequest, CancelledRequest, ExpiredRequest,
}

var allActions = []RequestAction{
	SendAction, AcceptAction, StartAction, CompleteAction, CancelAction, ExpireAction,
}

func TestNextStatusLegalTransitions(t *testing.T) {
	tests := []struct {
		from   RequestStatus
		action RequestAction
		to     RequestStatus
	}{
		{NewRequest, SendAction, SentRequest},
		{NewRequest, AcceptAction, AcceptedRequest},
		{SentRequest, AcceptAction, AcceptedRequest},
		{NewRequest, CancelAction, CancelledRequest},
		{SentRequest, CancelAction, CancelledRequest},
		{AcceptedRequest, CancelAction, CancelledRequest},
		{AcceptedRequest, StartAction, InProgressRequest},
		{InProgressRequest, CompleteAction, CompletedRequest},
		{NewRequest, ExpireAction, ExpiredRequest},
		{SentRequest, ExpireAction, ExpiredRequest},
	}

	legal := make(map[RequestStatus]map[RequestAction]bool)
	for _, tt := range tests {
		next, err := NextStatus(tt.from, tt.action)
		require.NoError(t, err, "%s + %s", tt.from, tt.action)
		require.Equal(t, tt.to, next)

		if legal[tt.from] == nil {
			legal[tt.from] = make(map[RequestAction]bool)
		}
		legal[tt.from][tt.action] = true
	}

	// Все пары вне таблицы должны возвращать ошибку недопустимого перехода.
	for _, from := range allStatuses {
		for _, action := range allActions {
			if legal[from][action] {
				continue
			}
			_, err := NextStatus(from, action)
			require.Error(t, err, "%s + %s must be rejected", from, action)

			var response *ErrorResponse
			require.ErrorAs(t, err, &response)
			require.Equal(t, KindInvalidTransition, response.Kind)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range allStatuses {
		terminal := status == CompletedRequest || status == CancelledRequest || status == ExpiredRequest
		require.Equal(t, terminal, IsTerminal(status), "status %s", status)
	}
}

func TestValidStatusAndType(t *testing.T) {
	for _, status := range allStatuses {
		require.True(t, ValidStatus(status))
	}
	require.False(t, ValidStatus("unknown"))

	require.True(t, ValidType(NormalRequest))
	require.True(t, ValidType(CompetitiveRequest))
	require.True(t, ValidType(UrgentRequest))
	require.False(t, ValidType("broadcast"))
}
