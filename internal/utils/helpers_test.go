package utils

import (
	"testing"

	"github.com/senyabanana/marketplace-service/internal/models"

	"github.com/stretchr/testify/require"
)

func TestParseLimitOffset(t *testing.T) {
	tests := []struct {
		name      string
		limitStr  string
		offsetStr string
		limit     int
		offset    int
		wantErr   bool
	}{
		{name: "defaults", limitStr: "", offsetStr: "", limit: 5, offset: 0},
		{name: "explicit values", limitStr: "20", offsetStr: "10", limit: 20, offset: 10},
		{name: "limit too large", limitStr: "51", wantErr: true},
		{name: "limit zero", limitStr: "0", wantErr: true},
		{name: "limit not a number", limitStr: "abc", wantErr: true},
		{name: "negative offset", limitStr: "5", offsetStr: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset, err := ParseLimitOffset(tt.limitStr, tt.offsetStr)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.limit, limit)
			require.Equal(t, tt.offset, offset)
		})
	}
}

func TestIsEligible(t *testing.T) {
	baseProvider := func() *models.ProviderProfile {
		return &models.ProviderProfile{
			ID:             "provider-1",
			UserID:         "user-1",
			City:           "Moscow",
			AcceptsUrgent:  false,
			SubcategoryIDs: []string{"plumbing", "electrics"},
		}
	}
	baseRequest := func() *models.ServiceRequest {
		return &models.ServiceRequest{
			SubcategoryID: "plumbing",
			City:          "Moscow",
			Type:          models.CompetitiveRequest,
		}
	}

	tests := []struct {
		name    string
		mutate  func(p *models.ProviderProfile, r *models.ServiceRequest)
		nilProv bool
		want    bool
	}{
		{name: "full match", mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) {}, want: true},
		{name: "nil provider", nilProv: true, want: false},
		{
			name:   "subcategory mismatch",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { r.SubcategoryID = "painting" },
			want:   false,
		},
		{
			name:   "city mismatch",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { r.City = "Kazan" },
			want:   false,
		},
		{
			name:   "city is case sensitive",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { r.City = "moscow" },
			want:   false,
		},
		{
			name:   "empty request city matches any provider",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { r.City = "" },
			want:   true,
		},
		{
			name:   "empty provider city matches any request",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { p.City = "  " },
			want:   true,
		},
		{
			name:   "urgent requires accepts_urgent",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) { r.Type = models.UrgentRequest },
			want:   false,
		},
		{
			name: "urgent with accepts_urgent",
			mutate: func(p *models.ProviderProfile, r *models.ServiceRequest) {
				r.Type = models.UrgentRequest
				p.AcceptsUrgent = true
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := baseProvider()
			request := baseRequest()
			if tt.mutate != nil {
				tt.mutate(provider, request)
			}
			if tt.nilProv {
				provider = nil
			}
			require.Equal(t, tt.want, IsEligible(provider, request))
		})
	}
}

func TestStatusGroup(t *testing.T) {
	tests := []struct {
		group   string
		want    []models.RequestStatus
		wantErr bool
	}{
		{group: "", want: nil},
		{group: "new", want: []models.RequestStatus{models.NewRequest, models.SentRequest}},
		{group: "in_progress", want: []models.RequestStatus{models.AcceptedRequest, models.InProgressRequest}},
		{group: "completed", want: []models.RequestStatus{models.CompletedRequest}},
		{group: "cancelled", want: []models.RequestStatus{models.CancelledRequest, models.ExpiredRequest}},
		{group: "canceled", want: []models.RequestStatus{models.CancelledRequest, models.ExpiredRequest}},
		{group: " Completed ", want: []models.RequestStatus{models.CompletedRequest}},
		{group: "archived", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("group "+tt.group, func(t *testing.T) {
			statuses, err := StatusGroup(tt.group)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, statuses)
		})
	}
}
