package services

import (
	"context"
	"testing"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newOfferTestServices(clock *testClock) (*RequestService, *OfferService, *captureSink) {
	store := repository.NewMemoryStore(clock.Now)
	sink := &captureSink{}
	requestService := NewRequestService(store, sink, 15*time.Minute)
	requestService.now = clock.Now
	return requestService, NewOfferService(store, store, sink), sink
}

func competitiveInput(clientId string) models.CreateRequestInput {
	return models.CreateRequestInput{
		ClientID:      clientId,
		SubcategoryID: "plumbing",
		Title:         "bathroom renovation",
		Description:   "full replacement of pipes and fixtures",
		Type:          models.CompetitiveRequest,
		City:          "Moscow",
	}
}

func bid(price int64, days int) models.OfferInput {
	return models.OfferInput{Price: decimal.NewFromInt(price), DurationDays: days}
}

func TestSubmitOfferValidation(t *testing.T) {
	clock := newTestClock()
	requestService, offerService, _ := newOfferTestServices(clock)
	ctx := context.Background()

	request, err := requestService.CreateRequest(ctx, competitiveInput("client-1"))
	require.NoError(t, err)

	provider := providerActor("p1", true)

	t.Run("requires a provider profile", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, request.ID, &models.Actor{UserID: "client-2"}, bid(200, 3))
		requireKind(t, err, models.KindForbidden)
	})

	t.Run("rejects non-positive price", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, request.ID, provider, bid(0, 3))
		requireKind(t, err, models.KindValidation)
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, request.ID, provider, bid(200, 0))
		requireKind(t, err, models.KindValidation)
	})

	t.Run("rejects ineligible provider", func(t *testing.T) {
		outsider := providerActor("p9", true)
		outsider.Provider.SubcategoryIDs = []string{"painting"}
		_, err := offerService.SubmitOffer(ctx, request.ID, outsider, bid(200, 3))
		requireKind(t, err, models.KindForbidden)
	})

	t.Run("rejects unknown request", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, "missing", provider, bid(200, 3))
		requireKind(t, err, models.KindNotFound)
	})

	t.Run("rejects non-competitive request", func(t *testing.T) {
		urgent, err := requestService.CreateRequest(ctx, urgentInput("client-1"))
		require.NoError(t, err)
		_, err = offerService.SubmitOffer(ctx, urgent.ID, provider, bid(200, 3))
		requireKind(t, err, models.KindInvalidTransition)
	})

	t.Run("rejects a duplicate offer from the same provider", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, request.ID, provider, bid(200, 3))
		require.NoError(t, err)
		_, err = offerService.SubmitOffer(ctx, request.ID, provider, bid(180, 2))
		requireKind(t, err, models.KindConflict)
	})
}

func TestAcceptOfferExclusivity(t *testing.T) {
	clock := newTestClock()
	requestService, offerService, sink := newOfferTestServices(clock)
	ctx := context.Background()

	client := &models.Actor{UserID: "client-1"}
	p1 := providerActor("p1", true)
	p2 := providerActor("p2", true)

	request, err := requestService.CreateRequest(ctx, competitiveInput("client-1"))
	require.NoError(t, err)

	offer1, err := offerService.SubmitOffer(ctx, request.ID, p1, bid(200, 3))
	require.NoError(t, err)
	offer2, err := offerService.SubmitOffer(ctx, request.ID, p2, bid(180, 4))
	require.NoError(t, err)
	require.Equal(t, models.PendingOffer, offer1.Status)
	require.Equal(t, models.PendingOffer, offer2.Status)

	t.Run("only the owner selects", func(t *testing.T) {
		_, err := offerService.AcceptOffer(ctx, offer2.ID, &models.Actor{UserID: "client-2"})
		requireKind(t, err, models.KindForbidden)
	})

	accepted, err := offerService.AcceptOffer(ctx, offer2.ID, client)
	require.NoError(t, err)
	require.Equal(t, models.AcceptedRequest, accepted.Status)
	require.Equal(t, p2.Provider.ID, *accepted.ProviderID)

	selected, err := offerService.Offers.GetOfferById(ctx, offer2.ID)
	require.NoError(t, err)
	require.Equal(t, models.SelectedOffer, selected.Status)

	rejected, err := offerService.Offers.GetOfferById(ctx, offer1.ID)
	require.NoError(t, err)
	require.Equal(t, models.RejectedOffer, rejected.Status)

	t.Run("a second selection is rejected", func(t *testing.T) {
		_, err := offerService.AcceptOffer(ctx, offer1.ID, client)
		requireKind(t, err, models.KindInvalidTransition)
	})

	t.Run("bidding closes with the request", func(t *testing.T) {
		_, err := offerService.SubmitOffer(ctx, request.ID, providerActor("p3", true), bid(150, 5))
		requireKind(t, err, models.KindInvalidTransition)
	})

	events := sink.all()
	last := events[len(events)-1]
	require.Equal(t, models.SentRequest, last.FromStatus)
	require.Equal(t, models.AcceptedRequest, last.ToStatus)
}

func TestListOffersAccess(t *testing.T) {
	clock := newTestClock()
	requestService, offerService, _ := newOfferTestServices(clock)
	ctx := context.Background()

	request, err := requestService.CreateRequest(ctx, competitiveInput("client-1"))
	require.NoError(t, err)

	_, err = offerService.SubmitOffer(ctx, request.ID, providerActor("p1", true), bid(200, 3))
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = offerService.SubmitOffer(ctx, request.ID, providerActor("p2", true), bid(180, 4))
	require.NoError(t, err)

	_, err = offerService.ListOffers(ctx, request.ID, providerActor("p1", true), "", "")
	requireKind(t, err, models.KindForbidden)

	offers, err := offerService.ListOffers(ctx, request.ID, &models.Actor{UserID: "client-1"}, "", "")
	require.NoError(t, err)
	require.Len(t, offers, 2)
	// Новые предложения первыми.
	require.Equal(t, "p2", offers[0].ProviderID)

	offers, err = offerService.ListOffers(ctx, request.ID, &models.Actor{UserID: "ops", IsStaff: true}, "", "")
	require.NoError(t, err)
	require.Len(t, offers, 2)
}
