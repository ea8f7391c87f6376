package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/repository"

	"github.com/stretchr/testify/require"
)

// testClock - управляемые часы для проверки ленивого истечения.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// captureSink накапливает опубликованные события переходов.
type captureSink struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (c *captureSink) Publish(_ context.Context, event models.StatusEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) all() []models.StatusEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.StatusEvent(nil), c.events...)
}

func newTestService(clock *testClock) (*RequestService, *captureSink) {
	sink := &captureSink{}
	service := NewRequestService(repository.NewMemoryStore(clock.Now), sink, 15*time.Minute)
	service.now = clock.Now
	return service, sink
}

func providerActor(id string, accepts bool) *models.Actor {
	return &models.Actor{
		UserID: "user-" + id,
		Provider: &models.ProviderProfile{
			ID:             id,
			UserID:         "user-" + id,
			City:           "Moscow",
			AcceptsUrgent:  accepts,
			SubcategoryIDs: []string{"plumbing"},
		},
	}
}

func urgentInput(clientId string) models.CreateRequestInput {
	return models.CreateRequestInput{
		ClientID:      clientId,
		SubcategoryID: "plumbing",
		Title:         "leaking pipe",
		Description:   "kitchen sink is leaking",
		Type:          models.UrgentRequest,
		City:          "Moscow",
	}
}

func requireKind(t *testing.T, err error, kind models.ErrorKind) {
	t.Helper()
	var response *models.ErrorResponse
	require.ErrorAs(t, err, &response)
	require.Equal(t, kind, response.Kind)
}

func TestCreateRequestValidation(t *testing.T) {
	service, _ := newTestService(newTestClock())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(input *models.CreateRequestInput)
	}{
		{name: "missing title", mutate: func(i *models.CreateRequestInput) { i.Title = "  " }},
		{name: "missing description", mutate: func(i *models.CreateRequestInput) { i.Description = "" }},
		{name: "missing subcategory", mutate: func(i *models.CreateRequestInput) { i.SubcategoryID = "" }},
		{name: "missing client", mutate: func(i *models.CreateRequestInput) { i.ClientID = "" }},
		{name: "unknown type", mutate: func(i *models.CreateRequestInput) { i.Type = "broadcast" }},
		{name: "normal without target", mutate: func(i *models.CreateRequestInput) { i.Type = models.NormalRequest }},
		{name: "competitive with target", mutate: func(i *models.CreateRequestInput) {
			i.Type = models.CompetitiveRequest
			i.TargetProviderID = "p1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := urgentInput("client-1")
			tt.mutate(&input)
			_, err := service.CreateRequest(ctx, input)
			requireKind(t, err, models.KindValidation)
		})
	}
}

func TestCreateUrgentRequestSetsDeadline(t *testing.T) {
	clock := newTestClock()
	service, sink := newTestService(clock)

	request, err := service.CreateRequest(context.Background(), urgentInput("client-1"))
	require.NoError(t, err)
	require.Equal(t, models.SentRequest, request.Status)
	require.True(t, request.IsUrgent)
	require.NotNil(t, request.ExpiresAt)
	require.Equal(t, clock.Now().Add(15*time.Minute), *request.ExpiresAt)

	events := sink.all()
	require.Len(t, events, 1)
	require.Equal(t, models.NewRequest, events[0].FromStatus)
	require.Equal(t, models.SentRequest, events[0].ToStatus)
}

func TestClaimExactlyOneWinner(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	request, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)

	const competitors = 16
	errs := make([]error, competitors)
	actors := make([]*models.Actor, competitors)
	for i := range actors {
		actors[i] = providerActor("p"+string(rune('a'+i)), true)
	}

	var wg sync.WaitGroup
	for i := 0; i < competitors; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Claim(ctx, request.ID, actors[i])
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "two claims succeeded")
			winner = i
			continue
		}
		requireKind(t, err, models.KindConflict)
	}
	require.NotEqual(t, -1, winner, "no claim succeeded")

	updated, err := service.Repo.GetRequestById(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.AcceptedRequest, updated.Status)
	require.NotNil(t, updated.ProviderID)
	require.Equal(t, actors[winner].Provider.ID, *updated.ProviderID)
}

func TestClaimRejectsCompetitiveRequests(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	input := urgentInput("client-1")
	input.Type = models.CompetitiveRequest
	request, err := service.CreateRequest(ctx, input)
	require.NoError(t, err)

	_, err = service.Claim(ctx, request.ID, providerActor("p1", true))
	requireKind(t, err, models.KindInvalidTransition)
}

func TestClaimDirectTargeting(t *testing.T) {
	clock := newTestClock()
	service, sink := newTestService(clock)
	ctx := context.Background()

	input := urgentInput("client-1")
	input.Type = models.NormalRequest
	input.TargetProviderID = "p1"
	request, err := service.CreateRequest(ctx, input)
	require.NoError(t, err)

	_, err = service.Claim(ctx, request.ID, providerActor("p2", true))
	requireKind(t, err, models.KindInvalidTransition)

	claimed, err := service.Claim(ctx, request.ID, providerActor("p1", true))
	require.NoError(t, err)
	require.Equal(t, models.AcceptedRequest, claimed.Status)
	require.Equal(t, "p1", *claimed.ProviderID)

	// Событие захвата несёт фактический статус до перехода.
	events := sink.all()
	last := events[len(events)-1]
	require.Equal(t, models.SentRequest, last.FromStatus)
	require.Equal(t, models.AcceptedRequest, last.ToStatus)
}

func TestClaimRequiresProviderProfile(t *testing.T) {
	service, _ := newTestService(newTestClock())
	_, err := service.Claim(context.Background(), "whatever", &models.Actor{UserID: "client-1"})
	requireKind(t, err, models.KindForbidden)
}

func TestUrgentRequestExpiry(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	service.UrgentLeadTime = time.Minute
	ctx := context.Background()

	request, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)

	provider := providerActor("p1", true)

	available, err := service.ListAvailable(ctx, provider, models.UrgentRequest, "", "")
	require.NoError(t, err)
	require.Len(t, available, 1)

	clock.Advance(2 * time.Minute)

	// Просроченная заявка пропадает из выдачи.
	available, err = service.ListAvailable(ctx, provider, models.UrgentRequest, "", "")
	require.NoError(t, err)
	require.Empty(t, available)

	// Списки уже перевели заявку в expired, захват отбивается как просроченный.
	_, err = service.Claim(ctx, request.ID, provider)
	requireKind(t, err, models.KindExpired)

	updated, err := service.Repo.GetRequestById(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExpiredRequest, updated.Status)
}

func TestClaimPersistsExpiryOnTouch(t *testing.T) {
	clock := newTestClock()
	store := repository.NewMemoryStore(clock.Now)
	ctx := context.Background()

	deadline := clock.Now().Add(time.Minute)
	request, err := store.CreateRequest(ctx, urgentInput("client-1"), true, &deadline)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	// Прямой захват просроченной заявки фиксирует expired в том же обращении.
	_, _, err = store.Claim(ctx, request.ID, providerActor("p1", true).Provider, "user-p1")
	requireKind(t, err, models.KindExpired)

	updated, err := store.GetRequestById(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.ExpiredRequest, updated.Status)

	// Истечение необратимо: повторный захват тоже не проходит.
	_, _, err = store.Claim(ctx, request.ID, providerActor("p2", true).Provider, "user-p2")
	requireKind(t, err, models.KindExpired)
}

func TestExecuteActionLifecycle(t *testing.T) {
	clock := newTestClock()
	service, sink := newTestService(clock)
	ctx := context.Background()

	client := &models.Actor{UserID: "client-1"}
	provider := providerActor("p1", true)

	request, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)

	_, err = service.Claim(ctx, request.ID, provider)
	require.NoError(t, err)

	started, err := service.ExecuteAction(ctx, request.ID, provider, models.ActionInput{Action: models.StartAction})
	require.NoError(t, err)
	require.Equal(t, models.InProgressRequest, started.Status)

	// Окно отмены закрыто: у клиента есть право на отмену, но переход недопустим.
	_, err = service.ExecuteAction(ctx, request.ID, client, models.ActionInput{Action: models.CancelAction})
	requireKind(t, err, models.KindInvalidTransition)

	// А у постороннего нет и самого права.
	_, err = service.ExecuteAction(ctx, request.ID, providerActor("p2", true), models.ActionInput{Action: models.CompleteAction})
	requireKind(t, err, models.KindForbidden)

	completed, err := service.ExecuteAction(ctx, request.ID, provider, models.ActionInput{Action: models.CompleteAction})
	require.NoError(t, err)
	require.Equal(t, models.CompletedRequest, completed.Status)

	_, err = service.ExecuteAction(ctx, request.ID, provider, models.ActionInput{Action: models.AcceptAction})
	requireKind(t, err, models.KindValidation)

	events := sink.all()
	require.Len(t, events, 4) // created, claimed, started, completed
	require.Equal(t, models.CompletedRequest, events[3].ToStatus)
}

func TestClientCancelBeforeWork(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	client := &models.Actor{UserID: "client-1"}
	request, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)

	cancelled, err := service.ExecuteAction(ctx, request.ID, client, models.ActionInput{
		Action: models.CancelAction,
		Note:   "found someone locally",
	})
	require.NoError(t, err)
	require.Equal(t, models.CancelledRequest, cancelled.Status)
	require.Equal(t, "found someone locally", cancelled.CancelReason)
}

func TestDecline(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	input := urgentInput("client-1")
	input.Type = models.NormalRequest
	input.TargetProviderID = "p1"
	request, err := service.CreateRequest(ctx, input)
	require.NoError(t, err)

	_, err = service.Decline(ctx, request.ID, providerActor("p2", true), "busy")
	requireKind(t, err, models.KindForbidden)

	_, err = service.Decline(ctx, request.ID, providerActor("p1", true), "  ")
	requireKind(t, err, models.KindValidation)

	declined, err := service.Decline(ctx, request.ID, providerActor("p1", true), "out of town this week")
	require.NoError(t, err)
	require.Equal(t, models.CancelledRequest, declined.Status)
	require.Equal(t, "declined by provider: out of town this week", declined.CancelReason)

	_, err = service.Decline(ctx, request.ID, providerActor("p1", true), "again")
	requireKind(t, err, models.KindInvalidTransition)
}

func TestStatusLogAccess(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	client := &models.Actor{UserID: "client-1"}
	provider := providerActor("p1", true)
	staff := &models.Actor{UserID: "staff-1", IsStaff: true}
	stranger := &models.Actor{UserID: "someone-else"}

	request, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)
	_, err = service.Claim(ctx, request.ID, provider)
	require.NoError(t, err)

	_, err = service.StatusLog(ctx, request.ID, stranger)
	requireKind(t, err, models.KindForbidden)

	for _, actor := range []*models.Actor{client, provider, staff} {
		entries, err := service.StatusLog(ctx, request.ID, actor)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		// Новые записи первыми.
		require.Equal(t, models.AcceptedRequest, entries[0].ToStatus)
		require.Equal(t, models.SentRequest, entries[1].ToStatus)
	}
}

func TestAssignedListIncludesTargetedRequests(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	input := urgentInput("client-1")
	input.Type = models.NormalRequest
	input.TargetProviderID = "p1"
	request, err := service.CreateRequest(ctx, input)
	require.NoError(t, err)

	target := providerActor("p1", true)

	// Адресная заявка видна целевому исполнителю ещё до захвата.
	assigned, err := service.ListAssigned(ctx, target, "", "", "")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, request.ID, assigned[0].ID)

	// И только ему.
	others, err := service.ListAssigned(ctx, providerActor("p2", true), "", "", "")
	require.NoError(t, err)
	require.Empty(t, others)

	_, err = service.Claim(ctx, request.ID, target)
	require.NoError(t, err)

	assigned, err = service.ListAssigned(ctx, target, "in_progress", "", "")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, request.ID, assigned[0].ID)
}

func TestListsSeparateClientAndProviderViews(t *testing.T) {
	clock := newTestClock()
	service, _ := newTestService(clock)
	ctx := context.Background()

	provider := providerActor("p1", true)

	first, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := service.CreateRequest(ctx, urgentInput("client-1"))
	require.NoError(t, err)

	_, err = service.Claim(ctx, first.ID, provider)
	require.NoError(t, err)

	mine, err := service.ListMy(ctx, &models.Actor{UserID: "client-1"}, "", "", "")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	// Сортировка по времени создания, новые первыми.
	require.Equal(t, second.ID, mine[0].ID)

	inProgress, err := service.ListMy(ctx, &models.Actor{UserID: "client-1"}, "in_progress", "", "")
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	require.Equal(t, first.ID, inProgress[0].ID)

	assigned, err := service.ListAssigned(ctx, provider, "", "", "")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, first.ID, assigned[0].ID)

	available, err := service.ListAvailable(ctx, provider, models.UrgentRequest, "", "")
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, second.ID, available[0].ID)

	_, err = service.ListAvailable(ctx, provider, models.NormalRequest, "", "")
	requireKind(t, err, models.KindValidation)
}
