package app_test

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/fsm"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/app"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/eventbus"
)

// --- In-memory store ---

// memStore implements every repository port over maps. WithinTx does not
// roll back; rollback is covered by the sqlite tests.
type memStore struct {
	mu sync.Mutex

	accounts      map[string]domain.Account
	profiles      map[string]domain.Profile // by account id
	clients       map[string]domain.Client
	trainers      map[string]domain.Trainer      // by profile id
	nutritionists map[string]domain.Nutritionist // by profile id
	plans         map[string]domain.Plan
	items         map[string]domain.Item
	workouts      []domain.Workout
	diets         []domain.Diet
	exchanges     map[string]domain.ExchangeRequest
	history       map[string]domain.HistoryEntry
	notifications []domain.Notification
}

func newMemStore() *memStore {
	return &memStore{
		accounts:      make(map[string]domain.Account),
		profiles:      make(map[string]domain.Profile),
		clients:       make(map[string]domain.Client),
		trainers:      make(map[string]domain.Trainer),
		nutritionists: make(map[string]domain.Nutritionist),
		plans:         make(map[string]domain.Plan),
		items:         make(map[string]domain.Item),
		exchanges:     make(map[string]domain.ExchangeRequest),
		history:       make(map[string]domain.HistoryEntry),
	}
}

func (m *memStore) stores() app.Stores {
	return app.Stores{
		Tx:            m,
		Exchanges:     m,
		Accounts:      m,
		Companions:    m,
		Clients:       m,
		Plans:         m,
		Training:      m,
		History:       m,
		Notifications: m,
	}
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func itemKey(kind domain.ExchangeKind, id string) string { return string(kind) + "/" + id }

// Exchanges

func (m *memStore) Create(_ context.Context, req domain.ExchangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges[req.ID] = req
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.ExchangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.exchanges[id]
	if !ok || req.DeletedAt != nil {
		return domain.ExchangeRequest{}, &domain.NotFoundError{Resource: "exchange request", ID: id}
	}
	return req, nil
}

func (m *memStore) List(_ context.Context, f domain.ExchangeFilter) ([]domain.ExchangeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ExchangeRequest
	for _, r := range m.exchanges {
		if r.DeletedAt != nil {
			continue
		}
		if f.ClientID != "" && r.ClientID != f.ClientID {
			continue
		}
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.ExchangeRequest) int { return a.RequestedAt.Compare(b.RequestedAt) })
	return out, nil
}

func (m *memStore) CountPending(_ context.Context, clientID string, kind domain.ExchangeKind) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, r := range m.exchanges {
		if r.ClientID == clientID && r.Kind == kind && r.Pending() && r.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Decide(_ context.Context, req domain.ExchangeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.exchanges[req.ID]
	if !ok {
		return &domain.NotFoundError{Resource: "exchange request", ID: req.ID}
	}
	if !stored.Pending() {
		action := domain.ActionApprove
		if req.Status == domain.StatusRejected {
			action = domain.ActionReject
		}
		return &domain.InvalidStateError{Action: action, Current: stored.Status}
	}
	m.exchanges[req.ID] = req
	return nil
}

func (m *memStore) SoftDelete(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.exchanges[id]
	if !ok || req.DeletedAt != nil {
		return &domain.NotFoundError{Resource: "exchange request", ID: id}
	}
	req.DeletedAt = &at
	m.exchanges[id] = req
	return nil
}

// Accounts and companions

func (m *memStore) CreateAccount(_ context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Username == a.Username {
			return &domain.ValidationError{Field: "username", Message: "username is already taken"}
		}
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return domain.Account{}, &domain.NotFoundError{Resource: "account", ID: id}
	}
	return a, nil
}

func (m *memStore) CreateProfile(_ context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.AccountID] = p
	return nil
}

func (m *memStore) GetProfileByAccount(_ context.Context, accountID string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[accountID]
	if !ok {
		return domain.Profile{}, &domain.NotFoundError{Resource: "profile", ID: accountID}
	}
	return p, nil
}

func (m *memStore) UpdateRole(_ context.Context, profileID string, role domain.Role, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.profiles {
		if p.ID == profileID {
			p.Role = role
			p.UpdatedAt = at
			m.profiles[k] = p
			return nil
		}
	}
	return &domain.NotFoundError{Resource: "profile", ID: profileID}
}

func (m *memStore) HasCompanion(_ context.Context, profileID string, role domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch role {
	case domain.RoleClient:
		for _, c := range m.clients {
			if c.ProfileID == profileID {
				return true, nil
			}
		}
	case domain.RoleTrainer:
		_, ok := m.trainers[profileID]
		return ok, nil
	case domain.RoleNutritionist:
		_, ok := m.nutritionists[profileID]
		return ok, nil
	}
	return false, nil
}

func (m *memStore) CreateCompanion(_ context.Context, c domain.Companion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case c.Client != nil:
		m.clients[c.Client.ID] = *c.Client
	case c.Trainer != nil:
		m.trainers[c.Trainer.ProfileID] = *c.Trainer
	case c.Nutritionist != nil:
		m.nutritionists[c.Nutritionist.ProfileID] = *c.Nutritionist
	}
	return nil
}

func (m *memStore) RemoveCompanion(_ context.Context, profileID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch role {
	case domain.RoleClient:
		for id, c := range m.clients {
			if c.ProfileID != profileID {
				continue
			}
			if m.clientInUse(id) {
				return domain.ErrCompanionInUse
			}
			delete(m.clients, id)
		}
	case domain.RoleTrainer:
		delete(m.trainers, profileID)
	case domain.RoleNutritionist:
		delete(m.nutritionists, profileID)
	}
	return nil
}

func (m *memStore) clientInUse(clientID string) bool {
	for _, w := range m.workouts {
		if w.ClientID == clientID {
			return true
		}
	}
	for _, d := range m.diets {
		if d.ClientID == clientID {
			return true
		}
	}
	for _, r := range m.exchanges {
		if r.ClientID == clientID {
			return true
		}
	}
	return false
}

func (m *memStore) ClientByProfile(_ context.Context, profileID string) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ProfileID == profileID {
			return c, nil
		}
	}
	return domain.Client{}, &domain.NotFoundError{Resource: "client", ID: profileID}
}

// Clients and plans

func (m *memStore) GetClient(_ context.Context, id string) (domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return domain.Client{}, &domain.NotFoundError{Resource: "client", ID: id}
	}
	return c, nil
}

func (m *memStore) ListWithPlan(context.Context) ([]domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Client
	for _, c := range m.clients {
		if c.PlanID != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) SaveQuota(_ context.Context, c domain.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.clients[c.ID]
	if !ok {
		return &domain.NotFoundError{Resource: "client", ID: c.ID}
	}
	stored.PlanID = c.PlanID
	stored.PlanStartedAt = c.PlanStartedAt
	stored.ExerciseSwapsLeft = c.ExerciseSwapsLeft
	stored.MealSwapsLeft = c.MealSwapsLeft
	stored.QuotaWindowStart = c.QuotaWindowStart
	m.clients[c.ID] = stored
	return nil
}

func (m *memStore) ConsumeSwap(_ context.Context, clientID string, kind domain.ExchangeKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return &domain.NotFoundError{Resource: "client", ID: clientID}
	}
	if c.SwapsLeft(kind) <= 0 {
		return domain.ErrQuotaExhausted
	}
	if kind == domain.KindMeal {
		c.MealSwapsLeft--
	} else {
		c.ExerciseSwapsLeft--
	}
	m.clients[clientID] = c
	return nil
}

func (m *memStore) TouchActivity(_ context.Context, clientID string, a domain.Activity, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[clientID]
	if !ok {
		return &domain.NotFoundError{Resource: "client", ID: clientID}
	}
	field := map[domain.Activity]**time.Time{
		domain.ActivityWorkout:  &c.LastWorkoutAt,
		domain.ActivityDiet:     &c.LastDietAt,
		domain.ActivityExchange: &c.LastExchangeAt,
	}[a]
	if *field == nil || at.After(**field) {
		*field = &at
	}
	m.clients[clientID] = c
	return nil
}

func (m *memStore) CreatePlan(_ context.Context, p domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *memStore) GetPlan(_ context.Context, id string) (domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return domain.Plan{}, &domain.NotFoundError{Resource: "plan", ID: id}
	}
	return p, nil
}

// Training

func (m *memStore) CreateWorkout(_ context.Context, w domain.Workout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workouts = append(m.workouts, w)
	for _, e := range w.Exercises {
		m.items[itemKey(domain.KindExercise, e.ID)] = domain.Item{ID: e.ID, Kind: domain.KindExercise, Name: e.Name, ClientID: w.ClientID}
	}
	return nil
}

func (m *memStore) CreateDiet(_ context.Context, d domain.Diet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diets = append(m.diets, d)
	for _, meal := range d.Meals {
		m.items[itemKey(domain.KindMeal, meal.ID)] = domain.Item{ID: meal.ID, Kind: domain.KindMeal, Name: meal.Name, ClientID: d.ClientID}
	}
	return nil
}

func (m *memStore) GetItem(_ context.Context, kind domain.ExchangeKind, id string) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[itemKey(kind, id)]
	if !ok {
		return domain.Item{}, &domain.NotFoundError{Resource: string(kind), ID: id}
	}
	return it, nil
}

// History and notifications

func (m *memStore) RecordHistory(_ context.Context, e domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.history[e.EventID]; !ok {
		m.history[e.EventID] = e
	}
	return nil
}

func (m *memStore) ListHistory(_ context.Context, clientID string) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.HistoryEntry{}
	for _, e := range m.history {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) CreateNotification(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.notifications {
		if existing.EventID == n.EventID && existing.RecipientID == n.RecipientID {
			return nil
		}
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *memStore) ListNotifications(_ context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Notification{}
	for _, n := range m.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memStore) MarkNotificationsRead(_ context.Context, recipientID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for i := range m.notifications {
		if m.notifications[i].RecipientID == recipientID && m.notifications[i].ReadAt == nil {
			m.notifications[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

// --- Event recorder ---

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) ObserverID() string { return "recorder" }

func (r *eventRecorder) OnEvent(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) ofType(t domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- Fixture ---

const (
	adminID        = "acc-admin"
	trainerID      = "acc-trainer"
	nutritionistID = "acc-nutri"
	anaID          = "acc-ana"
	brunoID        = "acc-bruno"

	anaClient   = "client-ana"
	brunoClient = "client-bruno"
	basicPlan   = "plan-basic"
)

type fixture struct {
	store    *memStore
	bus      *eventbus.Bus
	recorder *eventRecorder
	access   *app.AccessRegistry
	exchange *app.ExchangeService
	training *app.TrainingService
	accounts *app.AccountService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, policy app.QuotaPolicy) *fixture {
	t.Helper()

	store := newMemStore()
	seed(store)

	logger := discardLogger()
	bus := eventbus.New(logger)
	rec := &eventRecorder{}
	bus.Attach(rec)

	access := app.NewAccessRegistry()
	return &fixture{
		store:    store,
		bus:      bus,
		recorder: rec,
		access:   access,
		exchange: app.NewExchangeService(store.stores(), bus, fsm.New(), access, policy, logger),
		training: app.NewTrainingService(store.stores(), bus, access, logger),
		accounts: app.NewAccountService(store.stores(), access, logger),
	}
}

func seed(m *memStore) {
	now := time.Now().UTC()
	m.plans[basicPlan] = domain.Plan{
		ID: basicPlan, Name: "Basic", DurationDays: 30,
		ExerciseExchangeLimit: 1, MealExchangeLimit: 1, ExchangeWindowDays: 7,
	}

	m.accounts[adminID] = domain.Account{ID: adminID, Username: "admin", Staff: true}
	m.accounts[trainerID] = domain.Account{ID: trainerID, Username: "carla"}
	m.profiles[trainerID] = domain.Profile{ID: "prof-trainer", AccountID: trainerID, Role: domain.RoleTrainer}
	m.accounts[nutritionistID] = domain.Account{ID: nutritionistID, Username: "nina"}
	m.profiles[nutritionistID] = domain.Profile{ID: "prof-nutri", AccountID: nutritionistID, Role: domain.RoleNutritionist}

	for _, c := range []struct{ account, profile, client, username string }{
		{anaID, "prof-ana", anaClient, "ana"},
		{brunoID, "prof-bruno", brunoClient, "bruno"},
	} {
		m.accounts[c.account] = domain.Account{ID: c.account, Username: c.username}
		m.profiles[c.account] = domain.Profile{ID: c.profile, AccountID: c.account, Role: domain.RoleClient}
		m.clients[c.client] = domain.Client{
			ID: c.client, ProfileID: c.profile, Name: c.username, PlanID: basicPlan,
			ExerciseSwapsLeft: 1, MealSwapsLeft: 1, QuotaWindowStart: &now,
		}
		for _, it := range []domain.Item{
			{ID: "squat-" + c.username, Kind: domain.KindExercise, Name: "Squat"},
			{ID: "lunge-" + c.username, Kind: domain.KindExercise, Name: "Lunge"},
			{ID: "oats-" + c.username, Kind: domain.KindMeal, Name: "Oats"},
			{ID: "eggs-" + c.username, Kind: domain.KindMeal, Name: "Eggs"},
		} {
			it.ClientID = c.client
			m.items[itemKey(it.Kind, it.ID)] = it
		}
	}
}

// submitShoulder files the exercise swap used across the decision tests.
func (f *fixture) submitShoulder(t *testing.T) domain.ExchangeRequest {
	t.Helper()
	req, err := f.exchange.Submit(context.Background(), app.SubmitInput{
		Kind:              domain.KindExercise,
		OriginalItemID:    "squat-ana",
		ReplacementItemID: "lunge-ana",
		Reason:            "ombro",
		ActorID:           anaID,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return req
}
