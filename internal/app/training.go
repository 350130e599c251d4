package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// TrainingService manages plans and the workouts and diets assigned to
// clients, plus the client-facing history and notifications.
type TrainingService struct {
	stores    Stores
	resolver  *ActorResolver
	access    *AccessRegistry
	publisher domain.EventPublisher
	logger    *slog.Logger
}

// NewTrainingService creates the training service.
func NewTrainingService(stores Stores, publisher domain.EventPublisher, access *AccessRegistry, logger *slog.Logger) *TrainingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrainingService{
		stores:    stores,
		resolver:  NewActorResolver(stores.Accounts, stores.Companions),
		access:    access,
		publisher: publisher,
		logger:    logger,
	}
}

// PlanInput carries the parameters of a new plan. Zero durations fall back
// to the plan defaults.
type PlanInput struct {
	Name                  string
	DurationDays          int
	ExerciseExchangeLimit int
	MealExchangeLimit     int
	ExchangeWindowDays    int
	UnlimitedExchanges    bool
}

// CreatePlan stores a new plan. Admin only.
func (s *TrainingService) CreatePlan(ctx context.Context, actorID string, in PlanInput) (domain.Plan, error) {
	if err := s.authorize(ctx, actorID, OpAssign, Target{}); err != nil {
		return domain.Plan{}, err
	}
	id, err := generateID()
	if err != nil {
		return domain.Plan{}, fmt.Errorf("generating plan id: %w", err)
	}
	plan, err := domain.NewPlan(id, in.Name, in.DurationDays, in.ExerciseExchangeLimit, in.MealExchangeLimit, in.ExchangeWindowDays, in.UnlimitedExchanges)
	if err != nil {
		return domain.Plan{}, err
	}
	if err := s.stores.Plans.CreatePlan(ctx, plan); err != nil {
		return domain.Plan{}, fmt.Errorf("creating plan: %w", err)
	}
	return plan, nil
}

// AssignPlan subscribes a client to a plan and opens a fresh quota window.
// Admin only.
func (s *TrainingService) AssignPlan(ctx context.Context, actorID, clientID, planID string) (domain.Client, error) {
	if err := s.authorize(ctx, actorID, OpAssign, Target{}); err != nil {
		return domain.Client{}, err
	}

	var client domain.Client
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.stores.Clients.GetClient(ctx, clientID)
		if err != nil {
			return err
		}
		plan, err := s.stores.Plans.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		c.PlanID = plan.ID
		c.PlanStartedAt = &now
		client = domain.StartQuotaWindow(c, plan, now)
		return s.stores.Clients.SaveQuota(ctx, client)
	})
	if err != nil {
		return domain.Client{}, err
	}
	s.logger.InfoContext(ctx, "plan assigned", "client_id", clientID, "plan_id", planID)
	return client, nil
}

// ItemInput is one exercise or meal of an assignment.
type ItemInput struct {
	Name        string
	Description string
	Calories    int
}

// WorkoutInput carries a workout for a client.
type WorkoutInput struct {
	ClientID        string
	Name            string
	Description     string
	DurationMinutes int
	Exercises       []ItemInput
}

// AssignWorkout stores a workout for a client and publishes workout_assigned.
// Trainers and admins only.
func (s *TrainingService) AssignWorkout(ctx context.Context, actorID string, in WorkoutInput) (domain.Workout, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return domain.Workout{}, err
	}
	if err := s.access.Authorize(actor, OpAssign, Target{ClientID: in.ClientID, Kind: domain.KindExercise}); err != nil {
		return domain.Workout{}, err
	}

	ids, err := generateIDs(len(in.Exercises) + 1)
	if err != nil {
		return domain.Workout{}, err
	}
	w := domain.Workout{
		ID:              ids[0],
		ClientID:        in.ClientID,
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		AssignedBy:      actor.AccountID,
		CreatedAt:       time.Now().UTC(),
	}
	for i, e := range in.Exercises {
		w.Exercises = append(w.Exercises, domain.Exercise{
			ID:          ids[i+1],
			WorkoutID:   w.ID,
			Name:        strings.TrimSpace(e.Name),
			Description: e.Description,
		})
	}
	if err := w.Validate(); err != nil {
		return domain.Workout{}, err
	}

	if _, err := s.stores.Clients.GetClient(ctx, in.ClientID); err != nil {
		return domain.Workout{}, err
	}
	if err := s.stores.Training.CreateWorkout(ctx, w); err != nil {
		return domain.Workout{}, fmt.Errorf("creating workout: %w", err)
	}

	s.publish(ctx, func(id string) domain.Event { return domain.NewWorkoutEvent(id, w) })
	return w, nil
}

// DietInput carries a diet for a client.
type DietInput struct {
	ClientID    string
	Name        string
	Description string
	Calories    int
	Meals       []ItemInput
}

// AssignDiet stores a diet for a client and publishes diet_assigned.
// Nutritionists and admins only.
func (s *TrainingService) AssignDiet(ctx context.Context, actorID string, in DietInput) (domain.Diet, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return domain.Diet{}, err
	}
	if err := s.access.Authorize(actor, OpAssign, Target{ClientID: in.ClientID, Kind: domain.KindMeal}); err != nil {
		return domain.Diet{}, err
	}

	ids, err := generateIDs(len(in.Meals) + 1)
	if err != nil {
		return domain.Diet{}, err
	}
	d := domain.Diet{
		ID:          ids[0],
		ClientID:    in.ClientID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Calories:    in.Calories,
		AssignedBy:  actor.AccountID,
		CreatedAt:   time.Now().UTC(),
	}
	for i, m := range in.Meals {
		d.Meals = append(d.Meals, domain.Meal{
			ID:          ids[i+1],
			DietID:      d.ID,
			Name:        strings.TrimSpace(m.Name),
			Description: m.Description,
			Calories:    m.Calories,
		})
	}
	if err := d.Validate(); err != nil {
		return domain.Diet{}, err
	}

	if _, err := s.stores.Clients.GetClient(ctx, in.ClientID); err != nil {
		return domain.Diet{}, err
	}
	if err := s.stores.Training.CreateDiet(ctx, d); err != nil {
		return domain.Diet{}, fmt.Errorf("creating diet: %w", err)
	}

	s.publish(ctx, func(id string) domain.Event { return domain.NewDietEvent(id, d) })
	return d, nil
}

// ReplenishQuotas starts a new quota window for every client whose window
// has elapsed. It returns how many clients were replenished.
func (s *TrainingService) ReplenishQuotas(ctx context.Context) (int, error) {
	clients, err := s.stores.Clients.ListWithPlan(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing clients: %w", err)
	}

	plans := make(map[string]domain.Plan)
	now := time.Now()
	var replenished int
	for _, c := range clients {
		plan, ok := plans[c.PlanID]
		if !ok {
			plan, err = s.stores.Plans.GetPlan(ctx, c.PlanID)
			if err != nil {
				return replenished, fmt.Errorf("loading plan %s: %w", c.PlanID, err)
			}
			plans[c.PlanID] = plan
		}
		next, changed := domain.ReplenishQuota(c, plan, now)
		if !changed {
			continue
		}
		if err := s.stores.Clients.SaveQuota(ctx, next); err != nil {
			return replenished, fmt.Errorf("saving quota of client %s: %w", c.ID, err)
		}
		replenished++
	}
	if replenished > 0 {
		s.logger.InfoContext(ctx, "quotas replenished", "clients", replenished)
	}
	return replenished, nil
}

// History lists the history entries of a client.
func (s *TrainingService) History(ctx context.Context, actorID, clientID string) ([]domain.HistoryEntry, error) {
	if err := s.authorize(ctx, actorID, OpRetrieve, Target{ClientID: clientID}); err != nil {
		return nil, err
	}
	return s.stores.History.ListHistory(ctx, clientID)
}

// Notifications lists the notifications addressed to the actor's client.
// Actors without a client have none.
func (s *TrainingService) Notifications(ctx context.Context, actorID string, unreadOnly bool) ([]domain.Notification, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Authenticated() {
		return nil, &domain.AuthorizationError{Role: actor.Role, Action: "read notifications"}
	}
	if actor.ClientID == "" {
		return []domain.Notification{}, nil
	}
	return s.stores.Notifications.ListNotifications(ctx, actor.ClientID, unreadOnly)
}

// MarkNotificationsRead marks every unread notification of the actor's
// client as read and returns how many changed.
func (s *TrainingService) MarkNotificationsRead(ctx context.Context, actorID string) (int, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return 0, err
	}
	if !actor.Authenticated() {
		return 0, &domain.AuthorizationError{Role: actor.Role, Action: "read notifications"}
	}
	if actor.ClientID == "" {
		return 0, nil
	}
	return s.stores.Notifications.MarkNotificationsRead(ctx, actor.ClientID, time.Now().UTC())
}

func (s *TrainingService) authorize(ctx context.Context, actorID string, op Operation, target Target) error {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	return s.access.Authorize(actor, op, target)
}

func (s *TrainingService) publish(ctx context.Context, build func(id string) domain.Event) {
	id, err := generateID()
	if err != nil {
		s.logger.ErrorContext(ctx, "generating event id", "error", err)
		return
	}
	event := build(id)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "publishing event",
			"event_type", string(event.Type),
			"client_id", event.ClientID,
			"error", err,
		)
	}
}

func generateIDs(n int) ([]string, error) {
	ids := make([]string, n)
	for i := range ids {
		id, err := generateID()
		if err != nil {
			return nil, fmt.Errorf("generating id: %w", err)
		}
		ids[i] = id
	}
	return ids, nil
}
