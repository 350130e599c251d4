package domain

import (
	"context"
	"time"
)

// ExchangeRepository defines the persistence contract for exchange requests.
type ExchangeRepository interface {
	Create(ctx context.Context, req ExchangeRequest) error
	GetByID(ctx context.Context, id string) (ExchangeRequest, error)
	List(ctx context.Context, filter ExchangeFilter) ([]ExchangeRequest, error)
	CountPending(ctx context.Context, clientID string, kind ExchangeKind) (int, error)
	// Decide stores a decision only if the stored request is still pending.
	// Otherwise it returns an *InvalidStateError carrying the stored status.
	Decide(ctx context.Context, req ExchangeRequest) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

// ExchangeFilter holds optional criteria for listing exchange requests.
// An empty Kinds slice matches every kind.
type ExchangeFilter struct {
	ClientID string
	Kinds    []ExchangeKind
	Status   *ExchangeStatus
	Limit    int
	Offset   int
}

// AccountRepository stores accounts and their profiles.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account Account) error
	GetAccount(ctx context.Context, id string) (Account, error)
	CreateProfile(ctx context.Context, profile Profile) error
	GetProfileByAccount(ctx context.Context, accountID string) (Profile, error)
	UpdateRole(ctx context.Context, profileID string, role Role, at time.Time) error
}

// CompanionRepository stores role-specific companion records.
type CompanionRepository interface {
	HasCompanion(ctx context.Context, profileID string, role Role) (bool, error)
	CreateCompanion(ctx context.Context, companion Companion) error
	// RemoveCompanion deletes the profile's companion for role. It is a no-op
	// when none exists and fails with ErrCompanionInUse when a client still
	// has workouts, diets or exchange requests.
	RemoveCompanion(ctx context.Context, profileID string, role Role) error
	ClientByProfile(ctx context.Context, profileID string) (Client, error)
}

// Activity names a denormalized "last seen" field on the client.
type Activity string

const (
	ActivityWorkout  Activity = "workout"
	ActivityDiet     Activity = "diet"
	ActivityExchange Activity = "exchange"
)

// ClientRepository reads clients and maintains their quota and activity fields.
type ClientRepository interface {
	GetClient(ctx context.Context, id string) (Client, error)
	ListWithPlan(ctx context.Context) ([]Client, error)
	// SaveQuota stores plan assignment, counters and window start.
	SaveQuota(ctx context.Context, client Client) error
	// ConsumeSwap decrements the counter for kind, failing with ErrQuotaExhausted at zero.
	ConsumeSwap(ctx context.Context, clientID string, kind ExchangeKind) error
	// TouchActivity moves the activity timestamp forward; older values are ignored.
	TouchActivity(ctx context.Context, clientID string, activity Activity, at time.Time) error
}

// PlanRepository stores subscription plans.
type PlanRepository interface {
	CreatePlan(ctx context.Context, plan Plan) error
	GetPlan(ctx context.Context, id string) (Plan, error)
}

// TrainingRepository stores workouts, diets and their items.
type TrainingRepository interface {
	CreateWorkout(ctx context.Context, workout Workout) error
	CreateDiet(ctx context.Context, diet Diet) error
	GetItem(ctx context.Context, kind ExchangeKind, id string) (Item, error)
}

// HistoryRepository stores derived history entries.
type HistoryRepository interface {
	// RecordHistory is a no-op when an entry for the same event already exists.
	RecordHistory(ctx context.Context, entry HistoryEntry) error
	ListHistory(ctx context.Context, clientID string) ([]HistoryEntry, error)
}

// NotificationRepository stores user-facing notifications.
type NotificationRepository interface {
	// CreateNotification is a no-op when the recipient was already notified of the event.
	CreateNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, recipientID string, at time.Time) (int, error)
}

// Transactor runs fn in a single atomic unit. Repositories called with the
// context handed to fn take part in the same transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransitionValidator checks exchange state transitions.
type TransitionValidator interface {
	Apply(ctx context.Context, current ExchangeStatus, action Action) (ExchangeStatus, error)
}

// EventPublisher defines the contract for emitting domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
