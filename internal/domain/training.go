package domain

import (
	"strings"
	"time"
)

// Workout is a training routine assigned to a client by a trainer.
type Workout struct {
	ID              string
	ClientID        string
	Name            string
	Description     string
	DurationMinutes int
	AssignedBy      string
	Exercises       []Exercise
	CreatedAt       time.Time
}

// Exercise is an item of a workout. Exercise exchanges swap these.
type Exercise struct {
	ID          string
	WorkoutID   string
	Name        string
	Description string
}

// Diet is a meal plan assigned to a client by a nutritionist.
type Diet struct {
	ID          string
	ClientID    string
	Name        string
	Description string
	Calories    int
	AssignedBy  string
	Meals       []Meal
	CreatedAt   time.Time
}

// Meal is an item of a diet. Meal exchanges swap these.
type Meal struct {
	ID          string
	DietID      string
	Name        string
	Description string
	Calories    int
}

// Item is the catalog entry an exchange request points at.
type Item struct {
	ID       string
	Kind     ExchangeKind
	Name     string
	ClientID string
}

func validateAssignment(name string, items int, what string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if items == 0 {
		return &ValidationError{Field: what, Message: "at least one entry is required"}
	}
	return nil
}

// Validate checks the workout before it is stored.
func (w Workout) Validate() error {
	if err := validateAssignment(w.Name, len(w.Exercises), "exercises"); err != nil {
		return err
	}
	for _, e := range w.Exercises {
		if strings.TrimSpace(e.Name) == "" {
			return &ValidationError{Field: "exercises", Message: "exercise name is required"}
		}
	}
	if w.DurationMinutes < 0 {
		return &ValidationError{Field: "duration_minutes", Message: "duration cannot be negative"}
	}
	return nil
}

// Validate checks the diet before it is stored.
func (d Diet) Validate() error {
	if err := validateAssignment(d.Name, len(d.Meals), "meals"); err != nil {
		return err
	}
	for _, m := range d.Meals {
		if strings.TrimSpace(m.Name) == "" {
			return &ValidationError{Field: "meals", Message: "meal name is required"}
		}
	}
	return nil
}

// HistoryKind tags a history entry.
type HistoryKind string

const (
	HistoryWorkout  HistoryKind = "workout"
	HistoryDiet     HistoryKind = "diet"
	HistoryExchange HistoryKind = "exchange"
)

// HistoryEntry is a derived record written by the history observer.
// EventID is unique so re-delivery cannot duplicate it.
type HistoryEntry struct {
	ID        string
	EventID   string
	Kind      HistoryKind
	ClientID  string
	SubjectID string
	Notes     string
	CreatedAt time.Time
}

// Notification is a user-facing message addressed to a client.
type Notification struct {
	ID          string
	EventID     string
	RecipientID string
	Kind        EventType
	Message     string
	CreatedAt   time.Time
	ReadAt      *time.Time
}
