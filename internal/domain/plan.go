package domain

import (
	"strings"
	"time"
)

// Plan defaults.
const (
	DefaultExchangeLimit      = 1
	DefaultExchangeWindowDays = 7
	DefaultPlanDurationDays   = 30
)

// Plan is a subscription tier. It bounds how many exchanges a client may
// have approved per rolling window.
type Plan struct {
	ID                    string
	Name                  string
	DurationDays          int
	ExerciseExchangeLimit int
	MealExchangeLimit     int
	ExchangeWindowDays    int
	UnlimitedExchanges    bool
	CreatedAt             time.Time
}

// NewPlan validates and normalizes plan parameters.
func NewPlan(id, name string, durationDays, exerciseLimit, mealLimit, windowDays int, unlimited bool) (Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Plan{}, &ValidationError{Field: "name", Message: "name is required"}
	}
	if exerciseLimit < 0 || mealLimit < 0 {
		return Plan{}, &ValidationError{Field: "limits", Message: "exchange limits cannot be negative"}
	}
	if durationDays <= 0 {
		durationDays = DefaultPlanDurationDays
	}
	if windowDays <= 0 {
		windowDays = DefaultExchangeWindowDays
	}
	return Plan{
		ID:                    id,
		Name:                  name,
		DurationDays:          durationDays,
		ExerciseExchangeLimit: exerciseLimit,
		MealExchangeLimit:     mealLimit,
		ExchangeWindowDays:    windowDays,
		UnlimitedExchanges:    unlimited,
		CreatedAt:             time.Now().UTC(),
	}, nil
}

// Limit returns the per-window exchange limit for kind.
func (p Plan) Limit(kind ExchangeKind) int {
	if kind == KindMeal {
		return p.MealExchangeLimit
	}
	return p.ExerciseExchangeLimit
}

// Window returns the length of the quota window.
func (p Plan) Window() time.Duration {
	return time.Duration(p.ExchangeWindowDays) * 24 * time.Hour
}

// StartQuotaWindow resets the client's counters to the plan limits with a window opening at now.
func StartQuotaWindow(c Client, p Plan, now time.Time) Client {
	now = now.UTC()
	c.ExerciseSwapsLeft = p.ExerciseExchangeLimit
	c.MealSwapsLeft = p.MealExchangeLimit
	c.QuotaWindowStart = &now
	return c
}

// ReplenishQuota starts a new window when the current one has elapsed.
// The boolean reports whether the counters changed.
func ReplenishQuota(c Client, p Plan, now time.Time) (Client, bool) {
	if p.UnlimitedExchanges {
		return c, false
	}
	if c.QuotaWindowStart != nil && now.Before(c.QuotaWindowStart.Add(p.Window())) {
		return c, false
	}
	return StartQuotaWindow(c, p, now), true
}
