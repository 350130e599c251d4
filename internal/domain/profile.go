package domain

import (
	"strings"
	"time"
)

// Role tags a profile. Exactly one role applies at a time.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleTrainer      Role = "trainer"
	RoleNutritionist Role = "nutritionist"
	RoleClient       Role = "client"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleTrainer, RoleNutritionist, RoleClient}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Area returns the exchange kind a professional role decides on, or "".
func (r Role) Area() ExchangeKind {
	switch r {
	case RoleTrainer:
		return KindExercise
	case RoleNutritionist:
		return KindMeal
	}
	return ""
}

// Account is the login identity that owns a profile.
type Account struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Email     string
	Staff     bool
	CreatedAt time.Time
}

// DisplayName is "first last", falling back to the username.
func (a Account) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
	if name == "" {
		return a.Username
	}
	return name
}

// Profile is the role-tagged record attached 1:1 to an account.
type Profile struct {
	ID        string
	AccountID string
	Role      Role
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Companion is the role-specific record derived from a profile.
// Exactly one of the pointers matching Role is set.
type Companion struct {
	Role         Role
	Client       *Client
	Trainer      *Trainer
	Nutritionist *Nutritionist
}

// Client is the companion of a client profile. It carries the plan quota counters.
type Client struct {
	ID                string
	ProfileID         string
	Name              string
	Email             string
	PlanID            string
	PlanStartedAt     *time.Time
	ExerciseSwapsLeft int
	MealSwapsLeft     int
	QuotaWindowStart  *time.Time
	LastWorkoutAt     *time.Time
	LastDietAt        *time.Time
	LastExchangeAt    *time.Time
	CreatedAt         time.Time
}

// SwapsLeft returns the remaining counter for kind.
func (c Client) SwapsLeft(kind ExchangeKind) int {
	if kind == KindMeal {
		return c.MealSwapsLeft
	}
	return c.ExerciseSwapsLeft
}

// Trainer is the companion of a trainer profile.
type Trainer struct {
	ID        string
	ProfileID string
	Name      string
	Email     string
	Specialty string
	CreatedAt time.Time
}

// Nutritionist is the companion of a nutritionist profile.
type Nutritionist struct {
	ID        string
	ProfileID string
	Name      string
	Email     string
	Specialty string
	CRN       string
	CreatedAt time.Time
}

// Actor is the resolved identity behind a request.
type Actor struct {
	AccountID string
	ProfileID string
	Role      Role
	// ClientID is set when the actor owns a client companion.
	ClientID string
}

// Authenticated reports whether the actor was resolved from an account.
func (a Actor) Authenticated() bool {
	return a.AccountID != ""
}

// EffectiveRole resolves the role used for authorization: staff accounts act as admin,
// missing or unknown roles fall back to client.
func EffectiveRole(account Account, profile Profile) Role {
	if account.Staff {
		return RoleAdmin
	}
	if !profile.Role.Valid() {
		return RoleClient
	}
	return profile.Role
}
