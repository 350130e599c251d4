package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Default companion attributes.
const (
	DefaultTrainerSpecialty      = "Personal Trainer"
	DefaultNutritionistSpecialty = "Sports Nutrition"
)

// ProfileFactory builds the companion record for one role.
type ProfileFactory interface {
	Role() domain.Role
	Build(id string, account domain.Account, profile domain.Profile, now time.Time) domain.Companion
}

type clientFactory struct{}

func (clientFactory) Role() domain.Role { return domain.RoleClient }

func (clientFactory) Build(id string, a domain.Account, p domain.Profile, now time.Time) domain.Companion {
	return domain.Companion{Role: domain.RoleClient, Client: &domain.Client{
		ID:        id,
		ProfileID: p.ID,
		Name:      a.DisplayName(),
		Email:     a.Email,
		CreatedAt: now,
	}}
}

type trainerFactory struct{}

func (trainerFactory) Role() domain.Role { return domain.RoleTrainer }

func (trainerFactory) Build(id string, a domain.Account, p domain.Profile, now time.Time) domain.Companion {
	return domain.Companion{Role: domain.RoleTrainer, Trainer: &domain.Trainer{
		ID:        id,
		ProfileID: p.ID,
		Name:      a.DisplayName(),
		Email:     a.Email,
		Specialty: DefaultTrainerSpecialty,
		CreatedAt: now,
	}}
}

type nutritionistFactory struct{}

func (nutritionistFactory) Role() domain.Role { return domain.RoleNutritionist }

func (nutritionistFactory) Build(id string, a domain.Account, p domain.Profile, now time.Time) domain.Companion {
	return domain.Companion{Role: domain.RoleNutritionist, Nutritionist: &domain.Nutritionist{
		ID:        id,
		ProfileID: p.ID,
		Name:      a.DisplayName(),
		Email:     a.Email,
		Specialty: DefaultNutritionistSpecialty,
		CreatedAt: now,
	}}
}

// ProfileRegistry provisions companion records for new or re-tagged profiles.
// Admins have no companion.
type ProfileRegistry struct {
	companions domain.CompanionRepository
	factories  map[domain.Role]ProfileFactory
	logger     *slog.Logger
}

// NewProfileRegistry registers the client, trainer and nutritionist factories.
func NewProfileRegistry(companions domain.CompanionRepository, logger *slog.Logger) *ProfileRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &ProfileRegistry{
		companions: companions,
		factories:  make(map[domain.Role]ProfileFactory),
		logger:     logger,
	}
	for _, f := range []ProfileFactory{clientFactory{}, trainerFactory{}, nutritionistFactory{}} {
		r.factories[f.Role()] = f
	}
	return r
}

// Provision creates the companion for profile unless one already exists.
// It reports whether a record was created. Roles without a factory are a
// no-op.
func (r *ProfileRegistry) Provision(ctx context.Context, account domain.Account, profile domain.Profile) (bool, error) {
	factory, ok := r.factories[profile.Role]
	if !ok {
		if profile.Role != domain.RoleAdmin {
			r.logger.WarnContext(ctx, "no companion factory for role",
				"role", string(profile.Role),
				"profile_id", profile.ID,
			)
		}
		return false, nil
	}

	exists, err := r.companions.HasCompanion(ctx, profile.ID, profile.Role)
	if err != nil {
		return false, fmt.Errorf("checking companion: %w", err)
	}
	if exists {
		return false, nil
	}

	id, err := generateID()
	if err != nil {
		return false, err
	}
	companion := factory.Build(id, account, profile, time.Now().UTC())
	if err := r.companions.CreateCompanion(ctx, companion); err != nil {
		return false, fmt.Errorf("creating %s companion: %w", profile.Role, err)
	}
	r.logger.InfoContext(ctx, "companion provisioned",
		"role", string(profile.Role),
		"profile_id", profile.ID,
		"companion_id", id,
	)
	return true, nil
}

// companionRoles lists the roles that own a companion record.
var companionRoles = []domain.Role{domain.RoleClient, domain.RoleTrainer, domain.RoleNutritionist}

// Retire removes every companion of profile that does not match its current
// role, so a profile keeps at most one. A client that still has training
// records or exchange requests blocks the change with a ValidationError.
func (r *ProfileRegistry) Retire(ctx context.Context, profile domain.Profile) error {
	for _, role := range companionRoles {
		if role == profile.Role {
			continue
		}
		err := r.companions.RemoveCompanion(ctx, profile.ID, role)
		if errors.Is(err, domain.ErrCompanionInUse) {
			return &domain.ValidationError{
				Field:   "role",
				Message: fmt.Sprintf("the %s record has workouts, diets or exchange requests and cannot be removed", role),
			}
		}
		if err != nil {
			return fmt.Errorf("removing %s companion: %w", role, err)
		}
	}
	return nil
}
