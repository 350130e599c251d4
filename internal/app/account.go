package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Stores groups the repositories used by the services. The sqlite adapter
// satisfies all of them with a single value.
type Stores struct {
	Tx            domain.Transactor
	Exchanges     domain.ExchangeRepository
	Accounts      domain.AccountRepository
	Companions    domain.CompanionRepository
	Clients       domain.ClientRepository
	Plans         domain.PlanRepository
	Training      domain.TrainingRepository
	History       domain.HistoryRepository
	Notifications domain.NotificationRepository
}

// ActorResolver turns an account id into the identity used for authorization.
type ActorResolver struct {
	accounts   domain.AccountRepository
	companions domain.CompanionRepository
}

// NewActorResolver creates a resolver over the account and companion stores.
func NewActorResolver(accounts domain.AccountRepository, companions domain.CompanionRepository) *ActorResolver {
	return &ActorResolver{accounts: accounts, companions: companions}
}

// Resolve loads the actor for accountID. An empty or unknown id yields an
// unauthenticated actor, which every strategy denies.
func (r *ActorResolver) Resolve(ctx context.Context, accountID string) (domain.Actor, error) {
	if accountID == "" {
		return domain.Actor{}, nil
	}
	account, err := r.accounts.GetAccount(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Actor{}, nil
	}
	if err != nil {
		return domain.Actor{}, fmt.Errorf("loading account: %w", err)
	}

	profile, err := r.accounts.GetProfileByAccount(ctx, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Actor{}, fmt.Errorf("loading profile: %w", err)
	}

	actor := domain.Actor{
		AccountID: account.ID,
		ProfileID: profile.ID,
		Role:      domain.EffectiveRole(account, profile),
	}
	if profile.ID == "" || profile.Role != domain.RoleClient {
		return actor, nil
	}

	client, err := r.companions.ClientByProfile(ctx, profile.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.Actor{}, fmt.Errorf("loading client: %w", err)
	default:
		actor.ClientID = client.ID
	}
	return actor, nil
}

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Role      domain.Role
	Staff     bool
	// ActorID is the account performing the registration; empty for self sign-up.
	ActorID string
}

// Registration is the outcome of AccountService.Register.
type Registration struct {
	Account     domain.Account
	Profile     domain.Profile
	Provisioned bool
}

// AccountService manages accounts, profiles and their role companions.
type AccountService struct {
	stores   Stores
	resolver *ActorResolver
	access   *AccessRegistry
	profiles *ProfileRegistry
	logger   *slog.Logger
}

// NewAccountService creates the account service.
func NewAccountService(stores Stores, access *AccessRegistry, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		stores:   stores,
		resolver: NewActorResolver(stores.Accounts, stores.Companions),
		access:   access,
		profiles: NewProfileRegistry(stores.Companions, logger),
		logger:   logger,
	}
}

// Register creates an account, its profile and the role companion in one
// transaction. Anyone may sign up as a client; other roles and staff
// accounts need an admin.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (Registration, error) {
	if in.Role == "" {
		in.Role = domain.RoleClient
	}
	if !in.Role.Valid() {
		return Registration{}, &domain.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", in.Role)}
	}
	if in.Role != domain.RoleClient || in.Staff {
		actor, err := s.resolver.Resolve(ctx, in.ActorID)
		if err != nil {
			return Registration{}, err
		}
		if err := s.access.Authorize(actor, OpAssign, Target{}); err != nil {
			return Registration{}, err
		}
	}
	return s.register(ctx, in)
}

// Bootstrap creates a staff account without an acting admin. It backs the
// command line, which is trusted.
func (s *AccountService) Bootstrap(ctx context.Context, in RegisterInput) (Registration, error) {
	in.Staff = true
	if in.Role == "" {
		in.Role = domain.RoleAdmin
	}
	return s.register(ctx, in)
}

func (s *AccountService) register(ctx context.Context, in RegisterInput) (Registration, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return Registration{}, &domain.ValidationError{Field: "username", Message: "username is required"}
	}

	accountID, err := generateID()
	if err != nil {
		return Registration{}, fmt.Errorf("generating account id: %w", err)
	}
	profileID, err := generateID()
	if err != nil {
		return Registration{}, fmt.Errorf("generating profile id: %w", err)
	}

	now := time.Now().UTC()
	reg := Registration{
		Account: domain.Account{
			ID:        accountID,
			Username:  username,
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
			Email:     strings.TrimSpace(in.Email),
			Staff:     in.Staff,
			CreatedAt: now,
		},
		Profile: domain.Profile{
			ID:        profileID,
			AccountID: accountID,
			Role:      in.Role,
			Phone:     strings.TrimSpace(in.Phone),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Accounts.CreateAccount(ctx, reg.Account); err != nil {
			return err
		}
		if err := s.stores.Accounts.CreateProfile(ctx, reg.Profile); err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		provisioned, err := s.profiles.Provision(ctx, reg.Account, reg.Profile)
		reg.Provisioned = provisioned
		return err
	})
	if err != nil {
		return Registration{}, err
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", reg.Account.ID,
		"role", string(reg.Profile.Role),
	)
	return reg, nil
}

// ChangeRole re-tags the profile of accountID, removes the companion of the
// old role and provisions the one for the new role, all in one transaction.
func (s *AccountService) ChangeRole(ctx context.Context, actorID, accountID string, role domain.Role) (domain.Profile, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := s.access.Authorize(actor, OpAssign, Target{}); err != nil {
		return domain.Profile{}, err
	}
	if !role.Valid() {
		return domain.Profile{}, &domain.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}

	var profile domain.Profile
	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		account, err := s.stores.Accounts.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		profile, err = s.stores.Accounts.GetProfileByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.stores.Accounts.UpdateRole(ctx, profile.ID, role, now); err != nil {
			return fmt.Errorf("updating role: %w", err)
		}
		profile.Role = role
		profile.UpdatedAt = now
		if err := s.profiles.Retire(ctx, profile); err != nil {
			return err
		}
		_, err = s.profiles.Provision(ctx, account, profile)
		return err
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// Account returns the account with id.
func (s *AccountService) Account(ctx context.Context, id string) (domain.Account, error) {
	return s.stores.Accounts.GetAccount(ctx, id)
}

// Actor resolves accountID for callers outside the services, such as the
// HTTP layer.
func (s *AccountService) Actor(ctx context.Context, accountID string) (domain.Actor, error) {
	return s.resolver.Resolve(ctx, accountID)
}
