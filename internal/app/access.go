package app

import (
	"slices"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Capability is a condition an actor must satisfy for an operation.
type Capability string

const (
	CapAuthenticated    Capability = "authenticated"
	CapOwner            Capability = "owner"
	CapClientRole       Capability = "client_role"
	CapTrainerRole      Capability = "trainer_role"
	CapNutritionistRole Capability = "nutritionist_role"
	CapAdminRole        Capability = "admin_role"
	// CapArea holds when the actor's professional area matches the target kind.
	CapArea Capability = "area"
)

// Operation is something an actor does to a record.
type Operation string

const (
	OpList     Operation = "list"
	OpRetrieve Operation = "retrieve"
	OpCreate   Operation = "create"
	OpUpdate   Operation = "update"
	OpDestroy  Operation = "destroy"
	OpApprove  Operation = "approve"
	OpReject   Operation = "reject"
	// OpAssign grants something to a client: a workout, a diet, a plan or a role.
	OpAssign Operation = "assign"
)

// Target describes the record an operation touches. An empty Kind marks an
// administrative record (plans, accounts) outside any professional area.
type Target struct {
	ClientID string
	Kind     domain.ExchangeKind
}

// PermissionStrategy is the role-specific access policy.
type PermissionStrategy interface {
	Role() domain.Role
	// Permissions returns the capabilities required for op. Empty means denied.
	Permissions(op Operation) []Capability
	Authorize(actor domain.Actor, op Operation, target Target) error
	// Scope narrows a repository filter to what the actor may see. It
	// reports false when nothing is visible.
	Scope(actor domain.Actor, filter domain.ExchangeFilter) (domain.ExchangeFilter, bool)
	Filter(actor domain.Actor, records []domain.ExchangeRequest) []domain.ExchangeRequest
}

type rules map[Operation][]Capability

type strategy struct {
	role    domain.Role
	rules   rules
	visible func(actor domain.Actor, r domain.ExchangeRequest) bool
	scope   func(actor domain.Actor, f domain.ExchangeFilter) (domain.ExchangeFilter, bool)
}

func (s *strategy) Role() domain.Role { return s.role }

func (s *strategy) Permissions(op Operation) []Capability {
	return slices.Clone(s.rules[op])
}

func (s *strategy) Authorize(actor domain.Actor, op Operation, target Target) error {
	required := s.rules[op]
	if len(required) == 0 {
		return &domain.AuthorizationError{Role: s.role, Action: string(op)}
	}
	for _, c := range required {
		if !holds(actor, c, target) {
			return &domain.AuthorizationError{Role: s.role, Action: string(op)}
		}
	}
	return nil
}

func (s *strategy) Scope(actor domain.Actor, f domain.ExchangeFilter) (domain.ExchangeFilter, bool) {
	return s.scope(actor, f)
}

func (s *strategy) Filter(actor domain.Actor, records []domain.ExchangeRequest) []domain.ExchangeRequest {
	out := make([]domain.ExchangeRequest, 0, len(records))
	for _, r := range records {
		if s.visible(actor, r) {
			out = append(out, r)
		}
	}
	return out
}

func holds(actor domain.Actor, c Capability, target Target) bool {
	switch c {
	case CapAuthenticated:
		return actor.Authenticated()
	case CapOwner:
		return actor.ClientID != "" && actor.ClientID == target.ClientID
	case CapClientRole:
		return actor.Role == domain.RoleClient
	case CapTrainerRole:
		return actor.Role == domain.RoleTrainer
	case CapNutritionistRole:
		return actor.Role == domain.RoleNutritionist
	case CapAdminRole:
		return actor.Role == domain.RoleAdmin
	case CapArea:
		area := actor.Role.Area()
		return area != "" && area == target.Kind
	}
	return false
}

// AdminStrategy allows every operation to authenticated admins.
func AdminStrategy() PermissionStrategy {
	admin := []Capability{CapAuthenticated, CapAdminRole}
	r := make(rules)
	for _, op := range []Operation{OpList, OpRetrieve, OpCreate, OpUpdate, OpDestroy, OpApprove, OpReject, OpAssign} {
		r[op] = admin
	}
	return &strategy{
		role:    domain.RoleAdmin,
		rules:   r,
		visible: func(domain.Actor, domain.ExchangeRequest) bool { return true },
		scope: func(_ domain.Actor, f domain.ExchangeFilter) (domain.ExchangeFilter, bool) {
			return f, true
		},
	}
}

// ClientStrategy lets clients read and create their own records. Clients
// never decide requests and never delete.
func ClientStrategy() PermissionStrategy {
	return &strategy{
		role: domain.RoleClient,
		rules: rules{
			OpList:     {CapAuthenticated, CapOwner},
			OpRetrieve: {CapAuthenticated, CapOwner},
			OpCreate:   {CapAuthenticated, CapClientRole, CapOwner},
			OpUpdate:   {CapAuthenticated, CapOwner},
		},
		visible: func(a domain.Actor, r domain.ExchangeRequest) bool {
			return a.ClientID != "" && r.ClientID == a.ClientID
		},
		scope: func(a domain.Actor, f domain.ExchangeFilter) (domain.ExchangeFilter, bool) {
			if a.ClientID == "" || (f.ClientID != "" && f.ClientID != a.ClientID) {
				return f, false
			}
			f.ClientID = a.ClientID
			return f, true
		},
	}
}

// professionalStrategy covers trainers and nutritionists: they read every
// client, and create, update and decide records of their own area.
func professionalStrategy(role domain.Role, roleCap Capability) PermissionStrategy {
	area := role.Area()
	decide := []Capability{CapAuthenticated, roleCap, CapArea}
	return &strategy{
		role: role,
		rules: rules{
			OpList:     {CapAuthenticated},
			OpRetrieve: {CapAuthenticated},
			OpCreate:   decide,
			OpUpdate:   decide,
			OpApprove:  decide,
			OpReject:   decide,
			OpAssign:   decide,
		},
		visible: func(_ domain.Actor, r domain.ExchangeRequest) bool {
			return r.Kind == area
		},
		scope: func(_ domain.Actor, f domain.ExchangeFilter) (domain.ExchangeFilter, bool) {
			if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, area) {
				return f, false
			}
			f.Kinds = []domain.ExchangeKind{area}
			return f, true
		},
	}
}

// TrainerStrategy scopes trainers to exercise records.
func TrainerStrategy() PermissionStrategy {
	return professionalStrategy(domain.RoleTrainer, CapTrainerRole)
}

// NutritionistStrategy scopes nutritionists to meal records.
func NutritionistStrategy() PermissionStrategy {
	return professionalStrategy(domain.RoleNutritionist, CapNutritionistRole)
}

// AccessRegistry picks the strategy for a role.
type AccessRegistry struct {
	strategies map[domain.Role]PermissionStrategy
	fallback   PermissionStrategy
}

// NewAccessRegistry registers the four role strategies.
func NewAccessRegistry() *AccessRegistry {
	client := ClientStrategy()
	r := &AccessRegistry{
		strategies: make(map[domain.Role]PermissionStrategy),
		fallback:   client,
	}
	for _, s := range []PermissionStrategy{AdminStrategy(), client, TrainerStrategy(), NutritionistStrategy()} {
		r.strategies[s.Role()] = s
	}
	return r
}

// For returns the strategy of role. Missing or unknown roles get the most
// restrictive (client) strategy, never admin.
func (r *AccessRegistry) For(role domain.Role) PermissionStrategy {
	if s, ok := r.strategies[role]; ok {
		return s
	}
	return r.fallback
}

// Authorize resolves the actor's strategy and checks op against target.
func (r *AccessRegistry) Authorize(actor domain.Actor, op Operation, target Target) error {
	return r.For(actor.Role).Authorize(actor, op, target)
}
