package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// ExchangeService orchestrates the exchange request workflow: submission,
// decisions, listing and removal.
type ExchangeService struct {
	stores   Stores
	resolver *ActorResolver
	access   *AccessRegistry
	factory  *CommandFactory
	invoker  *Invoker
	logger   *slog.Logger
}

// NewExchangeService creates a service with the given adapters.
func NewExchangeService(
	stores Stores,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	access *AccessRegistry,
	policy QuotaPolicy,
	logger *slog.Logger,
) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeService{
		stores:   stores,
		resolver: NewActorResolver(stores.Accounts, stores.Companions),
		access:   access,
		factory: &CommandFactory{deps: &decisionDeps{
			tx:        stores.Tx,
			exchanges: stores.Exchanges,
			clients:   stores.Clients,
			plans:     stores.Plans,
			validator: validator,
			publisher: publisher,
			policy:    policy,
			logger:    logger,
		}},
		invoker: NewInvoker(logger),
		logger:  logger,
	}
}

// Invoker exposes the command invoker and its audit history.
func (s *ExchangeService) Invoker() *Invoker {
	return s.invoker
}

// SubmitInput carries a new exchange request. ClientID defaults to the
// actor's own client.
type SubmitInput struct {
	Kind              domain.ExchangeKind
	ClientID          string
	OriginalItemID    string
	ReplacementItemID string
	SuggestedItem     string
	Reason            string
	ActorID           string
}

// Submit creates a pending exchange request. The original item must belong
// to the client, the client must hold a plan, and unless the plan is
// unlimited the remaining quota must exceed the requests already pending.
func (s *ExchangeService) Submit(ctx context.Context, in SubmitInput) (domain.ExchangeRequest, error) {
	kind, err := domain.ParseExchangeKind(string(in.Kind))
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	actor, err := s.resolver.Resolve(ctx, in.ActorID)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	if in.ClientID == "" {
		in.ClientID = actor.ClientID
	}
	if err := s.access.Authorize(actor, OpCreate, Target{ClientID: in.ClientID, Kind: kind}); err != nil {
		return domain.ExchangeRequest{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("generating request id: %w", err)
	}
	req, err := domain.NewExchangeRequest(id, kind, in.ClientID, in.OriginalItemID, in.ReplacementItemID, in.SuggestedItem, in.Reason)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	err = s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		client, err := s.stores.Clients.GetClient(ctx, req.ClientID)
		if err != nil {
			return err
		}
		if err := s.checkItems(ctx, req); err != nil {
			return err
		}
		if err := s.reserveQuota(ctx, client, kind); err != nil {
			return err
		}
		return s.stores.Exchanges.Create(ctx, req)
	})
	if err != nil {
		return domain.ExchangeRequest{}, err
	}

	s.logger.InfoContext(ctx, "exchange submitted",
		"request_id", req.ID,
		"kind", string(req.Kind),
		"client_id", req.ClientID,
	)
	return req, nil
}

func (s *ExchangeService) checkItems(ctx context.Context, req domain.ExchangeRequest) error {
	original, err := s.stores.Training.GetItem(ctx, req.Kind, req.OriginalItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ValidationError{Field: "original_item_id", Message: fmt.Sprintf("unknown %s %q", req.Kind, req.OriginalItemID)}
	}
	if err != nil {
		return fmt.Errorf("loading original item: %w", err)
	}
	if original.ClientID != req.ClientID {
		return &domain.ValidationError{Field: "original_item_id", Message: "item is not assigned to this client"}
	}
	if req.ReplacementItemID == "" {
		return nil
	}
	_, err = s.stores.Training.GetItem(ctx, req.Kind, req.ReplacementItemID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ValidationError{Field: "replacement_item_id", Message: fmt.Sprintf("unknown %s %q", req.Kind, req.ReplacementItemID)}
	}
	if err != nil {
		return fmt.Errorf("loading replacement item: %w", err)
	}
	return nil
}

// reserveQuota replenishes an elapsed window, then checks that a slot is
// free once pending requests are counted.
func (s *ExchangeService) reserveQuota(ctx context.Context, client domain.Client, kind domain.ExchangeKind) error {
	if client.PlanID == "" {
		return &domain.ValidationError{Field: "plan", Message: "client has no active plan"}
	}
	plan, err := s.stores.Plans.GetPlan(ctx, client.PlanID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	if plan.UnlimitedExchanges {
		return nil
	}

	client, changed := domain.ReplenishQuota(client, plan, time.Now())
	if changed {
		if err := s.stores.Clients.SaveQuota(ctx, client); err != nil {
			return fmt.Errorf("replenishing quota: %w", err)
		}
	}

	pending, err := s.stores.Exchanges.CountPending(ctx, client.ID, kind)
	if err != nil {
		return fmt.Errorf("counting pending requests: %w", err)
	}
	if client.SwapsLeft(kind)-pending <= 0 {
		return &domain.ValidationError{Field: "quota", Message: domain.ErrQuotaExhausted.Error()}
	}
	return nil
}

// Decide approves or rejects a pending request. A rejection without notes
// fails before the actor, the request or its status is checked.
func (s *ExchangeService) Decide(ctx context.Context, requestID string, action domain.Action, actorID, notes string) (DecisionResult, error) {
	var op Operation
	switch action {
	case domain.ActionApprove:
		op = OpApprove
	case domain.ActionReject:
		op = OpReject
		if err := requireNotes(notes); err != nil {
			return DecisionResult{}, err
		}
	default:
		return DecisionResult{}, &domain.UnknownCommandError{Action: action}
	}

	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return DecisionResult{}, err
	}
	req, err := s.stores.Exchanges.GetByID(ctx, requestID)
	if err != nil {
		return DecisionResult{}, err
	}
	if err := s.access.Authorize(actor, op, Target{ClientID: req.ClientID, Kind: req.Kind}); err != nil {
		return DecisionResult{}, err
	}

	cmd, err := s.factory.NewExchangeCommand(req.Kind, action, req, actor, notes)
	if err != nil {
		return DecisionResult{}, err
	}
	res := s.invoker.Execute(ctx, cmd)
	if !res.Success {
		return DecisionResult{}, res.Err
	}
	return res.Data.(DecisionResult), nil
}

// Get returns a request visible to the actor.
func (s *ExchangeService) Get(ctx context.Context, actorID, id string) (domain.ExchangeRequest, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	req, err := s.stores.Exchanges.GetByID(ctx, id)
	if err != nil {
		return domain.ExchangeRequest{}, err
	}
	strategy := s.access.For(actor.Role)
	if err := strategy.Authorize(actor, OpRetrieve, Target{ClientID: req.ClientID, Kind: req.Kind}); err != nil {
		return domain.ExchangeRequest{}, err
	}
	if len(strategy.Filter(actor, []domain.ExchangeRequest{req})) == 0 {
		return domain.ExchangeRequest{}, &domain.NotFoundError{Resource: "exchange request", ID: id}
	}
	return req, nil
}

// List returns the requests matching filter, narrowed to what the actor may see.
func (s *ExchangeService) List(ctx context.Context, actorID string, filter domain.ExchangeFilter) ([]domain.ExchangeRequest, error) {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return nil, err
	}
	strategy := s.access.For(actor.Role)
	target := Target{ClientID: filter.ClientID}
	if target.ClientID == "" {
		target.ClientID = actor.ClientID
	}
	if err := strategy.Authorize(actor, OpList, target); err != nil {
		return nil, err
	}
	scoped, ok := strategy.Scope(actor, filter)
	if !ok {
		return []domain.ExchangeRequest{}, nil
	}
	records, err := s.stores.Exchanges.List(ctx, scoped)
	if err != nil {
		return nil, fmt.Errorf("listing exchange requests: %w", err)
	}
	return strategy.Filter(actor, records), nil
}

// Delete soft-deletes a request. Only admins may do so.
func (s *ExchangeService) Delete(ctx context.Context, actorID, id string) error {
	actor, err := s.resolver.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	req, err := s.stores.Exchanges.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.access.Authorize(actor, OpDestroy, Target{ClientID: req.ClientID, Kind: req.Kind}); err != nil {
		return err
	}
	if err := s.stores.Exchanges.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "exchange deleted", "request_id", id, "actor_id", actor.AccountID)
	return nil
}
