package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Command is a state transition wrapped as an object. Validate reports why
// the command cannot run; nil means it can.
type Command interface {
	Name() string
	Validate() error
	Execute(ctx context.Context) (any, error)
}

// genericFailure replaces error text that is not meant for end users.
const genericFailure = "the request could not be processed"

// Result is the uniform outcome of an invoked command.
type Result struct {
	Success bool
	Data    any
	Err     error
}

// Message returns text safe to show to the caller.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	if domain.IsUserFacing(r.Err) {
		return r.Err.Error()
	}
	return genericFailure
}

// ExecutedCommand is an audit record kept by the invoker.
type ExecutedCommand struct {
	Name       string
	ExecutedAt time.Time
}

const defaultHistoryLimit = 1000

// Invoker runs commands, captures their failures and keeps an audit trail
// of the ones that succeeded.
type Invoker struct {
	logger *slog.Logger
	limit  int

	mu      sync.Mutex
	history []ExecutedCommand
}

// NewInvoker creates an invoker that remembers the most recent successful commands.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{logger: logger, limit: defaultHistoryLimit}
}

// Execute validates and runs cmd. It never panics and never returns a
// partially applied command as a success.
func (i *Invoker) Execute(ctx context.Context, cmd Command) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.ErrorContext(ctx, "command panicked", "command", cmd.Name(), "panic", r)
			res = Result{Err: fmt.Errorf("command %s panicked: %v", cmd.Name(), r)}
		}
	}()

	if err := cmd.Validate(); err != nil {
		return Result{Err: err}
	}

	data, err := cmd.Execute(ctx)
	if err != nil {
		if !domain.IsUserFacing(err) {
			i.logger.ErrorContext(ctx, "command failed", "command", cmd.Name(), "error", err)
		}
		return Result{Err: err}
	}

	i.mu.Lock()
	i.history = append(i.history, ExecutedCommand{Name: cmd.Name(), ExecutedAt: time.Now().UTC()})
	if len(i.history) > i.limit {
		i.history = i.history[len(i.history)-i.limit:]
	}
	i.mu.Unlock()

	return Result{Success: true, Data: data}
}

// History returns a copy of the audit trail, oldest first.
func (i *Invoker) History() []ExecutedCommand {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]ExecutedCommand, len(i.history))
	copy(out, i.history)
	return out
}

// QuotaPolicy decides which decisions consume a quota slot. Approvals
// always do.
type QuotaPolicy struct {
	ConsumeOnReject bool
}

// Consumes reports whether a decision ending in status takes a slot.
func (p QuotaPolicy) Consumes(status domain.ExchangeStatus) bool {
	switch status {
	case domain.StatusApproved:
		return true
	case domain.StatusRejected:
		return p.ConsumeOnReject
	}
	return false
}

// DecisionResult is the payload of a successful decision.
type DecisionResult struct {
	Request domain.ExchangeRequest
	Message string
}

// decisionDeps are the collaborators shared by every decision command.
type decisionDeps struct {
	tx        domain.Transactor
	exchanges domain.ExchangeRepository
	clients   domain.ClientRepository
	plans     domain.PlanRepository
	validator domain.TransitionValidator
	publisher domain.EventPublisher
	policy    QuotaPolicy
	logger    *slog.Logger
}

type decision struct {
	deps    *decisionDeps
	kind    domain.ExchangeKind
	action  domain.Action
	request domain.ExchangeRequest
	actor   domain.Actor
	notes   string
}

func (d *decision) Name() string {
	return fmt.Sprintf("%s_%s_exchange", d.action, d.kind)
}

func (d *decision) validate() error {
	if d.request.Kind != d.kind {
		return &domain.ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("request is a %s exchange, not %s", d.request.Kind, d.kind),
		}
	}
	if !d.request.Pending() {
		return &domain.InvalidStateError{Action: d.action, Current: d.request.Status}
	}
	return nil
}

// Execute re-reads the request inside a transaction, applies the state
// machine, stores the decision and charges quota. The event is published
// only after the transaction commits.
func (d *decision) Execute(ctx context.Context) (any, error) {
	var decided domain.ExchangeRequest
	err := d.deps.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := d.deps.exchanges.GetByID(ctx, d.request.ID)
		if err != nil {
			return err
		}
		status, err := d.deps.validator.Apply(ctx, current.Status, d.action)
		if err != nil {
			return err
		}
		decided = current.Decided(status, d.actor.AccountID, d.notes, time.Now())
		if err := d.deps.exchanges.Decide(ctx, decided); err != nil {
			return err
		}
		return d.chargeQuota(ctx, decided)
	})
	if err != nil {
		return nil, err
	}

	d.publish(ctx, decided)

	return DecisionResult{
		Request: decided,
		Message: fmt.Sprintf("Exchange request %s.", decided.Status),
	}, nil
}

func (d *decision) chargeQuota(ctx context.Context, req domain.ExchangeRequest) error {
	if !d.deps.policy.Consumes(req.Status) {
		return nil
	}
	client, err := d.deps.clients.GetClient(ctx, req.ClientID)
	if err != nil {
		return fmt.Errorf("loading client: %w", err)
	}
	if client.PlanID == "" {
		return nil
	}
	plan, err := d.deps.plans.GetPlan(ctx, client.PlanID)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	if plan.UnlimitedExchanges {
		return nil
	}

	err = d.deps.clients.ConsumeSwap(ctx, req.ClientID, req.Kind)
	if errors.Is(err, domain.ErrQuotaExhausted) && req.Status == domain.StatusRejected {
		// Nothing left to charge; the rejection still stands.
		return nil
	}
	return err
}

func (d *decision) publish(ctx context.Context, req domain.ExchangeRequest) {
	id, err := generateID()
	if err != nil {
		d.deps.logger.ErrorContext(ctx, "generating event id", "error", err)
		return
	}
	event := domain.NewExchangeEvent(id, req)
	if err := d.deps.publisher.Publish(ctx, event); err != nil {
		d.deps.logger.ErrorContext(ctx, "publishing exchange event",
			"event_type", string(event.Type),
			"request_id", req.ID,
			"error", err,
		)
	}
}

// ApproveCommand approves a pending exchange request. Notes are optional.
type ApproveCommand struct {
	decision
}

func (c *ApproveCommand) Validate() error {
	return c.validate()
}

// RejectCommand rejects a pending exchange request. Notes are mandatory and
// checked before the request status.
type RejectCommand struct {
	decision
}

func (c *RejectCommand) Validate() error {
	if err := requireNotes(c.notes); err != nil {
		return err
	}
	return c.validate()
}

func requireNotes(notes string) error {
	if strings.TrimSpace(notes) == "" {
		return &domain.ValidationError{Field: "notes", Message: "notes are required to reject a request"}
	}
	return nil
}

type commandKey struct {
	kind   domain.ExchangeKind
	action domain.Action
}

var commandTable = map[commandKey]func(d decision) Command{
	{domain.KindExercise, domain.ActionApprove}: func(d decision) Command { return &ApproveCommand{d} },
	{domain.KindExercise, domain.ActionReject}:  func(d decision) Command { return &RejectCommand{d} },
	{domain.KindMeal, domain.ActionApprove}:     func(d decision) Command { return &ApproveCommand{d} },
	{domain.KindMeal, domain.ActionReject}:      func(d decision) Command { return &RejectCommand{d} },
}

// CommandFactory builds decision commands from a (kind, action) pair.
type CommandFactory struct {
	deps *decisionDeps
}

// NewExchangeCommand returns the command for kind and action. Unsupported
// pairs fail here, before anything runs.
func (f *CommandFactory) NewExchangeCommand(kind domain.ExchangeKind, action domain.Action, req domain.ExchangeRequest, actor domain.Actor, notes string) (Command, error) {
	build, ok := commandTable[commandKey{kind: kind, action: action}]
	if !ok {
		return nil, &domain.UnknownCommandError{Kind: kind, Action: action}
	}
	return build(decision{
		deps:    f.deps,
		kind:    kind,
		action:  action,
		request: req,
		actor:   actor,
		notes:   notes,
	}), nil
}
