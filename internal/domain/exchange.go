package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExchangeKind tells which catalog an exchange request swaps items from.
// The same tag marks the professional area of trainers (exercise) and
// nutritionists (meal).
type ExchangeKind string

const (
	KindExercise ExchangeKind = "exercise"
	KindMeal     ExchangeKind = "meal"
)

// ParseExchangeKind validates a raw kind tag.
func ParseExchangeKind(s string) (ExchangeKind, error) {
	switch k := ExchangeKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindExercise, KindMeal:
		return k, nil
	}
	return "", &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown exchange kind %q", s)}
}

// ExchangeStatus represents the lifecycle state of an exchange request.
type ExchangeStatus string

const (
	StatusPending  ExchangeStatus = "pending"
	StatusApproved ExchangeStatus = "approved"
	StatusRejected ExchangeStatus = "rejected"
)

// Terminal reports whether no further transition may leave the status.
func (s ExchangeStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Action is a decision taken on a pending exchange request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Transition defines a valid state change: an action moves a request from Src to Dst.
type Transition struct {
	Action Action
	Src    ExchangeStatus
	Dst    ExchangeStatus
}

// Transitions is the complete exchange lifecycle, consumed by the FSM adapter.
var Transitions = []Transition{
	{Action: ActionApprove, Src: StatusPending, Dst: StatusApproved},
	{Action: ActionReject, Src: StatusPending, Dst: StatusRejected},
}

// ExchangeRequest is a client's request to substitute an assigned exercise or meal.
//
// Status is pending exactly when RespondedAt and DecidedBy are unset.
type ExchangeRequest struct {
	ID                string
	Kind              ExchangeKind
	ClientID          string
	OriginalItemID    string
	ReplacementItemID string
	SuggestedItem     string
	Reason            string
	Status            ExchangeStatus
	RequestedAt       time.Time
	RespondedAt       *time.Time
	ResponseNotes     string
	DecidedBy         string
	DeletedAt         *time.Time
}

// NewExchangeRequest builds a pending request after checking the submitted fields.
func NewExchangeRequest(id string, kind ExchangeKind, clientID, originalItemID, replacementItemID, suggestedItem, reason string) (ExchangeRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return ExchangeRequest{}, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if strings.TrimSpace(originalItemID) == "" {
		return ExchangeRequest{}, &ValidationError{Field: "original_item_id", Message: "original item is required"}
	}
	replacementItemID = strings.TrimSpace(replacementItemID)
	suggestedItem = strings.TrimSpace(suggestedItem)
	if replacementItemID == "" && suggestedItem == "" {
		return ExchangeRequest{}, &ValidationError{
			Field:   "replacement_item_id",
			Message: "a replacement item or a suggestion is required",
		}
	}
	if replacementItemID != "" && replacementItemID == originalItemID {
		return ExchangeRequest{}, &ValidationError{
			Field:   "replacement_item_id",
			Message: "replacement item must differ from the original item",
		}
	}

	return ExchangeRequest{
		ID:                id,
		Kind:              kind,
		ClientID:          clientID,
		OriginalItemID:    originalItemID,
		ReplacementItemID: replacementItemID,
		SuggestedItem:     suggestedItem,
		Reason:            strings.TrimSpace(reason),
		Status:            StatusPending,
		RequestedAt:       time.Now().UTC(),
	}, nil
}

// Pending reports whether the request still awaits a decision.
func (r ExchangeRequest) Pending() bool {
	return r.Status == StatusPending
}

// Decided returns a copy of r carrying the decision bookkeeping.
func (r ExchangeRequest) Decided(status ExchangeStatus, actorID, notes string, at time.Time) ExchangeRequest {
	at = at.UTC()
	r.Status = status
	r.DecidedBy = actorID
	r.RespondedAt = &at
	r.ResponseNotes = strings.TrimSpace(notes)
	return r
}
