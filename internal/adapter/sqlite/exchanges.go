package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var exchangeColumns = []any{
	"id", "kind", "client_id", "original_item_id", "replacement_item_id", "suggested_item",
	"reason", "status", "requested_at", "responded_at", "response_notes", "decided_by", "deleted_at",
}

type exchangeRow struct {
	ID                string         `db:"id"`
	Kind              string         `db:"kind"`
	ClientID          string         `db:"client_id"`
	OriginalItemID    string         `db:"original_item_id"`
	ReplacementItemID sql.NullString `db:"replacement_item_id"`
	SuggestedItem     string         `db:"suggested_item"`
	Reason            string         `db:"reason"`
	Status            string         `db:"status"`
	RequestedAt       string         `db:"requested_at"`
	RespondedAt       sql.NullString `db:"responded_at"`
	ResponseNotes     string         `db:"response_notes"`
	DecidedBy         sql.NullString `db:"decided_by"`
	DeletedAt         sql.NullString `db:"deleted_at"`
}

func (r exchangeRow) toDomain() (domain.ExchangeRequest, error) {
	requestedAt, err := parseTime(r.RequestedAt)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("parsing requested_at: %w", err)
	}
	respondedAt, err := parseNullTime(r.RespondedAt)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("parsing responded_at: %w", err)
	}
	deletedAt, err := parseNullTime(r.DeletedAt)
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("parsing deleted_at: %w", err)
	}

	return domain.ExchangeRequest{
		ID:                r.ID,
		Kind:              domain.ExchangeKind(r.Kind),
		ClientID:          r.ClientID,
		OriginalItemID:    r.OriginalItemID,
		ReplacementItemID: r.ReplacementItemID.String,
		SuggestedItem:     r.SuggestedItem,
		Reason:            r.Reason,
		Status:            domain.ExchangeStatus(r.Status),
		RequestedAt:       requestedAt,
		RespondedAt:       respondedAt,
		ResponseNotes:     r.ResponseNotes,
		DecidedBy:         r.DecidedBy.String,
		DeletedAt:         deletedAt,
	}, nil
}

// Create inserts a new exchange request.
func (s *Store) Create(ctx context.Context, req domain.ExchangeRequest) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO exchange_requests (id, kind, client_id, original_item_id, replacement_item_id, suggested_item, reason, status, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, string(req.Kind), req.ClientID, req.OriginalItemID, nullString(req.ReplacementItemID),
		req.SuggestedItem, req.Reason, string(req.Status), formatTime(req.RequestedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting exchange request: %w", err)
	}
	return nil
}

// GetByID retrieves a live (not soft-deleted) exchange request.
func (s *Store) GetByID(ctx context.Context, id string) (domain.ExchangeRequest, error) {
	query, args, err := dialect.From("exchange_requests").
		Select(exchangeColumns...).
		Where(goqu.C("id").Eq(id), goqu.C("deleted_at").IsNull()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return domain.ExchangeRequest{}, fmt.Errorf("building query: %w", err)
	}

	var row exchangeRow
	if err := sqlx.GetContext(ctx, s.conn(ctx), &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ExchangeRequest{}, notFound("exchange request", id)
		}
		return domain.ExchangeRequest{}, fmt.Errorf("querying exchange request: %w", err)
	}
	return row.toDomain()
}

// List returns live exchange requests matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter domain.ExchangeFilter) ([]domain.ExchangeRequest, error) {
	ds := dialect.From("exchange_requests").
		Select(exchangeColumns...).
		Where(goqu.C("deleted_at").IsNull())

	if filter.ClientID != "" {
		ds = ds.Where(goqu.C("client_id").Eq(filter.ClientID))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, string(k))
		}
		ds = ds.Where(goqu.Ex{"kind": kinds})
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.C("status").Eq(string(*filter.Status)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	ds = ds.Order(goqu.C("requested_at").Desc(), goqu.C("id").Asc()).Limit(uint(limit))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var rows []exchangeRow
	if err := sqlx.SelectContext(ctx, s.conn(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing exchange requests: %w", err)
	}

	out := make([]domain.ExchangeRequest, 0, len(rows))
	for _, r := range rows {
		req, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// CountPending counts the client's live pending requests of a kind.
func (s *Store) CountPending(ctx context.Context, clientID string, kind domain.ExchangeKind) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.conn(ctx), &n,
		`SELECT COUNT(*) FROM exchange_requests
		 WHERE client_id = ? AND kind = ? AND status = 'pending' AND deleted_at IS NULL`,
		clientID, string(kind),
	)
	if err != nil {
		return 0, fmt.Errorf("counting pending requests: %w", err)
	}
	return n, nil
}

// Decide stores the decision carried by req. The update only matches a
// pending row, so of two racing decisions exactly one is applied.
func (s *Store) Decide(ctx context.Context, req domain.ExchangeRequest) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE exchange_requests
		 SET status = ?, responded_at = ?, response_notes = ?, decided_by = ?
		 WHERE id = ? AND status = 'pending' AND deleted_at IS NULL`,
		string(req.Status), nullTime(req.RespondedAt), req.ResponseNotes, nullString(req.DecidedBy), req.ID,
	)
	if err != nil {
		return fmt.Errorf("updating exchange request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	current, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return err
	}
	action := domain.ActionApprove
	if req.Status == domain.StatusRejected {
		action = domain.ActionReject
	}
	return &domain.InvalidStateError{Action: action, Current: current.Status}
}

// SoftDelete hides an exchange request from reads.
func (s *Store) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE exchange_requests SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("deleting exchange request: %w", err)
	}
	return requireAffected(res, "exchange request", id)
}
