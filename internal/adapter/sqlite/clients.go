package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

const clientSelect = `SELECT id, profile_id, name, email, plan_id, plan_started_at, exercise_swaps_left, meal_swaps_left,
	quota_window_start, last_workout_at, last_diet_at, last_exchange_at, created_at FROM clients`

type clientRow struct {
	ID                string         `db:"id"`
	ProfileID         string         `db:"profile_id"`
	Name              string         `db:"name"`
	Email             string         `db:"email"`
	PlanID            sql.NullString `db:"plan_id"`
	PlanStartedAt     sql.NullString `db:"plan_started_at"`
	ExerciseSwapsLeft int            `db:"exercise_swaps_left"`
	MealSwapsLeft     int            `db:"meal_swaps_left"`
	QuotaWindowStart  sql.NullString `db:"quota_window_start"`
	LastWorkoutAt     sql.NullString `db:"last_workout_at"`
	LastDietAt        sql.NullString `db:"last_diet_at"`
	LastExchangeAt    sql.NullString `db:"last_exchange_at"`
	CreatedAt         string         `db:"created_at"`
}

func (r clientRow) toDomain() (domain.Client, error) {
	c := domain.Client{
		ID:                r.ID,
		ProfileID:         r.ProfileID,
		Name:              r.Name,
		Email:             r.Email,
		PlanID:            r.PlanID.String,
		ExerciseSwapsLeft: r.ExerciseSwapsLeft,
		MealSwapsLeft:     r.MealSwapsLeft,
	}

	var err error
	if c.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return domain.Client{}, fmt.Errorf("parsing created_at: %w", err)
	}
	optional := []struct {
		src  sql.NullString
		dst  **time.Time
		name string
	}{
		{r.PlanStartedAt, &c.PlanStartedAt, "plan_started_at"},
		{r.QuotaWindowStart, &c.QuotaWindowStart, "quota_window_start"},
		{r.LastWorkoutAt, &c.LastWorkoutAt, "last_workout_at"},
		{r.LastDietAt, &c.LastDietAt, "last_diet_at"},
		{r.LastExchangeAt, &c.LastExchangeAt, "last_exchange_at"},
	}
	for _, f := range optional {
		if *f.dst, err = parseNullTime(f.src); err != nil {
			return domain.Client{}, fmt.Errorf("parsing %s: %w", f.name, err)
		}
	}
	return c, nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var row clientRow
	if err := sqlx.GetContext(ctx, s.conn(ctx), &row, clientSelect+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, notFound("client", id)
		}
		return domain.Client{}, fmt.Errorf("querying client: %w", err)
	}
	return row.toDomain()
}

// ListWithPlan returns every client that has a plan assigned.
func (s *Store) ListWithPlan(ctx context.Context) ([]domain.Client, error) {
	var rows []clientRow
	if err := sqlx.SelectContext(ctx, s.conn(ctx), &rows, clientSelect+` WHERE plan_id IS NOT NULL ORDER BY id`); err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	out := make([]domain.Client, 0, len(rows))
	for _, r := range rows {
		c, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveQuota stores the plan assignment, counters and window start of c.
func (s *Store) SaveQuota(ctx context.Context, c domain.Client) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE clients
		 SET plan_id = ?, plan_started_at = ?, exercise_swaps_left = ?, meal_swaps_left = ?, quota_window_start = ?
		 WHERE id = ?`,
		nullString(c.PlanID), nullTime(c.PlanStartedAt), c.ExerciseSwapsLeft, c.MealSwapsLeft, nullTime(c.QuotaWindowStart), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating client quota: %w", err)
	}
	return requireAffected(res, "client", c.ID)
}

var swapColumns = map[domain.ExchangeKind]string{
	domain.KindExercise: "exercise_swaps_left",
	domain.KindMeal:     "meal_swaps_left",
}

// ConsumeSwap takes one slot from the client's counter for kind.
func (s *Store) ConsumeSwap(ctx context.Context, clientID string, kind domain.ExchangeKind) error {
	column, ok := swapColumns[kind]
	if !ok {
		return fmt.Errorf("no quota counter for kind %q", kind)
	}
	// column comes from the fixed map above.
	query := fmt.Sprintf(`UPDATE clients SET %[1]s = %[1]s - 1 WHERE id = ? AND %[1]s > 0`, column)
	res, err := s.conn(ctx).ExecContext(ctx, query, clientID)
	if err != nil {
		return fmt.Errorf("consuming %s swap: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetClient(ctx, clientID); err != nil {
			return err
		}
		return domain.ErrQuotaExhausted
	}
	return nil
}

var activityColumns = map[domain.Activity]string{
	domain.ActivityWorkout:  "last_workout_at",
	domain.ActivityDiet:     "last_diet_at",
	domain.ActivityExchange: "last_exchange_at",
}

// TouchActivity moves an activity timestamp forward. Replaying an older
// event leaves the stored value alone.
func (s *Store) TouchActivity(ctx context.Context, clientID string, activity domain.Activity, at time.Time) error {
	column, ok := activityColumns[activity]
	if !ok {
		return fmt.Errorf("unknown activity %q", activity)
	}
	stamp := formatTime(at)
	// column comes from the fixed map above.
	query := fmt.Sprintf(`UPDATE clients SET %[1]s = ? WHERE id = ? AND (%[1]s IS NULL OR %[1]s < ?)`, column)
	res, err := s.conn(ctx).ExecContext(ctx, query, stamp, clientID, stamp)
	if err != nil {
		return fmt.Errorf("updating %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		_, err := s.GetClient(ctx, clientID)
		return err
	}
	return nil
}
