package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

type planRow struct {
	ID                    string `db:"id"`
	Name                  string `db:"name"`
	DurationDays          int    `db:"duration_days"`
	ExerciseExchangeLimit int    `db:"exercise_exchange_limit"`
	MealExchangeLimit     int    `db:"meal_exchange_limit"`
	ExchangeWindowDays    int    `db:"exchange_window_days"`
	UnlimitedExchanges    bool   `db:"unlimited_exchanges"`
	CreatedAt             string `db:"created_at"`
}

// CreatePlan inserts a subscription plan.
func (s *Store) CreatePlan(ctx context.Context, p domain.Plan) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO plans (id, name, duration_days, exercise_exchange_limit, meal_exchange_limit, exchange_window_days, unlimited_exchanges, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.DurationDays, p.ExerciseExchangeLimit, p.MealExchangeLimit, p.ExchangeWindowDays,
		p.UnlimitedExchanges, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by ID.
func (s *Store) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	var row planRow
	err := sqlx.GetContext(ctx, s.conn(ctx), &row,
		`SELECT id, name, duration_days, exercise_exchange_limit, meal_exchange_limit, exchange_window_days,
		        unlimited_exchanges, created_at
		 FROM plans WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Plan{}, notFound("plan", id)
		}
		return domain.Plan{}, fmt.Errorf("querying plan: %w", err)
	}

	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return domain.Plan{
		ID:                    row.ID,
		Name:                  row.Name,
		DurationDays:          row.DurationDays,
		ExerciseExchangeLimit: row.ExerciseExchangeLimit,
		MealExchangeLimit:     row.MealExchangeLimit,
		ExchangeWindowDays:    row.ExchangeWindowDays,
		UnlimitedExchanges:    row.UnlimitedExchanges,
		CreatedAt:             createdAt,
	}, nil
}

// CreateWorkout inserts a workout and its exercises atomically.
func (s *Store) CreateWorkout(ctx context.Context, w domain.Workout) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO workouts (id, client_id, name, description, duration_minutes, assigned_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			w.ID, w.ClientID, w.Name, w.Description, w.DurationMinutes, w.AssignedBy, formatTime(w.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting workout: %w", err)
		}
		for _, e := range w.Exercises {
			_, err := s.conn(ctx).ExecContext(ctx,
				`INSERT INTO exercises (id, workout_id, name, description) VALUES (?, ?, ?, ?)`,
				e.ID, w.ID, e.Name, e.Description,
			)
			if err != nil {
				return fmt.Errorf("inserting exercise %q: %w", e.Name, err)
			}
		}
		return nil
	})
}

// CreateDiet inserts a diet and its meals atomically.
func (s *Store) CreateDiet(ctx context.Context, d domain.Diet) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO diets (id, client_id, name, description, calories, assigned_by, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.ClientID, d.Name, d.Description, d.Calories, d.AssignedBy, formatTime(d.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting diet: %w", err)
		}
		for _, m := range d.Meals {
			_, err := s.conn(ctx).ExecContext(ctx,
				`INSERT INTO meals (id, diet_id, name, description, calories) VALUES (?, ?, ?, ?, ?)`,
				m.ID, d.ID, m.Name, m.Description, m.Calories,
			)
			if err != nil {
				return fmt.Errorf("inserting meal %q: %w", m.Name, err)
			}
		}
		return nil
	})
}

var itemQueries = map[domain.ExchangeKind]string{
	domain.KindExercise: `SELECT e.id, e.name, w.client_id FROM exercises e JOIN workouts w ON w.id = e.workout_id WHERE e.id = ?`,
	domain.KindMeal:     `SELECT m.id, m.name, d.client_id FROM meals m JOIN diets d ON d.id = m.diet_id WHERE m.id = ?`,
}

type itemRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	ClientID string `db:"client_id"`
}

// GetItem resolves an exercise or meal together with the client it was assigned to.
func (s *Store) GetItem(ctx context.Context, kind domain.ExchangeKind, id string) (domain.Item, error) {
	query, ok := itemQueries[kind]
	if !ok {
		return domain.Item{}, fmt.Errorf("no catalog for kind %q", kind)
	}
	var row itemRow
	if err := sqlx.GetContext(ctx, s.conn(ctx), &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, notFound(string(kind), id)
		}
		return domain.Item{}, fmt.Errorf("querying %s: %w", kind, err)
	}
	return domain.Item{ID: row.ID, Kind: kind, Name: row.Name, ClientID: row.ClientID}, nil
}
