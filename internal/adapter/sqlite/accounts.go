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

type accountRow struct {
	ID        string `db:"id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Email     string `db:"email"`
	Staff     bool   `db:"is_staff"`
	CreatedAt string `db:"created_at"`
}

type profileRow struct {
	ID        string `db:"id"`
	AccountID string `db:"account_id"`
	Role      string `db:"role"`
	Phone     string `db:"phone"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// CreateAccount inserts an account. Usernames are unique.
func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO accounts (id, username, first_name, last_name, email, is_staff, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.FirstName, a.LastName, a.Email, a.Staff, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "username", Message: fmt.Sprintf("username %q is already taken", a.Username)}
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var row accountRow
	err := sqlx.GetContext(ctx, s.conn(ctx), &row,
		`SELECT id, username, first_name, last_name, email, is_staff, created_at FROM accounts WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, notFound("account", id)
		}
		return domain.Account{}, fmt.Errorf("querying account: %w", err)
	}

	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return domain.Account{
		ID:        row.ID,
		Username:  row.Username,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Staff:     row.Staff,
		CreatedAt: createdAt,
	}, nil
}

// CreateProfile inserts the profile of an account.
func (s *Store) CreateProfile(ctx context.Context, p domain.Profile) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO profiles (id, account_id, role, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, string(p.Role), p.Phone, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ValidationError{Field: "account_id", Message: "account already has a profile"}
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// GetProfileByAccount retrieves the profile owned by an account.
func (s *Store) GetProfileByAccount(ctx context.Context, accountID string) (domain.Profile, error) {
	var row profileRow
	err := sqlx.GetContext(ctx, s.conn(ctx), &row,
		`SELECT id, account_id, role, phone, created_at, updated_at FROM profiles WHERE account_id = ?`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{}, notFound("profile", accountID)
		}
		return domain.Profile{}, fmt.Errorf("querying profile: %w", err)
	}

	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("parsing created_at: %w", err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return domain.Profile{
		ID:        row.ID,
		AccountID: row.AccountID,
		Role:      domain.Role(row.Role),
		Phone:     row.Phone,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// UpdateRole changes the role tag of a profile.
func (s *Store) UpdateRole(ctx context.Context, profileID string, role domain.Role, at time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE profiles SET role = ?, updated_at = ? WHERE id = ?`, string(role), formatTime(at), profileID)
	if err != nil {
		return fmt.Errorf("updating profile role: %w", err)
	}
	return requireAffected(res, "profile", profileID)
}

var companionTables = map[domain.Role]string{
	domain.RoleClient:       "clients",
	domain.RoleTrainer:      "trainers",
	domain.RoleNutritionist: "nutritionists",
}

// HasCompanion reports whether the profile already owns a companion for role.
func (s *Store) HasCompanion(ctx context.Context, profileID string, role domain.Role) (bool, error) {
	table, ok := companionTables[role]
	if !ok {
		return false, nil
	}
	var n int
	// table comes from the fixed map above.
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE profile_id = ?`, table)
	if err := sqlx.GetContext(ctx, s.conn(ctx), &n, query, profileID); err != nil {
		return false, fmt.Errorf("checking %s companion: %w", role, err)
	}
	return n > 0, nil
}

// CreateCompanion inserts the companion record matching c.Role.
func (s *Store) CreateCompanion(ctx context.Context, c domain.Companion) error {
	var err error
	switch {
	case c.Role == domain.RoleClient && c.Client != nil:
		cl := c.Client
		_, err = s.conn(ctx).ExecContext(ctx,
			`INSERT INTO clients (id, profile_id, name, email, exercise_swaps_left, meal_swaps_left, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cl.ID, cl.ProfileID, cl.Name, cl.Email, cl.ExerciseSwapsLeft, cl.MealSwapsLeft, formatTime(cl.CreatedAt),
		)
	case c.Role == domain.RoleTrainer && c.Trainer != nil:
		tr := c.Trainer
		_, err = s.conn(ctx).ExecContext(ctx,
			`INSERT INTO trainers (id, profile_id, name, email, specialty, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			tr.ID, tr.ProfileID, tr.Name, tr.Email, tr.Specialty, formatTime(tr.CreatedAt),
		)
	case c.Role == domain.RoleNutritionist && c.Nutritionist != nil:
		n := c.Nutritionist
		_, err = s.conn(ctx).ExecContext(ctx,
			`INSERT INTO nutritionists (id, profile_id, name, email, specialty, crn, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.ProfileID, n.Name, n.Email, n.Specialty, n.CRN, formatTime(n.CreatedAt),
		)
	default:
		return fmt.Errorf("companion for role %q has no record", c.Role)
	}
	if err != nil {
		return fmt.Errorf("inserting %s companion: %w", c.Role, err)
	}
	return nil
}

// RemoveCompanion deletes the companion for role. A client is only removed
// while nothing references it; the foreign keys would otherwise cascade.
func (s *Store) RemoveCompanion(ctx context.Context, profileID string, role domain.Role) error {
	table, ok := companionTables[role]
	if !ok {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE profile_id = ?`, table)
	if role == domain.RoleClient {
		query += `
		  AND NOT EXISTS (SELECT 1 FROM workouts WHERE client_id = clients.id)
		  AND NOT EXISTS (SELECT 1 FROM diets WHERE client_id = clients.id)
		  AND NOT EXISTS (SELECT 1 FROM exchange_requests WHERE client_id = clients.id)`
	}
	res, err := s.conn(ctx).ExecContext(ctx, query, profileID)
	if err != nil {
		return fmt.Errorf("removing %s companion: %w", role, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	exists, err := s.HasCompanion(ctx, profileID, role)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrCompanionInUse
	}
	return nil
}

// ClientByProfile returns the client companion of a profile.
func (s *Store) ClientByProfile(ctx context.Context, profileID string) (domain.Client, error) {
	var row clientRow
	err := sqlx.GetContext(ctx, s.conn(ctx), &row, clientSelect+` WHERE profile_id = ?`, profileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Client{}, notFound("client", profileID)
		}
		return domain.Client{}, fmt.Errorf("querying client: %w", err)
	}
	return row.toDomain()
}
