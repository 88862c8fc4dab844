package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// PostgresUserStore implements the store.UserStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUserStore creates a new PostgreSQL implementation of the
// UserStore interface.
func NewPostgresUserStore(db store.DBTX, logger *slog.Logger) *PostgresUserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// Ensure PostgresUserStore implements store.UserStore interface
var _ store.UserStore = (*PostgresUserStore)(nil)

const userColumns = "id, username, name, surname, phone_number, role"

// Create implements store.UserStore.Create
func (s *PostgresUserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return store.NewStoreError("user", "create", "validation failed", err)
	}

	query := `
		INSERT INTO users (id, username, name, surname, phone_number, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Name,
		user.Surname,
		user.PhoneNumber,
		user.Role,
	)
	if err != nil {
		// Both the primary key and the phone number carry unique constraints;
		// the constraint name tells the two apart.
		if IsUniqueViolation(err) {
			if strings.Contains(violatedConstraint(err), "phone_number") {
				return fmt.Errorf("%w: %v", store.ErrPhoneNumberExists, err)
			}
			return fmt.Errorf("%w: user %d: %v", store.ErrDuplicate, user.ID, err)
		}
		s.logger.Error("failed to create user",
			"user_id", user.ID,
			"error", err)
		return fmt.Errorf("failed to create user: %w", MapError(err))
	}

	return nil
}

// GetByID implements store.UserStore.GetByID
func (s *PostgresUserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrUserNotFound
		}
		s.logger.Error("failed to get user",
			"user_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get user: %w", MapError(err))
	}
	return user, nil
}

// GetByPhoneNumber implements store.UserStore.GetByPhoneNumber
func (s *PostgresUserStore) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, phoneNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrUserNotFound
		}
		s.logger.Error("failed to get user by phone number", "error", err)
		return nil, fmt.Errorf("failed to get user by phone number: %w", MapError(err))
	}
	return user, nil
}

// ListByRole implements store.UserStore.ListByRole
func (s *PostgresUserStore) ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, role)
	if err != nil {
		s.logger.Error("failed to query users by role",
			"role", role,
			"error", err)
		return nil, fmt.Errorf("failed to query users by role: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			s.logger.Error("failed to scan user row", "error", err)
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("error iterating user rows", "error", err)
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	return users, nil
}

// UpdateUsername implements store.UserStore.UpdateUsername
func (s *PostgresUserStore) UpdateUsername(ctx context.Context, id int64, username string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = $1 WHERE id = $2`, username, id)
	if err != nil {
		s.logger.Error("failed to update username",
			"user_id", id,
			"error", err)
		return fmt.Errorf("failed to update username: %w", MapError(err))
	}

	return CheckRowsAffected(result, store.ErrUserNotFound)
}

// WithTx implements store.UserStore.WithTx
func (s *PostgresUserStore) WithTx(tx *sql.Tx) store.UserStore {
	return &PostgresUserStore{
		db:     tx,
		logger: s.logger,
	}
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Surname,
		&user.PhoneNumber,
		&user.Role,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
