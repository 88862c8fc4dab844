package store

import (
	"context"
	"database/sql"

	"github.com/taskpulse/taskpulse/internal/domain"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	// Create saves a new user to the store. The user's ID is supplied by the
	// chat transport, not generated.
	// Returns ErrPhoneNumberExists if another user already holds the phone
	// number, and ErrDuplicate if the ID itself is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByPhoneNumber retrieves the user registered with the given phone
	// number. Returns ErrUserNotFound if no user holds it.
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.User, error)

	// ListByRole retrieves all users holding the given role.
	ListByRole(ctx context.Context, role domain.Role) ([]*domain.User, error)

	// UpdateUsername refreshes the display handle for an existing user.
	// Returns ErrUserNotFound if the user does not exist.
	UpdateUsername(ctx context.Context, id int64, username string) error

	// WithTx returns a new UserStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) UserStore
}
