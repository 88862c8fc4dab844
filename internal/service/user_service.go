package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taskpulse/taskpulse/internal/domain"
	"github.com/taskpulse/taskpulse/internal/store"
)

// RegisterUserParams carries the registration data supplied by the gateway.
type RegisterUserParams struct {
	UserID      int64
	Username    string
	Name        string
	Surname     string
	PhoneNumber string
	Role        domain.Role
}

// UserService provides user registration and lookups.
type UserService interface {
	// Register creates the user or, when the same identity is already
	// registered, refreshes a changed username. Returns the stored user and
	// whether this call created it. A phone number already registered to a
	// different identity yields store.ErrPhoneNumberExists.
	Register(ctx context.Context, params RegisterUserParams) (*domain.User, bool, error)

	// GetUser retrieves a user by their transport ID.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// UserServiceImpl implements the UserService interface.
type UserServiceImpl struct {
	userStore store.UserStore
	tx        store.TxRunner
	logger    *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userStore store.UserStore, tx store.TxRunner, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		userStore: userStore,
		tx:        tx,
		logger:    logger.With("component", "user_service"),
	}
}

// Register creates or refreshes the calling identity.
func (s *UserServiceImpl) Register(ctx context.Context, params RegisterUserParams) (*domain.User, bool, error) {
	user, err := domain.NewUser(
		params.UserID,
		params.Username,
		params.Name,
		params.Surname,
		params.PhoneNumber,
		params.Role,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build user: %w", err)
	}

	var (
		result  *domain.User
		created bool
	)

	err = s.tx.RunTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.userStore.WithTx(tx)

		existing, err := txStore.GetByID(ctx, params.UserID)
		if err == nil {
			// Same identity registering again: idempotent, but pick up a
			// username change from the transport.
			if user.Username != existing.Username {
				if err := txStore.UpdateUsername(ctx, existing.ID, user.Username); err != nil {
					return fmt.Errorf("failed to refresh username: %w", err)
				}
				existing.Username = user.Username
			}
			result = existing
			return nil
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("failed to look up user: %w", err)
		}

		// New identity: the phone number must not already belong to someone
		// else. The unique constraint still backstops a racing registration.
		owner, err := txStore.GetByPhoneNumber(ctx, params.PhoneNumber)
		if err == nil {
			return fmt.Errorf("phone number belongs to user %d: %w", owner.ID, store.ErrPhoneNumberExists)
		}
		if !errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("failed to look up phone number: %w", err)
		}

		if err := txStore.Create(ctx, user); err != nil {
			return err
		}
		result = user
		created = true
		return nil
	})

	if err != nil {
		if errors.Is(err, store.ErrPhoneNumberExists) {
			s.logger.Debug("phone number already registered to a different identity",
				"user_id", params.UserID)
		} else {
			s.logger.Error("failed to register user",
				"error", err,
				"user_id", params.UserID)
		}
		return nil, false, err
	}

	if created {
		s.logger.Info("user registered",
			"user_id", result.ID,
			"role", result.Role)
	} else {
		s.logger.Debug("repeat registration treated as no-op",
			"user_id", result.ID)
	}

	return result, created, nil
}

// GetUser retrieves a user by their transport ID.
func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrUserNotFound) {
			s.logger.Error("failed to retrieve user",
				"error", err,
				"user_id", userID)
		}
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}
