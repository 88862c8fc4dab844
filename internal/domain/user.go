package domain

import (
	"errors"
	"fmt"
)

// Common validation errors for users
var (
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
	ErrEmptyName        = errors.New("name cannot be empty")
	ErrEmptySurname     = errors.New("surname cannot be empty")
	ErrEmptyPhoneNumber = errors.New("phone number cannot be empty")
	ErrInvalidRole      = errors.New("invalid role")
)

// Role distinguishes the two kinds of participants. Approvers create, edit
// and delete tasks and receive completion and comment notifications;
// assignees receive assignments and act on them. The original domain called
// these "rector" and "staff".
type Role string

const (
	RoleApprover Role = "approver"
	RoleAssignee Role = "assignee"
)

// ParseRole converts a wire value into a Role.
// Returns ErrInvalidRole for anything outside the known set.
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleApprover, RoleAssignee:
		return Role(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
}

// User represents a registered participant. The ID is supplied by the chat
// transport and is stable; the phone number is unique across all users.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username,omitempty"`
	Name        string `json:"name"`
	Surname     string `json:"surname"`
	PhoneNumber string `json:"phone_number"`
	Role        Role   `json:"role"`
}

// NewUser creates a new User with the given attributes. An empty username is
// replaced with a derived "user_<id>" handle so downstream listings always
// have something to render.
// Returns an error if validation fails.
func NewUser(id int64, username, name, surname, phoneNumber string, role Role) (*User, error) {
	if username == "" {
		username = fmt.Sprintf("user_%d", id)
	}

	user := &User{
		ID:          id,
		Username:    username,
		Name:        name,
		Surname:     surname,
		PhoneNumber: phoneNumber,
		Role:        role,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
// Returns an error if any field fails validation.
func (u *User) Validate() error {
	if u.ID == 0 {
		return ErrEmptyUserID
	}
	if u.Name == "" {
		return ErrEmptyName
	}
	if u.Surname == "" {
		return ErrEmptySurname
	}
	if u.PhoneNumber == "" {
		return ErrEmptyPhoneNumber
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}

// DisplayName returns the user's full name for notification text.
func (u *User) DisplayName() string {
	return u.Name + " " + u.Surname
}
