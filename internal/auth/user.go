package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efish/efish/internal/email"
	"github.com/efish/efish/internal/krypto"
)

// User contains the data for a user.
type User struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	Email        email.Address
	PasswordHash krypto.Argon2Hash
	FirstName    string
	LastName     string
	Username     string
	Phone        string
	TimeZone     string
	AboutMe      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is the name we greet the user with: their full name
// if they provided one, otherwise their username.
func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// Credentials are used to authenticate a user.
type Credentials struct {
	Email    email.Address
	Password Password
}

// Registration is a request to create a new user.
type Registration struct {
	FirstName       string
	LastName        string
	Email           email.Address `schema:",required"`
	Password        Password      `schema:",required"`
	ConfirmPassword Password      `schema:",required"`
	// AccountID is the account to join, "NEW" or empty creates a new one.
	AccountID string
}

// Profile contains the fields of a user that the user can edit.
type Profile struct {
	Email     email.Address `schema:",required"`
	FirstName string
	LastName  string
	Username  string
	Phone     string
	TimeZone  string
	AboutMe   string
}

// ProfileOf returns the editable fields of u.
func ProfileOf(u User) Profile {
	return Profile{
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Phone:     u.Phone,
		TimeZone:  u.TimeZone,
		AboutMe:   u.AboutMe,
	}
}
