package domain

import "time"

// AuthProvider identifies where a user's credentials come from.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "LOCAL"
	AuthProviderGoogle AuthProvider = "GOOGLE"
)

// Valid reports whether p is a known provider.
func (p AuthProvider) Valid() bool {
	return p == AuthProviderLocal || p == AuthProviderGoogle
}

// User represents an account. Username is the key for every session operation.
type User struct {
	ID                 int64        `json:"-" db:"id"`
	Username           string       `json:"username" db:"username"`
	Email              string       `json:"email" db:"email"`
	PasswordHash       *string      `json:"-" db:"password_hash"`
	HashedRefreshToken *string      `json:"-" db:"hashed_refresh_token"`
	Name               *string      `json:"name,omitempty" db:"name"`
	Image              *string      `json:"image,omitempty" db:"image"`
	Provider           AuthProvider `json:"provider" db:"provider"`
	ProviderID         *string      `json:"providerId,omitempty" db:"provider_id"`
	CreatedAt          time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time    `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether the user can log in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// LoggedIn reports whether the user holds an active refresh token.
func (u User) LoggedIn() bool {
	return u.HashedRefreshToken != nil
}

// OAuthProfile is the identity an OAuth provider returns after a successful
// authorization.
type OAuthProfile struct {
	Provider   AuthProvider
	ProviderID string
	Email      string
	Name       string
	Image      string
}

// ProfileUpdate holds the user-editable display fields. Nil means unchanged.
type ProfileUpdate struct {
	Name  *string
	Image *string
}
