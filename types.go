package pairauth

import (
	"context"
	"time"
)

// UserRecord is the identity the Engine authenticates. The Engine only reads
// it; profile management belongs to the UserProvider.
type UserRecord struct {
	UserID        string
	Username      string
	Email         string
	FullName      string
	AvatarURL     string
	CoverImageURL string
	// PasswordHash is opaque to the Engine and handed to the CredentialVerifier.
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is a UserRecord without credential material.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName,omitempty"`
	AvatarURL     string    `json:"avatar,omitempty"`
	CoverImageURL string    `json:"coverImage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Public strips credential material from u.
func (u UserRecord) Public() PublicUser {
	return PublicUser{
		ID:            u.UserID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

// UserProvider resolves identities. Both lookups return ErrUserNotFound
// (optionally wrapped) when nothing matches; any other error is treated as
// an infrastructure failure.
type UserProvider interface {
	// GetUserByIdentifier matches identifier against username or email.
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
}

// CredentialVerifier checks a password against a stored credential record.
// A wrong password is (false, nil); errors are reserved for malformed records
// or infrastructure failures.
type CredentialVerifier interface {
	Verify(password, encodedHash string) (bool, error)
}

// LoginRequest carries the credentials of a login attempt.
type LoginRequest struct {
	// Identifier is a username or an email address.
	Identifier string
	Password   string
}

// TokenPair is the access and refresh token issued together.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User   PublicUser `json:"user"`
	Tokens TokenPair  `json:"-"`
	// Replaced reports that the login overwrote a live session.
	Replaced bool `json:"-"`
}

// AuthResult describes a verified access token.
type AuthResult struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
