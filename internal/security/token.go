package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrTokenInvalid covers bad signatures, malformed tokens, expiry and
// token-class mismatches alike.
var ErrTokenInvalid = errors.New("token invalid")

// Claims is the payload carried by both token classes.
type Claims struct {
	Username string `json:"username"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenPair holds an access token and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenIssuer signs and verifies access and refresh tokens, each class with
// its own secret.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The two secrets must be set and differ.
func NewTokenIssuer(accessSecret, refreshSecret []byte) (*TokenIssuer, error) {
	if len(accessSecret) == 0 || len(refreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(accessSecret) == string(refreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &TokenIssuer{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		now:           time.Now,
	}, nil
}

// IssueAccessToken signs a 15 minute access token.
func (t *TokenIssuer) IssueAccessToken(subjectID int64, username string) (string, error) {
	return t.sign(subjectID, username, tokenTypeAccess, AccessTokenTTL, t.accessSecret)
}

// IssueRefreshToken signs a 7 day refresh token.
func (t *TokenIssuer) IssueRefreshToken(subjectID int64, username string) (string, error) {
	return t.sign(subjectID, username, tokenTypeRefresh, RefreshTokenTTL, t.refreshSecret)
}

// IssuePair signs a fresh access and refresh token for the same subject.
func (t *TokenIssuer) IssuePair(subjectID int64, username string) (TokenPair, error) {
	access, err := t.IssueAccessToken(subjectID, username)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefreshToken(subjectID, username)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates an access token.
func (t *TokenIssuer) VerifyAccessToken(token string) (*Claims, error) {
	return t.verify(token, tokenTypeAccess, t.accessSecret)
}

// VerifyRefreshToken validates a refresh token.
func (t *TokenIssuer) VerifyRefreshToken(token string) (*Claims, error) {
	return t.verify(token, tokenTypeRefresh, t.refreshSecret)
}

func (t *TokenIssuer) sign(subjectID int64, username, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := t.now()
	claims := Claims{
		Username: username,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

func (t *TokenIssuer) verify(token, tokenType string, secret []byte) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Type != tokenType || claims.Username == "" {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
