package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sumire/recipebox/internal/domain"
	"github.com/sumire/recipebox/internal/security"
)

// UserStore defines the user data access interface consumed by AuthService
// and IdentityResolver.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (*domain.User, error)
	FindByProviderID(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	LinkProvider(ctx context.Context, username string, provider domain.AuthProvider, providerID string, image *string) (*domain.User, error)
	SetRefreshTokenHash(ctx context.Context, username string, hash *string) error
	SwapRefreshTokenHash(ctx context.Context, username, oldHash, newHash string) error
}

// Hasher hashes and verifies passwords and refresh tokens.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	HashToken(token string) (string, error)
	VerifyToken(token, digest string) bool
}

// Tokens issues and verifies signed tokens.
type Tokens interface {
	IssuePair(subjectID int64, username string) (security.TokenPair, error)
	VerifyAccessToken(token string) (*security.Claims, error)
	VerifyRefreshToken(token string) (*security.Claims, error)
}

// OAuthProvider runs the authorization code flow against an external provider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Profile(ctx context.Context, code string) (*domain.OAuthProfile, error)
}

// RegisterInput holds the fields needed to create a LOCAL account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

// AuthResult is returned by every operation that starts or renews a session.
type AuthResult struct {
	Tokens security.TokenPair
	User   *domain.User
}

var (
	errInvalidCredentials = domain.Errorf(domain.ErrUnauthorized, "invalid credentials")
	errAccessDenied       = domain.Errorf(domain.ErrForbidden, "access denied")
	errUserGone           = domain.Errorf(domain.ErrUnauthorized, "user not found")
	errGoogleDisabled     = domain.Errorf(domain.ErrNotFound, "google sign-in is not configured")
)

// AuthService handles registration, login, token rotation and logout.
type AuthService struct {
	users    UserStore
	hasher   Hasher
	tokens   Tokens
	resolver *IdentityResolver
	google   OAuthProvider
}

// NewAuthService creates a new AuthService. google may be nil when Google
// sign-in is not configured.
func NewAuthService(users UserStore, hasher Hasher, tokens Tokens, google OAuthProvider) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		resolver: NewIdentityResolver(users),
		google:   google,
	}
}

// Register creates a LOCAL user and starts a session for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	existing, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	switch {
	case err == nil:
		if existing.Username == in.Username {
			return nil, domain.Errorf(domain.ErrConflict, "username already exists")
		}
		return nil, domain.Errorf(domain.ErrConflict, "email already exists")
	case !errors.Is(err, domain.ErrNotFound):
		return nil, s.internal("register", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal("register", err)
	}

	name := in.Name
	user, err := s.users.Create(ctx, domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: &passwordHash,
		Name:         &name,
		Provider:     domain.AuthProviderLocal,
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, s.internal("register", err)
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, s.internal("register", err)
	}
	slog.Info("user registered", "username", user.Username)
	return result, nil
}

// Login verifies a password and starts a session, replacing any previous one.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, s.internal("login", err)
	}

	if !user.HasPassword() || !s.hasher.Verify(password, *user.PasswordHash) {
		return nil, errInvalidCredentials
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, s.internal("login", err)
	}
	return result, nil
}

// LoginWithOAuth starts a session for a user the IdentityResolver already
// established.
func (s *AuthService) LoginWithOAuth(ctx context.Context, user *domain.User) (*AuthResult, error) {
	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, s.internal("oauth login", err)
	}
	return result, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// single use: the stored hash is swapped only if it still matches the one
// read here, so concurrent refreshes with the same token cannot both succeed.
func (s *AuthService) Refresh(ctx context.Context, username, refreshToken string) (*AuthResult, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errAccessDenied
		}
		return nil, s.internal("refresh", err)
	}

	if !user.LoggedIn() || !s.hasher.VerifyToken(refreshToken, *user.HashedRefreshToken) {
		slog.Warn("refresh token rejected", "username", username, "logged_in", user.LoggedIn())
		return nil, errAccessDenied
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, s.internal("refresh", err)
	}
	newHash, err := s.hasher.HashToken(pair.RefreshToken)
	if err != nil {
		return nil, s.internal("refresh", err)
	}

	if err := s.users.SwapRefreshTokenHash(ctx, user.Username, *user.HashedRefreshToken, newHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("refresh token rotated concurrently", "username", username)
			return nil, errAccessDenied
		}
		return nil, s.internal("refresh", err)
	}
	user.HashedRefreshToken = &newHash

	return &AuthResult{Tokens: pair, User: user}, nil
}

// Logout ends the user's session. Logging out twice, or logging out a user
// that no longer exists, is not an error.
func (s *AuthService) Logout(ctx context.Context, username string) error {
	err := s.users.SetRefreshTokenHash(ctx, username, nil)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return s.internal("logout", err)
	}
	return nil
}

// Authenticate verifies an access token and loads the user it names.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.FindByUsername(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errUserGone
		}
		return nil, s.internal("authenticate", err)
	}
	return user, nil
}

// VerifyRefreshToken checks a refresh token's signature and expiry and
// returns its claims. It does not consult the stored hash.
func (s *AuthService) VerifyRefreshToken(refreshToken string) (*security.Claims, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, errAccessDenied
	}
	return claims, nil
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *AuthService) GoogleEnabled() bool {
	return s.google != nil
}

// GoogleAuthURL returns the Google OAuth authorization URL.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", errGoogleDisabled
	}
	return s.google.AuthCodeURL(state), nil
}

// GoogleCallback exchanges the authorization code, reconciles the Google
// identity with a local user and starts a session.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*AuthResult, error) {
	if s.google == nil {
		return nil, errGoogleDisabled
	}

	profile, err := s.google.Profile(ctx, code)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, s.internal("google callback", err)
	}

	user, resolution, err := s.resolver.Resolve(ctx, *profile)
	if err != nil {
		var domainErr *domain.Error
		if errors.As(err, &domainErr) || errors.Is(err, domain.ErrInternal) {
			return nil, err
		}
		return nil, s.internal("google callback", err)
	}
	slog.Info("oauth identity resolved", "username", user.Username, "provider", profile.Provider, "resolution", resolution)

	return s.LoginWithOAuth(ctx, user)
}

// ResolveOAuthUser exposes the identity resolver for callers that already
// hold a verified provider profile.
func (s *AuthService) ResolveOAuthUser(ctx context.Context, profile domain.OAuthProfile) (*domain.User, Resolution, error) {
	return s.resolver.Resolve(ctx, profile)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashToken(pair.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRefreshTokenHash(ctx, user.Username, &hash); err != nil {
		return nil, err
	}
	user.HashedRefreshToken = &hash

	return &AuthResult{Tokens: pair, User: user}, nil
}

func (s *AuthService) internal(op string, err error) error {
	slog.Error("auth operation failed", "op", op, "error", err)
	return domain.Internal(op, err)
}
