package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sumire/recipebox/internal/domain"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 30

	// maxUsernameProbes bounds the base, base1, base2, ... search before
	// falling back to a random suffix.
	maxUsernameProbes = 100
)

// Resolution says how an OAuth profile was matched to a user.
type Resolution string

const (
	ResolutionExisting Resolution = "EXISTING_OAUTH"
	ResolutionLinked   Resolution = "LINKED"
	ResolutionCreated  Resolution = "CREATED"
)

// IdentityResolver reconciles an OAuth profile with a local user.
type IdentityResolver struct {
	users     UserStore
	maxProbes int
	suffix    func() string
}

// NewIdentityResolver creates a new IdentityResolver.
func NewIdentityResolver(users UserStore) *IdentityResolver {
	return &IdentityResolver{
		users:     users,
		maxProbes: maxUsernameProbes,
		suffix:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] },
	}
}

// Resolve finds the user for profile, in order: by provider and provider
// ID, by email (linking the provider to that account), or by creating a new
// password-less user with a free username derived from the email.
//
// Matching on provider ID first keeps a returning user attached to the same
// account even after their email changed at the provider.
func (r *IdentityResolver) Resolve(ctx context.Context, profile domain.OAuthProfile) (*domain.User, Resolution, error) {
	if err := validateProfile(profile); err != nil {
		return nil, "", err
	}

	user, resolution, err := r.resolve(ctx, profile)
	if errors.Is(err, domain.ErrConflict) {
		// A concurrent login created or linked the same identity first.
		user, resolution, err = r.resolve(ctx, profile)
	}
	if err != nil {
		return nil, "", err
	}
	return user, resolution, nil
}

func (r *IdentityResolver) resolve(ctx context.Context, profile domain.OAuthProfile) (*domain.User, Resolution, error) {
	user, err := r.users.FindByProviderID(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		return user, ResolutionExisting, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("find by provider: %w", err)
	}

	existing, err := r.users.FindByEmail(ctx, profile.Email)
	if err == nil {
		linked, err := r.users.LinkProvider(ctx, existing.Username, profile.Provider, profile.ProviderID, optional(profile.Image))
		if err != nil {
			return nil, "", fmt.Errorf("link provider: %w", err)
		}
		return linked, ResolutionLinked, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, "", fmt.Errorf("find by email: %w", err)
	}

	username, err := r.availableUsername(ctx, BaseUsername(profile.Email))
	if err != nil {
		return nil, "", err
	}

	name := profile.Name
	if name == "" {
		name = localPart(profile.Email)
	}
	providerID := profile.ProviderID

	created, err := r.users.Create(ctx, domain.User{
		Username:   username,
		Email:      profile.Email,
		Name:       &name,
		Image:      optional(profile.Image),
		Provider:   profile.Provider,
		ProviderID: &providerID,
	})
	if err != nil {
		return nil, "", fmt.Errorf("create oauth user: %w", err)
	}
	return created, ResolutionCreated, nil
}

func (r *IdentityResolver) availableUsername(ctx context.Context, base string) (string, error) {
	for i := 0; i < r.maxProbes; i++ {
		suffix := ""
		if i > 0 {
			suffix = strconv.Itoa(i)
		}
		candidate := withSuffix(base, suffix)
		free, err := r.usernameFree(ctx, candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}

	candidate := withSuffix(base, "_"+r.suffix())
	free, err := r.usernameFree(ctx, candidate)
	if err != nil {
		return "", err
	}
	if !free {
		return "", domain.Internal("allocate username", fmt.Errorf("no free username for base %q", base))
	}
	return candidate, nil
}

func (r *IdentityResolver) usernameFree(ctx context.Context, username string) (bool, error) {
	_, err := r.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, domain.ErrNotFound):
		return true, nil
	default:
		return false, fmt.Errorf("probe username %s: %w", username, err)
	}
}

// BaseUsername derives a username candidate from an email address: the local
// part, lower-cased, with every character outside [a-z0-9_] replaced by "_".
// Results shorter than the minimum username length are padded with "_".
func BaseUsername(email string) string {
	local := strings.ToLower(localPart(email))

	var b strings.Builder
	for _, r := range local {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	base := b.String()
	if len(base) < minUsernameLen {
		base += strings.Repeat("_", minUsernameLen-len(base))
	}
	return base
}

func withSuffix(base, suffix string) string {
	if keep := maxUsernameLen - len(suffix); len(base) > keep {
		base = base[:keep]
	}
	return base + suffix
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func validateProfile(p domain.OAuthProfile) error {
	switch {
	case !p.Provider.Valid():
		return domain.Errorf(domain.ErrInvalidInput, "unknown provider %q", p.Provider)
	case p.ProviderID == "":
		return domain.Errorf(domain.ErrInvalidInput, "provider id is required")
	case p.Email == "":
		return domain.Errorf(domain.ErrUnauthorized, "no email provided by %s", strings.ToLower(string(p.Provider)))
	}
	return nil
}
