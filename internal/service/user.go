package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sumire/recipebox/internal/domain"
)

// UserDirectory is the read/write surface UserService needs.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	UpdateProfile(ctx context.Context, username string, update domain.ProfileUpdate) (*domain.User, error)
	Delete(ctx context.Context, username string) error
}

// UserService serves account profiles. Writes are limited to the owner.
type UserService struct {
	users UserDirectory
}

// NewUserService creates a new UserService.
func NewUserService(users UserDirectory) *UserService {
	return &UserService{users: users}
}

// Get returns the user with the given username.
func (s *UserService) Get(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, s.mapErr("get user", err)
	}
	return user, nil
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, s.mapErr("list users", err)
	}
	return users, nil
}

// UpdateProfile changes the display fields of the actor's own account.
func (s *UserService) UpdateProfile(ctx context.Context, actor *domain.User, username string, update domain.ProfileUpdate) (*domain.User, error) {
	if err := requireOwner(actor, username, "update"); err != nil {
		return nil, err
	}
	user, err := s.users.UpdateProfile(ctx, username, update)
	if err != nil {
		return nil, s.mapErr("update profile", err)
	}
	return user, nil
}

// Delete removes the actor's own account.
func (s *UserService) Delete(ctx context.Context, actor *domain.User, username string) error {
	if err := requireOwner(actor, username, "delete"); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, username); err != nil {
		return s.mapErr("delete user", err)
	}
	slog.Info("user deleted", "username", username)
	return nil
}

func requireOwner(actor *domain.User, username, action string) error {
	if actor == nil {
		return domain.ErrUnauthorized
	}
	if actor.Username != username {
		return domain.Errorf(domain.ErrForbidden, "you can only %s your own account", action)
	}
	return nil
}

func (s *UserService) mapErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Errorf(domain.ErrNotFound, "user not found")
	}
	slog.Error("user operation failed", "op", op, "error", err)
	return domain.Internal(op, err)
}
