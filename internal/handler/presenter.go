package handler

import (
	"time"

	"github.com/sumire/recipebox/internal/domain"
)

// UserResponse is the public view of a user. Credentials never leave the
// server: only the fields listed here are serialized.
type UserResponse struct {
	Username   string              `json:"username"`
	Email      string              `json:"email"`
	Name       *string             `json:"name"`
	Image      *string             `json:"image"`
	Provider   domain.AuthProvider `json:"provider"`
	ProviderID *string             `json:"providerId"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// UserEnvelope is the body of register and login.
type UserEnvelope struct {
	User UserResponse `json:"user"`
}

func presentUser(u *domain.User) UserResponse {
	return UserResponse{
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		Image:      u.Image,
		Provider:   u.Provider,
		ProviderID: u.ProviderID,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

func presentUsers(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, presentUser(&users[i]))
	}
	return out
}
