package dto

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/oauth-service/internal/domain"
)

// -------- Me / Admin --------

type MeResponse struct {
	Name      string    `json:"name"`
	FullName  string    `json:"fullname"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func MeFromUser(u *domain.User) MeResponse {
	return MeResponse{
		Name:      u.Name,
		FullName:  u.FullName,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// -------- Refresh --------

// RefreshResponse never carries token material back to the browser.
type RefreshResponse struct {
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	HasRefreshToken bool   `json:"has_refresh_token"`
}

func RefreshFromToken(t *domain.OAuthToken) RefreshResponse {
	return RefreshResponse{
		TokenType:       t.TokenType,
		ExpiresIn:       t.ExpiresIn,
		HasRefreshToken: t.RefreshToken != "",
	}
}
