package handler

import (
	"encoding/json"
	"net/http"

	"github.com/agrismart-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OTPSentEnvelope acknowledges register and request-otp.
type OTPSentEnvelope struct {
	Status     string `json:"status"`
	UserTempID string `json:"user_temp_id,omitempty"`
	Message    string `json:"message"`
}

// SessionEnvelope is returned by a successful verify-otp.
type SessionEnvelope struct {
	Status       string    `json:"status"`
	User         *UserView `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
}

// TokenEnvelope is returned by refresh.
type TokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// UserView is the public projection of a user.
type UserView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email"`
	Language string  `json:"language"`
}

func toUserView(u *domain.User) *UserView {
	if u == nil {
		return nil
	}
	return &UserView{
		ID:       u.UserID,
		Name:     u.Name,
		Phone:    u.Phone,
		Email:    u.Email,
		Language: u.Language,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
