package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/agrismart-api/internal/application/auth"
	"github.com/agrismart-api/internal/domain"
	"github.com/agrismart-api/internal/pkg/validate"
	"github.com/agrismart-api/internal/transport/http/middleware"
)

const (
	statusOTPSent = "otp_sent"
	statusSuccess = "success"
)

// AuthHandler serves the phone OTP login endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPSentEnvelope{
		Status:     statusOTPSent,
		UserTempID: res.UserTempID,
		Message:    res.Message,
	})
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.RequestOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestOTP(r.Context(), req.Phone); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OTPSentEnvelope{Status: statusOTPSent, Message: auth.OTPSentMessage})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	u, pair, err := h.svc.VerifyOTP(r.Context(), req.Phone, req.OTP)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{
		Status:       statusSuccess,
		User:         toUserView(u),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req auth.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	pair, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		// A valid token for a vanished or inactive account is still an
		// authentication failure for the caller.
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found or inactive")
			return
		}
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.CurrentUser(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "user not found or inactive")
			return
		}
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u))
}

// decode reads a JSON body into dst and validates it, writing 400 or 422 on
// failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}
