package handler

import (
	"errors"
	"net/http"

	"github.com/go-user-service/internal/application/auth"
	"github.com/go-user-service/internal/domain"
)

// AuthHandler exposes login, second-factor and password reset endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		httpError(w, r, err)
		return
	}
	if res.Stage == auth.StageAwaitingSecondFactor {
		writeJSON(w, http.StatusOK, TokenEnvelope{Message: "2FA code sent"})
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: res.Token})
}

func (h *AuthHandler) VerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifySecondFactorRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.VerifySecondFactor(r.Context(), req.Identifier, req.Code)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: res.Token})
}

// RequestPasswordReset answers 202 whether or not the identifier exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req auth.PasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Identifier); err != nil && !errors.Is(err, domain.ErrPrincipalNotFound) {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "if the account exists, a reset token has been sent"})
}

func (h *AuthHandler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req auth.CompletePasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.CompletePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password updated"})
}
