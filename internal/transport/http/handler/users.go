package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-user-service/internal/application/user"
	"github.com/go-user-service/internal/domain"
	"github.com/go-user-service/internal/transport/http/middleware"
)

// UserHandler handles registration and the caller's own profile.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSafeUser(u))
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}

// TwoFactor handles POST /users/me/2fa/{action} with action enable or disable.
func (h *UserHandler) TwoFactor(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var enabled bool
	switch chi.URLParam(r, "action") {
	case "enable":
		enabled = true
	case "disable":
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	u, err := h.svc.SetTwoFactor(r.Context(), claims.UserID, enabled)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSafeUser(u))
}
