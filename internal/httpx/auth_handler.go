package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Auth *auth.Service
}

type LoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResp struct {
	Token string    `json:"token"`
	User  auth.User `json:"user"`
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/auth/login", h.login)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token, user, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResp{Token: token, User: user})
}
