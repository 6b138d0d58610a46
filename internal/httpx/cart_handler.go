package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/drinkshop/drinkshop-api/internal/cart"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	Repo *cart.Repo
}

type AddCartItemReq struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

func (h *CartHandler) Register(r *chi.Mux, a *auth.Service) {
	r.Group(func(g chi.Router) {
		g.Use(a.RequireUser)
		g.Post("/cart/items", h.addItem)
		g.Get("/cart", h.listItems)
		g.Delete("/cart/items/{id}", h.removeItem)
	})
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID <= 0 || req.Qty <= 0 {
		writeMessage(w, http.StatusBadRequest, "product_id and qty must be positive")
		return
	}
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Add(ctx, id.UserID, req.ProductID, req.Qty); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "added to cart")
}

func (h *CartHandler) listItems(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lines, err := h.Repo.List(ctx, id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.Remove(ctx, id.UserID, lineID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "removed from cart")
}
