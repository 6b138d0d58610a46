package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/drinkshop/drinkshop-api/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CatalogHandler struct {
	Repo *catalog.Repo
}

type IngredientReq struct {
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *CatalogHandler) Register(r *chi.Mux, a *auth.Service) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}/recipe", h.getRecipe)

	r.Group(func(g chi.Router) {
		g.Use(a.RequireUser, auth.RequireStaff)
		g.Get("/ingredients", h.listIngredients)
		g.Post("/ingredients", h.createIngredient)
		g.Put("/ingredients/{id}", h.updateIngredient)
		g.Delete("/ingredients/{id}", h.deleteIngredient)
	})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	recipe, err := h.Repo.GetRecipe(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (h *CatalogHandler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Repo.ListIngredients(ctx, r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var req IngredientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity.IsNegative() {
		writeMessage(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ing, err := h.Repo.CreateIngredient(ctx, req.Name, req.Unit, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ing)
}

func (h *CatalogHandler) updateIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req IngredientReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity.IsNegative() {
		writeMessage(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdateIngredient(ctx, id, req.Name, req.Unit, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "ingredient updated")
}

func (h *CatalogHandler) deleteIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.DeleteIngredient(ctx, id); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "ingredient deleted")
}
