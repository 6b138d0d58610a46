package httpx

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/drinkshop/drinkshop-api/internal/auth"
	"github.com/drinkshop/drinkshop-api/internal/cart"
	"github.com/drinkshop/drinkshop-api/internal/catalog"
	"github.com/drinkshop/drinkshop-api/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// writeError maps business failures to 4xx with their own message and
// everything unexpected to a generic 500. Internal details are logged,
// never returned.
func writeError(w http.ResponseWriter, err error) {
	var recipeMissing *orders.RecipeMissingError
	var insufficient *orders.InsufficientStockError

	switch {
	case errors.Is(err, orders.ErrEmptyCart):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &recipeMissing), errors.As(err, &insufficient),
		errors.Is(err, orders.ErrInvalidState):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, cart.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, orders.ErrVoucherNotFound), errors.Is(err, catalog.ErrIngredientInUse):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// parsePage reads ?page and ?page_size with the usual clamps.
func parsePage(r *http.Request) (limit, offset int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if size < 1 {
		size = 10
	}
	if size > 50 {
		size = 50
	}
	return size, (page - 1) * size
}
