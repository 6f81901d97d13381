package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evanshop/storefront/internal/auth"
	"github.com/evanshop/storefront/internal/catalog"
)

type ProductStore interface {
	Create(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	GetByID(ctx context.Context, id string) (catalog.Product, error)
	List(ctx context.Context, category string) ([]catalog.Product, error)
	Update(ctx context.Context, id string, in catalog.ProductInput) (catalog.Product, error)
	SoftDelete(ctx context.Context, id string) error
}

type ProductsHandler struct {
	Store    ProductStore
	Sessions auth.SessionStore
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	admin := auth.Require(h.Sessions, auth.RoleAdmin)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.With(admin).Post("/", h.create)
		r.With(admin).Put("/{id}", h.update)
		r.With(admin).Delete("/{id}", h.delete)
	})
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if in.Name == "" || in.PriceCents < 0 || in.Quantity < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required; price and quantity must not be negative"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Create(ctx, in)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": p})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.List(ctx, r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.GetByID(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.Update(ctx, chi.URLParam(r, "id"), in)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p})
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Store.SoftDelete(ctx, chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
