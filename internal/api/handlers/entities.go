package handlers

import (
	"net/http"

	"github.com/dvloznov/spendbook/internal/api/middleware"
	"github.com/dvloznov/spendbook/internal/catalog"
	"github.com/dvloznov/spendbook/internal/domain"
)

// EntitiesHandler handles entity catalog endpoints.
type EntitiesHandler struct {
	catalog *catalog.Service
}

func NewEntitiesHandler(c *catalog.Service) *EntitiesHandler {
	return &EntitiesHandler{catalog: c}
}

// List handles GET /api/entities?category=
func (h *EntitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	var category domain.Category
	if c := r.URL.Query().Get("category"); c != "" {
		parsed, err := domain.ParseCategory(c)
		if err != nil {
			middleware.WriteServiceError(w, r, "Invalid category", err)
			return
		}
		category = parsed
	}

	entities, err := h.catalog.List(r.Context(), category)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to list entities", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entities": entities,
		"count":    len(entities),
	})
}

// Create handles POST /api/entities
func (h *EntitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in catalog.EntityInput
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteServiceError(w, r, "Invalid request body", err)
		return
	}
	e, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to create entity", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, e)
}

// Get handles GET /api/entities/{id}
func (h *EntitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to get entity", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, e)
}

// Update handles PUT /api/entities/{id}
func (h *EntitiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in catalog.EntityInput
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteServiceError(w, r, "Invalid request body", err)
		return
	}
	e, err := h.catalog.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to update entity", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, e)
}

// Delete handles DELETE /api/entities/{id}
func (h *EntitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), r.PathValue("id")); err != nil {
		middleware.WriteServiceError(w, r, "Failed to delete entity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Root handles GET /api/entities/{id}/root
func (h *EntitiesHandler) Root(w http.ResponseWriter, r *http.Request) {
	e, err := h.catalog.TopParent(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.WriteServiceError(w, r, "Failed to resolve parent", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, e)
}
