package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/little-lemon/internal/catalog"
)

type CatalogHandler struct {
	Store CatalogStore
	Log   *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(managerUnlessRead(h.Log))

		r.Get("/categories", h.listCategories)
		r.Post("/categories", h.createCategory)
		r.Get("/categories/{id}", h.getCategory)
		r.Put("/categories/{id}", h.updateCategory(true))
		r.Patch("/categories/{id}", h.updateCategory(false))
		r.Delete("/categories/{id}", h.deleteCategory)

		r.Get("/menu-items", h.listMenuItems)
		r.Post("/menu-items", h.createMenuItem)
		r.Get("/menu-items/{id}", h.getMenuItem)
		r.Put("/menu-items/{id}", h.updateMenuItem(true))
		r.Patch("/menu-items/{id}", h.updateMenuItem(false))
		r.Delete("/menu-items/{id}", h.deleteMenuItem)
	})
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	list, err := h.Store.ListCategories(ctx)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var p catalog.CategoryPatch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := p.Validate(true); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	c, err := h.Store.CreateCategory(ctx, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	c, err := h.Store.GetCategory(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) updateCategory(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		var p catalog.CategoryPatch
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if err := p.Validate(full); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		defer cancel()
		c, err := h.Store.UpdateCategory(ctx, id, p)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (h *CatalogHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := h.Store.DeleteCategory(ctx, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) listMenuItems(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.ParseMenuQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	list, err := h.Store.ListMenuItems(ctx, q)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var p catalog.MenuItemPatch
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := p.Validate(true); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	m, err := h.Store.CreateMenuItem(ctx, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *CatalogHandler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()
	m, err := h.Store.GetMenuItem(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *CatalogHandler) updateMenuItem(full bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		var p catalog.MenuItemPatch
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		if err := p.Validate(full); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
		defer cancel()
		m, err := h.Store.UpdateMenuItem(ctx, id, p)
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (h *CatalogHandler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()
	if err := h.Store.DeleteMenuItem(ctx, id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
