package product

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
)

const (
	maxJSONBodyBytes = 1 << 20
	defaultPageSize  = 12
	maxPageSize      = 100
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ListProducts serves the catalog listing. Query parameters select the
// mode: search wins over category, featured over both; plain listing
// otherwise. All modes paginate except featured.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := positiveIntOrDefault(query.Get("page"), 1)
	limit := positiveIntOrDefault(query.Get("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	if query.Get("featured") != "" {
		products, err := h.repo.Featured(r.Context(), limit)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to list products")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": products})
		return
	}

	if search := strings.TrimSpace(query.Get("search")); search != "" {
		products, err := h.repo.Search(r.Context(), search, limit, offset)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to search products")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    products,
			"query":   search,
			"page":    page,
		})
		return
	}

	if category := strings.TrimSpace(query.Get("category")); category != "" {
		products, err := h.repo.ByCategory(r.Context(), category, limit, offset)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to list products")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"data":     products,
			"category": category,
			"page":     page,
		})
		return
	}

	products, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	total, err := h.repo.CountActive(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    products,
		"pagination": Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.Categories(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": categories})
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	p, found, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to get product")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	p, err := h.repo.Create(r.Context(), input)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": p})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	p, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update product")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": p})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (ProductInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ProductInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return ProductInput{}, false
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = strings.TrimSpace(input.Category)
	input.ImageURL = strings.TrimSpace(input.ImageURL)

	if input.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return ProductInput{}, false
	}
	if !utf8.ValidString(input.Name) || len(input.Name) > 150 {
		writeError(w, http.StatusBadRequest, "name is invalid")
		return ProductInput{}, false
	}
	if input.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return ProductInput{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 1000 {
		writeError(w, http.StatusBadRequest, "description is invalid")
		return ProductInput{}, false
	}
	if input.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return ProductInput{}, false
	}
	if input.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must be >= 0")
		return ProductInput{}, false
	}
	if input.Stock < 0 {
		writeError(w, http.StatusBadRequest, "stock must be >= 0")
		return ProductInput{}, false
	}
	if len(input.ImageURL) > 500 {
		writeError(w, http.StatusBadRequest, "image_url is too long")
		return ProductInput{}, false
	}

	return input, true
}

func positiveIntOrDefault(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}
