package product

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"bad json", `{"name":`, "invalid json body"},
		{"unknown field", `{"name":"x","bogus":true}`, "invalid json body"},
		{"missing name", `{"description":"d","price":1,"category":"c","stock":1}`, "name is required"},
		{"name too long", `{"name":"` + strings.Repeat("x", 151) + `","description":"d","price":1,"category":"c","stock":1}`, "name is invalid"},
		{"missing description", `{"name":"n","price":1,"category":"c","stock":1}`, "description is required"},
		{"missing category", `{"name":"n","description":"d","price":1,"stock":1}`, "category is required"},
		{"negative price", `{"name":"n","description":"d","price":-1,"category":"c","stock":1}`, "price must be >= 0"},
		{"negative stock", `{"name":"n","description":"d","price":1,"category":"c","stock":-1}`, "stock must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			_, ok := parseInput(rec, req)
			require.False(t, ok)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestParseInputAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(
		`{"name":" Widget ","description":"A widget","price":9.99,"category":"tools","stock":5,"imageUrl":"","featured":true}`))
	rec := httptest.NewRecorder()

	input, ok := parseInput(rec, req)
	require.True(t, ok)
	assert.Equal(t, "Widget", input.Name)
	assert.Equal(t, 9.99, input.Price)
	assert.Equal(t, 5, input.Stock)
	assert.True(t, input.Featured)
}

func TestParseID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := parseID(w, r); !ok {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	for target, status := range map[string]int{
		"/products/42":       http.StatusNoContent,
		"/products/abc":      http.StatusBadRequest,
		"/products/-5":       http.StatusBadRequest,
		"/products/0":        http.StatusBadRequest,
		"/products/9999999":  http.StatusNoContent,
		"/products/1.5":      http.StatusBadRequest,
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, target)
	}
}

func TestCategoriesRouteNotShadowedByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []string{"cases", "gpus"}})
	})
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := parseID(w, r); !ok {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/products/categories", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, []string{"cases", "gpus"}, body.Data)
}

func TestPositiveIntOrDefault(t *testing.T) {
	assert.Equal(t, 1, positiveIntOrDefault("", 1))
	assert.Equal(t, 12, positiveIntOrDefault("garbage", 12))
	assert.Equal(t, 12, positiveIntOrDefault("-3", 12))
	assert.Equal(t, 12, positiveIntOrDefault("0", 12))
	assert.Equal(t, 7, positiveIntOrDefault(" 7 ", 1))
}
