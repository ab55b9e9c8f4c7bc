package adjustments

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *memoryStore) http.Handler {
	h := NewHandler(slog.New(slog.DiscardHandler), newTestService(store))
	r := chi.NewRouter()
	r.Route("/adjustments", h.MountRoutes)
	return r
}

func TestHandlerCreate(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	router := newTestRouter(store)

	body := `{"warehouse_id":1,"date":"2026-03-01","items":[{"product_id":1,"quantity":2,"type":"add"}]}`
	req := httptest.NewRequest(http.MethodPost, "/adjustments", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Success      bool   `json:"success"`
		AdjustmentID int64  `json:"adjustment_id"`
		Reference    string `json:"reference"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotZero(t, resp.AdjustmentID)
	require.Contains(t, resp.Reference, "ADJ-")
	require.Equal(t, 12.0, store.stock[1])
	require.Equal(t, int64(9), store.adjustments[resp.AdjustmentID].CreatedBy)
}

func TestHandlerCreateMissingFieldsIs400(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	req := httptest.NewRequest(http.MethodPost, "/adjustments", strings.NewReader(`{"date":"2026-03-01"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "validation_failed", resp.Error)
	require.Contains(t, resp.Detail, "warehouse_id")
}

func TestHandlerShowUnknownIs404(t *testing.T) {
	router := newTestRouter(newMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/adjustments/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerDeleteReversesStock(t *testing.T) {
	store := newMemoryStore()
	store.stock[1] = 10
	router := newTestRouter(store)

	body := `{"warehouse_id":1,"date":"2026-03-01","items":[{"product_id":1,"quantity":5,"type":"subtract"}]}`
	req := httptest.NewRequest(http.MethodPost, "/adjustments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 5.0, store.stock[1])

	var resp struct {
		AdjustmentID int64 `json:"adjustment_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	del := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/adjustments/%d", resp.AdjustmentID), nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, del)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 10.0, store.stock[1])
}
