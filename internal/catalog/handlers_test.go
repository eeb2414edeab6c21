package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/catalog"
)

func newRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	catalog.NewHandler(catalog.HandlerConfig{Service: f.service}).Routes(r)
	return r
}

func TestHandlerGetAndList(t *testing.T) {
	second := breakfast()
	second.Code = "LUNCH"
	second.ContainerItem = "LUNCH-BOX"
	router := newRouter(newFixture(t, breakfast(), second))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bundles/BREAKFAST", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data struct {
			Code  string `json:"code"`
			Price string `json:"price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "BREAKFAST", got.Data.Code)
	require.Equal(t, "120", got.Data.Price)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bundles?limit=1&page=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			Code string `json:"code"`
		} `json:"data"`
		Pagination struct {
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	require.Equal(t, "LUNCH", list.Data[0].Code)
	require.Equal(t, 2, list.Pagination.TotalItems)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bundles/NOPE", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}

func TestHandlerPut(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	body := `{"name":"Breakfast","containerItem":"BREAKFAST-BOX","price":"120",
"constituents":[{"itemCode":"COFFEE","regularRate":"100","qty":"1","uom":"Cup"}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/bundles/BREAKFAST", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, f.store.bundles, "BREAKFAST")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/bundles/BREAKFAST", strings.NewReader(`{"price":"10"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"VALIDATION_FAILED"`)
	require.Contains(t, rec.Body.String(), `"containerItem"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/bundles/BREAKFAST",
		strings.NewReader(`{"containerItem":"BREAKFAST-BOX","price":"-1"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"BUNDLE_MISCONFIGURED"`)
}

func TestHandlerQuote(t *testing.T) {
	router := newRouter(newFixture(t, breakfast()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bundles/BREAKFAST/quote?qty=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data struct {
			Qty     int `json:"qty"`
			Summary struct {
				ExpectedTotal        string `json:"expectedTotal"`
				MatchWithinTolerance bool   `json:"matchWithinTolerance"`
			} `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 3, got.Data.Qty)
	require.Equal(t, "360", got.Data.Summary.ExpectedTotal)
	require.True(t, got.Data.Summary.MatchWithinTolerance)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bundles/BREAKFAST/quote?qty=-2", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
