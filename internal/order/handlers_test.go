package order_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-bundles/internal/order"
)

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestOrderHandlersFlow(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	order.NewHandler(order.HandlerConfig{Service: f.service}).Routes(r)

	rec := serve(t, r, http.MethodPost, "/orders", `{"customer":"Ani","currency":"idr"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	base := "/orders/" + created.Data.ID

	rec = serve(t, r, http.MethodPost, base+"/bundles", `{"bundle":"BREAKFAST-BOX","qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"matchWithinTolerance":true`)

	rec = serve(t, r, http.MethodPost, base+"/items", `{"itemCode":"TEA","uom":"Cup","qty":"1","rate":"15"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, r, http.MethodPut, base+"/tax", `{"amount":"13.5"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var taxed struct {
		Data struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &taxed))
	require.Equal(t, "148.5", taxed.Data.GrandTotal)

	rec = serve(t, r, http.MethodPost, base+"/submit", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"submitted"`)

	rec = serve(t, r, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"bundle_parent"`)
}

func TestOrderHandlersErrors(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	order.NewHandler(order.HandlerConfig{Service: f.service}).Routes(r)

	rec := serve(t, r, http.MethodGet, "/orders/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, r, http.MethodPost, "/orders", `{"customer":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"VALIDATION_FAILED"`)

	rec = serve(t, r, http.MethodPost, "/orders", `{"customer":"Ani"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created.Data.ID

	rec = serve(t, r, http.MethodPost, "/orders/"+id+"/bundles", `{"bundle":"BREAKFAST","qty":0}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(t, r, http.MethodPost, "/orders/"+id+"/bundles", `{"bundle":"BREAKFAST","qty":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	f.store.tamper(uuid.MustParse(id), "COFFEE", func(l *order.Line) { l.Amount = d("1") })

	rec = serve(t, r, http.MethodPost, "/orders/"+id+"/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), `"code":"BUNDLE_CONTRACT_VIOLATION"`)
	require.Contains(t, rec.Body.String(), `"violation":"child_group_total"`)
}
