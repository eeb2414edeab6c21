package common

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.9:5123"
	require.Equal(t, "10.0.0.9", ClientIP(r))

	r.Header.Set("X-Real-IP", "172.16.0.4")
	require.Equal(t, "172.16.0.4", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	require.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	r := httptest.NewRequest("GET", "/?page=2&limit=2", nil)
	page, meta := Paginate(items, ParsePagination(r, 20))
	require.Equal(t, []int{3, 4}, page)
	require.Equal(t, Pagination{Page: 2, PerPage: 2, TotalItems: 5}, meta)

	r = httptest.NewRequest("GET", "/?page=4&limit=2", nil)
	page, meta = Paginate(items, ParsePagination(r, 20))
	require.Empty(t, page)
	require.Equal(t, 5, meta.TotalItems)

	r = httptest.NewRequest("GET", "/?page=-1&limit=500", nil)
	p := ParsePagination(r, 20)
	require.Equal(t, 1, p.Page)
	require.Equal(t, MaxPerPage, p.PerPage)
}
