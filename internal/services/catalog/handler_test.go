package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"littlelemon/internal/access"
)

func serve(t *testing.T, h *Handler, actor access.Actor, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	r = r.WithContext(access.WithActor(r.Context(), actor))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestHandlerListMenuItems(t *testing.T) {
	_, svc := seeded()
	h := NewHandler(svc, testLogger())

	w := serve(t, h, access.Actor{}, http.MethodGet, "/menu-items?ordering=-price&page_size=2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Count    int `json:"count"`
		NextPage *int `json:"next_page"`
		Results  []struct {
			ID int64 `json:"id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Count)
	require.NotNil(t, page.NextPage)
	assert.Equal(t, 2, *page.NextPage)
	require.Len(t, page.Results, 2)
	assert.Equal(t, int64(2), page.Results[0].ID)

	w = serve(t, h, access.Actor{}, http.MethodGet, "/categories/2/menu-items", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestHandlerPatchFeatured(t *testing.T) {
	store, svc := seeded()
	h := NewHandler(svc, testLogger())

	w := serve(t, h, customer, http.MethodPatch, "/menu-items/2", `{"featured": true, "title": "x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, h, access.Actor{}, http.MethodPatch, "/menu-items/2", `{"featured": true}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(t, h, manager, http.MethodPatch, "/menu-items/2", `{"featured": true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{2}, store.featuredIDs())

	w = serve(t, h, manager, http.MethodPatch, "/menu-items/2", `{"featured": true, "colour": "red"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerDeleteMenuItem(t *testing.T) {
	_, svc := seeded()
	h := NewHandler(svc, testLogger())

	w := serve(t, h, customer, http.MethodDelete, "/menu-items/3", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(t, h, manager, http.MethodDelete, "/menu-items/3", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(t, h, manager, http.MethodGet, "/menu-items/3", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
