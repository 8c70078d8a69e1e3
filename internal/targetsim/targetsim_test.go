package targetsim

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndSearch(t *testing.T) {
	s := New()
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"User_abc","email":"abc@example.com","phoneNumber":"9812345678","address":"Address_x"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	userID := gjson.Get(rec.Body.String(), "id").Int()
	assert.Positive(t, userID)

	rec = do(t, h, http.MethodPost, "/api/products", `{"name":"Product_xyz","price":19.99}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/users/search?name=", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "#").Int())

	rec = do(t, h, http.MethodGet, "/api/products/search?name=product", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product_xyz", gjson.Get(rec.Body.String(), "0.name").String())

	rec = do(t, h, http.MethodGet, "/api/users/search?name=nobody", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestSearchRequiresNameParameter(t *testing.T) {
	rec := do(t, New().Handler(), http.MethodGet, "/api/users/search", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderReferencesMustExist(t *testing.T) {
	s := New()
	s.Seed([]User{{Name: "User_a", Email: "a@example.com"}}, []Product{{Name: "Product_a", Price: 10}})
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/orders", `{"user":{"id":1},"product":{"id":2},"quantity":3}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "User_a", gjson.Get(rec.Body.String(), "user.name").String())

	rec = do(t, h, http.MethodPost, "/api/orders", `{"user":{"id":99},"product":{"id":2},"quantity":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	_, _, orders, _ := s.Counts()
	assert.Equal(t, 1, orders)
}

func TestFailWith(t *testing.T) {
	s := New()
	s.FailWith = http.StatusInternalServerError
	rec := do(t, s.Handler(), http.MethodPost, "/api/logs", `{"message":"x","timestamp":"2026-01-01 00:00:00"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.EqualValues(t, 1, s.Requests())

	_, _, _, logs := s.Counts()
	assert.Zero(t, logs)
}

func TestRejectsInvalidBodies(t *testing.T) {
	h := New().Handler()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/users", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/products", `{"name":"p","price":0}`).Code)
}
