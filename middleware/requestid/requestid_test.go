package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *http.Request) (string, *httptest.ResponseRecorder) {
	t.Helper()
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		assert.Equal(t, seen, r.Header.Get(Header), "upstream must receive the same id")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec
}

func TestMiddleware_GeneratesUUID(t *testing.T) {
	id, rec := serve(t, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Header().Get(Header))
}

func TestMiddleware_KeepsClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "abc-123")

	id, rec := serve(t, req)
	assert.Equal(t, "abc-123", id)
	assert.Equal(t, "abc-123", rec.Header().Get(Header))
}

func TestMiddleware_RejectsMalformedClientID(t *testing.T) {
	for _, bad := range []string{"has space", strings.Repeat("x", maxLen+1), "tab\tchar"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(Header, bad)

		id, _ := serve(t, req)
		assert.NotEqual(t, bad, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err, bad)
	}
}
