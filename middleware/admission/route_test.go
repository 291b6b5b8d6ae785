package admission

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestChiRouteResolver_ResolvesPatternBeforeRouting(t *testing.T) {
	r := chi.NewRouter()
	var got string
	resolve := ChiRouteResolver(r)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got = resolve(req)
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api/v1/users/{id}", func(http.ResponseWriter, *http.Request) {})
	r.Route("/api/v2", func(sub chi.Router) {
		sub.Post("/chat", func(http.ResponseWriter, *http.Request) {})
	})

	cases := []struct {
		method, path, want string
	}{
		{http.MethodGet, "/api/v1/users/7", "/api/v1/users/{id}"},
		{http.MethodGet, "/api/v1/users/8", "/api/v1/users/{id}"},
		{http.MethodPost, "/api/v2/chat", "/api/v2/chat"},
		{http.MethodGet, "/nope/../missing//x", "/missing/x"},
	}
	for _, c := range cases {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(c.method, c.path, nil))
		if got != c.want {
			t.Fatalf("%s %s: expected %q, got %q", c.method, c.path, c.want, got)
		}
	}
}

func TestChiRouteResolver_UsesRoutedPatternInsideWith(t *testing.T) {
	r := chi.NewRouter()
	var got string
	resolve := ChiRouteResolver(nil)
	r.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got = resolve(req)
			next.ServeHTTP(w, req)
		})
	}).Get("/items/{id}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/3", nil))
	if got != "/items/{id}" {
		t.Fatalf("expected routed pattern, got %q", got)
	}
}

func TestPathRoute(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/a/./b/", nil)
	if got := PathRoute(r); got != "/a/b" {
		t.Fatalf("got %q", got)
	}
}
