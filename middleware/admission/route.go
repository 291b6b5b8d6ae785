package admission

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RouteFunc extrai a identidade da rota. Deve devolver o padrão registrado
// (ex: /api/v1/users/{id}) e não o path cru, para não multiplicar chaves.
type RouteFunc func(r *http.Request) string

// ChiRouteResolver resolve o padrão consultando o próprio router. Funciona
// mesmo quando o middleware roda antes do roteamento (r.Use no topo).
// Sem match, cai no path limpo.
func ChiRouteResolver(routes chi.Routes) RouteFunc {
	return func(r *http.Request) string {
		// já roteado (middleware montado com With/Group/Route)
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" && !strings.HasSuffix(p, "*") {
				return p
			}
		}
		if routes != nil {
			rctx := chi.NewRouteContext()
			if routes.Match(rctx, r.Method, r.URL.Path) {
				if p := rctx.RoutePattern(); p != "" {
					return p
				}
			}
		}
		return PathRoute(r)
	}
}

// PathRoute usa o path limpo como rota.
func PathRoute(r *http.Request) string {
	p := r.URL.Path
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
