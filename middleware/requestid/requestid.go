// Package requestid propaga um identificador por requisição para correlação
// de logs entre o gateway e o backend.
package requestid

import (
	"context"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Header é o header aceito na entrada e devolvido na resposta.
const Header = "X-Request-ID"

// tamanho máximo aceito vindo do cliente
const maxLen = 128

type ctxKey struct{}

// Middleware reaproveita um ID já presente (chi RequestID ou header do
// cliente) ou gera um UUID novo. O ID também segue para o upstream.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chimw.GetReqID(r.Context())
		if id == "" {
			id = sanitize(r.Header.Get(Header))
		}
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(Header, id)
		r.Header.Set(Header, id)

		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext devolve "" quando não há ID.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return chimw.GetReqID(ctx)
}

func sanitize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxLen {
		return ""
	}
	for _, c := range v {
		if c < 0x21 || c > 0x7e {
			return ""
		}
	}
	return v
}
