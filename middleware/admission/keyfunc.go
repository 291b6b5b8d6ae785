package admission

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai a identidade do cliente.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc: subject autenticado (header opcional, vira "user:<id>"),
// depois o primeiro IP do X-Forwarded-For (se confiável), depois RemoteAddr.
func DefaultKeyFunc(subjectHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if subjectHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(subjectHeader)); v != "" {
				return "user:" + v
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
