package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"fixedwindow-gateway/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
)

// KeyFunc extrai a identidade do cliente.
type KeyFunc func(r *http.Request) domain.Identity

// RouteFunc extrai o identificador da rota casada.
type RouteFunc func(r *http.Request) string

func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) domain.Identity {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return domain.Identity(v)
			}
		}

		if trustXFF {
			// primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return domain.Identity(ip)
				}
			}
		}

		// fallback: RemoteAddr
		addr := strings.TrimSpace(r.RemoteAddr)
		if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
			return domain.Identity(host)
		}
		if addr != "" {
			return domain.Identity(addr)
		}
		return domain.UnknownIdentity
	}
}

// DefaultRouteFunc usa o padrão da rota do chi (ex: "/users/{id}") quando o
// middleware roda depois do roteamento (r.With / r.Route); senão o path.
func DefaultRouteFunc(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
