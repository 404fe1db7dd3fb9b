package admission

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc extrai o endereço do cliente de uma requisição.
type KeyFunc func(r *http.Request) string

// ClientAddress retorna o KeyFunc padrão.
//
// Com trustProxy, usa o primeiro IP do X-Forwarded-For e depois o X-Real-IP;
// só ligue atrás de um proxy que sobrescreve esses headers.
func ClientAddress(trustProxy bool) KeyFunc {
	return func(r *http.Request) string {
		if trustProxy {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
			if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
				return ip
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		return strings.TrimSpace(r.RemoteAddr)
	}
}
