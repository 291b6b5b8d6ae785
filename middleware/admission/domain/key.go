package domain

import "strings"

// Key é uma chave já com namespace, pronta para o store.
type Key string

// Kind separa o namespace de cada componente dentro do store compartilhado.
type Kind string

const (
	KindCooldown Kind = "cooldown"
	KindThrottle Kind = "throttle"
	KindWindow   Kind = "window"
)

const unknownClient = "unknown"

// ClientRouteKey é a identidade composta (cliente, rota) que isola todo o
// estado de admissão.
type ClientRouteKey struct {
	Client string
	Route  string
}

// NewClientRouteKey normaliza cliente e rota.
//
// Rotas sempre começam com "/" e clientes nunca contêm "/", então o separador
// ":" não colide mesmo com IPv6 ou subjects do tipo "user:42".
func NewClientRouteKey(client, route string) ClientRouteKey {
	client = strings.TrimSpace(client)
	if client == "" {
		client = unknownClient
	}
	client = strings.ReplaceAll(client, "/", "_")

	route = strings.TrimSpace(route)
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return ClientRouteKey{Client: client, Route: route}
}

func (k ClientRouteKey) String() string { return k.Client + ":" + k.Route }

// Namespaced monta "<prefix>:<kind>:<client>:<route>".
func (k ClientRouteKey) Namespaced(prefix string, kind Kind) Key {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(string(kind))
	b.WriteByte(':')
	b.WriteString(k.String())
	return Key(b.String())
}

// ParseNamespaced é o inverso de Namespaced.
func ParseNamespaced(prefix string, kind Kind, key string) (ClientRouteKey, bool) {
	head := string(kind) + ":"
	if prefix != "" {
		head = prefix + ":" + head
	}
	rest, ok := strings.CutPrefix(key, head)
	if !ok {
		return ClientRouteKey{}, false
	}
	// o primeiro ":/" separa cliente e rota
	i := strings.Index(rest, ":/")
	if i <= 0 {
		return ClientRouteKey{}, false
	}
	return ClientRouteKey{Client: rest[:i], Route: rest[i+1:]}, true
}

// NamespacePattern devolve o glob (SCAN MATCH) de todas as chaves de um tipo.
func NamespacePattern(prefix string, kind Kind) string {
	if prefix == "" {
		return string(kind) + ":*"
	}
	return prefix + ":" + string(kind) + ":*"
}
