package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"strings"
	"time"
)

// Key identifica um contador no store (scope key).
type Key string

// Identity é a identidade do cliente (normalmente o IP).
type Identity string

// UnknownIdentity é usada quando não dá para resolver a identidade.
// Todas as requisições nessa situação compartilham um único contador.
const UnknownIdentity Identity = "unknown"

// OrUnknown devolve UnknownIdentity quando a identidade está vazia.
func (i Identity) OrUnknown() Identity {
	if v := strings.TrimSpace(string(i)); v != "" {
		return Identity(v)
	}
	return UnknownIdentity
}

// ScopeKey monta a chave do contador.
//
// Com perRoute=true a chave fica identity:route, senão apenas identity.
// O prefix (opcional) é só namespace no store.
func ScopeKey(prefix string, identity Identity, route string, perRoute bool) Key {
	k := string(identity.OrUnknown())
	if perRoute {
		k += ":" + route
	}
	if prefix = strings.Trim(prefix, ":"); prefix != "" {
		k = prefix + ":" + k
	}
	return Key(k)
}

// CounterStore é o contrato do store compartilhado de contadores.
//
// Implementações precisam ser seguras para uso concorrente e o
// IncrementAndExpireIfNew deve ser uma única operação atômica do ponto de
// vista do store.
type CounterStore interface {
	// Get devolve a contagem atual (0 se a chave não existe).
	Get(ctx context.Context, key Key) (int64, error)

	// IncrementAndExpireIfNew incrementa o contador (criando em 1) e, só na
	// criação, aplica expiração = window. O incremento só acontece enquanto a
	// contagem estiver abaixo de ceiling; ok=false indica que nada foi alterado.
	IncrementAndExpireIfNew(ctx context.Context, key Key, window time.Duration, ceiling int64) (count int64, ok bool, err error)

	// TTL devolve o tempo restante da janela (0 se a chave não existe).
	TTL(ctx context.Context, key Key) (time.Duration, error)
}

// Decision é o veredito de uma requisição. Nunca é persistido.
type Decision struct {
	Allowed bool
	// Bypassed indica identidade na whitelist: sem limite e sem headers.
	Bypassed bool

	Key       Key
	Limit     int64
	Remaining int64
	// Reset é o tempo até a janela atual terminar.
	Reset time.Duration
}

// ResetSeconds arredonda Reset para cima, em segundos inteiros.
func (d Decision) ResetSeconds() int64 {
	if d.Reset <= 0 {
		return 0
	}
	return int64((d.Reset + time.Second - 1) / time.Second)
}
