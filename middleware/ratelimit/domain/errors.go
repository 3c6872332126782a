package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy é erro de configuração: deve impedir o registro da rota.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	// ErrStoreUnavailable indica falha do store (não conectado, timeout, rede).
	// Não é allow nem deny: vira 500 para o cliente.
	ErrStoreUnavailable = errors.New("counter store unavailable")
)

// ConfigError detalha qual campo da configuração é inválido.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%q", e.Err, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
