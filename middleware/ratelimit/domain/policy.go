package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Policy é o par (janela, máximo de requisições). Imutável depois de criada.
//
// O valor zero é inválido; use NewPolicy ou ParsePolicy.
type Policy struct {
	window      time.Duration
	maxRequests int64
}

// NewPolicy valida e cria uma Policy. Valores não positivos são erro de
// configuração (ErrInvalidPolicy).
func NewPolicy(windowSeconds, maxRequests int) (Policy, error) {
	if windowSeconds <= 0 {
		return Policy{}, &ConfigError{Field: "windowSeconds", Value: strconv.Itoa(windowSeconds), Err: ErrInvalidPolicy}
	}
	if maxRequests <= 0 {
		return Policy{}, &ConfigError{Field: "maxRequests", Value: strconv.Itoa(maxRequests), Err: ErrInvalidPolicy}
	}
	return Policy{
		window:      time.Duration(windowSeconds) * time.Second,
		maxRequests: int64(maxRequests),
	}, nil
}

// ParsePolicy é o NewPolicy para valores vindos de env/arquivo.
// Não faz coerção: "5.0", "abc" ou "" são rejeitados.
func ParsePolicy(windowSeconds, maxRequests string) (Policy, error) {
	w, err := strconv.Atoi(strings.TrimSpace(windowSeconds))
	if err != nil {
		return Policy{}, &ConfigError{Field: "windowSeconds", Value: windowSeconds, Err: ErrInvalidPolicy}
	}
	m, err := strconv.Atoi(strings.TrimSpace(maxRequests))
	if err != nil {
		return Policy{}, &ConfigError{Field: "maxRequests", Value: maxRequests, Err: ErrInvalidPolicy}
	}
	return NewPolicy(w, m)
}

// MustPolicy é útil em testes e exemplos com valores fixos.
func MustPolicy(windowSeconds, maxRequests int) Policy {
	p, err := NewPolicy(windowSeconds, maxRequests)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) Window() time.Duration { return p.window }
func (p Policy) MaxRequests() int64    { return p.maxRequests }

// Valid é false para o valor zero.
func (p Policy) Valid() bool { return p.window > 0 && p.maxRequests > 0 }

func (p Policy) String() string {
	return fmt.Sprintf("%d/%s", p.maxRequests, p.window)
}
