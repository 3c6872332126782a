// Package logger monta o *slog.Logger dos binários.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New devolve um logger JSON em stdout com nível vindo de LOG_LEVEL (padrão
// info). LOG_FORMAT=text troca para o handler de texto.
func New() *slog.Logger {
	return NewWriter(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func NewWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel aceita debug/info/warn/error (e variações como "INFO+2").
// Valor vazio ou inválido vira info.
func ParseLevel(s string) slog.Level {
	level := slog.LevelInfo
	if s = strings.TrimSpace(s); s != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(s)); err == nil {
			level = parsed
		}
	}
	return level
}
