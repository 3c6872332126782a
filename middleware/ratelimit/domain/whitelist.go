package domain

import "strings"

// Whitelist é o conjunto de identidades isentas do limite.
// Somente leitura depois de criada; segura para uso concorrente.
type Whitelist struct {
	set map[Identity]struct{}
}

func NewWhitelist(ids ...string) Whitelist {
	w := Whitelist{set: make(map[Identity]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			w.set[Identity(id)] = struct{}{}
		}
	}
	return w
}

func (w Whitelist) Contains(id Identity) bool {
	if len(w.set) == 0 {
		return false
	}
	_, ok := w.set[id]
	return ok
}

func (w Whitelist) Len() int { return len(w.set) }
