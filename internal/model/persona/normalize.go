package persona

import (
	"fmt"
	"strings"
)

// Option is a persona choice offered by the login prompt.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	idAliases   = []string{"id", "persona_id", "value"}
	nameAliases = []string{"name", "persona_name", "label"}
)

// NormalizeOptions converts a heterogeneous persona list into options.
// Entries that are neither strings nor objects are skipped.
func NormalizeOptions(items []any) []Option {
	out := make([]Option, 0, len(items))
	for i, item := range items {
		if opt, ok := NormalizeOption(item, i); ok {
			out = append(out, opt)
		}
	}
	return out
}

// NormalizeOption normalizes the entry found at position index.
func NormalizeOption(item any, index int) (Option, bool) {
	fallbackID := fmt.Sprintf("persona-%d", index)
	fallbackName := fmt.Sprintf("프로필 %d", index+1)

	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			name = fallbackName
		}
		return Option{ID: fallbackID, Name: name}, true
	case map[string]any:
		opt := Option{ID: fallbackID, Name: fallbackName}
		if id := firstValue(v, idAliases); id != "" {
			opt.ID = id
		}
		if name := firstValue(v, nameAliases); name != "" {
			opt.Name = name
		}
		return opt, true
	}
	return Option{}, false
}

// FromPersonas builds options from typed personas.
func FromPersonas(items []Persona) []Option {
	out := make([]Option, 0, len(items))
	for i, p := range items {
		opt := Option{ID: p.ID, Name: p.Name}
		if opt.ID == "" {
			opt.ID = fmt.Sprintf("persona-%d", i)
		}
		if opt.Name == "" {
			opt.Name = fmt.Sprintf("프로필 %d", i+1)
		}
		out = append(out, opt)
	}
	return out
}

func firstValue(m map[string]any, keys []string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
