package chat

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Card is a normalized recommendation card from a record's extras.
type Card struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

var (
	cardKeys     = []string{"cards", "card_list"}
	questionKeys = []string{"questions", "follow_up_questions"}

	cardNameAliases  = []string{"name", "card_name", "cardName", "title", "label", "displayName"}
	cardImageAliases = []string{"image_url", "image", "thumbnail"}
)

// Cards returns the recommendation cards carried by m, if any.
func (m Message) Cards() []Card {
	raw, ok := firstExtra(m.Extra, cardKeys)
	if !ok {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	cards := make([]Card, 0, len(items))
	for i, item := range items {
		cards = append(cards, NormalizeCard(item, i))
	}
	return cards
}

// Questions returns the follow-up questions carried by m, if any.
func (m Message) Questions() []string {
	raw, ok := firstExtra(m.Extra, questionKeys)
	if !ok {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// NormalizeCard turns one heterogeneous card entry into a Card.
func NormalizeCard(item any, index int) Card {
	fallback := fmt.Sprintf("추천 카드 %d", index+1)
	fallbackID := fmt.Sprintf("card-%d", index)

	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			name = fallback
		}
		return Card{ID: fallbackID, Name: name}
	case map[string]any:
		card := Card{ID: fallbackID, Name: fallback}
		if id := stringField(v, "id"); id != "" {
			card.ID = id
		}
		if name := firstString(v, cardNameAliases); name != "" {
			card.Name = name
		}
		card.ImageURL = firstString(v, cardImageAliases)
		return card
	default:
		return Card{ID: fallbackID, Name: fallback}
	}
}

func firstExtra(extra map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, key := range keys {
		if raw, ok := extra[key]; ok && len(raw) > 0 {
			return raw, true
		}
	}
	return nil, false
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	return ""
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	}
	return ""
}
