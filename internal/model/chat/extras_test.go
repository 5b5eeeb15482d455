package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageCardsNormalizesAliases(t *testing.T) {
	msg := Message{Extra: map[string]json.RawMessage{
		"cards": json.RawMessage(`[
			{"id": "c1", "card_name": " 카드의정석 "},
			{"title": "DA@카드", "thumbnail": "https://img/da.png"},
			"  ",
			42
		]`),
	}}

	cards := msg.Cards()
	require.Len(t, cards, 4)
	require.Equal(t, Card{ID: "c1", Name: "카드의정석"}, cards[0])
	require.Equal(t, Card{ID: "card-1", Name: "DA@카드", ImageURL: "https://img/da.png"}, cards[1])
	require.Equal(t, "추천 카드 3", cards[2].Name)
	require.Equal(t, "추천 카드 4", cards[3].Name)
}

func TestMessageCardsFallsBackToCardList(t *testing.T) {
	msg := Message{Extra: map[string]json.RawMessage{
		"card_list": json.RawMessage(`[{"displayName": "NU Uniq"}]`),
	}}

	cards := msg.Cards()
	require.Len(t, cards, 1)
	require.Equal(t, "NU Uniq", cards[0].Name)
}

func TestMessageQuestions(t *testing.T) {
	msg := Message{Extra: map[string]json.RawMessage{
		"follow_up_questions": json.RawMessage(`["연회비는?", "", 3, " 실적 조건은? "]`),
	}}

	require.Equal(t, []string{"연회비는?", "실적 조건은?"}, msg.Questions())
	require.Nil(t, Message{}.Questions())
	require.Nil(t, Message{}.Cards())
}

func TestMessageCloneDoesNotShareExtras(t *testing.T) {
	msg := Message{ID: "a", Extra: map[string]json.RawMessage{"k": json.RawMessage(`1`)}}
	cp := msg.Clone()
	cp.Extra["k"][0] = '2'

	require.Equal(t, json.RawMessage(`1`), msg.Extra["k"])
}
