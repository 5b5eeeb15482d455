package chat

import (
	"strings"

	"github.com/zhouzirui/cardchat/internal/model/chat"
	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// Recommendation is the structured part of a card suggestion reply.
type Recommendation struct {
	Cards     []chat.Card `json:"cards"`
	Questions []string    `json:"questions"`
}

var catalog = map[string][]chat.Card{
	"교통": {{ID: "woori-transit", Name: "우리 교통 플러스", ImageURL: "https://cards.example/woori-transit.png"}},
	"편의점": {{ID: "woori-daily", Name: "우리 데일리 체크", ImageURL: "https://cards.example/woori-daily.png"}},
	"통신": {{ID: "woori-mobile", Name: "우리 모바일 할인"}},
	"항공": {{ID: "woori-miles", Name: "우리 마일리지 스카이", ImageURL: "https://cards.example/woori-miles.png"}},
	"라운지": {{ID: "woori-lounge", Name: "우리 라운지 프리미엄"}},
	"해외결제": {{ID: "woori-global", Name: "우리 글로벌 트래블"}},
	"실적": {{ID: "woori-everyday", Name: "우리 에브리데이"}},
	"포인트": {{ID: "woori-point", Name: "우리 포인트 리워드"}},
}

var recommendKeywords = []string{"추천", "카드", "recommend"}

// IsRecommendationPrompt reports whether the prompt asks for card suggestions.
func IsRecommendationPrompt(prompt string) bool {
	lower := strings.ToLower(prompt)
	for _, kw := range recommendKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Recommend picks catalog cards matching the persona's interests. Interests
// mentioned in the prompt come first.
func Recommend(p persona.Persona, prompt string) Recommendation {
	var mentioned, rest []chat.Card
	seen := make(map[string]struct{})
	for _, interest := range p.Interests {
		for _, card := range catalog[interest] {
			if _, dup := seen[card.ID]; dup {
				continue
			}
			seen[card.ID] = struct{}{}
			if strings.Contains(prompt, interest) {
				mentioned = append(mentioned, card)
			} else {
				rest = append(rest, card)
			}
		}
	}

	cards := append(mentioned, rest...)
	if len(cards) > 3 {
		cards = cards[:3]
	}

	questions := []string{"연회비가 궁금하신가요?", "전월 실적 조건을 알려드릴까요?"}
	if len(p.Interests) > 0 {
		questions = append(questions, p.Interests[0]+" 혜택을 더 자세히 볼까요?")
	}
	return Recommendation{Cards: cards, Questions: questions}
}
