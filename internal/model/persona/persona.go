package persona

// Persona captures an assistant profile exposed to the persona selection screen.
type Persona struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Tone          string   `json:"tone"`
	PromptHint    string   `json:"promptHint"`
	OpeningLine   string   `json:"openingLine"`
	Description   string   `json:"description,omitempty"`
	Interests     []string `json:"interests,omitempty"` // 선호 혜택 분야
	LoginRequired bool     `json:"loginRequired,omitempty"`
}

// Seed provides the default personas served by the development backend.
func Seed() []Persona {
	return []Persona{
		{
			ID:          "young-saver",
			Name:        "사회초년생",
			Title:       "알뜰한 첫 카드 탐색자",
			Tone:        "친근하고 간결하게",
			PromptHint:  "연회비가 낮고 생활 밀착 혜택이 큰 카드를 우선 추천한다.",
			OpeningLine: "첫 카드를 고르고 계신가요? 생활비를 아껴줄 카드를 찾아볼게요.",
			Description: "교통, 편의점, 통신비 할인에 관심이 많은 20대 직장인.",
			Interests:   []string{"교통", "편의점", "통신"},
		},
		{
			ID:          "traveler",
			Name:        "여행 애호가",
			Title:       "마일리지 수집가",
			Tone:        "활기차고 구체적으로",
			PromptHint:  "해외 결제 수수료, 라운지, 마일리지 적립 조건을 비교해 설명한다.",
			OpeningLine: "다음 여행지는 어디인가요? 여행에 강한 카드를 골라드릴게요.",
			Description: "해외 결제와 공항 라운지 혜택을 중시하는 여행자.",
			Interests:   []string{"항공", "라운지", "해외결제"},
		},
		{
			ID:            "member",
			Name:          "기존 회원",
			Title:         "보유 카드 관리",
			Tone:          "정중하고 정확하게",
			PromptHint:    "보유 카드의 실적과 혜택을 조회하려면 로그인이 필요하다고 안내한다.",
			OpeningLine:   "보유하신 카드 혜택을 확인해드릴게요.",
			Description:   "이미 카드를 보유한 회원으로, 개인화된 답변을 위해 로그인이 필요하다.",
			Interests:     []string{"실적", "포인트"},
			LoginRequired: true,
		},
	}
}
