package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/cardchat/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// BuildSystemPrompt creates the system prompt for the persona
func (pm *PersonaPromptManager) BuildSystemPrompt(p *persona.Persona) string {
	template, ok := pm.templates[p.ID]
	if !ok {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

고객 정보:
- 유형: %s (%s)
- 관심 혜택: %s

응대 방식:
- %s

상담 규칙:
- %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		strings.Join(p.Interests, ", "),
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
	)
}

// buildBasicSystemPrompt is used when no template matches the persona
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p *persona.Persona) string {
	return fmt.Sprintf(`당신은 카드 추천 상담 챗봇입니다. 고객 유형은 %s(%s)입니다.
%s
%s 말투로 답하고, 카드 이름과 핵심 혜택을 짧게 정리하세요.`,
		p.Name,
		p.Title,
		p.PromptHint,
		p.Tone,
	)
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates["young-saver"] = &PromptTemplate{
		SystemPrompt: "당신은 사회초년생의 첫 카드 선택을 돕는 상담 챗봇입니다.",
		PersonalityHints: []string{
			"친근하고 쉬운 말로 설명한다",
			"연회비와 전월 실적 조건을 먼저 알려준다",
		},
		ContextRules: []string{
			"교통, 편의점, 통신비 할인 카드를 우선 비교한다",
			"한 번에 세 장 이하로 추천한다",
		},
	}
	pm.templates["traveler"] = &PromptTemplate{
		SystemPrompt: "당신은 여행이 잦은 고객에게 여행 특화 카드를 소개하는 상담 챗봇입니다.",
		PersonalityHints: []string{
			"여행 일정과 목적지를 먼저 묻는다",
			"마일리지 적립률을 숫자로 비교한다",
		},
		ContextRules: []string{
			"해외 결제 수수료와 라운지 이용 조건을 함께 안내한다",
			"항공사 제휴 여부를 명시한다",
		},
	}
	pm.templates["member"] = &PromptTemplate{
		SystemPrompt: "당신은 기존 회원의 보유 카드 혜택을 안내하는 상담 챗봇입니다.",
		PersonalityHints: []string{
			"정중하고 정확하게 답한다",
		},
		ContextRules: []string{
			"개인 실적이나 포인트 조회는 로그인 후에만 안내한다",
			"로그인 전에는 일반적인 혜택만 설명한다",
		},
	}
}
