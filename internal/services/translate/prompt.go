package translate

import "strings"

// Style selects the translation register.
const (
	StyleFaithful = "faithful"
	StyleNatural  = "natural"
)

// Tone refines the natural style.
const (
	ToneLecture = "lecture"
	ToneCasual  = "casual"
	ToneFormal  = "formal"
)

const faithfulPrompt = `당신은 전문 번역가입니다. YouTube 자동 자막을 정제하고 %TARGET%로 번역합니다.

## 1단계: 자동 자막 정제 (번역 전 처리)
YouTube 자동 자막은 다음 문제가 있습니다:
- 같은 문장이 여러 번 반복됨 (중복 제거 필요)
- 문장이 중간에 끊겨서 다음 줄에 이어짐 (병합 필요)
- 필러: um, uh, you know, like, basically, actually 등 (제거)
- 철자 오류, 반복 단어 (I I → I)

반드시 중복을 제거하고 완전한 문장으로 재구성하세요.

## 2단계: 번역 (원문 충실 모드)
1. 원문의 의미와 구조를 최대한 유지
2. 전문 용어는 정확하게 번역
3. 구어체로 자연스럽게 변환 (TTS용)
4. 번역문만 출력 (설명/원문 없이)`

const naturalPrompt = `당신은 더빙 전문 번역가입니다. YouTube 자동 자막을 정제하고 자연스러운 %TARGET% 더빙 스크립트로 변환합니다.

## 1단계: 자동 자막 정제 (번역 전 처리)
YouTube 자동 자막은 다음 문제가 있습니다:
- 같은 문장이 여러 번 반복됨 (중복 제거 필요)
- 문장이 중간에 끊겨서 다음 줄에 이어짐 (병합 필요)
- 필러: um, uh, you know, like, basically, actually 등 (제거)
- 철자 오류, 반복 단어 (I I → I)

반드시 중복을 제거하고 완전한 문장으로 재구성하세요.

## 2단계: 번역 (자연스러운 더빙 모드)
1. 한국어 화자가 말하듯이 자연스럽게 변환
2. 문장 구조를 한국어에 맞게 재배치
3. 불필요한 수식어 제거, 핵심만 전달
4. 이전 문맥을 고려한 연결어 사용
5. 번역문만 출력 (설명/원문 없이)`

var naturalTones = map[string]string{
	ToneLecture: `

## 톤: 강의체
- 존댓말 사용 (~입니다, ~해요, ~거든요)
- 청자를 배려하는 표현 (여러분, ~해볼게요)
- 설명적이고 친근한 어조`,
	ToneCasual: `

## 톤: 대화체
- 반말 또는 친근한 존댓말 (~야, ~거든, ~잖아)
- 감탄사/추임새 자연스럽게 사용
- 일상 대화처럼 가볍게`,
	ToneFormal: `

## 톤: 뉴스체
- 격식체 존댓말 (~습니다, ~됩니다)
- 객관적이고 정제된 표현
- 간결하고 명확한 문장`,
}

// SystemPrompt builds the system prompt for the requested style and tone.
// Unknown styles fall back to natural, unknown tones to lecture.
func SystemPrompt(style, tone, targetLanguage string) string {
	style = strings.ToLower(strings.TrimSpace(style))
	tone = strings.ToLower(strings.TrimSpace(tone))
	if targetLanguage == "" {
		targetLanguage = "한국어"
	}

	if style == StyleFaithful {
		return strings.ReplaceAll(faithfulPrompt, "%TARGET%", targetLanguage)
	}

	prompt := strings.ReplaceAll(naturalPrompt, "%TARGET%", targetLanguage)
	toneBlock, ok := naturalTones[tone]
	if !ok {
		toneBlock = naturalTones[ToneLecture]
	}
	return prompt + toneBlock
}

// UserPrompt wraps chunk text with the previous chunk's tail so the model
// keeps context without re-translating it.
func UserPrompt(text, prevContext string) string {
	if strings.TrimSpace(prevContext) == "" {
		return text
	}
	return "[이전 번역 컨텍스트 - 문맥 연결용, 다시 번역하지 마세요]\n" +
		prevContext + "\n\n[번역할 자막]\n" + text
}
