// internal/nlu/prompt.go
package nlu

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/amana/internal/flow"
	"github.com/user/amana/internal/types"
	"github.com/user/amana/pkg/llm"
)

// historyTokenBudget caps how much conversation history rides along with
// an NLU call. The bounded 12-entry history already keeps this small; the
// budget guards against 500-char entries stacking up.
const historyTokenBudget = 1200

// promptBuilder assembles token-budgeted NLU prompts.
type promptBuilder struct {
	tokenizer *tiktoken.Tiktoken
	tz        *time.Location
	now       func() time.Time
}

func newPromptBuilder(model string, tz *time.Location, now func() time.Time) (*promptBuilder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &promptBuilder{tokenizer: enc, tz: tz, now: now}, nil
}

func (p *promptBuilder) countTokens(text string) int {
	return len(p.tokenizer.Encode(text, nil, nil))
}

// historyMessages converts the most recent history entries into chat
// messages, newest kept first under the token budget, emitted in
// chronological order.
func (p *promptBuilder) historyMessages(history []types.HistoryEntry) []llm.Message {
	var picked []llm.Message
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		cost := p.countTokens(entry.Text)
		if used+cost > historyTokenBudget {
			break
		}
		role := "user"
		if entry.Role == types.RoleBot {
			role = "assistant"
		}
		picked = append(picked, llm.Message{Role: role, Content: entry.Text})
		used += cost
	}
	// reverse into chronological order
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

func (p *promptBuilder) classifyPreamble() string {
	now := p.now().In(p.tz)
	var b strings.Builder
	b.WriteString("Você é a Amana, assistente pessoal conectada a agenda, e-mail e arquivos.\n")
	b.WriteString("Classifique a intenção da mensagem do usuário em UMA das tags abaixo:\n")
	for _, it := range types.Intents() {
		b.WriteString("- " + string(it) + "\n")
	}
	b.WriteString("- NONE (conversa, saudação, ou nada que corresponda às tags)\n\n")
	b.WriteString("Responda APENAS um JSON válido, sem texto fora dele:\n")
	b.WriteString(`{"intent": "TAG", "confidence": 0.0, "reply": "resposta curta em português"}` + "\n")
	b.WriteString("confidence é sua certeza entre 0 e 1. ")
	b.WriteString("reply só é usada quando intent é NONE; seja breve e simpática.\n")
	fmt.Fprintf(&b, "Data e hora atuais: %s (%s).\n", now.Format("2006-01-02 15:04"), p.tz.String())
	return b.String()
}

func (p *promptBuilder) extractPreamble(schema *flow.Schema) string {
	now := p.now().In(p.tz)
	var b strings.Builder
	fmt.Fprintf(&b, "Você extrai parâmetros para a ação %s a partir de uma frase em português.\n", schema.Intent)
	b.WriteString("Campos possíveis:\n")
	for _, slot := range schema.Slots {
		fmt.Fprintf(&b, "- %s (%s)%s\n", slot.Name, slotTypeHint(slot), requiredMark(slot))
	}
	b.WriteString("\nResponda APENAS um JSON com os campos que a frase realmente contém.\n")
	b.WriteString("Nunca invente valores; omita campos ausentes.\n")
	fmt.Fprintf(&b, "Datas no formato YYYY-MM-DD e horários HH:MM, fuso %s. ", p.tz.String())
	fmt.Fprintf(&b, "Hoje é %s; \"amanhã\" é %s.\n",
		now.Format("2006-01-02"), now.AddDate(0, 0, 1).Format("2006-01-02"))
	return b.String()
}

func slotTypeHint(slot flow.Slot) string {
	switch slot.Type {
	case flow.TypeDate:
		return "data YYYY-MM-DD"
	case flow.TypeTime:
		return "horário HH:MM"
	case flow.TypeInt:
		return fmt.Sprintf("inteiro %d..%d", slot.Min, slot.Max)
	case flow.TypeEmailList:
		return "lista de e-mails"
	case flow.TypeTagList:
		return "lista de tags"
	}
	return "texto"
}

func requiredMark(slot flow.Slot) string {
	if slot.Required {
		return " [obrigatório]"
	}
	return " [opcional]"
}
