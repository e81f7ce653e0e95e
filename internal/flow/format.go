// internal/flow/format.go
package flow

import (
	"fmt"
	"strings"

	"github.com/user/amana/internal/types"
)

// Summary renders the confirmation question shown before dispatch for
// intents with RequiresConfirmation set.
func (s *Schema) Summary(fields types.Fields) string {
	switch s.Intent {
	case types.IntentSendEmail:
		to, _ := asStringList(fields["to"])
		subject, _ := fields["subject"].(string)
		return fmt.Sprintf("Enviar e-mail para %s com o assunto \"%s\". Posso enviar? (sim/não)",
			strings.Join(to, ", "), subject)
	case types.IntentCreateEvent:
		summary, _ := fields["summary"].(string)
		date, _ := fields["date"].(string)
		start, _ := fields["start_time"].(string)
		return fmt.Sprintf("Criar o evento \"%s\" em %s às %s. Confirma? (sim/não)", summary, date, start)
	}
	return "Posso executar? (sim/não)"
}

// FormatResult renders a successful dispatcher result as the user-facing
// reply.
func (s *Schema) FormatResult(res *types.Result, fields types.Fields) string {
	switch s.Intent {
	case types.IntentCreateEvent:
		summary, _ := fields["summary"].(string)
		date, _ := fields["date"].(string)
		start, _ := fields["start_time"].(string)
		return fmt.Sprintf("📅 Reunião criada: %s em %s às %s", summary, date, start)

	case types.IntentReadEmails:
		emails := payloadList(res, "emails")
		if len(emails) == 0 {
			return "📭 Nenhum e-mail encontrado."
		}
		var b strings.Builder
		b.WriteString(fmt.Sprintf("📬 %d e-mail(s):\n", len(emails)))
		for _, em := range emails {
			subject := stringAt(em, "subject")
			from := stringAt(em, "from")
			fmt.Fprintf(&b, "\n📧 %s\nDe %s\n", subject, from)
			if body := stringAt(em, "body"); body != "" {
				fmt.Fprintf(&b, "%s\n", snippet(body, 280))
			}
		}
		return strings.TrimRight(b.String(), "\n")

	case types.IntentSendEmail:
		to, _ := asStringList(fields["to"])
		return "📤 E-mail enviado para " + strings.Join(to, ", ")

	case types.IntentSaveMemory:
		title, _ := fields["title"].(string)
		if title == "" {
			title = stringAt(res.Payload, "title")
		}
		return "🧠 Memória salva com o título: " + title

	case types.IntentShowAgenda:
		events := payloadList(res, "events")
		if len(events) == 0 {
			return "🗓️ Nenhum compromisso encontrado para hoje."
		}
		var b strings.Builder
		b.WriteString("🗓️ Seus próximos compromissos:")
		for _, ev := range events {
			title := stringAt(ev, "summary")
			if title == "" {
				title = "Sem título"
			}
			at := stringAt(ev, "start_time")
			if at == "" {
				at = "?"
			}
			fmt.Fprintf(&b, "\n• %s às %s", title, at)
		}
		return b.String()
	}
	return "✅ Feito."
}

func payloadList(res *types.Result, key string) []map[string]any {
	if res == nil || res.Payload == nil {
		return nil
	}
	raw, ok := res.Payload[key]
	if !ok {
		return nil
	}
	switch list := raw.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
