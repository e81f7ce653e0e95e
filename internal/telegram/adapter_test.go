package telegram

import (
	"strings"
	"testing"
)

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"texto simples", "texto simples"},
		{"ponto final.", `ponto final\.`},
		{"a*b_c[d]e", `a\*b\_c\[d\]e`},
		{"(x) > y! #1", `\(x\) \> y\! \#1`},
		{"código `inline`", "código \\`inline\\`"},
		{"emoji 📅 passa", "emoji 📅 passa"},
	}
	for _, tc := range cases {
		if got := escapeMarkdownV2(tc.in); got != tc.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSplitMessageShort(t *testing.T) {
	parts := splitMessage("oi")
	if len(parts) != 1 || parts[0] != "oi" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitMessageLong(t *testing.T) {
	text := strings.Repeat("a", maxTelegramMessage+10)
	parts := splitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage || len(parts[1]) != 10 {
		t.Errorf("lengths = %d, %d", len(parts[0]), len(parts[1]))
	}
}

func TestSplitMessageNeverBreaksRunes(t *testing.T) {
	text := strings.Repeat("á", maxTelegramMessage+1)
	parts := splitMessage(text)
	for i, p := range parts {
		if strings.ContainsRune(p, '�') || !strings.HasPrefix(p, "á") {
			t.Errorf("part %d split inside a rune", i)
		}
	}
	if got := len([]rune(parts[0])); got != maxTelegramMessage {
		t.Errorf("first part has %d runes", got)
	}
}
