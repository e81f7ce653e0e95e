package delivery

import (
	"testing"

	"github.com/user/amana/internal/types"
)

func TestRegistrySpecificPrefixWins(t *testing.T) {
	r := NewRegistry()

	var via string
	r.Register("", func(types.ConversationID, string) error {
		via = "fallback"
		return nil
	})
	r.Register("cli-", func(types.ConversationID, string) error {
		via = "cli"
		return nil
	})

	if err := r.Deliver("cli-local", "oi"); err != nil {
		t.Fatal(err)
	}
	if via != "cli" {
		t.Errorf("delivered via %s, want cli", via)
	}

	if err := r.Deliver("12345", "oi"); err != nil {
		t.Fatal(err)
	}
	if via != "fallback" {
		t.Errorf("delivered via %s, want fallback", via)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Deliver("12345", "oi"); err == nil {
		t.Error("expected an error with no handlers registered")
	}
}

func TestRegistryPassesMessage(t *testing.T) {
	r := NewRegistry()

	var gotID types.ConversationID
	var gotMsg string
	r.Register("", func(id types.ConversationID, msg string) error {
		gotID, gotMsg = id, msg
		return nil
	})

	if err := r.Deliver("777", "lembrete diário"); err != nil {
		t.Fatal(err)
	}
	if gotID != "777" || gotMsg != "lembrete diário" {
		t.Errorf("got (%s, %q)", gotID, gotMsg)
	}
}
