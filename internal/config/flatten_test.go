package config

import (
	"testing"
)

func TestFlatten_Simple(t *testing.T) {
	m := map[string]any{
		"a": "hello",
		"b": 42.0,
	}
	got := Flatten(m)
	if got["a"] != "hello" {
		t.Errorf("expected a=hello, got %v", got["a"])
	}
	if got["b"] != 42.0 {
		t.Errorf("expected b=42, got %v", got["b"])
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keys, got %d", len(got))
	}
}

func TestFlatten_Nested(t *testing.T) {
	m := map[string]any{
		"llm": map[string]any{
			"model":   "gpt-4o-mini",
			"api_key": "sk-test123",
		},
		"log_level": "info",
	}
	got := Flatten(m)
	if got["llm.model"] != "gpt-4o-mini" {
		t.Errorf("expected llm.model=gpt-4o-mini, got %v", got["llm.model"])
	}
	if got["llm.api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", got["llm.api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
	if len(got) != 3 {
		t.Errorf("expected 3 keys, got %d", len(got))
	}
}

func TestFlatten_DeeplyNested(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{
			"b": map[string]any{
				"c": "deep",
			},
		},
	}
	got := Flatten(m)
	if got["a.b.c"] != "deep" {
		t.Errorf("expected a.b.c=deep, got %v", got["a.b.c"])
	}
	if len(got) != 1 {
		t.Errorf("expected 1 key, got %d", len(got))
	}
}

func TestFlatten_EmptyNestedMap(t *testing.T) {
	m := map[string]any{
		"a": map[string]any{},
	}
	got := Flatten(m)
	if len(got) != 0 {
		t.Errorf("expected 0 keys (empty nested map produces nothing), got %d", len(got))
	}
}

func TestUnflatten_Nested(t *testing.T) {
	flat := map[string]any{
		"llm.model":   "gpt-4o-mini",
		"llm.api_key": "sk-test123",
		"log_level":   "info",
	}
	got := Unflatten(flat)
	llm, ok := got["llm"].(map[string]any)
	if !ok {
		t.Fatalf("expected llm to be map, got %T", got["llm"])
	}
	if llm["model"] != "gpt-4o-mini" {
		t.Errorf("expected llm.model=gpt-4o-mini, got %v", llm["model"])
	}
	if llm["api_key"] != "sk-test123" {
		t.Errorf("expected llm.api_key=sk-test123, got %v", llm["api_key"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level=info, got %v", got["log_level"])
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.amana",
		"log_level": "debug",
		"llm": map[string]any{
			"api_key": "sk-test123456",
			"model":   "gpt-4o-mini",
		},
		"google": map[string]any{
			"refresh_token": "refresh-xyz",
		},
		"telegram": map[string]any{
			"token": "bot-token-abc",
		},
	}

	flat := Flatten(original)
	restored := Unflatten(flat)

	if restored["data_dir"] != original["data_dir"] {
		t.Errorf("data_dir mismatch: %v != %v", restored["data_dir"], original["data_dir"])
	}

	llm := restored["llm"].(map[string]any)
	origLLM := original["llm"].(map[string]any)
	if llm["api_key"] != origLLM["api_key"] {
		t.Errorf("llm.api_key mismatch: %v != %v", llm["api_key"], origLLM["api_key"])
	}

	google := restored["google"].(map[string]any)
	if google["refresh_token"] != "refresh-xyz" {
		t.Errorf("google.refresh_token mismatch: %v", google["refresh_token"])
	}

	tg := restored["telegram"].(map[string]any)
	if tg["token"] != "bot-token-abc" {
		t.Errorf("telegram.token mismatch: %v", tg["token"])
	}
}

func TestMaskSecrets_AllSecrets(t *testing.T) {
	flat := map[string]any{
		"llm.model":            "gpt-4o-mini",
		"llm.api_key":          "sk-test123456",
		"google.refresh_token": "1//refresh-abcd",
		"telegram.token":       "123456:ABCdefGHIjkl",
		"telegram.exec_key":    "exec-key-wxyz",
		"log_level":            "info",
	}
	got := MaskSecrets(flat)

	if got["llm.model"] != "gpt-4o-mini" {
		t.Errorf("expected llm.model unchanged, got %v", got["llm.model"])
	}
	if got["log_level"] != "info" {
		t.Errorf("expected log_level unchanged, got %v", got["log_level"])
	}

	if got["llm.api_key"] != "***3456" {
		t.Errorf("expected llm.api_key=***3456, got %v", got["llm.api_key"])
	}
	if got["google.refresh_token"] != "***abcd" {
		t.Errorf("expected google.refresh_token=***abcd, got %v", got["google.refresh_token"])
	}
	if got["telegram.token"] != "***Ijkl" {
		t.Errorf("expected telegram.token=***Ijkl, got %v", got["telegram.token"])
	}
	if got["telegram.exec_key"] != "***wxyz" {
		t.Errorf("expected telegram.exec_key=***wxyz, got %v", got["telegram.exec_key"])
	}
}

func TestMaskSecrets_EmptySecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "" {
		t.Errorf("expected empty string to remain empty, got %v", got["llm.api_key"])
	}
}

func TestMaskSecrets_ShortSecret(t *testing.T) {
	flat := map[string]any{
		"llm.api_key": "ab",
	}
	got := MaskSecrets(flat)
	if got["llm.api_key"] != "***ab" {
		t.Errorf("expected ***ab for short secret, got %v", got["llm.api_key"])
	}
}

func TestIsSecretKey(t *testing.T) {
	for _, key := range []string{
		"llm.api_key", "telegram.token", "telegram.exec_key",
		"google.client_secret", "google.refresh_token",
	} {
		if !IsSecretKey(key) {
			t.Errorf("%s should be secret", key)
		}
	}
	if IsSecretKey("llm.model") {
		t.Error("llm.model is not secret")
	}
}
