package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/relayvox/pkg/provider/llm"
	llmmock "github.com/MrWong99/relayvox/pkg/provider/llm/mock"
	"github.com/MrWong99/relayvox/pkg/provider/translate"
)

func TestNew_NilBackend(t *testing.T) {
	t.Parallel()
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil backend")
	}
}

func TestTranslate_BuildsRequest(t *testing.T) {
	t.Parallel()
	backend := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  \"Guten Morgen\" "}}
	names := map[string]string{"en": "English", "de": "German"}
	p, err := New(backend, WithLanguageNames(func(c string) string { return names[c] }), WithTemperature(0.2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := p.Translate(context.Background(), "Good morning", translate.Options{From: "en", To: "de"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Guten Morgen" {
		t.Errorf("got %q, want trimmed and unquoted", got)
	}

	calls := backend.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0].Req
	if !strings.Contains(req.SystemPrompt, "from English into German") {
		t.Errorf("prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != llm.RoleUser || req.Messages[0].Content != "Good morning" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.Temperature != 0.2 || req.MaxTokens != 1024 {
		t.Errorf("temperature=%v maxTokens=%d", req.Temperature, req.MaxTokens)
	}
}

func TestPrompt_AutoDetect(t *testing.T) {
	t.Parallel()
	p, _ := New(&llmmock.Provider{})
	prompt := p.Prompt(translate.Options{To: "fr"})
	if strings.Contains(prompt, "from ") {
		t.Errorf("prompt should not name a source language: %q", prompt)
	}
	if !strings.Contains(prompt, "into fr") {
		t.Errorf("prompt = %q", prompt)
	}
}

func TestTranslate_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("rate limited")
	p, _ := New(&llmmock.Provider{CompleteErr: boom})

	if _, err := p.Translate(context.Background(), "hi", translate.Options{To: "es"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped backend error", err)
	}
	if _, err := p.Translate(context.Background(), "", translate.Options{To: "es"}); !errors.Is(err, translate.ErrEmptyText) {
		t.Errorf("empty text: err = %v", err)
	}
	if _, err := p.Translate(context.Background(), "hi", translate.Options{}); err == nil {
		t.Error("expected error for missing target")
	}
}

func TestTranslate_NilResponse(t *testing.T) {
	t.Parallel()
	p, _ := New(&llmmock.Provider{})
	got, err := p.Translate(context.Background(), "hi", translate.Options{To: "es"})
	if err != nil || got != "" {
		t.Fatalf("got %q, %v", got, err)
	}
}
