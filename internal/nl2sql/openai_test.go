package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAITranslatorSendsPromptAndReturnsRawText(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` + "```sql\\nSELECT 1;\\n```" + `"}}]}`))
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL + "/", APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	result, err := translator.Translate(context.Background(), Request{
		SchemaContext: `CREATE TABLE "Wine" ("WineID" INTEGER);`,
		Question:      "show me reds",
		Instructions:  DefaultInstructions(),
		Dialect:       "SQLite",
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Text != "```sql\nSELECT 1;\n```" || result.Provider != ProviderOpenAI || result.Model != DefaultOpenAIModel {
		t.Fatalf("Translate() = %#v", result)
	}
	if StripCodeFence(result.Text) != "SELECT 1;" {
		t.Fatalf("StripCodeFence() = %q", StripCodeFence(result.Text))
	}

	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages = %#v", captured["messages"])
	}
	user, _ := messages[1].(map[string]any)
	content, _ := user["content"].(string)
	if !strings.Contains(content, `"show me reds"`) || !strings.Contains(content, `CREATE TABLE "Wine"`) {
		t.Fatalf("user prompt = %q", content)
	}
}

func TestOpenAITranslatorSurfacesServiceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	_, err = translator.Translate(context.Background(), Request{Question: "q"})
	if err == nil || !strings.Contains(err.Error(), "status=429") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("Translate() error = %v", err)
	}
}

func TestOpenAITranslatorRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	translator, err := NewOpenAITranslator(OpenAIConfig{BaseURL: server.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewOpenAITranslator() error = %v", err)
	}
	if _, err := translator.Translate(context.Background(), Request{Question: "q"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Translate() error = %v, want ErrEmptyResponse", err)
	}
}

func TestNewOpenAITranslatorRequiresKey(t *testing.T) {
	if _, err := NewOpenAITranslator(OpenAIConfig{}); err == nil {
		t.Fatal("NewOpenAITranslator() expected error")
	}
}
