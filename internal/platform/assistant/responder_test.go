package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatClient_Reply(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Twice a day."}},
			},
		})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "sk-test", "gpt-4o-mini")
	reply, err := client.Reply(context.Background(), "how often should I brush",
		[]Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Twice a day." {
		t.Errorf("reply = %q", reply)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	// system prompt + one history turn + the user message
	if len(gotReq.Messages) != 3 {
		t.Errorf("messages = %d, want 3", len(gotReq.Messages))
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
}

func TestChatClient_Reply_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "", "gpt-4o-mini")
	if _, err := client.Reply(context.Background(), "hello", nil); err == nil {
		t.Error("expected error on non-200 response")
	}
}

func TestChatClient_Reply_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	client := NewChatClient(srv.URL, "", "gpt-4o-mini")
	if _, err := client.Reply(context.Background(), "hello", nil); err == nil {
		t.Error("expected error on empty choices")
	}
}
