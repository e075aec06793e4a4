package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:4b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		fmt.Fprint(w, `{"model":"gemma3:4b","message":{"role":"assistant","content":"{\"fatturato\":\"3.815.456\",\"anno_bilancio\":\"2024\"}"},"done":true}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	resp, err := client.Chat(context.Background(), ChatRequest{
		Model: "gemma3:4b",
		Messages: []Message{
			{Role: "system", Content: "Estrai dati finanziari. Rispondi in JSON valido."},
			{Role: "user", Content: "testo pagina"},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Done)
	assert.Contains(t, resp.Text(), "3.815.456")
}

func TestChatTextStripsCodeFence(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"no fence", `{"a":1}`, `{"a":1}`},
		{"fence with preamble", "Ecco il JSON:\n```json\n{\"a\":1}\n```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &ChatResponse{Message: Message{Content: tt.content}}
			assert.Equal(t, tt.want, resp.Text())
		})
	}
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"gemma3:4b"},{"name":"llama3.2:1b"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	health, err := client.Health(context.Background(), "gemma3:4b")
	require.NoError(t, err)
	assert.True(t, health.Reachable)
	assert.True(t, health.ModelLoaded)
	assert.Len(t, health.Models, 2)
}

func TestHealthModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:1b"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	health, err := client.Health(context.Background(), "gemma3:4b")
	require.NoError(t, err)
	assert.True(t, health.Reachable)
	assert.False(t, health.ModelLoaded)
}

func TestHealthUnreachable(t *testing.T) {
	client := NewClient(WithBaseURL("http://127.0.0.1:1"))
	health, err := client.Health(context.Background(), "gemma3:4b")
	require.NoError(t, err)
	assert.False(t, health.Reachable)
}
