package translator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/glossary"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/prompt"
)

// capturingServer records the chat requests it receives and replies with the
// given assistant content.
type capturingServer struct {
	mu       sync.Mutex
	requests []llm.ChatRequest
	content  string
	server   *httptest.Server
}

func newCapturingServer(t *testing.T, content string) *capturingServer {
	t.Helper()
	cs := &capturingServer{content: content}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req llm.ChatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		cs.mu.Lock()
		cs.requests = append(cs.requests, req)
		cs.mu.Unlock()

		response := llm.ChatResponse{
			ID:    "test-id",
			Model: req.Model,
			Choices: []llm.Choice{{
				Message:      llm.Message{Role: "assistant", Content: cs.content},
				FinishReason: "stop",
			}},
			Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func (cs *capturingServer) lastRequest(t *testing.T) llm.ChatRequest {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(t, cs.requests)
	return cs.requests[len(cs.requests)-1]
}

func newTestTranslator(t *testing.T, cs *capturingServer) Translator {
	t.Helper()
	client, err := llm.NewClient(&llm.Config{
		APIKey:      "test-key",
		APIURL:      cs.server.URL,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30,
	})
	require.NoError(t, err)
	return NewLLMTranslator(client, prompt.Load("en", "zh"))
}

func TestTranslateNormalizesFencedResponse(t *testing.T) {
	cs := newCapturingServer(t, "```json\n{\"1\": \"你好\"}\n```")
	tr := newTestTranslator(t, cs)

	resp, err := tr.Translate(context.Background(), Request{
		SegmentJSON: "```json\n{\n    \"1\": \"Hello\"\n}\n```",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1": "你好"}`, resp.Text)
	assert.Equal(t, 30, resp.Usage.TotalTokens)
}

func TestTranslateBuildsSystemAndUserMessages(t *testing.T) {
	cs := newCapturingServer(t, `{"1": "你好"}`)
	tr := newTestTranslator(t, cs)

	segment := "```json\n{\n    \"1\": \"Hello\"\n}\n```"
	_, err := tr.Translate(context.Background(), Request{
		SegmentJSON:     segment,
		PreviousContent: "之前的译文",
		Terms:           []glossary.Term{{Source: "Hello", Target: "你好"}},
	})
	require.NoError(t, err)

	req := cs.lastRequest(t)
	require.Len(t, req.Messages, 2)

	system := req.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "professional document translation expert")
	assert.Contains(t, system.Content, "之前的译文")
	assert.Contains(t, system.Content, "Hello -> 你好")

	user := req.Messages[1]
	assert.Equal(t, "user", user.Role)
	assert.Contains(t, user.Content, segment)
}

func TestTranslateFirstSegmentUsesDefaultContext(t *testing.T) {
	cs := newCapturingServer(t, `{"1": "你好"}`)
	tr := newTestTranslator(t, cs)

	_, err := tr.Translate(context.Background(), Request{SegmentJSON: `{"1": "Hello"}`})
	require.NoError(t, err)

	system := cs.lastRequest(t).Messages[0]
	assert.Contains(t, system.Content, "beginning of the document")
	assert.NotContains(t, system.Content, "glossary mappings")
}

func TestTranslateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "choices": [], "usage": {}}`))
	}))
	defer server.Close()

	client, err := llm.NewClient(&llm.Config{
		APIKey:      "test-key",
		APIURL:      server.URL,
		Model:       "test-model",
		MaxTokens:   1000,
		Temperature: 0.7,
		Timeout:     30,
	})
	require.NoError(t, err)
	tr := NewLLMTranslator(client, prompt.Load("en", "zh"))

	_, err = tr.Translate(context.Background(), Request{SegmentJSON: `{"1": "Hello"}`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
