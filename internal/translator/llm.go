package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/glossary"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/prompt"
	"github.com/YANG-Haruka/LinguaHaru-sub000/pkg/log"
)

// llmTranslator sends segments through an OpenAI-compatible chat endpoint.
type llmTranslator struct {
	client  *llm.Client
	prompts prompt.Set
}

// NewLLMTranslator creates a translator backed by the given LLM client.
func NewLLMTranslator(client *llm.Client, prompts prompt.Set) Translator {
	return &llmTranslator{
		client:  client,
		prompts: prompts,
	}
}

func (t *llmTranslator) Translate(ctx context.Context, req Request) (*Response, error) {
	messages := t.buildMessages(req)

	response, err := t.client.ChatCompletion(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	content := response.Choices[0].Message.Content
	fixed := FixJSONFormat(content)
	if fixed == "" {
		log.Warn("Model returned content that could not be normalized to JSON")
		fixed = content
	}

	return &Response{
		Text:  fixed,
		Usage: response.Usage,
	}, nil
}

// buildMessages assembles the system and user messages for one segment.
// The rolling context and glossary hints ride in the system message so the
// user message stays a pure payload.
func (t *llmTranslator) buildMessages(req Request) []llm.Message {
	var system strings.Builder
	system.WriteString(t.prompts.System)
	system.WriteString("\n")
	system.WriteString(t.prompts.FormatPrevious(req.PreviousContent))

	if len(req.Terms) > 0 {
		system.WriteString("\n")
		system.WriteString(t.prompts.FormatGlossary(glossary.FormatForPrompt(req.Terms)))
	}

	user := t.prompts.User + req.SegmentJSON

	return []llm.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user},
	}
}
