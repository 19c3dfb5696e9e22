package translator

import (
	"context"

	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/glossary"
	"github.com/YANG-Haruka/LinguaHaru-sub000/internal/llm"
)

// Request carries one segment payload to the model along with the rolling
// context from recently translated segments and any matched glossary terms.
type Request struct {
	SegmentJSON     string
	PreviousContent string
	Terms           []glossary.Term
}

// Response is the model's reply, normalized to a JSON string, with the token
// usage of the call.
type Response struct {
	Text  string
	Usage llm.Usage
}

// Translator translates one segment payload.
type Translator interface {
	Translate(ctx context.Context, req Request) (*Response, error)
}
