package llm

import (
	"context"
	"strings"
)

// CannedAnswer is one entry of the offline answer book.
type CannedAnswer struct {
	Keywords []string
	Reply    string
}

// DefaultAnswers is the built-in answer book used when no model is configured.
var DefaultAnswers = []CannedAnswer{
	{
		Keywords: []string{"price", "pricing", "cost", "harga", "biaya"},
		Reply:    "Our Starter plan is 150000 IDR per month, Growth is 450000 IDR per month and Enterprise is quoted per project.",
	},
	{
		Keywords: []string{"hours", "open", "jam", "buka"},
		Reply:    "Our team is available Monday to Friday from 09:00 to 18:00 WIB.",
	},
	{
		Keywords: []string{"whatsapp", "instagram", "telegram", "channel"},
		Reply:    "The assistant answers on the web app, WhatsApp, Instagram, Telegram and X with the same account.",
	},
	{
		Keywords: []string{"contact", "sales", "demo", "kontak"},
		Reply:    "Leave your email or phone number and our sales team will contact you within one business day.",
	},
}

const cannedGreeting = "Hello! I can help with pricing, our team, opening hours and getting you in touch with sales."

// CannedClient answers from a fixed keyword table. It needs no network and
// reports the matched entry as the reply's source.
type CannedClient struct {
	answers []CannedAnswer
}

// NewCannedClient creates a canned client. Nil answers uses DefaultAnswers.
func NewCannedClient(answers []CannedAnswer) *CannedClient {
	if answers == nil {
		answers = DefaultAnswers
	}
	return &CannedClient{answers: answers}
}

// Complete picks the answer whose keywords best match the last user turn.
func (c *CannedClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := strings.ToLower(LastUserMessage(req.Messages))
	best, bestScore := -1, 0
	for i, a := range c.answers {
		score := 0
		for _, kw := range a.Keywords {
			if strings.Contains(query, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return &CompletionResponse{Content: cannedGreeting, Model: c.Name()}, nil
	}
	reply := c.answers[best].Reply
	return &CompletionResponse{
		Content: reply,
		Sources: []string{reply},
		Model:   c.Name(),
	}, nil
}

// Name returns the provider name.
func (c *CannedClient) Name() string { return "canned" }
