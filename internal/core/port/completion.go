package port

import (
	"context"

	"github.com/startupadvisor/advisor-api/internal/core/domain"
)

// CompletionClient generates assistant replies from an external
// language-model service.
type CompletionClient interface {
	// Complete produces the assistant reply for the supplied conversation
	// history. The mode selects the system persona.
	Complete(ctx context.Context, mode domain.ConversationMode, history []domain.ChatMessage) (string, error)
}
