package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// ListConversationsRequest selects one page of the provider's conversation search.
type ListConversationsRequest struct {
	// Cursor is the opaque token from the previous page. Empty for the first page.
	Cursor string

	// PageSize is the number of conversations per page.
	PageSize int

	// CreatedAfter restricts results to conversations created after this time.
	CreatedAfter *time.Time
}

// ConversationProvider reads conversations from the external messaging provider.
// Implementations return *domain.ProviderError for non-success responses and do
// not impose their own per-call timeout; callers bound calls with the context.
type ConversationProvider interface {
	// ListConversations fetches one page of conversations.
	ListConversations(ctx context.Context, req ListConversationsRequest) (*domain.ConversationPage, error)

	// GetConversation fetches the full message thread of a conversation.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// GetParticipant resolves a contact or teammate reference.
	GetParticipant(ctx context.Context, ref domain.ParticipantRef) (*domain.Participant, error)
}

// ProviderFactory builds tenant-scoped provider clients.
// Credentials are resolved on every call; a tenant without a usable credential
// yields *domain.ConfigurationError.
type ProviderFactory interface {
	ForTenant(ctx context.Context, appID string) (ConversationProvider, error)
}

// ConversationRenderer renders a conversation as a markdown document body.
type ConversationRenderer interface {
	Render(conv *domain.Conversation) string
}
