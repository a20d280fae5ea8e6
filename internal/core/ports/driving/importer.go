package driving

import (
	"context"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

// ConversationImporter imports provider conversations as documents.
type ConversationImporter interface {
	// Start validates the request, checks the tenant's provider configuration and
	// creates a pending import job without fetching anything.
	Start(ctx context.Context, req domain.ImportRequest) (*domain.ImportJob, error)

	// Import creates an import job and runs its first bounded invocation.
	Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportResult, error)

	// Continue runs the next bounded invocation of a paused job from its checkpoint.
	Continue(ctx context.Context, jobID string) (*domain.ImportResult, error)

	// StoreConversation imports a single conversation. It returns false when the
	// conversation was already stored.
	StoreConversation(ctx context.Context, appID, userID, conversationID string) (bool, error)

	// Job returns the current state of an import job.
	Job(ctx context.Context, jobID string) (*domain.ImportJob, error)
}
