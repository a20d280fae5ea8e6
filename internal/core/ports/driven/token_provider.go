package driven

import "context"

// TokenProvider provides access tokens for authenticated API calls.
// Provider clients call it before every request so a revoked or rotated
// credential takes effect without rebuilding the client.
type TokenProvider interface {
	// GetToken returns the current access token.
	GetToken(ctx context.Context) (string, error)
}
