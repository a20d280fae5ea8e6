package intercom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

const (
	// DefaultBaseURL is the Intercom REST API endpoint.
	DefaultBaseURL = "https://api.intercom.io"

	// APIVersion is sent as the Intercom-Version header.
	APIVersion = "2.12"

	// DefaultPageSize is used when a request does not set a page size.
	DefaultPageSize = 25

	// MaxPageSize is the largest page the search endpoint accepts.
	MaxPageSize = 150

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Ensure Client implements the interface.
var _ driven.ConversationProvider = (*Client)(nil)

// Client is a tenant-scoped Intercom API client.
// It imposes no per-call timeout; callers bound calls with the context.
type Client struct {
	baseURL       string
	version       string
	tokenProvider driven.TokenProvider
	rateLimiter   *RateLimiter

	// base is the transport the authorised client is built on.
	base *http.Client

	mu  sync.Mutex
	api *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets the underlying HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.base = hc
		}
	}
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		if rl != nil {
			c.rateLimiter = rl
		}
	}
}

// WithRequestsPerSecond sets the proactive throttle. Unlike WithRateLimiter it
// is safe to pass to a Factory, which keeps one limiter per app.
func WithRequestsPerSecond(perSecond float64, burst int) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(perSecond, burst)
	}
}

// WithAPIVersion overrides the Intercom-Version header.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.version = version
		}
	}
}

// NewClient creates a new Intercom API client with a token provider.
func NewClient(tokenProvider driven.TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		version:       APIVersion,
		tokenProvider: tokenProvider,
		rateLimiter:   NewDefaultRateLimiter(),
		base:          http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ensureClient builds the authorised HTTP client on first use so the token
// is only requested when a call is actually made.
func (c *Client) ensureClient(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.api != nil {
		return c.api, nil
	}
	if c.tokenProvider == nil {
		return nil, &domain.ConfigurationError{Reason: "no token provider"}
	}

	token, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token, TokenType: "Bearer"},
	)
	// The authorised client must not inherit the caller's context, only its transport.
	c.api = oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, c.base), ts)
	c.api.Timeout = c.base.Timeout

	return c.api, nil
}

// ListConversations fetches one page of the conversation search.
// CreatedAfter is inclusive at second precision.
func (c *Client) ListConversations(
	ctx context.Context, req driven.ListConversationsRequest,
) (*domain.ConversationPage, error) {
	perPage := req.PageSize
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	body := searchRequest{
		Query: searchQuery{
			Operator: "AND",
			Value: []searchField{{
				Field:    "created_at",
				Operator: ">",
				Value:    createdAfterValue(req.CreatedAfter),
			}},
		},
		Pagination: searchPagination{
			PerPage:       perPage,
			StartingAfter: req.Cursor,
		},
	}

	var list conversationList
	if err := c.do(ctx, http.MethodPost, "/conversations/search", body, &list); err != nil {
		return nil, err
	}

	return toConversationPage(&list), nil
}

// createdAfterValue renders the epoch-second bound for the search filter.
// The provider only offers a strict ">" comparison, so the bound is moved
// back one second to include conversations created in that second.
func createdAfterValue(after *time.Time) string {
	if after == nil || after.IsZero() {
		return "0"
	}
	secs := after.Unix() - 1
	if secs < 0 {
		secs = 0
	}
	return strconv.FormatInt(secs, 10)
}

// GetConversation fetches a conversation with all of its parts.
func (c *Client) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("get conversation: %w", domain.ErrInvalidInput)
	}

	var conv conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}

	return toConversation(&conv), nil
}

// GetContact fetches a contact (end user or lead).
func (c *Client) GetContact(ctx context.Context, id string) (*domain.Participant, error) {
	var ct contact
	if err := c.do(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), nil, &ct); err != nil {
		return nil, err
	}
	return contactToParticipant(&ct), nil
}

// GetAdmin fetches a teammate.
func (c *Client) GetAdmin(ctx context.Context, id string) (*domain.Participant, error) {
	var a admin
	if err := c.do(ctx, http.MethodGet, "/admins/"+url.PathEscape(id), nil, &a); err != nil {
		return nil, err
	}
	return adminToParticipant(&a), nil
}

// GetParticipant resolves a contact or teammate reference.
func (c *Client) GetParticipant(ctx context.Context, ref domain.ParticipantRef) (*domain.Participant, error) {
	if ref.ID == "" {
		return nil, fmt.Errorf("get participant: %w", domain.ErrInvalidInput)
	}
	switch ref.Kind {
	case domain.ParticipantContact:
		return c.GetContact(ctx, ref.ID)
	case domain.ParticipantTeammate:
		return c.GetAdmin(ctx, ref.ID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownParticipantKind, ref.Kind)
	}
}

// ValidateCredentials checks the token by fetching the authorised admin.
func (c *Client) ValidateCredentials(ctx context.Context) error {
	var a admin
	return c.do(ctx, http.MethodGet, "/me", nil, &a)
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// do performs one API call, decoding and validating the response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	api, err := c.ensureClient(ctx)
	if err != nil {
		return err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Intercom-Version", c.version)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := api.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp, endpoint); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.ProviderError{
			Message: "decode response: " + err.Error(),
			URL:     endpoint,
			Err:     ErrInvalidPayload,
		}
	}
	if err := validate.Struct(out); err != nil {
		return &domain.ProviderError{
			Message: "validate response: " + err.Error(),
			URL:     endpoint,
			Err:     errors.Join(ErrInvalidPayload, err),
		}
	}

	return nil
}

// checkResponse converts non-success responses to provider errors.
func (c *Client) checkResponse(resp *http.Response, endpoint string) error {
	rateErr := c.rateLimiter.CheckRateLimit(resp)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &domain.ProviderError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(resp.StatusCode, data),
		URL:        endpoint,
	}

	var rle *RateLimitError
	if errors.As(rateErr, &rle) {
		rle.Err = apiErr
		return rle
	}
	return apiErr
}

// errorMessage extracts the first message of an Intercom error envelope.
func errorMessage(status int, data []byte) string {
	var list errorList
	if err := json.Unmarshal(data, &list); err == nil && len(list.Errors) > 0 {
		item := list.Errors[0]
		if item.Code != "" && item.Message != "" {
			return item.Code + ": " + item.Message
		}
		if item.Message != "" {
			return item.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}
