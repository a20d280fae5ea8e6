package domain

import "time"

// AuthorTypeBot is the author type the provider uses for automated messages.
const AuthorTypeBot = "bot"

// Conversation is a provider-side support thread after boundary validation.
type Conversation struct {
	// ID is the provider identifier.
	ID string

	// Title may be empty; provider titles are optional.
	Title string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Messages are ordered as returned by the provider.
	Messages []Message

	// Participants reference the contacts and teammates on the thread.
	Participants []ParticipantRef
}

// Message is a single part of a conversation.
type Message struct {
	ID        string
	Author    Author
	CreatedAt time.Time

	// Body is the raw HTML body. Empty bodies are skipped when rendering.
	Body string
}

// Author identifies who wrote a message.
type Author struct {
	ID    string
	Name  string
	Email string

	// Type is the provider author type ("user", "admin", "bot", "lead").
	Type string
}

// IsBot reports whether the author is an automated agent.
func (a Author) IsBot() bool {
	return a.Type == AuthorTypeBot
}

// ParticipantKind distinguishes how a participant is resolved.
type ParticipantKind string

// Participant kinds.
const (
	ParticipantContact  ParticipantKind = "contact"
	ParticipantTeammate ParticipantKind = "teammate"
)

// ParticipantRef is an unresolved reference to a participant.
type ParticipantRef struct {
	ID   string
	Kind ParticipantKind
}

// Participant is a resolved contact or teammate.
type Participant struct {
	ID    string
	Kind  ParticipantKind
	Name  string
	Email string
}

// EndUserType maps the participant kind to the stored end user type.
func (p Participant) EndUserType() EndUserType {
	if p.Kind == ParticipantTeammate {
		return EndUserTypeTeammate
	}
	return EndUserTypeUser
}

// ConversationSummary is a search result entry; details are fetched separately.
type ConversationSummary struct {
	ID        string
	CreatedAt time.Time
}

// ConversationPage is one page of the provider's conversation search.
type ConversationPage struct {
	Items []ConversationSummary

	// NextCursor is empty on the final page.
	NextCursor string

	// TotalCount is the provider's total match count, when reported.
	TotalCount int
}
