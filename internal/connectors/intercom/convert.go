package intercom

import (
	"strings"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
)

func toConversationPage(list *conversationList) *domain.ConversationPage {
	page := &domain.ConversationPage{
		Items:      make([]domain.ConversationSummary, 0, len(list.Conversations)),
		TotalCount: list.TotalCount,
	}
	for _, c := range list.Conversations {
		page.Items = append(page.Items, domain.ConversationSummary{
			ID:        c.ID,
			CreatedAt: fromEpoch(c.CreatedAt),
		})
	}
	if list.Pages != nil && list.Pages.Next != nil {
		page.NextCursor = list.Pages.Next.StartingAfter
	}
	return page
}

// toConversation maps the detail payload. The opening message (source) comes
// first, followed by the conversation parts in provider order.
func toConversation(c *conversation) *domain.Conversation {
	conv := &domain.Conversation{
		ID:        c.ID,
		Title:     strings.TrimSpace(c.Title),
		CreatedAt: fromEpoch(c.CreatedAt),
		UpdatedAt: fromEpoch(c.UpdatedAt),
	}

	if c.Source != nil && strings.TrimSpace(c.Source.Body) != "" {
		msg := toMessage(c.Source)
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = conv.CreatedAt
		}
		conv.Messages = append(conv.Messages, msg)
	}
	if c.ConversationParts != nil {
		for i := range c.ConversationParts.ConversationParts {
			conv.Messages = append(conv.Messages, toMessage(&c.ConversationParts.ConversationParts[i]))
		}
	}

	seen := make(map[domain.ParticipantRef]bool)
	add := func(id string, kind domain.ParticipantKind) {
		ref := domain.ParticipantRef{ID: id, Kind: kind}
		if id == "" || seen[ref] {
			return
		}
		seen[ref] = true
		conv.Participants = append(conv.Participants, ref)
	}
	if c.Contacts != nil {
		for _, ref := range c.Contacts.Contacts {
			add(ref.ID, domain.ParticipantContact)
		}
	}
	if c.Teammates != nil {
		for _, ref := range c.Teammates.Teammates {
			add(ref.ID, domain.ParticipantTeammate)
		}
	}

	return conv
}

func toMessage(p *conversationPart) domain.Message {
	return domain.Message{
		ID: p.ID,
		Author: domain.Author{
			ID:    p.Author.ID,
			Name:  p.Author.Name,
			Email: p.Author.Email,
			Type:  p.Author.Type,
		},
		CreatedAt: fromEpoch(p.CreatedAt),
		Body:      p.Body,
	}
}

func contactToParticipant(c *contact) *domain.Participant {
	return &domain.Participant{
		ID:    c.ID,
		Kind:  domain.ParticipantContact,
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
	}
}

func adminToParticipant(a *admin) *domain.Participant {
	return &domain.Participant{
		ID:    a.ID,
		Kind:  domain.ParticipantTeammate,
		Name:  strings.TrimSpace(a.Name),
		Email: strings.TrimSpace(a.Email),
	}
}

func fromEpoch(secs int64) time.Time {
	if secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
