package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
	"github.com/custodia-labs/threadline/internal/normalisers/html"
)

// TimestampLayout is the UTC millisecond layout used for every timestamp in
// rendered documents.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Ensure Renderer implements the interface.
var _ driven.ConversationRenderer = (*Renderer)(nil)

// Renderer renders conversations to markdown.
type Renderer struct{}

// New creates a new conversation renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render implements driven.ConversationRenderer.
func (r *Renderer) Render(conv *domain.Conversation) string {
	return ToMarkdown(conv)
}

// ToMarkdown renders a conversation. A nil conversation renders as "".
func ToMarkdown(conv *domain.Conversation) string {
	if conv == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Conversation %s\n\n", conv.ID))
	sb.WriteString(fmt.Sprintf("Created: %s\n\n", FormatTime(conv.CreatedAt)))

	for _, msg := range conv.Messages {
		body := html.ToMarkdown(msg.Body)
		if body == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s (%s)\n\n%s\n\n",
			AuthorLabel(msg.Author),
			FormatTime(msg.CreatedAt),
			body))
	}

	return sb.String()
}

// AuthorLabel returns "Name (Bot)" for bots and "Name (Unknown)" otherwise.
func AuthorLabel(a domain.Author) string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = "Unknown"
	}
	role := "Unknown"
	if a.IsBot() {
		role = "Bot"
	}
	return fmt.Sprintf("%s (%s)", name, role)
}

// FormatTime formats t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
