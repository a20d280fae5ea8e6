// Package summarizer writes document summaries with a language model.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure Summarizer implements the interfaces.
var (
	_ driven.Summarizer       = (*Summarizer)(nil)
	_ driven.PromptStoreAware = (*Summarizer)(nil)
)

// DefaultPrompt is used when no prompt store is set or it cannot load the template.
// Placeholders: source type, content.
const DefaultPrompt = `Write a concise summary of the following text.
The text is a %s document.

%s`

// Input is the document text to summarise.
type Input = driven.SummaryInput

// Summarizer asks an LLM for a concise summary.
type Summarizer struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
}

// New creates a summarizer. A nil llm makes every call fail with domain.ErrLLMUnavailable.
func New(llm driven.LLMService) *Summarizer {
	return &Summarizer{llm: llm}
}

// SetPromptStore sets the prompt store for loading the customisable template.
func (s *Summarizer) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Summarize returns the summary text. An empty answer is a *domain.ModelOutputError.
func (s *Summarizer) Summarize(ctx context.Context, in Input) (string, error) {
	if s.llm == nil {
		return "", domain.ErrLLMUnavailable
	}

	prompt := fmt.Sprintf(s.loadPrompt(), in.SourceType, in.Content)
	result, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{Temperature: 0.3})
	if err != nil {
		return "", fmt.Errorf("summarise: %w", err)
	}

	summary := strings.TrimSpace(result)
	if summary == "" {
		return "", &domain.ModelOutputError{Stage: domain.StageSummarize, Reason: "empty summary"}
	}
	return summary, nil
}

func (s *Summarizer) loadPrompt() string {
	if s.promptStore == nil {
		return DefaultPrompt
	}
	prompt, err := s.promptStore.Load(driven.PromptSummarise)
	if err != nil {
		return DefaultPrompt
	}
	return prompt
}
