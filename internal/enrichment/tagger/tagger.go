// Package tagger classifies documents against a tenant's tag vocabulary.
package tagger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/threadline/internal/core/domain"
	"github.com/custodia-labs/threadline/internal/core/ports/driven"
)

// Ensure Tagger implements the interfaces.
var (
	_ driven.TagClassifier    = (*Tagger)(nil)
	_ driven.PromptStoreAware = (*Tagger)(nil)
)

// DefaultPrompt is used when no prompt store is set or it cannot load the template.
// Placeholders: existing tags, source type, summary, content.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const DefaultPrompt = `You are a helpful assistant that identifies the most relevant tags for a given document.
You will be given a quick summary of the document and the content of the document.
Your goal is to identify the most relevant tags for the document from the following list of tags:

Existing tags available:
%s

If there are no relevant tags in the existing tags list above, or if the existing tags list is empty,
try your best to identify the most relevant tags for the document yourself. You can use the examples
below to suggest new tags that best describe what the document is about.

The existing tags are what you would have suggested for other similar documents in the past.

Some examples of tags are:
- "Feature request"
- "Bug report"
- "Confusion"
- "Existing feature"
- "New feature"
- "Question"
- "Issue"
- "Improvement"
- "Help wanted"
- "Happy"
- "Sad"
- "Frustrated"

Answer with a single JSON object of the form {"existingTags":[],"newTags":[]}.
Put tags chosen from the existing list in "existingTags" and suggested new tags in "newTags".

The document is a %s document.

A quick summary of the document is:
%s

The content of the document is:
%s`

// Input is everything the classifier sees about a document.
type Input = driven.TagInput

// Suggestion is the classifier answer.
type Suggestion = driven.TagSuggestion

// response is the JSON object the model must answer with. Both arrays are
// required, though either may be empty.
type response struct {
	ExistingTags []string `json:"existingTags" validate:"required,dive,max=64"`
	NewTags      []string `json:"newTags" validate:"required,dive,max=64"`
}

// Tagger asks an LLM to pick tags, in JSON mode.
type Tagger struct {
	llm         driven.LLMService
	promptStore driven.PromptStore
	validate    *validator.Validate
}

// New creates a tagger. A nil llm makes every call fail with domain.ErrLLMUnavailable.
func New(llm driven.LLMService) *Tagger {
	return &Tagger{llm: llm, validate: validator.New()}
}

// SetPromptStore sets the prompt store for loading the customisable template.
func (t *Tagger) SetPromptStore(store driven.PromptStore) {
	t.promptStore = store
}

// Classify returns the tags for a document. Names the model claims are
// existing but are not in the vocabulary are dropped.
func (t *Tagger) Classify(ctx context.Context, in Input) (*Suggestion, error) {
	if t.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	prompt := fmt.Sprintf(t.loadPrompt(), strings.Join(in.ExistingTags, ", "), in.SourceType, in.Summary, in.Content)
	raw, err := t.llm.Chat(ctx, []driven.ChatMessage{{Role: "system", Content: prompt}, {Role: "user", Content: "Identify the tags."}},
		driven.ChatOptions{Temperature: 0.2, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("identify tags: %w", err)
	}

	resp, err := t.parse(raw)
	if err != nil {
		return nil, err
	}

	vocabulary := make(map[string]bool, len(in.ExistingTags))
	for _, name := range in.ExistingTags {
		vocabulary[domain.Slugify(name)] = true
	}

	seen := make(map[string]bool)
	out := &Suggestion{}
	for _, name := range resp.ExistingTags {
		name = strings.TrimSpace(name)
		slug := domain.Slugify(name)
		if slug == "" || !vocabulary[slug] || seen[slug] {
			continue
		}
		seen[slug] = true
		out.Existing = append(out.Existing, name)
	}
	for _, name := range resp.NewTags {
		name = strings.TrimSpace(name)
		slug := domain.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out.New = append(out.New, name)
	}
	return out, nil
}

func (t *Tagger) parse(raw string) (*response, error) {
	var resp response
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &resp); err != nil {
		return nil, &domain.ModelOutputError{Stage: domain.StageTag, Reason: "response is not valid JSON", Err: err}
	}
	if err := t.validate.Struct(resp); err != nil {
		return nil, &domain.ModelOutputError{Stage: domain.StageTag, Reason: "response does not match the tag schema", Err: err}
	}
	return &resp, nil
}

// stripCodeFence removes a markdown code fence some models wrap JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func (t *Tagger) loadPrompt() string {
	if t.promptStore == nil {
		return DefaultPrompt
	}
	prompt, err := t.promptStore.Load(driven.PromptIdentifyTags)
	if err != nil {
		return DefaultPrompt
	}
	return prompt
}
