package driven

import "context"

// SummaryInput is the document text handed to a Summarizer.
type SummaryInput struct {
	// SourceType names where the document came from (e.g. "intercom").
	SourceType string
	Content    string
}

// Summarizer produces a short summary of a document.
// An unusable model answer is reported as *domain.ModelOutputError.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) (string, error)
}

// TagInput is everything a TagClassifier sees about a document.
type TagInput struct {
	SourceType string
	Summary    string
	Content    string

	// ExistingTags is the tenant's current vocabulary, by name.
	ExistingTags []string
}

// TagSuggestion is a classifier answer.
type TagSuggestion struct {
	// Existing are names taken from the vocabulary.
	Existing []string

	// New are names the classifier proposes adding.
	New []string
}

// TagClassifier picks tags for a document from the vocabulary and may propose new ones.
// An unparsable model answer is reported as *domain.ModelOutputError.
type TagClassifier interface {
	Classify(ctx context.Context, in TagInput) (*TagSuggestion, error)
}
