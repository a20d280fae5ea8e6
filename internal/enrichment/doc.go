// Package enrichment contains the model-backed stages of document processing.
//
// Subpackages:
//   - summarizer: writes a concise summary of a document
//   - tagger: classifies a document against the tenant's tag vocabulary
//
// Both load their prompt templates from a driven.PromptStore when one is set
// and fall back to built-in defaults otherwise.
package enrichment
