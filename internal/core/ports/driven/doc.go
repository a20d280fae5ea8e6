// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - ProviderFactory / ConversationProvider: Fetch conversations from the provider
//   - ConversationRenderer: Renders a conversation as a markdown document body
//   - DocumentStore, ChunkStore, TagStore, EndUserStore: Pipeline persistence
//   - ImportCursorStore, ImportJobStore: Resumable import checkpoints
//   - SettingsStore: Tenant provider credentials (read-only to the pipeline)
//   - PostProcessor: Splits document content into chunks
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Language model calls. Without it, summarise and tag stages fail
//     with ErrLLMUnavailable and documents stay unprocessed.
//   - EmbeddingService: Vector embeddings. Without it, the backfill is disabled.
//   - JobQueue: Continuation hand-off. Without it, paused jobs wait for an
//     explicit continue request.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
