// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - SettingsStore: TOML-based tenant provider credentials
//   - PromptStore: user-editable LLM prompt templates
//
// Both stores can watch their files and pick up edits without a restart.
package file
