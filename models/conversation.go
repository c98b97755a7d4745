package models

import "fmt"

// EntryKind distinguishes user turns from assistant turns
type EntryKind string

const (
	EntryKindUser      EntryKind = "user"
	EntryKindAssistant EntryKind = "assistant"
)

// Valid reports whether the kind is user or assistant
func (k EntryKind) Valid() bool {
	return k == EntryKindUser || k == EntryKindAssistant
}

// ConversationEntry is one turn of a user's conversation.
// Entries are immutable once appended; order is conversation order.
type ConversationEntry struct {
	Kind           EntryKind   `json:"type"`
	Text           string      `json:"message"`
	SourceProvider *ProviderID `json:"source,omitempty"`
}

// NewUserEntry creates a user turn
func NewUserEntry(text string) ConversationEntry {
	return ConversationEntry{Kind: EntryKindUser, Text: text}
}

// NewAssistantEntry creates an assistant turn attributed to a provider
func NewAssistantEntry(text string, source ProviderID) ConversationEntry {
	return ConversationEntry{Kind: EntryKindAssistant, Text: text, SourceProvider: &source}
}

// Source returns the source provider or an empty id
func (e ConversationEntry) Source() ProviderID {
	if e.SourceProvider == nil {
		return ""
	}
	return *e.SourceProvider
}

// Validate checks the entry is well-formed
func (e ConversationEntry) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("invalid entry kind %q", e.Kind)
	}
	return nil
}

// AppendEntry returns a new history with entry appended; history is left untouched
func AppendEntry(history []ConversationEntry, entry ConversationEntry) []ConversationEntry {
	out := make([]ConversationEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, entry)
}
