package history

import "github.com/upb/llm-compare/models"

// DefaultWindowSize is the number of most recent entries sent to a provider
const DefaultWindowSize = 5

// Window returns the last maxEntries entries of full in their original order.
// Histories shorter than the window are returned whole. A non-positive
// maxEntries selects DefaultWindowSize. The result never aliases full.
func Window(full []models.ConversationEntry, maxEntries int) []models.ConversationEntry {
	if maxEntries <= 0 {
		maxEntries = DefaultWindowSize
	}

	start := 0
	if len(full) > maxEntries {
		start = len(full) - maxEntries
	}

	out := make([]models.ConversationEntry, len(full)-start)
	copy(out, full[start:])
	return out
}
