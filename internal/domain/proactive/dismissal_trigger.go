package proactive

import "strings"

var dismissWords = []string{"dismiss", "stop"}
var topicWords = []string{"nudge", "suggestion"}

// IsExplicitDismissal reports whether text looks like a user directly
// asking the assistant to stop nudging them (spec §4.M: a dismiss word
// plus a topic word, e.g. "stop these suggestions" or "dismiss nudge").
func IsExplicitDismissal(text string) bool {
	lower := strings.ToLower(text)
	hasDismiss := false
	for _, w := range dismissWords {
		if strings.Contains(lower, w) {
			hasDismiss = true
			break
		}
	}
	if !hasDismiss {
		return false
	}
	for _, w := range topicWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
