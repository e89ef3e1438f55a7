package fsm

import (
	"strings"

	"whatsapp-commerce-gateway/internal/core/compose"
	"whatsapp-commerce-gateway/internal/core/remote"
)

// cutPrefix reports whether s has prefix, returning the remainder.
func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}

func truncatedTitle(s string) string       { return compose.TruncateWordBoundary(s, 24) }
func truncatedRowTitle(s string) string    { return compose.TruncateWordBoundary(s, 24) }
func truncatedButtonTitle(s string) string { return compose.TruncateWordBoundary(s, 20) }

func joinCategoryNames(categories []remote.MenuCategory) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return joinStrings(names)
}

func joinButtonTitles(buttons []compose.Button) string {
	names := make([]string, len(buttons))
	for i, b := range buttons {
		names[i] = b.Title
	}
	return joinStrings(names)
}

func joinStrings(items []string) string {
	return strings.Join(items, ", ")
}
