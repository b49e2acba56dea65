package model

import (
	"regexp"
	"strings"
)

// TooltipMarker is the first context of every tooltip title.
const TooltipMarker = "Tooltip"

var contextPattern = regexp.MustCompile(`\[(.*?)\]`)

// ParseContexts extracts the bracket-delimited tags of a title, in order of
// appearance, with delimiters stripped. Empty tags are dropped.
//
//	ParseContexts("[ctx1][ctx2] Sale") // ["ctx1", "ctx2"]
func ParseContexts(title string) []string {
	matches := contextPattern.FindAllStringSubmatch(title, -1)
	if len(matches) == 0 {
		return nil
	}

	contexts := make([]string, 0, len(matches))
	for _, m := range matches {
		ctx := strings.Trim(m[1], "[]")
		if ctx == "" {
			continue
		}
		contexts = append(contexts, ctx)
	}
	return contexts
}

// TooltipContexts returns the contexts of a tooltip title without the
// leading marker.
func TooltipContexts(title string) []string {
	contexts := ParseContexts(title)
	if len(contexts) == 0 {
		return nil
	}
	return contexts[1:]
}

// StripContexts removes the bracketed tags from a title.
//
//	StripContexts("[ctx1][ctx2] Sale") // "Sale"
func StripContexts(title string) string {
	return strings.TrimSpace(contextPattern.ReplaceAllString(title, ""))
}
