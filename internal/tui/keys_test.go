package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyMap_SectionsCoverEveryBinding(t *testing.T) {
	keys := DefaultKeyMap()

	seen := make(map[string]string)
	for _, section := range keys.sections() {
		require.NotEmpty(t, section.bindings, section.title)
		for _, b := range section.bindings {
			for _, k := range b.Keys() {
				prev, dup := seen[k]
				assert.False(t, dup, "%q bound in %s and %s", k, prev, section.title)
				seen[k] = section.title
			}
			assert.NotEmpty(t, b.Help().Desc)
		}
	}

	for _, k := range []string{"enter", "f", "t", "/", "r", "c", "C", "alt+c", "q", "ctrl+c", "?", "esc"} {
		assert.Contains(t, seen, k)
	}
	assert.Len(t, keys.FullHelp(), len(keys.sections()))
}

func TestModel_HelpListsSections(t *testing.T) {
	m := ready(t, staticSource{snap: sampleSnapshot()})
	m = press(m, runes("?"))
	require.Equal(t, ModeHelp, m.mode)

	view := m.View()
	for _, title := range []string{"Browse attempts", "Filter", "Copy to clipboard", "General"} {
		assert.Contains(t, view, title)
	}
	assert.Contains(t, view, "cycle outcome filter")
}
