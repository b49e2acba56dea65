package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContexts(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{"no tags", "Plain title", nil},
		{"single", "[ctx] Sale", []string{"ctx"}},
		{"ordered", "[ctx1][ctx2] Sale", []string{"ctx1", "ctx2"}},
		{"spread out", "Big [a] summer [b] sale [c]", []string{"a", "b", "c"}},
		{"empty tag dropped", "[] Sale [x]", []string{"x"}},
		{"nested bracket stripped", "[[inner] Sale", []string{"inner"}},
		{"unclosed", "[open Sale", nil},
		{"spaces kept", "[first time] Welcome", []string{"first time"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseContexts(tt.title))
		})
	}
}

func TestTooltipContexts(t *testing.T) {
	assert.Equal(t, []string{"home"}, TooltipContexts("[Tooltip][home] Tap here"))
	assert.Empty(t, TooltipContexts("[Tooltip] Tap here"))
	assert.Nil(t, TooltipContexts("Tap here"))
}

func TestCampaign_Contexts(t *testing.T) {
	c := Campaign{ID: "c", Data: CampaignData{Title: "[cart] Free shipping"}}
	assert.Equal(t, []string{"cart"}, c.Contexts())
}

func TestStripContexts(t *testing.T) {
	assert.Equal(t, "Sale", StripContexts("[ctx1][ctx2] Sale"))
	assert.Equal(t, "Big  sale", StripContexts("Big [a] sale"))
	assert.Equal(t, "Plain", StripContexts("Plain"))
}
