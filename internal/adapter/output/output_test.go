package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

func testAttempts() []model.Attempt {
	now := time.Now()
	return []model.Attempt{
		{
			ID:         "01HZX",
			CampaignID: "welcome",
			Kind:       model.AttemptKindMessage,
			Reason:     model.ReasonDisplayed,
			CreatedAt:  now.Add(-5 * time.Minute),
		},
		{
			ID:         "01HZY",
			CampaignID: "buy-tip",
			Kind:       model.AttemptKindTooltip,
			Reason:     model.ReasonInterrupted,
			Detail:     "anchor\nremoved",
			CreatedAt:  now.Add(-2 * time.Hour),
		},
		{
			ID:         "01HZZ",
			CampaignID: "welcome",
			Kind:       model.AttemptKindMessage,
			Reason:     model.ReasonRejected,
			CreatedAt:  now.Add(-3 * time.Hour),
		},
	}
}

func TestLineFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLineFormatter(DefaultFormatterOptions()).Format(&buf, testAttempts()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1 | 5m | message | welcome: displayed", lines[0])
	assert.Equal(t, "2 | 2h | tooltip | buy-tip: interrupted (anchor removed)", lines[1])
}

func TestLineFormatter_Minimal(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewLineFormatter(FormatterOptions{}).Format(&buf, testAttempts()[:1]))
	assert.Equal(t, "welcome: displayed\n", buf.String())
}

func TestLineFormatter_CustomTemplate(t *testing.T) {
	opts := FormatterOptions{Template: "{{.Index}} {{reasonIcon .Attempt.Reason}} {{truncate .Attempt.CampaignID 5}}"}
	var buf bytes.Buffer
	require.NoError(t, NewLineFormatter(opts).Format(&buf, testAttempts()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"1 + we...", "2 ! bu...", "3 - we..."}, lines)
}

func TestLineFormatter_BadTemplateFallsBack(t *testing.T) {
	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index"
	var buf bytes.Buffer
	require.NoError(t, NewLineFormatter(opts).Format(&buf, testAttempts()[:1]))
	assert.Contains(t, buf.String(), "welcome: displayed")
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, testAttempts()))

	out := buf.String()
	assert.Contains(t, out, "[1] <message> welcome displayed (5 minutes ago)")
	assert.Contains(t, out, "[2] <tooltip> buy-tip interrupted (2 hours ago)\n    anchor removed\n")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, testAttempts()))

	var decoded []model.Attempt
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "buy-tip", decoded[1].CampaignID)
	assert.Equal(t, model.ReasonInterrupted, decoded[1].Reason)

	buf.Reset()
	require.NoError(t, NewJSONFormatter(FormatterOptions{}).Format(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestJSONFormatter_FormatSingle(t *testing.T) {
	a := testAttempts()[0]
	var buf bytes.Buffer
	require.NoError(t, NewJSONFormatter(FormatterOptions{}).FormatSingle(&buf, &a))
	assert.Contains(t, buf.String(), `"campaign_id": "welcome"`)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter().Format(&buf, testAttempts()))

	var decoded []model.Attempt
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, model.AttemptKindTooltip, decoded[1].Kind)
}

func TestIDsFormatter_Distinct(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewIDsFormatter().Format(&buf, testAttempts()))
	assert.Equal(t, "welcome\nbuy-tip\n", buf.String())
}

func TestFormatField(t *testing.T) {
	a := &model.Attempt{
		ID:         "01HZX",
		CampaignID: "promo",
		Kind:       model.AttemptKindMessage,
		Reason:     model.ReasonRejected,
		Detail:     "context denied",
		CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	tests := []struct {
		field    string
		expected string
	}{
		{"id", "01HZX"},
		{"campaign", "promo"},
		{"CAMPAIGN_ID", "promo"},
		{"kind", "message"},
		{"outcome", "rejected"},
		{"detail", "context denied"},
		{"time", "2026-01-02T03:04:05Z"},
		{"unknown", "promo rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatField(a, tt.field))
		})
	}
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()

	assert.IsType(t, &LineFormatter{}, NewFormatter(FormatLine, opts))
	assert.IsType(t, &PlainFormatter{}, NewFormatter(FormatPlain, opts))
	assert.IsType(t, &JSONFormatter{}, NewFormatter(FormatJSON, opts))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter(FormatYAML, opts))
	assert.IsType(t, &IDsFormatter{}, NewFormatter(FormatIDs, opts))
	assert.IsType(t, &LineFormatter{}, NewFormatter("unknown", opts))
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{"zero", time.Time{}, "unknown"},
		{"now", now, "now"},
		{"minutes", now.Add(-5 * time.Minute), "5m"},
		{"hours", now.Add(-3 * time.Hour), "3h"},
		{"days", now.Add(-2 * 24 * time.Hour), "2d"},
		{"weeks", now.Add(-15 * 24 * time.Hour), "2w"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, relativeTime(tt.t))
		})
	}
}

func TestWriteCampaigns(t *testing.T) {
	campaigns := []model.Campaign{
		{ID: "welcome", ImpressionsLeft: 2, Data: model.CampaignData{Type: model.ViewTypeModal, MaxImpressions: 3, Title: "[onboarding] Welcome"}},
		{ID: "old", IsOptedOut: true, Data: model.CampaignData{Type: model.ViewTypeSlide, MaxImpressions: 1, Title: "Old news"}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCampaigns(&buf, FormatLine, campaigns))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "TYPE", "LEFT", "CONTEXTS", "TITLE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"welcome", "modal", "2/3", "onboarding", "Welcome"}, strings.Fields(lines[1]))
	assert.Contains(t, lines[2], "opted out")

	buf.Reset()
	require.NoError(t, WriteCampaigns(&buf, FormatIDs, campaigns))
	assert.Equal(t, "welcome\nold\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCampaigns(&buf, FormatJSON, nil))
	assert.Equal(t, "[]\n", buf.String())
}
