package source

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

const validYAML = `
campaigns:
  - id: welcome
    data:
      type: modal
      max_impressions: 3
      title: "[onboarding] Welcome"
      body: Hello there
      delay: 500
  - id: buy-tip
    impressions_left: 99
    data:
      type: tooltip
      max_impressions: 1
      title: "[Tooltip][checkout] Tap to buy"
      tooltip:
        ui_element: buy
        position: bottom-center
        auto_disappear: 5
`

func TestParse(t *testing.T) {
	campaigns, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	require.Len(t, campaigns, 2)

	welcome := campaigns[0]
	assert.Equal(t, "welcome", welcome.ID)
	assert.Equal(t, model.ViewTypeModal, welcome.Data.Type)
	assert.Equal(t, 500*time.Millisecond, welcome.Data.DelayDuration())
	assert.Equal(t, []string{"onboarding"}, welcome.Contexts())

	tip := campaigns[1]
	require.NotNil(t, tip.Data.Tooltip)
	assert.Equal(t, "buy", tip.Data.Tooltip.UIElementID)
	assert.Equal(t, model.PlacementBottomCenter, tip.Data.Tooltip.Position)
	assert.Equal(t, 5, tip.Data.Tooltip.AutoDisappear)
	assert.Zero(t, tip.ImpressionsLeft, "local state is not read from definitions")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "missing id",
			yaml:    "campaigns:\n  - data: {type: modal}\n",
			wantErr: model.ErrEmptyID,
		},
		{
			name:    "bad type",
			yaml:    "campaigns:\n  - id: a\n    data: {type: banner}\n",
			wantErr: model.ErrInvalidViewType,
		},
		{
			name:    "tooltip without data",
			yaml:    "campaigns:\n  - id: a\n    data: {type: tooltip}\n",
			wantErr: model.ErrMissingTooltip,
		},
		{
			name:    "duplicate",
			yaml:    "campaigns:\n  - id: a\n    data: {type: modal}\n  - id: a\n    data: {type: slide}\n",
			wantErr: ErrDuplicateID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var invalid *InvalidCampaignError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestParse_ReportsEveryInvalidEntry(t *testing.T) {
	_, err := Parse([]byte("campaigns:\n  - id: a\n    data: {type: x}\n  - data: {type: modal}\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidViewType)
	assert.ErrorIs(t, err, model.ErrEmptyID)
	assert.Contains(t, err.Error(), "campaign #0 (a)")
	assert.Contains(t, err.Error(), "campaign #1")
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("campaigns: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshal_RoundTrip(t *testing.T) {
	campaigns, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	campaigns[0].ImpressionsLeft = 2
	campaigns[0].IsOptedOut = true

	data, err := Marshal(campaigns)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "opted_out")

	again, err := Parse(data)
	require.NoError(t, err)
	campaigns[0].ImpressionsLeft = 0
	campaigns[0].IsOptedOut = false
	assert.Equal(t, campaigns, again)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaigns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	var mu sync.Mutex
	var got [][]model.Campaign
	w, err := NewWatcher(path, func(c []model.Campaign) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, c)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	// Invalid content is ignored.
	require.NoError(t, os.WriteFile(path, []byte("campaigns:\n  - id: ''\n"), 0o600))
	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(validYAML), 0o600))
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()

	require.NoError(t, os.WriteFile(path, []byte("campaigns:\n  - id: only\n    data: {type: slide}\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && len(got[len(got)-1]) == 1 && got[len(got)-1][0].ID == "only"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "c.yaml"), func([]model.Campaign) {}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
