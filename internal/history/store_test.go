package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func attempt(id, campaign string, reason model.Reason, at time.Time) model.Attempt {
	return model.Attempt{
		ID:         id,
		CampaignID: campaign,
		Kind:       model.AttemptKindMessage,
		Reason:     reason,
		Detail:     "detail " + id,
		CreatedAt:  at,
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordAttempt(context.Background(), attempt("a1", "c1", model.ReasonDisplayed, base)))
	require.NoError(t, s.Close())

	// Migrations are not re-applied and data survives.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ListAttempts(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.RecordAttempt(ctx, attempt("a1", "c1", model.ReasonDisplayed, base)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("a2", "c2", model.ReasonRejected, base.Add(time.Second))))
	tip := attempt("a3", "c1", model.ReasonInterrupted, base.Add(2*time.Second))
	tip.Kind = model.AttemptKindTooltip
	require.NoError(t, s.RecordAttempt(ctx, tip))

	all, err := s.ListAttempts(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a3", "a2", "a1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, tip, all[0])

	c1, err := s.ListAttempts(ctx, Filter{CampaignID: "c1"})
	require.NoError(t, err)
	assert.Len(t, c1, 2)

	limited, err := s.ListAttempts(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a3", limited[0].ID)

	recent, err := s.ListAttempts(ctx, Filter{Since: base.Add(time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestStore_RecordAttemptValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.RecordAttempt(ctx, model.Attempt{CampaignID: "c1"}))
	assert.Error(t, s.RecordAttempt(ctx, model.Attempt{ID: "a1"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.RecordAttempt(cancelled, attempt("a1", "c1", model.ReasonDisplayed, time.Now())), context.Canceled)

	// Duplicate ids are rejected by the primary key.
	require.NoError(t, s.RecordAttempt(ctx, attempt("a1", "c1", model.ReasonDisplayed, time.Now())))
	assert.Error(t, s.RecordAttempt(ctx, attempt("a1", "c1", model.ReasonDisplayed, time.Now())))
}

func TestStore_OutcomeCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, r := range []struct {
		campaign string
		reason   model.Reason
	}{
		{"c1", model.ReasonDisplayed},
		{"c1", model.ReasonDisplayed},
		{"c1", model.ReasonRejected},
		{"c2", model.ReasonSkipped},
	} {
		id := string(rune('a' + i))
		require.NoError(t, s.RecordAttempt(ctx, attempt(id, r.campaign, r.reason, now)))
	}

	counts, err := s.OutcomeCounts(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, map[model.Reason]int{model.ReasonDisplayed: 2, model.ReasonRejected: 1}, counts)

	all, err := s.OutcomeCounts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, all[model.ReasonSkipped])
	assert.Equal(t, 2, all[model.ReasonDisplayed])
}

func TestStore_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordAttempt(ctx, attempt("old", "c1", model.ReasonDisplayed, base)))
	require.NoError(t, s.RecordAttempt(ctx, attempt("new", "c1", model.ReasonDisplayed, base.Add(48*time.Hour))))

	n, err := s.Prune(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	left, err := s.ListAttempts(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
}

func TestStore_NilStore(t *testing.T) {
	var s *Store
	assert.NoError(t, s.Close())
	_, err := s.ListAttempts(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, s.RecordAttempt(context.Background(), attempt("a", "c", model.ReasonDisplayed, time.Now())), ErrNotConfigured)
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nCREATE TABLE x;\n", upSection("-- +migrate Up\nCREATE TABLE x;\n-- +migrate Down\nDROP TABLE x;"))
	assert.Equal(t, "CREATE TABLE y;", upSection("CREATE TABLE y;"))
}
