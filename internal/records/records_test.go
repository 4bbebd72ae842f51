package records_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/gatelog/internal/kv"
	"github.com/hyperengineering/gatelog/internal/records"
	"github.com/hyperengineering/gatelog/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore(t *testing.T, quota int64) (*records.Store, *clock) {
	t.Helper()
	db, err := kv.Open(filepath.Join(t.TempDir(), "gatelog.db"), kv.Options{QuotaBytes: quota})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := &clock{t: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	return records.New(db, records.WithClock(c.now)), c
}

func packages(s *records.Store) *records.Collection[model.PackageRecord, *model.PackageRecord] {
	return records.NewCollection[model.PackageRecord](s, model.ModulePackages)
}

func TestCollection_ListEmpty(t *testing.T) {
	s, _ := newStore(t, 0)

	items, err := packages(s).List()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCollection_SaveAssignsIDAndStamps(t *testing.T) {
	s, c := newStore(t, 0)
	col := packages(s)

	saved, err := col.Save(model.PackageRecord{RecipientName: "Ana", Status: "pending"})
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.Synced)
	assert.Equal(t, c.t, saved.CreatedAt)
	assert.Equal(t, c.t, saved.UpdatedAt)

	got, err := col.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.RecipientName)
}

func TestCollection_SaveUpdateKeepsIDAndCreatedAt(t *testing.T) {
	s, c := newStore(t, 0)
	col := packages(s)

	first, err := col.Save(model.PackageRecord{RecipientName: "Ana"})
	require.NoError(t, err)
	_, err = col.MarkSynced([]string{first.ID})
	require.NoError(t, err)

	c.advance(time.Minute)
	edit := first
	edit.Synced = true
	edit.CreatedAt = time.Time{}
	edit.Status = "delivered"
	second, err := col.Save(edit)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.False(t, second.Synced, "every mutation clears synced")

	items, err := col.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestCollection_SaveNewestFirst(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)

	a, err := col.Save(model.PackageRecord{RecipientName: "a"})
	require.NoError(t, err)
	b, err := col.Save(model.PackageRecord{RecipientName: "b"})
	require.NoError(t, err)

	items, err := col.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID)
	assert.Equal(t, a.ID, items[1].ID)
}

func TestCollection_GetMissing(t *testing.T) {
	s, _ := newStore(t, 0)

	_, err := packages(s).Get("nope")
	assert.ErrorIs(t, err, records.ErrRecordNotFound)
}

func TestCollection_MarkSyncedLeavesOtherFields(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)

	a, _ := col.Save(model.PackageRecord{RecipientName: "a"})
	b, _ := col.Save(model.PackageRecord{RecipientName: "b"})

	n, err := col.MarkSynced([]string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := col.Get(a.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
	assert.Equal(t, a.UpdatedAt, got.UpdatedAt)
	assert.Equal(t, "a", got.RecipientName)

	unsynced, err := col.Unsynced()
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, b.ID, unsynced[0].ID)
}

func TestCollection_MarkPushedSkipsRecordsEditedInFlight(t *testing.T) {
	s, c := newStore(t, 0)
	col := packages(s)

	a, _ := col.Save(model.PackageRecord{RecipientName: "a"})
	b, _ := col.Save(model.PackageRecord{RecipientName: "b"})
	versions := map[string]time.Time{a.ID: a.UpdatedAt, b.ID: b.UpdatedAt}

	// b is edited after the push read it.
	c.advance(time.Second)
	b.Status = "delivered"
	_, err := col.Save(b)
	require.NoError(t, err)

	n, err := col.MarkPushed(versions)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gotA, _ := col.Get(a.ID)
	gotB, _ := col.Get(b.ID)
	assert.True(t, gotA.Synced)
	assert.False(t, gotB.Synced)
}

func TestCollection_DeleteEnqueuesTombstone(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)

	a, _ := col.Save(model.PackageRecord{RecipientName: "a"})
	require.NoError(t, col.Delete(a.ID))

	items, err := col.List()
	require.NoError(t, err)
	assert.Empty(t, items)

	queue, err := s.Tombstones().Drain()
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, a.ID, queue[0].ID)
	assert.Equal(t, "packages", queue[0].Table)

	// Deleting twice does not duplicate the tombstone.
	require.NoError(t, col.Delete(a.ID))
	n, err := s.Tombstones().Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCollection_UpdateSeesPendingTombstones(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)
	require.NoError(t, s.Tombstones().Enqueue("gone", "packages"))
	require.NoError(t, s.Tombstones().Enqueue("other", "meters"))

	err := col.Update(func(items []model.PackageRecord, deleted map[string]bool) ([]model.PackageRecord, error) {
		assert.True(t, deleted["gone"])
		assert.False(t, deleted["other"])
		return append(items, model.PackageRecord{Meta: model.Meta{ID: "x", Synced: true}}), nil
	})
	require.NoError(t, err)

	got, err := col.Get("x")
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

func TestCollection_UpdateErrorLeavesStateUntouched(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)
	a, _ := col.Save(model.PackageRecord{RecipientName: "a"})

	boom := errors.New("boom")
	err := col.Update(func([]model.PackageRecord, map[string]bool) ([]model.PackageRecord, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = col.Get(a.ID)
	assert.NoError(t, err)
}

func TestCollection_QuotaFailureKeepsPreviousState(t *testing.T) {
	s, _ := newStore(t, 400)
	col := packages(s)

	a, err := col.Save(model.PackageRecord{RecipientName: "a"})
	require.NoError(t, err)

	big := model.PackageRecord{Description: string(make([]byte, 1024))}
	_, err = col.Save(big)
	require.Error(t, err)
	assert.ErrorIs(t, err, kv.ErrQuotaExceeded)

	items, err := col.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)
}

func TestCollection_Count(t *testing.T) {
	s, _ := newStore(t, 0)
	col := packages(s)
	a, _ := col.Save(model.PackageRecord{})
	_, _ = col.Save(model.PackageRecord{})
	_, _ = col.MarkSynced([]string{a.ID})

	total, unsynced, err := col.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, unsynced)
}

func TestTombstones_ClearOnlyListed(t *testing.T) {
	s, _ := newStore(t, 0)
	q := s.Tombstones()
	require.NoError(t, q.Enqueue("a", "packages"))
	require.NoError(t, q.Enqueue("b", "packages"))
	require.NoError(t, q.Enqueue("c", "meters"))

	snapshot, err := q.Drain()
	require.NoError(t, err)
	assert.Len(t, snapshot, 3)

	require.NoError(t, q.Enqueue("d", "patrols"))
	require.NoError(t, q.Clear([]string{"a", "c"}))

	rest, err := q.Drain()
	require.NoError(t, err)
	ids := []string{}
	for _, ts := range rest {
		ids = append(ids, ts.ID)
	}
	assert.ElementsMatch(t, []string{"b", "d"}, ids)

	pending, err := q.Pending("packages")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"b": true}, pending)
}

func TestSettings_DefaultsWhenEmpty(t *testing.T) {
	s, _ := newStore(t, 0)

	got, err := s.Settings().Get()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), got)
	assert.True(t, got.Synced)
}

func TestSettings_SaveNotifiesSubscribers(t *testing.T) {
	s, c := newStore(t, 0)
	slot := s.Settings()

	var seen []model.Settings
	cancel := slot.Subscribe(func(v model.Settings) { seen = append(seen, v) })

	in := model.DefaultSettings()
	in.Theme = "dark"
	saved, err := slot.Save(in)
	require.NoError(t, err)
	assert.False(t, saved.Synced)
	assert.Equal(t, c.t, saved.UpdatedAt)

	cancel()
	_, err = slot.Save(in)
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "dark", seen[0].Theme)
}

func TestSettings_ReplaceIfNewer(t *testing.T) {
	s, _ := newStore(t, 0)
	slot := s.Settings()

	local, err := slot.Save(model.DefaultSettings())
	require.NoError(t, err)

	older := model.DefaultSettings()
	older.CompanyName = "older"
	older.UpdatedAt = local.UpdatedAt.Add(-time.Second)
	replaced, err := slot.ReplaceIfNewer(older)
	require.NoError(t, err)
	assert.False(t, replaced)

	equal := older
	equal.CompanyName = "equal"
	equal.UpdatedAt = local.UpdatedAt
	replaced, err = slot.ReplaceIfNewer(equal)
	require.NoError(t, err)
	assert.False(t, replaced)

	newer := older
	newer.CompanyName = "newer"
	newer.UpdatedAt = local.UpdatedAt.Add(time.Second)
	replaced, err = slot.ReplaceIfNewer(newer)
	require.NoError(t, err)
	assert.True(t, replaced)

	got, err := slot.Get()
	require.NoError(t, err)
	assert.Equal(t, "newer", got.CompanyName)
	assert.True(t, got.Synced)
}

func TestSettings_MarkSyncedRequiresSameVersion(t *testing.T) {
	s, c := newStore(t, 0)
	slot := s.Settings()

	first, err := slot.Save(model.DefaultSettings())
	require.NoError(t, err)
	c.advance(time.Second)
	_, err = slot.Save(first)
	require.NoError(t, err)

	changed, err := slot.MarkSynced(first.UpdatedAt)
	require.NoError(t, err)
	assert.False(t, changed)

	got, _ := slot.Get()
	changed, err = slot.MarkSynced(got.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestStore_LastSync(t *testing.T) {
	s, _ := newStore(t, 0)

	got, err := s.LastSync()
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	at := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetLastSync(at))
	got, err = s.LastSync()
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}
