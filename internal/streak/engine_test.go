package streak

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kunj2210/codeduel-sync/internal/store"
)

func testEngine(t *testing.T, kv store.KV, today string) *Engine {
	t.Helper()
	now, err := time.Parse("2006-01-02", today)
	require.NoError(t, err)
	return NewEngine(kv, zap.NewNop(),
		WithClock(func() time.Time { return now.Add(12 * time.Hour) }),
		WithLocation(time.UTC))
}

func TestEngine_RecordActivity_Idempotent(t *testing.T) {
	eng := testEngine(t, store.NewMemory(), "2024-01-03")

	first := eng.RecordActivity()
	second := eng.RecordActivity()

	assert.Equal(t, first.Dates, second.Dates)
	assert.Equal(t, first.CurrentStreak, second.CurrentStreak)
	assert.Equal(t, first.LongestStreak, second.LongestStreak)
	assert.Equal(t, []string{"2024-01-03"}, second.Dates)
	assert.Equal(t, 1, second.CurrentStreak)
}

func TestEngine_RecordActivity_BuildsStreak(t *testing.T) {
	kv := store.NewMemory()
	eng := testEngine(t, kv, "2024-01-03")

	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		require.NoError(t, err)
		return d
	}

	eng.RecordActivityAt(day("2024-01-01"))
	eng.RecordActivityAt(day("2024-01-02"))
	lg := eng.RecordActivity()

	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, lg.Dates)
	assert.Equal(t, 3, lg.CurrentStreak)
	assert.Equal(t, 3, lg.LongestStreak)
	assert.Equal(t, "2024-01-03", lg.LastUpdated)
}

func TestEngine_Load_FreshStoreIsEmpty(t *testing.T) {
	eng := testEngine(t, store.NewMemory(), "2024-01-03")

	lg := eng.Load()

	assert.Empty(t, lg.Dates)
	assert.Zero(t, lg.CurrentStreak)
	assert.Zero(t, lg.LongestStreak)
}

func TestEngine_Load_CorruptPayloadFallsBackToEmpty(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(StorageKey, []byte("{not json")))

	eng := testEngine(t, kv, "2024-01-03")
	lg := eng.Load()

	assert.Empty(t, lg.Dates)

	// A record after corruption starts a clean log.
	lg = eng.RecordActivity()
	assert.Equal(t, []string{"2024-01-03"}, lg.Dates)
}

func TestEngine_Load_FiltersSeededGarbage(t *testing.T) {
	kv := store.NewMemory()
	seeded := `{"dates":["2024-01-02","2024-01-02","bogus","2024-01-03","2024-02-30"],"currentStreak":99,"longestStreak":0,"lastUpdated":"2024-01-01"}`
	require.NoError(t, kv.Set(StorageKey, []byte(seeded)))

	eng := testEngine(t, kv, "2024-01-03")
	lg := eng.Load()

	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, lg.Dates)
	assert.Equal(t, 2, lg.CurrentStreak)
	assert.Equal(t, 2, lg.LongestStreak)
}

func TestEngine_Load_RecomputesAfterDayRollover(t *testing.T) {
	kv := store.NewMemory()
	stale := `{"dates":["2023-12-31","2024-01-01"],"currentStreak":2,"longestStreak":2,"lastUpdated":"2024-01-01"}`
	require.NoError(t, kv.Set(StorageKey, []byte(stale)))

	eng := testEngine(t, kv, "2024-01-04")
	lg := eng.Load()

	assert.Equal(t, 0, lg.CurrentStreak, "streak broke while the app was closed")
	assert.Equal(t, 2, lg.LongestStreak)
	assert.Equal(t, "2024-01-04", lg.LastUpdated)
}

func TestEngine_Reset(t *testing.T) {
	eng := testEngine(t, store.NewMemory(), "2024-01-03")
	eng.RecordActivity()

	lg := eng.Reset()

	assert.Empty(t, lg.Dates)
	assert.Zero(t, lg.CurrentStreak)
	assert.Zero(t, lg.LongestStreak)
	assert.Empty(t, eng.Load().Dates)
}

func TestEngine_Stats(t *testing.T) {
	kv := store.NewMemory()
	seeded := `{"dates":["2024-01-05","2024-01-06"],"currentStreak":2,"longestStreak":2,"lastUpdated":"2024-01-06"}`
	require.NoError(t, kv.Set(StorageKey, []byte(seeded)))

	eng := testEngine(t, kv, "2024-01-10")
	st := eng.Stats()

	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 2, st.LongestStreak)
	assert.Equal(t, 3, st.MissedDays)
	assert.False(t, st.ActiveToday)
}

// failingKV errors on every operation.
type failingKV struct{}

func (failingKV) Get(string) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingKV) Set(string, []byte) error   { return errors.New("disk gone") }
func (failingKV) Delete(string) error        { return errors.New("disk gone") }
func (failingKV) Close() error               { return nil }

func TestEngine_StorageFailureNeverPropagates(t *testing.T) {
	eng := testEngine(t, failingKV{}, "2024-01-03")

	assert.NotPanics(t, func() {
		lg := eng.RecordActivity()
		assert.Equal(t, []string{"2024-01-03"}, lg.Dates)

		lg = eng.Load()
		assert.Empty(t, lg.Dates)

		_ = eng.Reset()
		_ = eng.Recalculate()
		_ = eng.Stats()
	})
}
