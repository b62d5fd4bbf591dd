package streak

import (
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/kunj2210/codeduel-sync/internal/store"
)

// StorageKey is the single fixed key holding the serialized activity log.
const StorageKey = "codeduel:activity-log"

// ActivityLog is the persisted shape. The streak fields are derived from
// Dates and recomputed before every save, never mutated independently.
type ActivityLog struct {
	Dates         []string `json:"dates"`
	CurrentStreak int      `json:"currentStreak"`
	LongestStreak int      `json:"longestStreak"`
	LastUpdated   string   `json:"lastUpdated"`
}

// Stats is the read model served to UI code.
type Stats struct {
	CurrentStreak int  `json:"currentStreak"`
	LongestStreak int  `json:"longestStreak"`
	MissedDays    int  `json:"missedDays"`
	ActiveToday   bool `json:"activeToday"`
}

// Engine persists an ActivityLog through a KV store. Its public methods
// never return an error: storage and parse failures are logged and degrade
// to an empty in-memory log.
type Engine struct {
	kv  store.KV
	log *zap.Logger
	now func() time.Time
	loc *time.Location
}

type Option func(*Engine)

// WithClock overrides the time source, letting tests pin "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone used to resolve the current calendar day.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func NewEngine(kv store.KV, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		kv:  kv,
		log: log,
		now: time.Now,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) today() string {
	return NormalizeDate(e.now().In(e.loc))
}

// Load reads the persisted log, sanitizing whatever it finds. If the log was
// last recomputed on an earlier day the streak values are stale (the current
// streak may have just broken), so it recomputes and re-persists.
func (e *Engine) Load() ActivityLog {
	lg := e.read()
	if lg.LastUpdated != e.today() {
		return e.save(lg.Dates)
	}
	return lg
}

// RecordActivity marks the current day as active. Recording twice on the
// same calendar day is a no-op returning the unchanged log.
func (e *Engine) RecordActivity() ActivityLog {
	return e.RecordActivityAt(e.now().In(e.loc))
}

// RecordActivityAt records the calendar day t falls on in its own location.
func (e *Engine) RecordActivityAt(t time.Time) ActivityLog {
	day := NormalizeDate(t)
	lg := e.read()
	for _, d := range lg.Dates {
		if d == day {
			return lg
		}
	}
	return e.save(append(lg.Dates, day))
}

// Reset clears the log to the empty state and persists it.
func (e *Engine) Reset() ActivityLog {
	return e.save(nil)
}

// Recalculate re-sanitizes the raw persisted dates and recomputes both
// streaks. Used to self-heal after external storage edits or a day rollover.
func (e *Engine) Recalculate() ActivityLog {
	return e.save(e.read().Dates)
}

// Stats derives the read model from the current log.
func (e *Engine) Stats() Stats {
	lg := e.Load()
	today := e.today()
	return Stats{
		CurrentStreak: lg.CurrentStreak,
		LongestStreak: lg.LongestStreak,
		MissedDays:    MissedDays(lg.Dates, today),
		ActiveToday:   HasActivityToday(lg.Dates, today),
	}
}

// read loads and sanitizes the persisted log. Corrupt payloads and storage
// failures fall back to the empty log.
func (e *Engine) read() ActivityLog {
	raw, err := e.kv.Get(StorageKey)
	if err != nil {
		e.log.Warn("activity log unreadable, starting empty", zap.Error(err))
		return emptyLog()
	}
	if raw == nil {
		return emptyLog()
	}

	var lg ActivityLog
	if err := sonic.Unmarshal(raw, &lg); err != nil {
		e.log.Warn("activity log corrupt, starting empty", zap.Error(err))
		return emptyLog()
	}
	lg.Dates = SanitizeDates(lg.Dates)
	return lg
}

// save recomputes the derived fields from dates, persists and returns the
// new log. A failed write is logged; the computed log is still returned so
// callers keep a consistent in-memory view.
func (e *Engine) save(dates []string) ActivityLog {
	today := e.today()
	ds := SanitizeDates(dates)
	lg := ActivityLog{
		Dates:         ds,
		CurrentStreak: CurrentStreak(ds, today),
		LongestStreak: LongestStreak(ds),
		LastUpdated:   today,
	}

	data, err := sonic.Marshal(lg)
	if err != nil {
		e.log.Warn("activity log encode failed", zap.Error(err))
		return lg
	}
	if err := e.kv.Set(StorageKey, data); err != nil {
		e.log.Warn("activity log write failed", zap.Error(err))
	}
	return lg
}

func emptyLog() ActivityLog {
	return ActivityLog{Dates: []string{}}
}
