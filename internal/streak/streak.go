package streak

// CurrentStreak returns the consecutive-day run length anchored at today.
// A most-recent entry older than yesterday means the streak is broken; an
// entry from yesterday keeps the streak alive with the walk anchored there.
func CurrentStreak(dates []string, today string) int {
	ds := SanitizeDates(dates)
	if len(ds) == 0 {
		return 0
	}

	mostRecent := ds[len(ds)-1]
	gap := DateDifference(mostRecent, today)
	if gap != 0 && gap != 1 {
		return 0
	}

	// Walk backwards from the most recent day, one calendar day per entry.
	streak := 0
	anchor := mostRecent
	for i := len(ds) - 1; i >= 0; i-- {
		if ds[i] != anchor {
			break
		}
		streak++
		anchor = AddDays(anchor, -1)
	}
	return streak
}

// LongestStreak returns the longest consecutive-day run anywhere in the set.
func LongestStreak(dates []string) int {
	ds := SanitizeDates(dates)
	if len(ds) == 0 {
		return 0
	}

	longest := 1
	run := 1
	for i := 1; i < len(ds); i++ {
		if DateDifference(ds[i-1], ds[i]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// MissedDays returns how many whole days have passed since the last
// activity, not counting today. Today or yesterday count as zero.
func MissedDays(dates []string, today string) int {
	ds := SanitizeDates(dates)
	if len(ds) == 0 {
		return 0
	}
	gap := DateDifference(ds[len(ds)-1], today)
	if gap <= 1 {
		return 0
	}
	return gap - 1
}

// HasActivityToday reports whether today appears in the set.
func HasActivityToday(dates []string, today string) bool {
	for _, d := range dates {
		if d == today {
			return true
		}
	}
	return false
}
