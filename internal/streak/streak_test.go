package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrentStreak(t *testing.T) {
	cases := []struct {
		name  string
		dates []string
		today string
		want  int
	}{
		{"empty", nil, "2024-01-03", 0},
		{
			"run ending today",
			[]string{"2024-01-01", "2024-01-02", "2024-01-03"},
			"2024-01-03", 3,
		},
		{
			"same run gone stale two days later",
			[]string{"2024-01-01", "2024-01-02", "2024-01-03"},
			"2024-01-05", 0,
		},
		{
			"run ending yesterday is still alive",
			[]string{"2024-01-01", "2024-01-02"},
			"2024-01-03", 2,
		},
		{
			"gap inside the walk stops the count",
			[]string{"2024-01-01", "2024-01-03", "2024-01-04"},
			"2024-01-04", 2,
		},
		{
			"single day today",
			[]string{"2024-01-03"},
			"2024-01-03", 1,
		},
		{
			"duplicates do not inflate the count",
			[]string{"2024-01-02", "2024-01-02", "2024-01-03", "2024-01-03"},
			"2024-01-03", 2,
		},
		{
			"unsorted input",
			[]string{"2024-01-03", "2024-01-01", "2024-01-02"},
			"2024-01-03", 3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CurrentStreak(tc.dates, tc.today))
		})
	}
}

func TestLongestStreak(t *testing.T) {
	cases := []struct {
		name  string
		dates []string
		want  int
	}{
		{"empty", nil, 0},
		{"single date", []string{"2024-01-01"}, 1},
		{
			"longest run in the middle",
			[]string{"2024-01-01", "2024-01-05", "2024-01-06", "2024-01-07", "2024-01-10"},
			3,
		},
		{
			"duplicates ignored",
			[]string{"2024-01-01", "2024-01-01", "2024-01-02"},
			2,
		},
		{
			"all isolated days",
			[]string{"2024-01-01", "2024-01-05", "2024-01-09"},
			1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, LongestStreak(tc.dates))
		})
	}
}

func TestLongestStreak_NeverBelowCurrent(t *testing.T) {
	sets := [][]string{
		{"2024-01-01", "2024-01-02", "2024-01-03"},
		{"2024-01-01", "2024-01-03"},
		{"2023-12-30", "2023-12-31", "2024-01-02", "2024-01-03"},
		{},
		{"2024-01-03"},
	}
	for _, dates := range sets {
		assert.GreaterOrEqual(t,
			LongestStreak(dates),
			CurrentStreak(dates, "2024-01-03"),
			"dates: %v", dates)
	}
}

func TestMissedDays(t *testing.T) {
	cases := []struct {
		name  string
		dates []string
		today string
		want  int
	}{
		{"empty", nil, "2024-01-10", 0},
		{"active today", []string{"2024-01-10"}, "2024-01-10", 0},
		{"active yesterday", []string{"2024-01-09"}, "2024-01-10", 0},
		{"five days ago", []string{"2024-01-05"}, "2024-01-10", 4},
		{"two days ago", []string{"2024-01-08"}, "2024-01-10", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MissedDays(tc.dates, tc.today))
		})
	}
}

func TestHasActivityToday(t *testing.T) {
	dates := []string{"2024-01-01", "2024-01-02"}
	assert.True(t, HasActivityToday(dates, "2024-01-02"))
	assert.False(t, HasActivityToday(dates, "2024-01-03"))
	assert.False(t, HasActivityToday(nil, "2024-01-03"))
}
