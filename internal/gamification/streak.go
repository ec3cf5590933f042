package gamification

import (
	"time"

	"github.com/dmv-prep/backend/internal/models"
)

const dateLayout = "2006-01-02"

// streakMilestones are the run lengths worth celebrating in the client.
var streakMilestones = []int{3, 7, 14, 30, 60, 100, 365}

// ── Streak ──────────────────────────────────────────────

// Streak derives the study streak from a sorted list of UTC activity dates.
// A streak stays current through today even if today has no activity yet,
// so it only breaks once a full day is missed.
func Streak(activeDates []string, now time.Time) models.StreakInfo {
	today := now.UTC().Truncate(24 * time.Hour)

	var info models.StreakInfo
	var run int
	var prev time.Time
	for _, d := range activeDates {
		day, err := time.Parse(dateLayout, d)
		if err != nil {
			continue
		}
		if day.After(today) {
			break
		}

		daysSinceLast := int(day.Sub(prev).Hours() / 24)
		switch {
		case run > 0 && daysSinceLast == 0:
			continue
		case run > 0 && daysSinceLast == 1:
			run++
		default:
			run = 1
		}
		prev = day

		if run > info.Longest {
			info.Longest = run
		}
	}

	if run > 0 {
		gap := int(today.Sub(prev).Hours() / 24)
		info.ActiveToday = gap == 0
		if gap <= 1 {
			info.Current = run
		}
	}
	info.NextMilestone = nextMilestone(info.Current)
	return info
}

func nextMilestone(current int) int {
	for _, m := range streakMilestones {
		if m > current {
			return m
		}
	}
	return 0
}
