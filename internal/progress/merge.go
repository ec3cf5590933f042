package progress

import (
	"time"

	"github.com/dmv-prep/backend/internal/models"
)

// Merge folds update into doc in place.
//
//   - selectedState: last write wins
//   - tests[n]: attemptCount, bestScore and lastAttemptDate take the max,
//     firstScore is kept once set
//   - sessions[n]: replaced; a nil entry deletes the slot
//   - training[id]: mastered is an ordered union, the wrong-queue is the
//     update's queue minus everything mastered, correctCount takes the max
//   - activeDates: sorted union
//   - subscription: replaced when present
func Merge(doc *models.UserProgressDocument, update models.ProgressUpdate) {
	doc.Normalize()

	if update.SelectedState != nil {
		doc.SelectedState = *update.SelectedState
	}

	for n, in := range update.Tests {
		if in == nil {
			continue
		}
		doc.Tests[n] = mergeStats(doc.Tests[n], in)
	}

	for n, s := range update.Sessions {
		if s == nil || s.Completed {
			delete(doc.Sessions, n)
			continue
		}
		doc.Sessions[n] = s.Clone()
	}

	for id, in := range update.Training {
		if in == nil {
			continue
		}
		doc.Training[id] = mergeTraining(doc.Training[id], in)
	}

	doc.ActiveDates = models.MergeDates(doc.ActiveDates, update.ActiveDates)

	if update.Subscription != nil {
		doc.Subscription = *update.Subscription
	}
}

func mergeStats(cur, in *models.TestAttemptStats) *models.TestAttemptStats {
	out := &models.TestAttemptStats{}
	if cur != nil {
		*out = *cur
	}
	out.AttemptCount = max(out.AttemptCount, in.AttemptCount)
	out.BestScore = max(out.BestScore, in.BestScore)
	if out.FirstScore == nil && in.FirstScore != nil {
		first := *in.FirstScore
		out.FirstScore = &first
	}
	out.LastAttemptDate = laterOf(out.LastAttemptDate, in.LastAttemptDate)
	return out
}

func laterOf(a, b *time.Time) *time.Time {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		t := *b
		return &t
	case b == nil || !b.After(*a):
		t := *a
		return &t
	default:
		t := *b
		return &t
	}
}

func mergeTraining(cur, in *models.TrainingSetProgress) *models.TrainingSetProgress {
	out := &models.TrainingSetProgress{}
	if cur != nil {
		out.MasteredIDs = append(out.MasteredIDs, cur.MasteredIDs...)
		out.CorrectCount = cur.CorrectCount
	}
	for _, id := range in.MasteredIDs {
		if !out.IsMastered(id) {
			out.MasteredIDs = append(out.MasteredIDs, id)
		}
	}
	for _, id := range in.WrongQueue {
		if !out.IsMastered(id) && !out.InWrongQueue(id) {
			out.WrongQueue = append(out.WrongQueue, id)
		}
	}
	out.CorrectCount = max(out.CorrectCount, in.CorrectCount, len(out.MasteredIDs))
	return out
}
