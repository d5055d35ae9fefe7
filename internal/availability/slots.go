package availability

import (
	"fmt"

	"igrovik/internal/models"
	"igrovik/internal/timerange"
)

// Conflicts records why a slot is not bookable. Absent categories stay
// zero-valued and are omitted from JSON, so a slot without game overlap
// carries no "games" key at all.
type Conflicts struct {
	Console     bool    `json:"console,omitempty"`
	Games       []int64 `json:"games,omitempty"`
	Accessories []int64 `json:"accessories,omitempty"`
	Past        bool    `json:"past,omitempty"`
}

// Empty reports whether no conflict category fired.
func (c Conflicts) Empty() bool {
	return !c.Console && len(c.Games) == 0 && len(c.Accessories) == 0 && !c.Past
}

// Slot is one fixed-duration reservation opportunity on a date.
type Slot struct {
	StartMinute int        `json:"start_minute"`
	Available   bool       `json:"available"`
	Conflicts   *Conflicts `json:"conflicts,omitempty"`
}

// Time formats the slot start as HH:MM:SS.
func (s Slot) Time() string {
	return fmt.Sprintf("%02d:%02d:00", s.StartMinute/60, s.StartMinute%60)
}

// CandidateStarts enumerates slot start minutes on the configured grid
// within [openMinute, closeMinute-duration], keeping a candidate iff its
// full session interval is contained in one of the open windows. Windows
// must already be merged; containment in a merged set is containment in a
// single range.
func CandidateStarts(windows []timerange.Range, openMinute, closeMinute, duration, step int) []int {
	if duration <= 0 || step <= 0 {
		return nil
	}

	var starts []int
	for start := openMinute; start+duration <= closeMinute; start += step {
		session := timerange.Range{Start: start, End: start + duration}
		for _, w := range windows {
			if w.Contains(session) {
				starts = append(starts, start)
				break
			}
		}
	}
	return starts
}

// DetectConflicts compares one candidate session against the date's
// committed reservations. Overlap is true interval overlap on half-open
// ranges, the same definition the generator uses. All three categories
// are checked independently; a slot can collide on several at once.
func DetectConflicts(startMinute, duration int, req models.ResourceRequest, reservations []models.Reservation) Conflicts {
	session := timerange.Range{Start: startMinute, End: startMinute + duration}

	var c Conflicts
	for _, r := range reservations {
		if !session.Overlaps(r.Interval(duration)) {
			continue
		}
		if r.ConsoleID == req.ConsoleID {
			c.Console = true
		}
		c.Games = appendIntersection(c.Games, r.GameIDs, req.GameIDs)
		c.Accessories = appendIntersection(c.Accessories, r.AccessoryIDs, req.AccessoryIDs)
	}
	return c
}

// appendIntersection adds ids present in both theirs and ours to acc,
// skipping duplicates already accumulated from another reservation.
func appendIntersection(acc, theirs, ours []int64) []int64 {
	for _, id := range theirs {
		if !containsID(ours, id) || containsID(acc, id) {
			continue
		}
		acc = append(acc, id)
	}
	return acc
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
